// Copyright (C) 2025 duggavo
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package limiter is the enforcement engine: it discovers nodes,
// polls them concurrently, aggregates per-account IP usage, detects
// violations and applies escalating disables through the panel.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pglimiter/config"
	"pglimiter/database"
	"pglimiter/log"
	"pglimiter/mut"
	"pglimiter/panel"
	"pglimiter/util"
)

// TickInfo is a snapshot of the last evaluation tick, for the stats
// API.
type TickInfo struct {
	Time       uint64
	Accounts   int
	Violations int

	mut.RWMutex
}

var LastTick TickInfo

type Engine struct {
	Panel *panel.Client
	DB    *database.DB

	Registry  *Registry
	Agg       *Aggregator
	Sup       *Supervisor
	Detector  *Detector
	Punisher  *Punisher
	Scheduler *Scheduler
}

func NewEngine(p *panel.Client, db *database.DB) *Engine {
	agg := NewAggregator()

	return &Engine{
		Panel: p,
		DB:    db,

		Registry: NewRegistry(p),
		Agg:      agg,
		Sup: NewSupervisor(p, agg, func() time.Duration {
			return time.Duration(LoadSettings(db).PollInterval) * time.Second
		}),
		Detector:  NewDetector(db),
		Punisher:  NewPunisher(db, p),
		Scheduler: NewScheduler(db, p),
	}
}

// Run drives the whole engine until the context is cancelled. It
// returns nil on a clean shutdown; a panic in any loop is converted
// into an error so the outer supervisor can restart everything from
// scratch.
func (e *Engine) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// fail fast on bad credentials or an unreachable panel
	if _, err := e.Panel.Token(); err != nil {
		return err
	}

	// a restarted engine has no poll tasks left; re-arm from scratch
	e.Registry.Reset()
	e.syncTasks(ctx)

	var wg sync.WaitGroup
	var failMut sync.Mutex
	var failure error

	run := func(name string, loop func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failMut.Lock()
					if failure == nil {
						failure = fmt.Errorf("%s loop: %v", name, r)
					}
					failMut.Unlock()
					cancel()
				}
			}()
			loop(ctx)
		}()
	}

	run("node refresh", e.refreshLoop)
	run("evaluation", e.tickLoop)
	run("re-enable sweep", e.sweepLoop)

	wg.Wait()

	// cancel and await every node task before returning
	e.Sup.StopAll()

	return failure
}

// syncTasks refreshes the node set and spawns/stops poll tasks
// accordingly.
func (e *Engine) syncTasks(ctx context.Context) {
	added, removed := e.Registry.Refresh()

	for _, n := range removed {
		log.Infof("node %s (id %d) is gone, stopping its poll task", n.Name, n.ID)
		e.Sup.Stop(n.ID)
	}
	for _, n := range added {
		e.Sup.Spawn(ctx, n)
	}
}

func (e *Engine) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(config.NODE_REFRESH_INTERVAL * time.Second):
		}

		e.syncTasks(ctx)
	}
}

// tickLoop is the evaluation heartbeat: drain the window, detect
// violations, punish. Everything inside a tick runs sequentially, so
// a tick's punishments always complete before the next snapshot is
// taken.
func (e *Engine) tickLoop(ctx context.Context) {
	for {
		set := LoadSettings(e.DB)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(set.CheckInterval) * time.Second):
		}

		set = LoadSettings(e.DB)

		snap := e.Agg.Drain(e.Registry.Live())
		decisions := e.Detector.Evaluate(snap, set.GeneralLimit)

		if len(decisions) > 0 {
			log.Info(len(decisions), "violating accounts out of", len(snap), "active")
		} else {
			log.Debug("no violations,", len(snap), "active accounts")
		}

		e.Punisher.Apply(decisions, set)

		LastTick.Lock()
		LastTick.Time = util.Time()
		LastTick.Accounts = len(snap)
		LastTick.Violations = len(decisions)
		LastTick.Unlock()
	}
}

func (e *Engine) sweepLoop(ctx context.Context) {
	for {
		set := LoadSettings(e.DB)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(set.SweepInterval) * time.Second):
		}

		e.Scheduler.Sweep(util.Time())
	}
}
