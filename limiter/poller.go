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

package limiter

import (
	"context"
	"fmt"
	"time"

	"pglimiter/config"
	"pglimiter/log"
	"pglimiter/mut"
	"pglimiter/panel"
	"pglimiter/util"
)

type UsageFetcher interface {
	NodeOnlineIPs(nodeID int64) (map[string][]string, error)
}

type pollTask struct {
	node   panel.Node
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns one poll task per connected node. Registry diffs
// drive explicit Spawn and Stop calls; Stop cancels the task and waits
// for it to finish before dropping it.
type Supervisor struct {
	fetcher  UsageFetcher
	agg      *Aggregator
	interval func() time.Duration

	tasks map[int64]*pollTask

	// throttles repeated failure alerts per node
	lastAlert map[int64]uint64

	mut.RWMutex
}

func NewSupervisor(fetcher UsageFetcher, agg *Aggregator, interval func() time.Duration) *Supervisor {
	return &Supervisor{
		fetcher:  fetcher,
		agg:      agg,
		interval: interval,

		tasks:     make(map[int64]*pollTask, 10),
		lastAlert: make(map[int64]uint64, 10),
	}
}

// Spawn starts a poll task for the node unless one is already running.
func (s *Supervisor) Spawn(ctx context.Context, node panel.Node) {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.tasks[node.ID]; ok {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &pollTask{
		node:   node,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[node.ID] = t

	log.Infof("starting poll task for node %s (id %d)", node.Name, node.ID)

	go s.poll(taskCtx, t)
}

// poll fetches the node's live IPs every interval until cancelled. A
// failing node keeps getting polled; it never terminates its own task
// and never blocks the other nodes.
func (s *Supervisor) poll(ctx context.Context, t *pollTask) {
	defer close(t.done)

	for {
		usage, err := s.fetcher.NodeOnlineIPs(t.node.ID)
		if err != nil {
			log.Warnf("node %s (id %d): poll failed: %s", t.node.Name, t.node.ID, err)
			s.alertThrottled(t.node, err)
		} else {
			s.agg.Publish(UsageSample{
				NodeID: t.node.ID,
				Usage:  usage,
				Time:   util.Time(),
			})
		}

		select {
		case <-ctx.Done():
			log.Infof("poll task for node %s (id %d) stopped", t.node.Name, t.node.ID)
			return
		case <-time.After(s.interval()):
		}
	}
}

func (s *Supervisor) alertThrottled(node panel.Node, err error) {
	s.Lock()
	now := util.Time()
	last := s.lastAlert[node.ID]
	if now-last < config.NODE_ALERT_THROTTLE {
		s.Unlock()
		return
	}
	s.lastAlert[node.ID] = now
	s.Unlock()

	alert(fmt.Sprintf("node `%s` is unreachable: %s", node.Name, err))
}

// Stop cancels the node's task and waits for it to exit.
func (s *Supervisor) Stop(nodeID int64) {
	s.Lock()
	t, ok := s.tasks[nodeID]
	if ok {
		delete(s.tasks, nodeID)
		delete(s.lastAlert, nodeID)
	}
	s.Unlock()

	if !ok {
		return
	}

	t.cancel()
	<-t.done
}

// StopAll cancels every task and waits for all of them.
func (s *Supervisor) StopAll() {
	s.Lock()
	tasks := s.tasks
	s.tasks = make(map[int64]*pollTask, 10)
	s.lastAlert = make(map[int64]uint64, 10)
	s.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}

	if len(tasks) > 0 {
		log.Info("all", len(tasks), "poll tasks stopped")
	}
}

// Running returns the node ids that currently have a poll task.
func (s *Supervisor) Running() []int64 {
	s.RLock()
	defer s.RUnlock()

	ids := make([]int64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	return ids
}
