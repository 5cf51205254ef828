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
	"errors"
	"sync"
	"testing"
	"time"

	"pglimiter/panel"
)

type fakeFetcher struct {
	sync.Mutex
	usage map[int64]map[string][]string
	calls map[int64]int
	fail  map[int64]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		usage: make(map[int64]map[string][]string),
		calls: make(map[int64]int),
		fail:  make(map[int64]bool),
	}
}

func (f *fakeFetcher) NodeOnlineIPs(nodeID int64) (map[string][]string, error) {
	f.Lock()
	defer f.Unlock()

	f.calls[nodeID]++
	if f.fail[nodeID] {
		return nil, errors.New("node down")
	}
	return f.usage[nodeID], nil
}

func (f *fakeFetcher) callCount(nodeID int64) int {
	f.Lock()
	defer f.Unlock()
	return f.calls[nodeID]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for", what)
}

func TestSupervisorSpawnStop(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.usage[1] = map[string][]string{"alice": {"1.1.1.1"}}

	agg := NewAggregator()
	s := NewSupervisor(fetcher, agg, func() time.Duration { return 10 * time.Millisecond })

	node := panel.Node{ID: 1, Name: "a", Status: panel.STATUS_CONNECTED}
	s.Spawn(context.Background(), node)
	s.Spawn(context.Background(), node)

	if len(s.Running()) != 1 {
		t.Fatal("spawn must be idempotent per node")
	}

	waitFor(t, "first sample", func() bool { return fetcher.callCount(1) >= 2 })

	snap := agg.Drain(map[int64]bool{1: true})
	if len(snap["alice"]) != 1 {
		t.Fatal("published sample missing:", snap)
	}

	s.Stop(1)

	if len(s.Running()) != 0 {
		t.Fatal("stopped task still registered")
	}

	// no further polls after stop
	calls := fetcher.callCount(1)
	time.Sleep(50 * time.Millisecond)
	if fetcher.callCount(1) != calls {
		t.Fatal("task kept polling after stop")
	}
}

func TestSupervisorFailureIsolation(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.usage[1] = map[string][]string{"alice": {"1.1.1.1"}}
	fetcher.fail[2] = true

	agg := NewAggregator()
	s := NewSupervisor(fetcher, agg, func() time.Duration { return 10 * time.Millisecond })
	defer s.StopAll()

	s.Spawn(context.Background(), panel.Node{ID: 1, Name: "a", Status: panel.STATUS_CONNECTED})
	s.Spawn(context.Background(), panel.Node{ID: 2, Name: "b", Status: panel.STATUS_CONNECTED})

	// the failing node must neither stop itself nor block node 1
	waitFor(t, "both nodes polling", func() bool {
		return fetcher.callCount(1) >= 3 && fetcher.callCount(2) >= 3
	})

	if len(s.Running()) != 2 {
		t.Fatal("failing node terminated its own task")
	}

	snap := agg.Drain(map[int64]bool{1: true, 2: true})
	if len(snap["alice"]) != 1 {
		t.Fatal("healthy node data missing:", snap)
	}
}

func TestSupervisorStopAll(t *testing.T) {
	fetcher := newFakeFetcher()
	s := NewSupervisor(fetcher, NewAggregator(), func() time.Duration { return 10 * time.Millisecond })

	for id := int64(1); id <= 3; id++ {
		s.Spawn(context.Background(), panel.Node{ID: id, Name: "n", Status: panel.STATUS_CONNECTED})
	}

	s.StopAll()

	if len(s.Running()) != 0 {
		t.Fatal("tasks survived StopAll:", s.Running())
	}
}
