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
	"pglimiter/mut"
)

// UsageSample is one node's view of who is online from where. Produced
// by a poll task, consumed once by the aggregator.
type UsageSample struct {
	NodeID int64
	Usage  map[string][]string
	Time   uint64
}

// Aggregator keeps the current evaluation window, keyed by node id so
// a node removed mid-window can be discarded at drain time. Samples
// accumulate: an IP seen by any sample of the window stays counted
// until the window is drained.
type Aggregator struct {
	window map[int64]map[string]map[string]struct{}

	mut.RWMutex
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		window: make(map[int64]map[string]map[string]struct{}, 10),
	}
}

// Publish unions the sample into the node's window entry. The poll
// interval is usually shorter than the check interval, so a node
// contributes several samples per window and every distinct IP of
// every sample must count.
func (a *Aggregator) Publish(s UsageSample) {
	a.Lock()
	defer a.Unlock()

	users := a.window[s.NodeID]
	if users == nil {
		users = make(map[string]map[string]struct{}, len(s.Usage))
		a.window[s.NodeID] = users
	}

	for username, ips := range s.Usage {
		set := users[username]
		if set == nil {
			set = make(map[string]struct{}, len(ips))
			users[username] = set
		}
		for _, ip := range ips {
			set[ip] = struct{}{}
		}
	}
}

// Drain merges the window into a per-account union of distinct IPs
// across the live nodes, then starts a fresh window. Samples from
// nodes no longer live are dropped. The returned snapshot is owned by
// the caller.
func (a *Aggregator) Drain(live map[int64]bool) map[string]map[string]struct{} {
	a.Lock()
	window := a.window
	a.window = make(map[int64]map[string]map[string]struct{}, len(window))
	a.Unlock()

	merged := make(map[string]map[string]struct{}, 32)

	for nodeID, users := range window {
		if !live[nodeID] {
			continue
		}

		for username, ips := range users {
			set := merged[username]
			if set == nil {
				set = make(map[string]struct{}, len(ips))
				merged[username] = set
			}
			for ip := range ips {
				set[ip] = struct{}{}
			}
		}
	}

	return merged
}
