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
	"sort"

	"pglimiter/log"
	"pglimiter/mut"
	"pglimiter/panel"
)

type NodeLister interface {
	Nodes() ([]panel.Node, error)
}

// Registry holds the known set of connected nodes and diffs it against
// the panel on every refresh. Only the registry mutates the set; other
// components get copies.
type Registry struct {
	lister NodeLister

	known map[int64]panel.Node

	mut.RWMutex
}

func NewRegistry(lister NodeLister) *Registry {
	return &Registry{
		lister: lister,
		known:  make(map[int64]panel.Node, 10),
	}
}

// Refresh polls the panel node list and reports which connected nodes
// appeared and which disappeared since the previous call. A panel
// failure keeps the previous set untouched and reports no churn.
func (r *Registry) Refresh() (added, removed []panel.Node) {
	nodes, err := r.lister.Nodes()
	if err != nil {
		log.Warn("node list refresh failed, keeping previous node set:", err)
		return nil, nil
	}

	next := make(map[int64]panel.Node, len(nodes))
	for _, n := range nodes {
		if n.Connected() {
			next[n.ID] = n
		}
	}

	r.Lock()
	defer r.Unlock()

	for id, n := range next {
		if _, ok := r.known[id]; !ok {
			added = append(added, n)
		}
	}
	for id, n := range r.known {
		if _, ok := next[id]; !ok {
			removed = append(removed, n)
		}
	}

	r.known = next

	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })

	return added, removed
}

// Reset forgets every known node, so the next Refresh reports the
// whole fleet as added. Used when the engine restarts and all poll
// tasks are gone.
func (r *Registry) Reset() {
	r.Lock()
	r.known = make(map[int64]panel.Node, 10)
	r.Unlock()
}

// Current returns a copy of the known connected nodes.
func (r *Registry) Current() []panel.Node {
	r.RLock()
	defer r.RUnlock()

	nodes := make([]panel.Node, 0, len(r.known))
	for _, n := range r.known {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return nodes
}

// Live returns the ids of the known nodes, used by the aggregator to
// drop samples of nodes removed mid-window.
func (r *Registry) Live() map[int64]bool {
	r.RLock()
	defer r.RUnlock()

	live := make(map[int64]bool, len(r.known))
	for id := range r.known {
		live[id] = true
	}

	return live
}
