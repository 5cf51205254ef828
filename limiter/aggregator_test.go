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
	"testing"
)

func TestAggregatorCrossNodeUnion(t *testing.T) {
	a := NewAggregator()

	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"1.1.1.1", "2.2.2.2"},
	}})
	a.Publish(UsageSample{NodeID: 2, Usage: map[string][]string{
		// 2.2.2.2 shows up on both nodes and must count once
		"alice": {"2.2.2.2", "3.3.3.3"},
		"bob":   {"4.4.4.4"},
	}})

	snap := a.Drain(map[int64]bool{1: true, 2: true})

	if len(snap["alice"]) != 3 {
		t.Fatal("alice should have 3 distinct IPs, got", snap["alice"])
	}
	if len(snap["bob"]) != 1 {
		t.Fatal("bob should have 1 IP, got", snap["bob"])
	}
}

func TestAggregatorAccumulatesSamples(t *testing.T) {
	a := NewAggregator()

	// the same node polls several times per window; an IP seen in an
	// early sample still counts even if a later sample misses it
	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"1.1.1.1"},
	}})
	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"2.2.2.2"},
	}})
	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"2.2.2.2"},
		"bob":   {"3.3.3.3"},
	}})

	snap := a.Drain(map[int64]bool{1: true})

	if len(snap["alice"]) != 2 {
		t.Fatal("alice should have 2 distinct IPs across the window, got", snap["alice"])
	}
	if len(snap["bob"]) != 1 {
		t.Fatal("bob should have 1 IP, got", snap["bob"])
	}
}

func TestAggregatorDropsRemovedNodes(t *testing.T) {
	a := NewAggregator()

	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"1.1.1.1"},
	}})
	a.Publish(UsageSample{NodeID: 2, Usage: map[string][]string{
		"alice": {"2.2.2.2"},
		"eve":   {"3.3.3.3"},
	}})

	snap := a.Drain(map[int64]bool{1: true})

	if len(snap["alice"]) != 1 {
		t.Fatal("removed node data leaked into the snapshot:", snap["alice"])
	}
	if _, ok := snap["eve"]; ok {
		t.Fatal("eve was only seen by the removed node")
	}
}

func TestAggregatorWindowReset(t *testing.T) {
	a := NewAggregator()

	a.Publish(UsageSample{NodeID: 1, Usage: map[string][]string{
		"alice": {"1.1.1.1"},
	}})

	a.Drain(map[int64]bool{1: true})
	snap := a.Drain(map[int64]bool{1: true})

	if len(snap) != 0 {
		t.Fatal("drain must start a fresh window, got", snap)
	}
}
