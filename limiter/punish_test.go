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
	"errors"
	"path/filepath"
	"testing"

	"pglimiter/config"
	"pglimiter/database"
	"pglimiter/util"
)

func openDB(t *testing.T) *database.DB {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakePanel struct {
	groups []int64

	disabled   []string
	enabled    []string
	lastGroups []int64
	lastMethod string

	failDisable bool
	failEnable  bool
}

func (p *fakePanel) DisableUser(username, method string) ([]int64, error) {
	if p.failDisable {
		return nil, errors.New("panel unreachable")
	}
	p.disabled = append(p.disabled, username)
	p.lastMethod = method
	return p.groups, nil
}

func (p *fakePanel) EnableUser(username string, groups []int64, method string) error {
	if p.failEnable {
		return errors.New("panel unreachable")
	}
	p.enabled = append(p.enabled, username)
	p.lastGroups = groups
	p.lastMethod = method
	return nil
}

func testSettings() Settings {
	return Settings{
		GeneralLimit:     2,
		StepDurations:    []uint64{600, 1800, 7200},
		EscalationWindow: 7 * 24 * 3600,
		DisableMethod:    config.DISABLE_METHOD_GROUPS,
	}
}

func decide(username string, ips ...string) Decision {
	return Decision{Username: username, IPCount: len(ips), IPs: ips}
}

func TestPunisherEscalation(t *testing.T) {
	db := openDB(t)
	pan := &fakePanel{groups: []int64{5, 9}}
	p := NewPunisher(db, pan)
	set := testSettings()

	p.Apply([]Decision{decide("alice", "1.1.1.1", "2.2.2.2", "3.3.3.3")}, set)

	state := db.GetDisabled("alice")
	if state == nil {
		t.Fatal("no disabled state recorded")
	}
	if state.Step != 1 || state.EnableAt != state.DisabledAt+600 {
		t.Fatal("first offense state is wrong:", state)
	}
	if len(state.OriginalGroups) != 2 || state.OriginalGroups[1] != 9 {
		t.Fatal("panel groups not saved:", state.OriginalGroups)
	}
	if pan.lastMethod != config.DISABLE_METHOD_GROUPS {
		t.Fatal("settings method not passed to the panel:", pan.lastMethod)
	}

	hist := db.Violations("alice", 1)
	if len(hist) != 1 || hist[0].IPCount != 3 {
		t.Fatal("violation must record the observed IP count:", hist)
	}

	// serve the punishment, offend again
	if err := db.CompleteReenable("alice", util.Time()); err != nil {
		t.Fatal(err)
	}
	p.Apply([]Decision{decide("alice", "1.1.1.1", "2.2.2.2", "3.3.3.3")}, set)

	state = db.GetDisabled("alice")
	if state.Step != 2 || state.EnableAt != state.DisabledAt+1800 {
		t.Fatal("second offense must escalate:", state)
	}

	db.CompleteReenable("alice", util.Time())
	p.Apply([]Decision{decide("alice", "1.1.1.1", "2.2.2.2", "3.3.3.3")}, set)

	if state = db.GetDisabled("alice"); state.Step != 3 {
		t.Fatal("third offense must escalate:", state)
	}

	if len(pan.disabled) != 3 {
		t.Fatal("panel disable calls:", pan.disabled)
	}
}

func TestPunisherWindowExpiry(t *testing.T) {
	db := openDB(t)
	p := NewPunisher(db, &fakePanel{})
	set := testSettings()

	// a violation from well outside the escalation window
	old := util.Time() - set.EscalationWindow - 3600
	err := db.RecordPunishment(database.DisabledUser{
		Username:   "bob",
		DisabledAt: old,
		EnableAt:   old + 600,
		Step:       1,
	}, database.Violation{
		Username:  "bob",
		Timestamp: old,
		Step:      1,
		Duration:  600,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.CompleteReenable("bob", old+600); err != nil {
		t.Fatal(err)
	}

	p.Apply([]Decision{decide("bob", "1.1.1.1", "2.2.2.2", "3.3.3.3")}, set)

	if state := db.GetDisabled("bob"); state == nil || state.Step != 1 {
		t.Fatal("expired history must not escalate:", state)
	}
}

func TestPunisherSkipsAlreadyDisabled(t *testing.T) {
	db := openDB(t)
	pan := &fakePanel{}
	p := NewPunisher(db, pan)
	set := testSettings()

	dec := []Decision{decide("carol", "1.1.1.1", "2.2.2.2", "3.3.3.3")}
	p.Apply(dec, set)
	p.Apply(dec, set)

	if len(pan.disabled) != 1 {
		t.Fatal("a disabled user must not be punished again:", pan.disabled)
	}
	if got := db.CountViolationsSince("carol", 0); got != 1 {
		t.Fatal("violation count:", got)
	}
}

func TestPunisherNoPhantomRecord(t *testing.T) {
	db := openDB(t)
	p := NewPunisher(db, &fakePanel{failDisable: true})

	p.Apply([]Decision{decide("dave", "1.1.1.1", "2.2.2.2", "3.3.3.3")}, testSettings())

	if db.GetDisabled("dave") != nil {
		t.Fatal("failed panel call must not leave state behind")
	}
	if got := db.CountViolationsSince("dave", 0); got != 0 {
		t.Fatal("failed panel call must not log a violation, count:", got)
	}
}

func TestStepDuration(t *testing.T) {
	durations := []uint64{600, 1800, 7200, 86400}

	cases := []struct {
		step uint64
		want uint64
	}{
		{0, 600},
		{1, 600},
		{2, 1800},
		{4, 86400},
		{9, 86400},
	}
	for _, c := range cases {
		if got := StepDuration(durations, c.step); got != c.want {
			t.Fatal("step", c.step, "got", got, "want", c.want)
		}
	}
	if got := StepDuration(nil, 3); got != 0 {
		t.Fatal("empty table must yield 0, got", got)
	}
}
