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

package database

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func punish(t *testing.T, db *DB, username string, ts uint64) {
	err := db.RecordPunishment(DisabledUser{
		Username:   username,
		DisabledAt: ts,
		EnableAt:   ts + 600,
		Step:       1,
		Reason:     "test",
	}, Violation{
		Username:  username,
		Timestamp: ts,
		Step:      1,
		Duration:  600,
		IPCount:   2,
		IPs:       []string{"1.1.1.1", "2.2.2.2"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLimitsAndExcept(t *testing.T) {
	db := testDB(t)

	if _, ok := db.GetLimit("alice"); ok {
		t.Fatal("unset limit must report ok=false")
	}
	if err := db.SetLimit("alice", 7); err != nil {
		t.Fatal(err)
	}
	if v, ok := db.GetLimit("alice"); !ok || v != 7 {
		t.Fatal("limit roundtrip:", v, ok)
	}
	db.DeleteLimit("alice")
	if _, ok := db.GetLimit("alice"); ok {
		t.Fatal("deleted limit still present")
	}

	if db.IsExcept("bob") {
		t.Fatal("bob should not be exempt yet")
	}
	db.AddExcept("bob")
	db.AddExcept("carol")
	if !db.IsExcept("bob") {
		t.Fatal("exemption not saved")
	}
	if got := db.ListExcept(); len(got) != 2 {
		t.Fatal("except list:", got)
	}
	db.DeleteExcept("bob")
	if db.IsExcept("bob") {
		t.Fatal("exemption not removed")
	}
}

func TestDisabledLifecycle(t *testing.T) {
	db := testDB(t)

	punish(t, db, "alice", 1000)

	du := db.GetDisabled("alice")
	if du == nil || du.EnableAt != 1600 || du.Reason != "test" {
		t.Fatal("disabled state:", du)
	}

	if due := db.ListDisabledDue(1500); len(due) != 0 {
		t.Fatal("not due yet:", due)
	}
	if due := db.ListDisabledDue(1600); len(due) != 1 {
		t.Fatal("due at the boundary:", due)
	}

	if err := db.CompleteReenable("alice", 1700); err != nil {
		t.Fatal(err)
	}
	if db.GetDisabled("alice") != nil {
		t.Fatal("disabled state survived re-enable")
	}

	hist := db.Violations("alice", 0)
	if len(hist) != 1 || hist[0].EnabledAt != 1700 {
		t.Fatal("enable time not recorded:", hist)
	}
	if hist[0].IPCount != 2 || len(hist[0].IPs) != 2 {
		t.Fatal("ip count not recorded:", hist[0])
	}

	// idempotent: a second re-enable must not touch the record
	if err := db.CompleteReenable("alice", 9999); err != nil {
		t.Fatal(err)
	}
	if hist = db.Violations("alice", 0); hist[0].EnabledAt != 1700 {
		t.Fatal("enable time overwritten:", hist)
	}
}

func TestViolationWindow(t *testing.T) {
	db := testDB(t)

	for _, ts := range []uint64{100, 200, 300} {
		punish(t, db, "alice", ts)
		db.CompleteReenable("alice", ts+50)
	}
	// another user must not bleed into alice's count
	punish(t, db, "alicela", 250)

	if got := db.CountViolationsSince("alice", 0); got != 3 {
		t.Fatal("full count:", got)
	}
	if got := db.CountViolationsSince("alice", 200); got != 2 {
		t.Fatal("cutoff is inclusive:", got)
	}
	if got := db.CountViolationsSince("alice", 301); got != 0 {
		t.Fatal("everything outside the window:", got)
	}

	hist := db.Violations("alice", 2)
	if len(hist) != 2 || hist[0].Timestamp != 300 || hist[1].Timestamp != 200 {
		t.Fatal("history must come newest first:", hist)
	}
}

func TestDynamicConfig(t *testing.T) {
	db := testDB(t)

	if _, ok := db.GetConfig("general_limit"); ok {
		t.Fatal("unset key must report ok=false")
	}
	db.SetConfig("general_limit", "5")
	if v, ok := db.GetConfig("general_limit"); !ok || v != "5" {
		t.Fatal("config roundtrip:", v, ok)
	}
	db.SetConfig("general_limit", "9")
	if v, _ := db.GetConfig("general_limit"); v != "9" {
		t.Fatal("config overwrite:", v)
	}
}
