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

// Package database is the durable store behind the enforcement engine:
// per-user limit overrides, the exemption list, active disabled state,
// the violation log and dynamic config, all in a single bbolt file.
package database

import (
	"bytes"
	"errors"

	"pglimiter/log"
	"pglimiter/util"

	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("database: not found")

type DB struct {
	bolt *bolt.DB
}

func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0o600, bolt.DefaultOptions)
	if err != nil {
		return nil, err
	}

	err = b.Update(func(tx *bolt.Tx) error {
		for _, buck := range [][]byte{LIMITS, EXCEPT, DISABLED, VIOLATIONS, CONFIG} {
			_, err := tx.CreateBucketIfNotExists(buck)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}

	return &DB{bolt: b}, nil
}

func (d *DB) Close() error {
	return d.bolt.Close()
}

// limit overrides

// GetLimit returns the per-user override, or ok=false when the user
// has none and the general limit applies.
func (d *DB) GetLimit(username string) (limit int, ok bool) {
	d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(LIMITS).Get([]byte(username))
		if v != nil {
			limit = int(util.Btoi(v))
			ok = true
		}
		return nil
	})
	return
}

func (d *DB) SetLimit(username string, limit int) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(LIMITS).Put([]byte(username), util.Itob(uint64(limit)))
	})
}

func (d *DB) DeleteLimit(username string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(LIMITS).Delete([]byte(username))
	})
}

// exemptions

func (d *DB) IsExcept(username string) (except bool) {
	d.bolt.View(func(tx *bolt.Tx) error {
		except = tx.Bucket(EXCEPT).Get([]byte(username)) != nil
		return nil
	})
	return
}

func (d *DB) AddExcept(username string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(EXCEPT).Put([]byte(username), []byte{1})
	})
}

func (d *DB) DeleteExcept(username string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(EXCEPT).Delete([]byte(username))
	})
}

func (d *DB) ListExcept() []string {
	users := []string{}
	d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(EXCEPT).ForEach(func(k, v []byte) error {
			users = append(users, string(k))
			return nil
		})
	})
	return users
}

// disabled state

func (d *DB) GetDisabled(username string) *DisabledUser {
	var du *DisabledUser

	d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(DISABLED).Get([]byte(username))
		if v == nil {
			return nil
		}

		x := DisabledUser{}
		if err := x.Deserialize(v); err != nil {
			log.Warn("corrupt disabled entry for", username+":", err)
			return nil
		}
		du = &x
		return nil
	})

	return du
}

func (d *DB) ListDisabled() []DisabledUser {
	users := []DisabledUser{}

	d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(DISABLED).ForEach(func(k, v []byte) error {
			du := DisabledUser{}
			if err := du.Deserialize(v); err != nil {
				log.Warn("corrupt disabled entry:", err)
				return nil
			}
			users = append(users, du)
			return nil
		})
	})

	return users
}

// ListDisabledDue returns the disabled users whose enable time has
// passed.
func (d *DB) ListDisabledDue(now uint64) []DisabledUser {
	due := []DisabledUser{}
	for _, du := range d.ListDisabled() {
		if du.EnableAt <= now {
			due = append(due, du)
		}
	}
	return due
}

// violation log

func violationKey(username string, seq uint64) []byte {
	k := append([]byte(username), 0)
	return append(k, util.Itob(seq)...)
}

func violationPrefix(username string) []byte {
	return append([]byte(username), 0)
}

// RecordPunishment writes the disabled state and its violation record
// in a single transaction, so the scheduler can never observe one
// without the other.
func (d *DB) RecordPunishment(state DisabledUser, v Violation) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(DISABLED).Put([]byte(state.Username), state.Serialize())
		if err != nil {
			return err
		}

		buck := tx.Bucket(VIOLATIONS)
		seq, err := buck.NextSequence()
		if err != nil {
			return err
		}

		return buck.Put(violationKey(v.Username, seq), v.Serialize())
	})
}

// CompleteReenable marks the newest violation record of the user with
// the enable timestamp and drops the disabled state, atomically.
func (d *DB) CompleteReenable(username string, now uint64) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		buck := tx.Bucket(VIOLATIONS)
		c := buck.Cursor()
		prefix := violationPrefix(username)

		var lastKey []byte
		var lastVal []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			lastKey = k
			lastVal = v
		}

		if lastKey != nil {
			viol := Violation{}
			if err := viol.Deserialize(lastVal); err == nil && viol.EnabledAt == 0 {
				viol.EnabledAt = now
				if err := buck.Put(lastKey, viol.Serialize()); err != nil {
					return err
				}
			}
		}

		return tx.Bucket(DISABLED).Delete([]byte(username))
	})
}

// CountViolationsSince counts the user's violation records with a
// timestamp at or after cutoff. This is what makes escalation reset
// after a quiet period: old records simply fall out of the window.
func (d *DB) CountViolationsSince(username string, cutoff uint64) int {
	count := 0

	d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(VIOLATIONS).Cursor()
		prefix := violationPrefix(username)

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			viol := Violation{}
			if err := viol.Deserialize(v); err != nil {
				log.Warn("corrupt violation entry:", err)
				continue
			}
			if viol.Timestamp >= cutoff {
				count++
			}
		}
		return nil
	})

	return count
}

// Violations returns the user's most recent records, newest first.
func (d *DB) Violations(username string, max int) []Violation {
	out := []Violation{}

	d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(VIOLATIONS).Cursor()
		prefix := violationPrefix(username)

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			viol := Violation{}
			if err := viol.Deserialize(v); err != nil {
				continue
			}
			out = append(out, viol)
		}
		return nil
	})

	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}

	return out
}

// dynamic config

func (d *DB) GetConfig(key string) (value string, ok bool) {
	d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(CONFIG).Get([]byte(key))
		if v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	return
}

func (d *DB) SetConfig(key, value string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(CONFIG).Put([]byte(key), []byte(value))
	})
}
