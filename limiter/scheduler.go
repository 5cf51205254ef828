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
	"pglimiter/database"
	"pglimiter/log"
	"pglimiter/util"
)

// Scheduler re-enables accounts whose disable timer has elapsed. All
// of its state lives in the database, which is what makes it safe
// across restarts: a sweep after a crash picks up exactly where the
// previous process left off.
type Scheduler struct {
	db    *database.DB
	panel AccountController
}

func NewScheduler(db *database.DB, panel AccountController) *Scheduler {
	return &Scheduler{db: db, panel: panel}
}

// Sweep re-enables every account whose enable time has passed. Panel
// failures leave the state intact for the next sweep; the panel-side
// enable is idempotent, so retrying after a half-completed sweep is
// safe. Returns how many accounts were restored.
func (s *Scheduler) Sweep(now uint64) int {
	due := s.db.ListDisabledDue(now)
	if len(due) == 0 {
		return 0
	}

	log.Debug(len(due), "disabled users are due for re-enable")

	method := LoadSettings(s.db).DisableMethod

	enabled := 0
	for _, du := range due {
		err := s.panel.EnableUser(du.Username, du.OriginalGroups, method)
		if err != nil {
			log.Warn("could not re-enable", du.Username+":", err)
			continue
		}

		if err := s.db.CompleteReenable(du.Username, now); err != nil {
			log.Err("could not clear disabled state for", du.Username+":", err)
			continue
		}

		log.Infof("user %s re-enabled after step %d punishment", du.Username, du.Step)

		emit(Event{
			Type:     EVENT_ENABLED,
			Username: du.Username,
			Step:     du.Step,
			Time:     now,
		})

		enabled++
	}

	return enabled
}

// Recover is the startup pass, run before any polling starts: it
// reports the punishment state that survived the restart and
// immediately restores the accounts that came due while the process
// was down. Pending timers are honored, not reset.
func (s *Scheduler) Recover() {
	leftover := s.db.ListDisabled()
	if len(leftover) == 0 {
		log.Debug("no disabled users survived the restart")
		return
	}

	log.Info(len(leftover), "disabled users found from a previous run")

	enabled := s.Sweep(util.Time())
	if enabled > 0 {
		log.Info(enabled, "overdue users re-enabled during recovery")
	}
	if remaining := len(leftover) - enabled; remaining > 0 {
		log.Info(remaining, "users still serving their disable time")
	}
}
