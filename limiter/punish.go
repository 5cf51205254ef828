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
	"fmt"
	"time"

	"pglimiter/database"
	"pglimiter/log"
	"pglimiter/util"
)

// AccountController is the slice of the panel client the enforcement
// side needs.
type AccountController interface {
	DisableUser(username, method string) ([]int64, error)
	EnableUser(username string, groups []int64, method string) error
}

// Punisher turns violation decisions into disable actions and durable
// state. An account already under punishment is left alone until the
// scheduler re-enables it.
type Punisher struct {
	db    *database.DB
	panel AccountController
}

func NewPunisher(db *database.DB, panel AccountController) *Punisher {
	return &Punisher{db: db, panel: panel}
}

// Apply processes one tick's decisions sequentially. Every decision
// either completes (panel disabled + state recorded) or is retried on
// a later tick; a failed panel call never leaves a phantom record.
func (p *Punisher) Apply(decisions []Decision, set Settings) {
	now := util.Time()

	for _, dec := range decisions {
		if p.db.GetDisabled(dec.Username) != nil {
			log.Debug("user", dec.Username, "is already disabled, skipping")
			continue
		}

		cutoff := uint64(0)
		if now > set.EscalationWindow {
			cutoff = now - set.EscalationWindow
		}
		step := uint64(1) + uint64(p.db.CountViolationsSince(dec.Username, cutoff))
		duration := StepDuration(set.StepDurations, step)

		groups, err := p.panel.DisableUser(dec.Username, set.DisableMethod)
		if err != nil {
			log.Err("could not disable", dec.Username+":", err)
			alert(fmt.Sprintf("failed to disable user %s: %s (will retry next check)", dec.Username, err))
			continue
		}

		reason := fmt.Sprintf("%d distinct IPs over limit", dec.IPCount)

		state := database.DisabledUser{
			Username:       dec.Username,
			DisabledAt:     now,
			EnableAt:       now + duration,
			Step:           step,
			Reason:         reason,
			OriginalGroups: groups,
		}
		record := database.Violation{
			Username:  dec.Username,
			Timestamp: now,
			Step:      step,
			Duration:  duration,
			IPCount:   dec.IPCount,
			IPs:       dec.IPs,
		}

		if err := p.db.RecordPunishment(state, record); err != nil {
			// the panel side is disabled but we lost the state; the
			// sweep cannot re-enable what it does not know about, so
			// this must be loud
			log.Err("could not persist punishment for", dec.Username+":", err)
			alert(fmt.Sprintf("PERSISTENCE FAILURE: user %s disabled on panel but state not saved: %s", dec.Username, err))
			continue
		}

		log.Infof("user %s disabled for %s (step %d, %d IPs)",
			dec.Username, (time.Duration(duration) * time.Second).String(), step, dec.IPCount)

		emit(Event{
			Type:     EVENT_DISABLED,
			Username: dec.Username,
			Step:     step,
			Duration: duration,
			IPCount:  dec.IPCount,
			Time:     now,
		})
	}
}

// StepDuration maps a punishment step to its disable duration. Steps
// past the table reuse the last configured duration.
func StepDuration(durations []uint64, step uint64) uint64 {
	if len(durations) == 0 {
		return 0
	}
	if step < 1 {
		step = 1
	}
	if step > uint64(len(durations)) {
		step = uint64(len(durations))
	}
	return durations[step-1]
}
