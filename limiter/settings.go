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
	"encoding/json"
	"strconv"

	"pglimiter/cfg"
	"pglimiter/config"
	"pglimiter/log"
)

type ConfigStore interface {
	GetConfig(key string) (string, bool)
}

// Settings are the enforcement knobs for one tick. They start from the
// config file and can be overridden at runtime through the database
// config bucket, so operator changes apply without a restart.
type Settings struct {
	GeneralLimit int

	CheckInterval uint64
	PollInterval  uint64
	SweepInterval uint64

	StepDurations    []uint64
	EscalationWindow uint64

	DisableMethod string
}

func LoadSettings(db ConfigStore) Settings {
	set := Settings{
		GeneralLimit:     cfg.Cfg.Limits.GeneralLimit,
		CheckInterval:    cfg.Cfg.Limits.CheckInterval,
		PollInterval:     cfg.Cfg.Limits.PollInterval,
		SweepInterval:    cfg.Cfg.Limits.SweepInterval,
		StepDurations:    cfg.Cfg.Limits.StepDurations,
		EscalationWindow: cfg.Cfg.Limits.EscalationWindow,
		DisableMethod:    cfg.Cfg.Panel.DisableMethod,
	}

	if v, ok := dbUint(db, "general_limit"); ok {
		set.GeneralLimit = int(v)
	}
	if v, ok := dbUint(db, "check_interval"); ok && v > 0 {
		set.CheckInterval = v
	}
	if v, ok := dbUint(db, "poll_interval"); ok && v > 0 {
		set.PollInterval = v
	}
	if v, ok := dbUint(db, "sweep_interval"); ok && v > 0 {
		set.SweepInterval = v
	}
	if v, ok := dbUint(db, "escalation_window"); ok && v > 0 {
		set.EscalationWindow = v
	}

	if raw, ok := db.GetConfig("step_durations"); ok {
		var durations []uint64
		if err := json.Unmarshal([]byte(raw), &durations); err != nil || len(durations) == 0 {
			log.Warn("ignoring invalid step_durations config:", raw)
		} else {
			set.StepDurations = durations
		}
	}

	if method, ok := db.GetConfig("disable_method"); ok {
		if method == config.DISABLE_METHOD_GROUPS || method == config.DISABLE_METHOD_STATUS {
			set.DisableMethod = method
		} else {
			log.Warn("ignoring unknown disable_method config:", method)
		}
	}

	return set
}

func dbUint(db ConfigStore, key string) (uint64, bool) {
	raw, ok := db.GetConfig(key)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Warnf("ignoring invalid %s config: %s", key, raw)
		return 0, false
	}
	return v, true
}
