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

package cfg

import (
	"encoding/json"
	"fmt"
	"os"

	"pglimiter/config"
	"pglimiter/log"
)

var Cfg Config

type Config struct {
	LogLevel  uint8
	AdminPass string

	ApiPort uint16

	DiscordWebhook string

	DatabasePath string

	Panel  Panel
	Limits Limits
}

type Panel struct {
	Domain   string
	Username string
	Password string

	// "groups" removes the user from its groups, "status" flips the
	// user status to disabled
	DisableMethod string
}

type Limits struct {
	GeneralLimit int

	CheckInterval uint64
	PollInterval  uint64
	SweepInterval uint64

	StepDurations    []uint64
	EscalationWindow uint64
}

// ConfigError marks settings that are missing or invalid. The caller
// is expected to retry Load after the operator fixes the config.
type ConfigError struct {
	Reason string
}

func (c ConfigError) Error() string {
	return "config error: " + c.Reason
}

// Load reads config.json from the working directory (or its parent)
// into Cfg. If no config exists, a blank one is written for the
// operator to fill in.
func Load() error {
	fd, err := os.ReadFile("config.json")
	if err != nil {
		fd, err = os.ReadFile("../config.json")
		if err != nil {
			blankCfg, err := json.MarshalIndent(Config{}, "", "\t")
			if err != nil {
				panic(err)
			}

			os.WriteFile("config.json", blankCfg, 0o666)

			return ConfigError{Reason: fmt.Sprintf("could not open config: %s. blank configuration created", err)}
		}
	}

	err = json.Unmarshal(fd, &Cfg)
	if err != nil {
		return ConfigError{Reason: "could not parse config: " + err.Error()}
	}

	log.LogLevel = Cfg.LogLevel

	applyDefaults()

	return Validate()
}

func applyDefaults() {
	if Cfg.DatabasePath == "" {
		Cfg.DatabasePath = "limiter.db"
	}
	if Cfg.ApiPort == 0 {
		Cfg.ApiPort = 8787
	}
	if Cfg.Panel.DisableMethod == "" {
		Cfg.Panel.DisableMethod = config.DISABLE_METHOD_GROUPS
	}
	if Cfg.Limits.GeneralLimit == 0 {
		Cfg.Limits.GeneralLimit = config.DEFAULT_GENERAL_LIMIT
	}
	if Cfg.Limits.CheckInterval == 0 {
		Cfg.Limits.CheckInterval = config.DEFAULT_CHECK_INTERVAL
	}
	if Cfg.Limits.PollInterval == 0 {
		Cfg.Limits.PollInterval = config.DEFAULT_POLL_INTERVAL
	}
	if Cfg.Limits.SweepInterval == 0 {
		Cfg.Limits.SweepInterval = config.DEFAULT_SWEEP_INTERVAL
	}
	if len(Cfg.Limits.StepDurations) == 0 {
		Cfg.Limits.StepDurations = config.DEFAULT_STEP_DURATIONS
	}
	if Cfg.Limits.EscalationWindow == 0 {
		Cfg.Limits.EscalationWindow = config.DEFAULT_ESCALATION_WINDOW
	}
}

// Validate checks the settings the engine cannot run without.
func Validate() error {
	if Cfg.Panel.Domain == "" {
		return ConfigError{Reason: "panel domain is not set"}
	}
	if Cfg.Panel.Username == "" || Cfg.Panel.Password == "" {
		return ConfigError{Reason: "panel credentials are not set"}
	}
	if Cfg.Panel.DisableMethod != config.DISABLE_METHOD_GROUPS &&
		Cfg.Panel.DisableMethod != config.DISABLE_METHOD_STATUS {
		return ConfigError{Reason: "unknown disable method " + Cfg.Panel.DisableMethod}
	}

	for i := 1; i < len(Cfg.Limits.StepDurations); i++ {
		if Cfg.Limits.StepDurations[i] < Cfg.Limits.StepDurations[i-1] {
			return ConfigError{Reason: "step durations must be non-decreasing"}
		}
	}

	return nil
}
