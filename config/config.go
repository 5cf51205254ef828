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

package config

// all durations are in seconds unless noted otherwise

const REQUEST_TIMEOUT = 5

const TOKEN_TTL = 30 * 60

const AUTH_MAX_ATTEMPTS = 5
const AUTH_BACKOFF_MIN = 2
const AUTH_BACKOFF_MAX = 5
const AUTH_BACKOFF_CAP = 30

const NODE_REFRESH_INTERVAL = 30

const DEFAULT_CHECK_INTERVAL = 60
const DEFAULT_SWEEP_INTERVAL = 30
const DEFAULT_POLL_INTERVAL = 20
const DEFAULT_GENERAL_LIMIT = 2

// escalation lookback window
const DEFAULT_ESCALATION_WINDOW = 7 * 24 * 60 * 60

// disable durations per punishment step; the last entry is reused for
// any higher step
var DEFAULT_STEP_DURATIONS = []uint64{10 * 60, 30 * 60, 2 * 60 * 60, 24 * 60 * 60}

const CONFIG_RETRY_INTERVAL = 60
const RESTART_DELAY = 10

// identical node failure alerts are throttled to one per this interval
const NODE_ALERT_THROTTLE = 5 * 60

const DISABLE_METHOD_GROUPS = "groups"
const DISABLE_METHOD_STATUS = "status"

const API_SERVER_HOST = "0.0.0.0"
