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

const (
	EVENT_DISABLED = "disabled"
	EVENT_ENABLED  = "enabled"
)

// Event is one enforcement action, pushed to the live feed and the
// alert channel.
type Event struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Step     uint64 `json:"step,omitempty"`
	Duration uint64 `json:"duration,omitempty"`
	IPCount  int    `json:"ip_count,omitempty"`
	Time     uint64 `json:"time"`
}

// OnAlert forwards operator-facing messages to the notification
// channel; OnEvent feeds enforcement events to the live feed. Both are
// optional and fire-and-forget.
var OnAlert func(msg string)
var OnEvent func(ev Event)

func alert(msg string) {
	if OnAlert != nil {
		OnAlert(msg)
	}
}

func emit(ev Event) {
	if OnEvent != nil {
		OnEvent(ev)
	}
}
