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

// Package ratelimit is a score-based per-IP limiter for the stats and
// admin API.
package ratelimit

import (
	"sync"
	"time"

	"pglimiter/log"
)

const (
	ACTION_REQUEST  = 5
	ACTION_ADMIN    = 20
	ACTION_BAD_PASS = 400
)

const MAX_SCORE = 2000
const RESET_INTERVAL = 120 * time.Second
const BAN_DURATION = 5 * 60

var rlMut sync.RWMutex
var scores = make(map[string]uint32, 100)
var bans = make(map[string]int64, 10)

// CanDoAction charges the IP the given score and reports whether it is
// still allowed to proceed. Going over budget bans the IP for a while.
func CanDoAction(ip string, requiredScore uint32) bool {
	rlMut.Lock()
	defer rlMut.Unlock()

	scores[ip] += requiredScore

	log.Dev("rate limit score for", ip+":", scores[ip], "/", MAX_SCORE)

	t := time.Now().Unix()

	if bans[ip] > t {
		return false
	}

	if scores[ip] > MAX_SCORE {
		log.Warn("IP", ip, "exceeded the API rate limit, banned for", BAN_DURATION, "seconds")
		bans[ip] = t + BAN_DURATION
		return false
	}

	return true
}

// periodically clear scores and outdated bans
func init() {
	go func() {
		for {
			time.Sleep(RESET_INTERVAL)
			clearRl()
		}
	}()
}

func clearRl() {
	rlMut.Lock()
	defer rlMut.Unlock()

	scores = make(map[string]uint32, len(scores))

	t := time.Now().Unix()
	bans2 := make(map[string]int64, len(bans))
	for ip, ends := range bans {
		if ends > t {
			bans2[ip] = ends
		}
	}
	bans = bans2
}
