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
	"sort"

	"pglimiter/log"
	"pglimiter/util"
)

type LimitStore interface {
	GetLimit(username string) (int, bool)
	IsExcept(username string) bool
}

// Decision is one violating account, handed to the punishment engine.
type Decision struct {
	Username string
	IPCount  int
	IPs      []string
}

type Detector struct {
	db LimitStore
}

func NewDetector(db LimitStore) *Detector {
	return &Detector{db: db}
}

// Evaluate classifies every account of the snapshot against its
// effective limit: exemption beats override beats the general limit.
// Violating means strictly more distinct IPs than allowed. Accounts
// absent from the snapshot are not evaluated. Decisions come out
// sorted by username.
func (d *Detector) Evaluate(snap map[string]map[string]struct{}, generalLimit int) []Decision {
	decisions := []Decision{}

	for _, username := range util.SortedKeys(snap) {
		ips := snap[username]

		if d.db.IsExcept(username) {
			continue
		}

		limit := generalLimit
		if override, ok := d.db.GetLimit(username); ok {
			limit = override
		}

		if len(ips) <= limit {
			continue
		}

		ipList := make([]string, 0, len(ips))
		for ip := range ips {
			ipList = append(ipList, ip)
		}
		sort.Strings(ipList)

		log.Debugf("user %s is violating: %d distinct IPs, limit %d", username, len(ips), limit)

		decisions = append(decisions, Decision{
			Username: username,
			IPCount:  len(ips),
			IPs:      ipList,
		})
	}

	return decisions
}
