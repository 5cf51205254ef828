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

package panel

import (
	"encoding/json"
	"net/http"

	"pglimiter/config"
	"pglimiter/log"
)

type User struct {
	Username string  `json:"username"`
	Status   string  `json:"status"`
	GroupIDs []int64 `json:"group_ids"`
}

func (c *Client) User(username string) (*User, error) {
	path := "/api/user/" + username

	body, err := c.request(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &ProtocolError{Op: "GET " + path, Reason: err.Error()}
	}

	return &u, nil
}

// DisableUser cuts the account's access using the given disable
// method and returns the group ids the account held right before, so
// they can be restored on re-enable. Anything but the status method
// means the groups method.
func (c *Client) DisableUser(username, method string) ([]int64, error) {
	u, err := c.User(username)
	if err != nil {
		return nil, err
	}

	path := "/api/user/" + username

	if method == config.DISABLE_METHOD_STATUS {
		_, err = c.request(http.MethodPut, path, map[string]any{
			"status": "disabled",
		})
	} else {
		_, err = c.request(http.MethodPut, path, map[string]any{
			"group_ids": []int64{},
		})
	}
	if err != nil {
		return nil, err
	}

	log.Infof("panel: user %s disabled (%s method)", username, method)

	return u.GroupIDs, nil
}

// EnableUser restores the account. Both methods are idempotent on the
// panel side: re-applying the saved groups or flipping an active user
// back to active is a no-op.
func (c *Client) EnableUser(username string, groups []int64, method string) error {
	path := "/api/user/" + username

	var err error
	if method == config.DISABLE_METHOD_STATUS {
		_, err = c.request(http.MethodPut, path, map[string]any{
			"status": "active",
		})
	} else {
		if groups == nil {
			groups = []int64{}
		}
		_, err = c.request(http.MethodPut, path, map[string]any{
			"group_ids": groups,
		})
	}
	if err != nil {
		return err
	}

	log.Infof("panel: user %s enabled", username)

	return nil
}
