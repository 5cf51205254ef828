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

	"pglimiter/util"
)

const STATUS_CONNECTED = "connected"

type Node struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (n Node) Connected() bool {
	return n.Status == STATUS_CONNECTED
}

// Nodes fetches the panel's current node list.
func (c *Client) Nodes() ([]Node, error) {
	body, err := c.request(http.MethodGet, "/api/nodes", nil)
	if err != nil {
		return nil, err
	}

	var nodes []Node
	if err := json.Unmarshal(body, &nodes); err != nil {
		return nil, &ProtocolError{Op: "GET /api/nodes", Reason: err.Error()}
	}

	return nodes, nil
}

// NodeOnlineIPs fetches the live per-account source IPs seen by one
// node, as a username -> IP list mapping.
func (c *Client) NodeOnlineIPs(nodeID int64) (map[string][]string, error) {
	path := "/api/node/" + util.FormatInt(nodeID) + "/online_ips"

	body, err := c.request(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var ips map[string][]string
	if err := json.Unmarshal(body, &ips); err != nil {
		return nil, &ProtocolError{Op: "GET " + path, Reason: err.Error()}
	}

	return ips, nil
}
