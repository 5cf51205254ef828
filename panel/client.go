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

// Package panel is the authenticated gateway to the control panel API.
// It owns token acquisition and caching; all other components talk to
// the panel through it.
package panel

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"pglimiter/config"
	"pglimiter/log"
)

type Client struct {
	Domain   string
	Username string
	Password string

	http *http.Client
}

func NewClient(domain, username, password string) *Client {
	return &Client{
		Domain:   domain,
		Username: username,
		Password: password,

		http: &http.Client{
			Timeout: config.REQUEST_TIMEOUT * time.Second,
			Transport: &http.Transport{
				// panels very often run with self-signed certificates
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (c *Client) scheme() string {
	cache.RLock()
	defer cache.RUnlock()

	if cache.scheme != "" && cache.domain == c.Domain {
		return cache.scheme
	}
	return "https"
}

// request performs an authenticated call, transparently refreshing the
// token once if the panel rejects it.
func (c *Client) request(method, path string, payload any) ([]byte, error) {
	tok, err := c.Token()
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(method, path, payload, tok)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		log.Warn("panel rejected our token, re-authenticating once")
		InvalidateToken()

		tok, err = c.Token()
		if err != nil {
			return nil, err
		}
		body, status, err = c.do(method, path, payload, tok)
	}
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, &TransientError{Op: method + " " + path, Status: status}
	}

	return body, nil
}

func (c *Client) do(method, path string, payload any, token string) ([]byte, int, error) {
	reqUrl := c.scheme() + "://" + c.Domain + path

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, reqUrl, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		log.Api(method, reqUrl, 0, elapsed, err.Error())
		return nil, 0, &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Api(method, reqUrl, resp.StatusCode, elapsed, err.Error())
		return nil, resp.StatusCode, &TransientError{Op: method + " " + path, Err: err}
	}

	log.Api(method, reqUrl, resp.StatusCode, elapsed, "")

	return body, resp.StatusCode, nil
}
