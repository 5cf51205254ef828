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
	"io"
	"net/url"
	"time"

	"pglimiter/config"
	"pglimiter/log"
	"pglimiter/mut"
	"pglimiter/util"
)

// process-wide token cache, shared by every caller of the client.
// refreshMut serializes refreshes so a burst of expired callers causes
// a single authentication round instead of N.
type tokenCache struct {
	token     string
	expiresAt uint64
	domain    string
	scheme    string

	mut.RWMutex
}

var cache tokenCache
var refreshMut mut.RWMutex

// stubbed in tests
var authSleep = time.Sleep

// InvalidateToken drops the cached token, forcing the next call to
// re-authenticate. Called on any 401/403 from the panel.
func InvalidateToken() {
	cache.Lock()
	cache.token = ""
	cache.expiresAt = 0
	cache.Unlock()

	log.Debug("token cache invalidated")
}

func cachedToken(domain string) (string, string, bool) {
	cache.RLock()
	defer cache.RUnlock()

	if cache.token != "" && cache.domain == domain && util.Time() < cache.expiresAt {
		return cache.token, cache.scheme, true
	}
	return "", "", false
}

// Token returns the cached token for this client's panel, refreshing
// it when missing or expired. Concurrent callers share one refresh.
func (c *Client) Token() (string, error) {
	if tok, _, ok := cachedToken(c.Domain); ok {
		return tok, nil
	}

	refreshMut.Lock()
	defer refreshMut.Unlock()

	// somebody else may have refreshed while we waited for the lock
	if tok, _, ok := cachedToken(c.Domain); ok {
		return tok, nil
	}

	tok, scheme, err := c.authenticate()
	if err != nil {
		return "", err
	}

	cache.Lock()
	cache.token = tok
	cache.expiresAt = util.Time() + config.TOKEN_TTL
	cache.domain = c.Domain
	cache.scheme = scheme
	cache.Unlock()

	return tok, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// authenticate runs the full retry loop: https then http, up to
// AUTH_MAX_ATTEMPTS rounds with randomized backoff in between. Returns
// the token and the scheme that worked.
func (c *Client) authenticate() (string, string, error) {
	form := url.Values{
		"username": {c.Username},
		"password": {c.Password},
	}

	for attempt := 1; attempt <= config.AUTH_MAX_ATTEMPTS; attempt++ {
		for _, scheme := range []string{"https", "http"} {
			tokenUrl := scheme + "://" + c.Domain + "/api/admin/token"

			start := time.Now()
			resp, err := c.http.PostForm(tokenUrl, form)
			elapsed := float64(time.Since(start).Microseconds()) / 1000

			if err != nil {
				log.Api("POST", tokenUrl, 0, elapsed, err.Error())
				continue
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				log.Api("POST", tokenUrl, resp.StatusCode, elapsed, err.Error())
				continue
			}

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				log.Api("POST", tokenUrl, resp.StatusCode, elapsed, "unexpected status")
				alert("panel auth: " + tokenUrl + " answered " + resp.Status)
				continue
			}

			log.Api("POST", tokenUrl, resp.StatusCode, elapsed, "")

			var tr tokenResponse
			if err := json.Unmarshal(body, &tr); err != nil {
				log.Warn("panel auth: cannot parse token response:", err)
				continue
			}
			if tr.AccessToken == "" {
				log.Warn("panel auth: response has no access_token")
				continue
			}

			log.Infof("panel token obtained via %s (cached for %d minutes)", scheme, config.TOKEN_TTL/60)
			return tr.AccessToken, scheme, nil
		}

		if attempt < config.AUTH_MAX_ATTEMPTS {
			wait := authBackoff(attempt)
			log.Debugf("panel auth attempt %d/%d failed, waiting %s", attempt, config.AUTH_MAX_ATTEMPTS, wait)
			authSleep(wait)
		}
	}

	alert("failed to get panel token after " + util.FormatInt(config.AUTH_MAX_ATTEMPTS) +
		" attempts. Make sure the panel is running and the credentials are correct.")

	return "", "", ErrAuth
}

// authBackoff returns a randomized wait of 2-5s multiplied by the
// attempt number, capped at 30s.
func authBackoff(attempt int) time.Duration {
	wait := util.RandRange(config.AUTH_BACKOFF_MIN, config.AUTH_BACKOFF_MAX) * int64(attempt)
	if wait > config.AUTH_BACKOFF_CAP {
		wait = config.AUTH_BACKOFF_CAP
	}
	return time.Duration(wait) * time.Second
}
