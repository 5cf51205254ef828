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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pglimiter/config"
	"pglimiter/util"
)

func resetCache(t *testing.T) {
	InvalidateToken()
	cache.Lock()
	cache.domain = ""
	cache.scheme = ""
	cache.Unlock()

	t.Cleanup(func() {
		InvalidateToken()
	})
}

func testServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	domain := strings.TrimPrefix(srv.URL, "http://")
	return NewClient(domain, "admin", "secret"), srv
}

func TestTokenReuse(t *testing.T) {
	resetCache(t)

	var hits atomic.Int32
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/token" {
			t.Error("unexpected path", r.URL.Path)
		}
		hits.Add(1)
		fmt.Fprint(w, `{"access_token":"tok1"}`)
	})

	tok, err := c.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok1" {
		t.Fatal("got token", tok)
	}
	if hits.Load() != 1 {
		t.Fatal("expected 1 auth request, got", hits.Load())
	}

	// second call within the TTL must not hit the network
	if _, err := c.Token(); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatal("cached token was not reused, requests:", hits.Load())
	}

	// expire the cache: the next call must re-authenticate
	cache.Lock()
	cache.expiresAt = util.Time() - 1
	cache.Unlock()

	if _, err := c.Token(); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Fatal("expected a refresh after expiry, requests:", hits.Load())
	}
}

func TestSingleFlightRefresh(t *testing.T) {
	resetCache(t)

	var hits atomic.Int32
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `{"access_token":"tok1"}`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.Token()
			if err != nil {
				t.Error(err)
			}
			if tok != "tok1" {
				t.Error("got token", tok)
			}
		}()
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Fatal("concurrent callers caused", hits.Load(), "refreshes, want 1")
	}
}

func TestAuthRetryBound(t *testing.T) {
	resetCache(t)

	oldSleep := authSleep
	authSleep = func(time.Duration) {}
	t.Cleanup(func() { authSleep = oldSleep })

	var hits atomic.Int32
	c, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Token()
	if !errors.Is(err, ErrAuth) {
		t.Fatal("expected ErrAuth, got", err)
	}

	// the https scheme never reaches the handler, so each attempt
	// round is exactly one request here
	if hits.Load() != config.AUTH_MAX_ATTEMPTS {
		t.Fatalf("expected %d attempts, got %d", config.AUTH_MAX_ATTEMPTS, hits.Load())
	}
}

func TestInvalidateToken(t *testing.T) {
	resetCache(t)

	cache.Lock()
	cache.token = "tok"
	cache.domain = "example.com"
	cache.expiresAt = util.Time() + 100
	cache.Unlock()

	if _, _, ok := cachedToken("example.com"); !ok {
		t.Fatal("token should be cached")
	}
	if _, _, ok := cachedToken("other.com"); ok {
		t.Fatal("cache must be keyed by domain")
	}

	InvalidateToken()

	if _, _, ok := cachedToken("example.com"); ok {
		t.Fatal("token should be gone after invalidation")
	}
}

func TestAuthBackoff(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 20; i++ {
			wait := authBackoff(attempt)

			if wait < config.AUTH_BACKOFF_MIN*time.Second {
				t.Fatal("backoff too short:", wait)
			}
			if wait > config.AUTH_BACKOFF_CAP*time.Second {
				t.Fatal("backoff over the cap:", wait)
			}
		}
	}

	// high attempts always sit at the cap
	if w := authBackoff(30); w != config.AUTH_BACKOFF_CAP*time.Second {
		t.Fatal("expected capped backoff, got", w)
	}
}
