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
)

// ErrAuth is returned once authentication has exhausted every attempt
// on both schemes. It is terminal for the current engine run; the
// outer restart loop retries from scratch.
var ErrAuth = errors.New("panel authentication failed after all attempts")

// TransientError covers timeouts, connection failures and unexpected
// non-2xx responses. Safe to retry.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ProtocolError means the panel answered with a shape we cannot
// decode. Not retried blindly; the caller decides.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: bad panel response: %s", e.Op, e.Reason)
}

// OnAlert, when set, forwards operator-facing failures to the
// notification channel. Fire and forget.
var OnAlert func(msg string)

func alert(msg string) {
	if OnAlert != nil {
		OnAlert(msg)
	}
}
