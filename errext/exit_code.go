/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package errext

import (
	"errors"

	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
)

// HasExitCode is implemented by errors that decide the status the process
// exits with when they reach the top of a command.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// WithExitCodeIfNone attaches code to err unless something in its chain
// already carries one. A nil err stays nil.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	if existing := HasExitCode(nil); errors.As(err, &existing) {
		return err
	}
	return &coded{err: err, code: code}
}

// ExitCodeOf returns the first exit code found in the chain of err, or
// fallback when there is none.
func ExitCodeOf(err error, fallback exitcodes.ExitCode) exitcodes.ExitCode {
	if c := HasExitCode(nil); errors.As(err, &c) {
		return c.ExitCode()
	}
	return fallback
}

type coded struct {
	err  error
	code exitcodes.ExitCode
}

var _ HasExitCode = &coded{}

func (c *coded) Error() string                { return c.err.Error() }
func (c *coded) Unwrap() error                { return c.err }
func (c *coded) ExitCode() exitcodes.ExitCode { return c.code }
