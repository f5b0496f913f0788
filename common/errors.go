/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
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

package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
)

// Disconnection reasons.
const (
	ReasonDocumentNavigated = "document navigated"
	ReasonFrameDetached     = "frame detached"
	ReasonElementDetached   = "element detached"
)

var (
	// ErrHandleDisposed is returned by every ElementHandle method called
	// after Dispose.
	ErrHandleDisposed = errors.New("element handle is disposed")

	// ErrFrameDetached is returned when an operation starts on a frame that
	// is already detached.
	ErrFrameDetached = errors.New("frame is detached")

	// errNotConnected marks an element that went away between resolution
	// and use. Locator actions re-resolve once when they see it.
	errNotConnected = &DisconnectedError{Reason: ReasonElementDetached}
)

// ValidationError reports malformed input caught before any provider call.
type ValidationError struct {
	Op  string
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExitCode implements the errext.HasExitCode interface.
func (e *ValidationError) ExitCode() exitcodes.ExitCode { return exitcodes.InvalidSelector }

// TimeoutError is returned when a Progress deadline elapses.
type TimeoutError struct {
	Timeout time.Duration
	Waiting string
	CallLog []string
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "timeout %s exceeded", e.Timeout)
	if e.Waiting != "" {
		fmt.Fprintf(&b, " while waiting for %s", e.Waiting)
	}
	if len(e.CallLog) > 0 {
		b.WriteString("\ncall log:")
		for _, l := range e.CallLog {
			b.WriteString("\n  - ")
			b.WriteString(l)
		}
	}
	return b.String()
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match timeouts.
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ExitCode implements the errext.HasExitCode interface.
func (e *TimeoutError) ExitCode() exitcodes.ExitCode { return exitcodes.GenericTimeout }

// ElementNotFoundError is a strict resolution that matched nothing before
// the deadline.
type ElementNotFoundError struct {
	Selector string
	Timeout  *TimeoutError
}

func (e *ElementNotFoundError) Error() string {
	if e.Timeout == nil {
		return fmt.Sprintf("no element matches selector %q", e.Selector)
	}
	return fmt.Sprintf("no element matches selector %q within %s", e.Selector, e.Timeout.Timeout)
}

func (e *ElementNotFoundError) Unwrap() error {
	if e.Timeout == nil {
		return nil
	}
	return e.Timeout
}

// ExitCode implements the errext.HasExitCode interface.
func (e *ElementNotFoundError) ExitCode() exitcodes.ExitCode { return exitcodes.ElementNotFound }

// AmbiguousMatchError is a strict resolution that matched more than one
// element.
type AmbiguousMatchError struct {
	Selector string
	Count    int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("strict mode violation: selector %q resolved to %d elements", e.Selector, e.Count)
}

// ExitCode implements the errext.HasExitCode interface.
func (e *AmbiguousMatchError) ExitCode() exitcodes.ExitCode { return exitcodes.AmbiguousMatch }

// AbortError is returned once a Progress is aborted explicitly or its parent
// context is done.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	if e.Cause == nil {
		return "operation aborted"
	}
	return "operation aborted: " + e.Cause.Error()
}

func (e *AbortError) Unwrap() error { return e.Cause }

// ExitCode implements the errext.HasExitCode interface.
func (e *AbortError) ExitCode() exitcodes.ExitCode { return exitcodes.ExternalAbort }

// DisconnectedError reports an element, document or frame that went away
// underneath an operation.
type DisconnectedError struct {
	Reason     string
	DocumentID dom.DocumentID
}

func (e *DisconnectedError) Error() string {
	if e.DocumentID == "" {
		return "disconnected: " + e.Reason
	}
	return fmt.Sprintf("disconnected: %s (document %s)", e.Reason, e.DocumentID)
}

// ExitCode implements the errext.HasExitCode interface.
func (e *DisconnectedError) ExitCode() exitcodes.ExitCode { return exitcodes.NavigationFailed }

// ActionError is what Locator and Frame methods return for a failed action.
type ActionError struct {
	Op       string
	Selector string
	Err      error
}

func newActionError(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	var amb *AmbiguousMatchError
	if errors.As(err, &amb) {
		err = errext.WithHint(err, "use Locator.First(), Locator.Last() or Locator.Nth() to pick one element")
	}
	return &ActionError{Op: op, Selector: selector, Err: err}
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Selector, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// isNotConnected reports whether err means the element is gone from its
// document.
func isNotConnected(err error) bool {
	return errors.Is(err, errNotConnected) || errors.Is(err, dom.ErrNotConnected)
}
