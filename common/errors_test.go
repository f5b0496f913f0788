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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/errext"
	"github.com/liuxd6825/xk6-locator/errext/exitcodes"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	timeout := &TimeoutError{Timeout: time.Second, Waiting: "locator(\"p\") to be visible"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &ValidationError{Op: "clicking", Msg: "click count must be positive"},
			want: "clicking: click count must be positive",
		},
		{
			name: "validation with cause",
			err:  &ValidationError{Op: "parsing selector", Err: errors.New("unexpected end")},
			want: "parsing selector: unexpected end",
		},
		{
			name: "timeout",
			err:  timeout,
			want: `timeout 1s exceeded while waiting for locator("p") to be visible`,
		},
		{
			name: "timeout with call log",
			err:  &TimeoutError{Timeout: time.Second, CallLog: []string{"a", "b"}},
			want: "timeout 1s exceeded\ncall log:\n  - a\n  - b",
		},
		{
			name: "not found",
			err:  &ElementNotFoundError{Selector: "p", Timeout: timeout},
			want: `no element matches selector "p" within 1s`,
		},
		{
			name: "not found without timeout",
			err:  &ElementNotFoundError{Selector: "p"},
			want: `no element matches selector "p"`,
		},
		{
			name: "ambiguous",
			err:  &AmbiguousMatchError{Selector: "li", Count: 3},
			want: `strict mode violation: selector "li" resolved to 3 elements`,
		},
		{
			name: "abort",
			err:  &AbortError{Cause: context.Canceled},
			want: "operation aborted: context canceled",
		},
		{
			name: "abort without cause",
			err:  &AbortError{},
			want: "operation aborted",
		},
		{
			name: "disconnected",
			err:  &DisconnectedError{Reason: ReasonDocumentNavigated, DocumentID: "doc-1"},
			want: "disconnected: document navigated (document doc-1)",
		},
		{
			name: "element detached",
			err:  errNotConnected,
			want: "disconnected: element detached",
		},
		{
			name: "action",
			err:  &ActionError{Op: "clicking on", Selector: "button", Err: errors.New("boom")},
			want: `clicking on "button": boom`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	timeout := &TimeoutError{Timeout: time.Second}
	notFound := &ElementNotFoundError{Selector: "p", Timeout: timeout}

	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.ErrorIs(t, notFound, context.DeadlineExceeded)

	var te *TimeoutError
	require.ErrorAs(t, notFound, &te)
	assert.Same(t, timeout, te)
	assert.NoError(t, (&ElementNotFoundError{Selector: "p"}).Unwrap())

	assert.ErrorIs(t, &AbortError{Cause: context.Canceled}, context.Canceled)

	wrapped := fmt.Errorf("waiting: %w", errNotConnected)
	assert.True(t, isNotConnected(wrapped))
	assert.True(t, isNotConnected(fmt.Errorf("state: %w", dom.ErrNotConnected)))
	assert.False(t, isNotConnected(&DisconnectedError{Reason: ReasonDocumentNavigated}))
	assert.False(t, isNotConnected(errors.New("other")))
}

func TestErrorExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want exitcodes.ExitCode
	}{
		{&ValidationError{Msg: "bad"}, exitcodes.InvalidSelector},
		{&TimeoutError{}, exitcodes.GenericTimeout},
		{&ElementNotFoundError{}, exitcodes.ElementNotFound},
		{&AmbiguousMatchError{}, exitcodes.AmbiguousMatch},
		{&AbortError{}, exitcodes.ExternalAbort},
		{&DisconnectedError{}, exitcodes.NavigationFailed},
		{newActionError("clicking on", "li", &AmbiguousMatchError{Selector: "li", Count: 2}), exitcodes.AmbiguousMatch},
		{newActionError("clicking on", "li", &TimeoutError{}), exitcodes.GenericTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errext.ExitCodeOf(tt.err, exitcodes.GenericEngine), "%T %v", tt.err, tt.err)
	}
}

func TestNewActionError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, newActionError("clicking on", "li", nil))

	boom := errors.New("boom")
	err := newActionError("clicking on", "li", boom)
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "clicking on", ae.Op)
	assert.Equal(t, "li", ae.Selector)
	assert.ErrorIs(t, err, boom)

	var herr errext.HasHint
	assert.False(t, errors.As(err, &herr))

	err = newActionError("clicking on", "li", &AmbiguousMatchError{Selector: "li", Count: 2})
	require.ErrorAs(t, err, &herr)
	assert.Contains(t, herr.Hint(), "Locator.First()")
	var amb *AmbiguousMatchError
	assert.ErrorAs(t, err, &amb)
}
