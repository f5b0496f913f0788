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

	"github.com/liuxd6825/xk6-locator/log"
)

// HistoryChannel moves a tab through its session history using the
// browser's own history API.
type HistoryChannel interface {
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
}

// ScriptChannel evaluates a script in the main frame of a tab.
type ScriptChannel interface {
	EvaluateScript(ctx context.Context, script string) error
}

var errNoChannel = errors.New("channel is not available")

// NavigationDelegate moves a tab back and forward through its history. The
// history channel is tried first; when it fails the same move is attempted
// with a script. Failures are logged, never returned.
type NavigationDelegate struct {
	history HistoryChannel
	script  ScriptChannel
	logger  *log.Logger
}

// NewNavigationDelegate returns a delegate over h and s. Either channel may
// be nil, in which case it always fails.
func NewNavigationDelegate(h HistoryChannel, s ScriptChannel, l *log.Logger) *NavigationDelegate {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &NavigationDelegate{history: h, script: s, logger: l}
}

// GoBack navigates to the previous history entry and reports whether
// either channel succeeded.
func (n *NavigationDelegate) GoBack(ctx context.Context) bool {
	return n.navigate(ctx, "back", func(ctx context.Context) error {
		if n.history == nil {
			return errNoChannel
		}
		return n.history.GoBack(ctx)
	})
}

// GoForward navigates to the next history entry and reports whether either
// channel succeeded.
func (n *NavigationDelegate) GoForward(ctx context.Context) bool {
	return n.navigate(ctx, "forward", func(ctx context.Context) error {
		if n.history == nil {
			return errNoChannel
		}
		return n.history.GoForward(ctx)
	})
}

func (n *NavigationDelegate) navigate(ctx context.Context, direction string, primary func(context.Context) error) bool {
	err := safely(func() error { return primary(ctx) })
	if err == nil {
		n.logger.Debugf("NavigationDelegate:"+direction, "history channel ok")
		return true
	}
	n.logger.Debugf("NavigationDelegate:"+direction, "history channel failed: %v, falling back to script", err)

	err = safely(func() error {
		if n.script == nil {
			return errNoChannel
		}
		return n.script.EvaluateScript(ctx, "history."+direction+"()")
	})
	if err != nil {
		n.logger.Warnf("NavigationDelegate:"+direction, "going %s: %v", direction, err)
		return false
	}
	n.logger.Debugf("NavigationDelegate:"+direction, "script channel ok")

	return true
}

// safely turns a panic in fn into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
