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
	"sync"
	"time"
)

// TimeoutSettings resolves the default timeouts of a tab. A value set on
// the settings wins over its parent's; unset values fall through to the
// parent and finally to DefaultTimeout and DefaultNavigationTimeout. The
// settings are safe for concurrent use.
type TimeoutSettings struct {
	parent *TimeoutSettings

	mu         sync.RWMutex
	operation  *time.Duration
	navigation *time.Duration
}

// NewTimeoutSettings returns settings with nothing set that fall through
// to parent, which may be nil.
func NewTimeoutSettings(parent *TimeoutSettings) *TimeoutSettings {
	return &TimeoutSettings{parent: parent}
}

// timeoutSettingsFrom returns settings holding the timeouts of opts.
func timeoutSettingsFrom(opts *Options) *TimeoutSettings {
	ts := NewTimeoutSettings(nil)
	ts.setDefaultTimeout(opts.Timeout)
	ts.setDefaultNavigationTimeout(opts.NavigationTimeout)
	return ts
}

func (t *TimeoutSettings) setDefaultTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operation = &timeout
}

func (t *TimeoutSettings) setDefaultNavigationTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.navigation = &timeout
}

// navigationTimeout prefers a navigation timeout over a general one at each
// level before asking the parent.
func (t *TimeoutSettings) navigationTimeout() time.Duration {
	t.mu.RLock()
	nav, op := t.navigation, t.operation
	t.mu.RUnlock()

	switch {
	case nav != nil:
		return *nav
	case op != nil:
		return *op
	case t.parent != nil:
		return t.parent.navigationTimeout()
	}
	return DefaultNavigationTimeout
}

func (t *TimeoutSettings) timeout() time.Duration {
	t.mu.RLock()
	op := t.operation
	t.mu.RUnlock()

	switch {
	case op != nil:
		return *op
	case t.parent != nil:
		return t.parent.timeout()
	}
	return DefaultTimeout
}
