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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutSettingsDefaults(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	assert.Equal(t, DefaultTimeout, ts.timeout())
	assert.Equal(t, DefaultNavigationTimeout, ts.navigationTimeout())

	// a zero timeout is a value, not unset
	ts.setDefaultTimeout(0)
	assert.Equal(t, time.Duration(0), ts.timeout())
	assert.Equal(t, time.Duration(0), ts.navigationTimeout())
}

func TestTimeoutSettingsNavigationFallsBackToTimeout(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	ts.setDefaultTimeout(time.Second)
	assert.Equal(t, time.Second, ts.navigationTimeout())

	ts.setDefaultNavigationTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, ts.navigationTimeout())
	assert.Equal(t, time.Second, ts.timeout())
}

func TestTimeoutSettingsParent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		parent, child          func(*TimeoutSettings)
		wantTimeout, wantNavTO time.Duration
	}{
		{
			name:        "unset",
			parent:      func(*TimeoutSettings) {},
			child:       func(*TimeoutSettings) {},
			wantTimeout: DefaultTimeout,
			wantNavTO:   DefaultNavigationTimeout,
		},
		{
			name: "parent",
			parent: func(ts *TimeoutSettings) {
				ts.setDefaultTimeout(time.Second)
				ts.setDefaultNavigationTimeout(2 * time.Second)
			},
			child:       func(*TimeoutSettings) {},
			wantTimeout: time.Second,
			wantNavTO:   2 * time.Second,
		},
		{
			name:        "child_timeout_wins_over_parent_navigation",
			parent:      func(ts *TimeoutSettings) { ts.setDefaultNavigationTimeout(2 * time.Second) },
			child:       func(ts *TimeoutSettings) { ts.setDefaultTimeout(300 * time.Millisecond) },
			wantTimeout: 300 * time.Millisecond,
			wantNavTO:   300 * time.Millisecond,
		},
		{
			name:        "child_navigation",
			parent:      func(ts *TimeoutSettings) { ts.setDefaultTimeout(time.Second) },
			child:       func(ts *TimeoutSettings) { ts.setDefaultNavigationTimeout(200 * time.Millisecond) },
			wantTimeout: time.Second,
			wantNavTO:   200 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parent := NewTimeoutSettings(nil)
			child := NewTimeoutSettings(parent)
			tt.parent(parent)
			tt.child(child)
			assert.Equal(t, tt.wantTimeout, child.timeout())
			assert.Equal(t, tt.wantNavTO, child.navigationTimeout())
		})
	}
}

func TestTimeoutSettingsFromOptions(t *testing.T) {
	t.Parallel()

	opts := NewOptions()
	opts.Timeout = 5 * time.Second
	opts.NavigationTimeout = 7 * time.Second
	ts := NewTimeoutSettings(timeoutSettingsFrom(opts))
	assert.Equal(t, 5*time.Second, ts.timeout())
	assert.Equal(t, 7*time.Second, ts.navigationTimeout())
}

func TestTimeoutSettingsConcurrentUse(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(NewTimeoutSettings(nil))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(d time.Duration) {
			defer wg.Done()
			ts.setDefaultTimeout(d)
			ts.setDefaultNavigationTimeout(d)
		}(time.Duration(i) * time.Second)
		go func() {
			defer wg.Done()
			_ = ts.timeout()
			_ = ts.navigationTimeout()
		}()
	}
	wg.Wait()
}
