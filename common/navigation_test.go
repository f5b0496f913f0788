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
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/liuxd6825/xk6-locator/log"
)

type fakeHistory struct {
	err   error
	panic bool
	calls []string
}

func (h *fakeHistory) move(direction string) error {
	h.calls = append(h.calls, direction)
	if h.panic {
		panic("history is gone")
	}
	return h.err
}

func (h *fakeHistory) GoBack(context.Context) error    { return h.move("back") }
func (h *fakeHistory) GoForward(context.Context) error { return h.move("forward") }

type fakeScript struct {
	err     error
	scripts []string
}

func (s *fakeScript) EvaluateScript(_ context.Context, script string) error {
	s.scripts = append(s.scripts, script)
	return s.err
}

func TestNavigationDelegate(t *testing.T) {
	t.Parallel()

	broken := errors.New("broken")

	tests := []struct {
		name        string
		history     *fakeHistory
		script      *fakeScript
		want        bool
		wantScripts []string
		wantWarning bool
	}{
		{
			name:    "history channel",
			history: &fakeHistory{},
			script:  &fakeScript{},
			want:    true,
		},
		{
			name:        "script fallback",
			history:     &fakeHistory{err: broken},
			script:      &fakeScript{},
			want:        true,
			wantScripts: []string{"history.back()", "history.forward()"},
		},
		{
			name:        "history panics",
			history:     &fakeHistory{panic: true},
			script:      &fakeScript{},
			want:        true,
			wantScripts: []string{"history.back()", "history.forward()"},
		},
		{
			name:        "both fail",
			history:     &fakeHistory{err: broken},
			script:      &fakeScript{err: broken},
			want:        false,
			wantScripts: []string{"history.back()", "history.forward()"},
			wantWarning: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, hook := logtest.NewNullLogger()
			n := NewNavigationDelegate(tt.history, tt.script, log.New(logger, false, nil))

			assert.Equal(t, tt.want, n.GoBack(context.Background()))
			assert.Equal(t, tt.want, n.GoForward(context.Background()))
			assert.Equal(t, []string{"back", "forward"}, tt.history.calls)
			assert.Equal(t, tt.wantScripts, tt.script.scripts)

			var warnings int
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warnings++
				}
			}
			if tt.wantWarning {
				assert.Equal(t, 2, warnings)
			} else {
				assert.Zero(t, warnings)
			}
		})
	}
}

func TestNavigationDelegateMissingChannels(t *testing.T) {
	t.Parallel()

	n := NewNavigationDelegate(nil, nil, nil)
	assert.False(t, n.GoBack(context.Background()))
	assert.False(t, n.GoForward(context.Background()))

	s := &fakeScript{}
	n = NewNavigationDelegate(nil, s, nil)
	assert.True(t, n.GoBack(context.Background()))
	assert.Equal(t, []string{"history.back()"}, s.scripts)
}
