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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/dom"
)

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewOptions().Validate())

	tests := []struct {
		name   string
		modify func(*Options)
		want   string
	}{
		{"test id attribute", func(o *Options) { o.TestIDAttribute = "" }, "test id attribute must not be empty"},
		{"timeout", func(o *Options) { o.Timeout = -time.Second }, "timeout must not be negative"},
		{"navigation timeout", func(o *Options) { o.NavigationTimeout = -time.Second }, "navigation timeout must not be negative"},
		{"poll interval", func(o *Options) { o.PollInterval = 0 }, "poll interval must be positive"},
		{"poll schedule", func(o *Options) { o.PollSchedule = []time.Duration{0, -1} }, "poll schedule entry 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := NewOptions()
			tt.modify(o)
			err := o.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewOptionsCopiesSchedule(t *testing.T) {
	t.Parallel()

	o := NewOptions()
	require.NotEmpty(t, o.PollSchedule)
	o.PollSchedule[0] = time.Hour
	assert.NotEqual(t, time.Hour, DefaultPollSchedule[0])
}

func TestActionBuilders(t *testing.T) {
	t.Parallel()

	t.Run("click defaults", func(t *testing.T) {
		t.Parallel()

		a, base, err := clickAction(nil)
		require.NoError(t, err)
		assert.Equal(t, dom.Click{Button: "left", ClickCount: 1}, a)
		assert.NotNil(t, base)
	})

	t.Run("click", func(t *testing.T) {
		t.Parallel()

		pos := &dom.Position{X: 1, Y: 2}
		a, base, err := clickAction(&ClickOptions{
			ActionOptions: ActionOptions{Timeout: time.Second, Force: true},
			Button:        MouseButtonRight,
			ClickCount:    2,
			Modifiers:     []string{"Shift"},
			Position:      pos,
			Trial:         true,
		})
		require.NoError(t, err)
		assert.Equal(t, dom.Click{
			Button: "right", ClickCount: 2, Modifiers: []string{"Shift"}, Position: pos, Trial: true,
		}, a)
		assert.Equal(t, time.Second, base.timeout())
		assert.True(t, base.force())
		assert.False(t, base.noRetry())
	})

	t.Run("select option", func(t *testing.T) {
		t.Parallel()

		a, _, err := selectOptionAction(SelectValues("a", "b"), nil)
		require.NoError(t, err)
		assert.Equal(t, dom.SelectOption{Values: []dom.SelectOptionValue{
			{Value: null.StringFrom("a")}, {Value: null.StringFrom("b")},
		}}, a)
	})

	invalid := []struct {
		name  string
		build func() error
		want  string
	}{
		{"button", func() error {
			_, _, err := clickAction(&ClickOptions{Button: "wheel"})
			return err
		}, `invalid button "wheel"`},
		{"click count", func() error {
			_, _, err := clickAction(&ClickOptions{ClickCount: -1})
			return err
		}, "click count must not be negative"},
		{"delay", func() error {
			_, _, err := dblclickAction(&DblclickOptions{Delay: -time.Second})
			return err
		}, "delay must not be negative"},
		{"modifier", func() error {
			_, _, err := hoverAction(&HoverOptions{Modifiers: []string{"Hyper"}})
			return err
		}, `invalid modifier "Hyper"`},
		{"timeout", func() error {
			_, _, err := tapAction(&HoverOptions{ActionOptions: ActionOptions{Timeout: -1}})
			return err
		}, "timeout must not be negative"},
		{"key", func() error {
			_, _, err := pressAction("", nil)
			return err
		}, "key must not be empty"},
		{"type delay", func() error {
			_, _, err := typeAction("x", &KeyboardOptions{Delay: -1})
			return err
		}, "delay must not be negative"},
		{"check timeout", func() error {
			_, _, err := setCheckedAction(true, &CheckOptions{ActionOptions: ActionOptions{Timeout: -1}})
			return err
		}, "timeout must not be negative"},
		{"empty option", func() error {
			_, _, err := selectOptionAction([]dom.SelectOptionValue{{}}, nil)
			return err
		}, "value 0 must have a value, a label or an index"},
		{"negative index", func() error {
			_, _, err := selectOptionAction([]dom.SelectOptionValue{{Index: null.IntFrom(-1)}}, nil)
			return err
		}, "negative index"},
		{"event type", func() error {
			_, _, err := dispatchEventAction("", nil, nil)
			return err
		}, "event type must not be empty"},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.build()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResultAs(t *testing.T) {
	t.Parallel()

	s, ok, err := nullString(dom.TextContent{}, null.StringFrom("x"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok, err = nullString(dom.TextContent{}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = resultAs[string](dom.InnerText{}, 42)
	assert.ErrorContains(t, err, "unexpected")
}
