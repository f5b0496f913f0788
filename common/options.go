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
	"fmt"
	"time"

	"github.com/liuxd6825/xk6-locator/dom"
)

// Options are the engine wide settings a FrameManager is created with. They
// are never mutated after the manager is built.
type Options struct {
	TestIDAttribute   string
	Timeout           time.Duration
	NavigationTimeout time.Duration
	PollInterval      time.Duration
	PollSchedule      []time.Duration
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		TestIDAttribute:   DefaultTestIDAttribute,
		Timeout:           DefaultTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		PollInterval:      DefaultPollInterval,
		PollSchedule:      append([]time.Duration(nil), DefaultPollSchedule...),
	}
}

// Validate checks the options for values the engine cannot work with.
func (o *Options) Validate() error {
	switch {
	case o.TestIDAttribute == "":
		return &ValidationError{Op: "options", Msg: "test id attribute must not be empty"}
	case o.Timeout < 0:
		return &ValidationError{Op: "options", Msg: fmt.Sprintf("timeout must not be negative, got %s", o.Timeout)}
	case o.NavigationTimeout < 0:
		return &ValidationError{
			Op: "options", Msg: fmt.Sprintf("navigation timeout must not be negative, got %s", o.NavigationTimeout),
		}
	case o.PollInterval <= 0:
		return &ValidationError{Op: "options", Msg: fmt.Sprintf("poll interval must be positive, got %s", o.PollInterval)}
	}
	for i, d := range o.PollSchedule {
		if d < 0 {
			return &ValidationError{
				Op: "options", Msg: fmt.Sprintf("poll schedule entry %d must not be negative, got %s", i, d),
			}
		}
	}
	return nil
}

func (o *Options) pollOptions() PollOptions {
	return PollOptions{Interval: o.PollInterval}
}

func (o *Options) actionabilityPollOptions() PollOptions {
	return PollOptions{Interval: o.PollInterval, Schedule: o.PollSchedule}
}

// ActionOptions are shared by every element action.
type ActionOptions struct {
	// Timeout overrides the frame's default timeout when positive.
	Timeout time.Duration
	// Force skips the actionability checks.
	Force bool
	// NoRetry disables re-resolving the locator when the element is
	// detached mid-action.
	NoRetry bool
}

func (o *ActionOptions) validate(op string) error {
	if o == nil {
		return nil
	}
	if o.Timeout < 0 {
		return &ValidationError{Op: op, Msg: fmt.Sprintf("timeout must not be negative, got %s", o.Timeout)}
	}
	return nil
}

func (o *ActionOptions) timeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.Timeout
}

func (o *ActionOptions) force() bool { return o != nil && o.Force }

func (o *ActionOptions) noRetry() bool { return o != nil && o.NoRetry }

// ClickOptions are the options of Click.
type ClickOptions struct {
	ActionOptions
	Button     MouseButton
	ClickCount int
	Delay      time.Duration
	Modifiers  []string
	Position   *dom.Position
	Trial      bool
}

// DblclickOptions are the options of Dblclick.
type DblclickOptions struct {
	ActionOptions
	Button    MouseButton
	Delay     time.Duration
	Modifiers []string
	Position  *dom.Position
	Trial     bool
}

// HoverOptions are the options of Hover and Tap.
type HoverOptions struct {
	ActionOptions
	Modifiers []string
	Position  *dom.Position
	Trial     bool
}

// KeyboardOptions are the options of Press and Type.
type KeyboardOptions struct {
	ActionOptions
	Delay time.Duration
}

// CheckOptions are the options of Check, Uncheck and SetChecked.
type CheckOptions struct {
	ActionOptions
	Position *dom.Position
	Trial    bool
}

// FrameWaitForSelectorOptions are the options of waitForSelector.
type FrameWaitForSelectorOptions struct {
	State           DOMElementState
	Strict          bool
	OmitReturnValue bool
	Root            *ElementHandle
	Timeout         time.Duration
}

// LocatorOptions narrow a locator by the text it contains.
type LocatorOptions struct {
	HasText    string
	HasNotText string
}

// LocatorFilterOptions are the options of Locator.Filter.
type LocatorFilterOptions struct {
	Has        *Locator
	HasNot     *Locator
	HasText    string
	HasNotText string
	Visible    *bool
}

// LocatorWaitForOptions are the options of Locator.WaitFor.
type LocatorWaitForOptions struct {
	State   DOMElementState
	Timeout time.Duration
}

// ElementHandleWaitForElementStateOptions are the options of
// ElementHandle.WaitForElementState.
type ElementHandleWaitForElementStateOptions struct {
	Timeout time.Duration
}

func validatePointer(op string, o *ActionOptions, button MouseButton, clickCount int, delay time.Duration, mods []string) error {
	if err := o.validate(op); err != nil {
		return err
	}
	if button != "" {
		if _, ok := validMouseButtons[string(button)]; !ok {
			return &ValidationError{
				Op:  op,
				Msg: fmt.Sprintf("invalid button %q; must be one of: left, right, middle", button),
			}
		}
	}
	if clickCount < 0 {
		return &ValidationError{Op: op, Msg: fmt.Sprintf("click count must not be negative, got %d", clickCount)}
	}
	if delay < 0 {
		return &ValidationError{Op: op, Msg: fmt.Sprintf("delay must not be negative, got %s", delay)}
	}
	return validateModifiers(op, mods)
}

func validateModifiers(op string, mods []string) error {
	for _, m := range mods {
		if _, ok := validModifiers[m]; !ok {
			return &ValidationError{Op: op, Msg: fmt.Sprintf("invalid modifier %q; must be one of: Alt, Control, Meta, Shift", m)}
		}
	}
	return nil
}
