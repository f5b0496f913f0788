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
	"fmt"
	"slices"
	"strings"

	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/xk6-locator/dom"
)

// runAction resolves sel strictly and performs a on the element. When the
// element goes away between resolution and the action, the selector is
// resolved once more within the same deadline unless opts.NoRetry is set.
func (f *Frame) runAction(ctx context.Context, sel string, a dom.Action, opts *ActionOptions) (any, error) {
	p := NewProgress(ctx, f.timeoutOr(opts.timeout()), f.log)
	defer p.Done()

	res, err := f.actOnSelector(p, sel, a, opts.force())
	if err != nil && isNotConnected(err) && !opts.noRetry() {
		p.Log("element was detached from the DOM, retrying")
		res, err = f.actOnSelector(p, sel, a, opts.force())
	}

	return res, err
}

func (f *Frame) actOnSelector(p *Progress, sel string, a dom.Action, force bool) (any, error) {
	state := DOMElementStateAttached
	if !force && slices.Contains(a.Requires(), dom.StateVisible) {
		state = DOMElementStateVisible
	}
	h, err := f.waitForSelector(p, sel, true, &FrameWaitForSelectorOptions{Strict: true, State: state})
	if err != nil {
		return nil, err
	}
	defer h.dispose()

	return h.perform(p, a, force)
}

// checkState resolves sel strictly and reports whether the element is in
// state s.
func (f *Frame) checkState(ctx context.Context, sel string, s dom.ElementState, opts *ActionOptions) (bool, error) {
	p := NewProgress(ctx, f.timeoutOr(opts.timeout()), f.log)
	defer p.Done()

	check := func() (bool, error) {
		h, err := f.waitForSelector(p, sel, true, &FrameWaitForSelectorOptions{Strict: true})
		if err != nil {
			return false, err
		}
		defer h.dispose()

		return Race(p, func(ctx context.Context) (bool, error) {
			return h.state(ctx, s)
		})
	}
	ok, err := check()
	if err != nil && isNotConnected(err) && !opts.noRetry() {
		ok, err = check()
	}

	return ok, err
}

// peekState reports whether the single element matching sel is in state s
// without waiting for it. missing is returned when nothing matches.
func (f *Frame) peekState(ctx context.Context, sel string, s dom.ElementState, missing bool) (bool, error) {
	p := NewProgress(ctx, f.defaultTimeout(), f.log)
	defer p.Done()

	frame, doc, refs, err := f.queryAll(p, sel, nil)
	if err != nil {
		return false, err
	}
	defer frame.release(doc, refs...)

	switch len(refs) {
	case 0:
		return missing, nil
	case 1:
	default:
		return false, &AmbiguousMatchError{Selector: sel, Count: len(refs)}
	}
	return Race(p, func(ctx context.Context) (bool, error) {
		ctx, unbind := doc.bind(ctx)
		defer unbind()

		ok, err := frame.provider().State(ctx, doc.id, refs[0], s)
		if err != nil {
			if isNotConnected(err) {
				return missing, nil
			}
			return false, frame.providerError(doc, err)
		}
		return ok, nil
	})
}

// perform waits for the states a requires, unless forced, and runs it.
func (h *ElementHandle) perform(p *Progress, a dom.Action, force bool) (any, error) {
	if h.Disposed() {
		return nil, ErrHandleDisposed
	}
	if err := h.doc.err(); err != nil {
		return nil, err
	}
	if !force {
		if err := h.waitForStates(p, a.Requires()); err != nil {
			return nil, err
		}
	}

	name := dom.ActionName(a)
	p.Log("  performing %s action", name)
	res, err := Race(p, func(ctx context.Context) (any, error) {
		ctx, unbind := h.doc.bind(ctx)
		defer unbind()

		res, err := h.frame.provider().Perform(ctx, h.doc.id, h.ref, a)
		if err != nil {
			return nil, h.frame.providerError(h.doc, err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	p.Log("  %s action done", name)

	return res, nil
}

func (h *ElementHandle) waitForStates(p *Progress, states []dom.ElementState) error {
	if len(states) == 0 {
		return nil
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	what := "element to be " + strings.Join(names, ", ")
	p.Log("  waiting for %s", what)

	return WaitFor(p, what, h.frame.manager.opts.actionabilityPollOptions(), func(ctx context.Context) (bool, error) {
		for _, s := range states {
			ok, err := h.state(ctx, s)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

func (h *ElementHandle) state(ctx context.Context, s dom.ElementState) (bool, error) {
	if h.Disposed() {
		return false, ErrHandleDisposed
	}
	ctx, unbind := h.doc.bind(ctx)
	defer unbind()

	ok, err := h.frame.provider().State(ctx, h.doc.id, h.ref, s)
	if err != nil {
		return false, h.frame.providerError(h.doc, err)
	}
	return ok, nil
}

func clickAction(opts *ClickOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &ClickOptions{}
	}
	if err := validatePointer("click", &opts.ActionOptions, opts.Button, opts.ClickCount, opts.Delay, opts.Modifiers); err != nil {
		return nil, nil, err
	}
	return dom.Click{
		Button:     buttonOrDefault(opts.Button),
		ClickCount: max(opts.ClickCount, 1),
		Delay:      opts.Delay,
		Modifiers:  opts.Modifiers,
		Position:   opts.Position,
		Trial:      opts.Trial,
	}, &opts.ActionOptions, nil
}

func dblclickAction(opts *DblclickOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &DblclickOptions{}
	}
	if err := validatePointer("dblclick", &opts.ActionOptions, opts.Button, 0, opts.Delay, opts.Modifiers); err != nil {
		return nil, nil, err
	}
	return dom.Dblclick{
		Button:    buttonOrDefault(opts.Button),
		Delay:     opts.Delay,
		Modifiers: opts.Modifiers,
		Position:  opts.Position,
		Trial:     opts.Trial,
	}, &opts.ActionOptions, nil
}

func hoverAction(opts *HoverOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &HoverOptions{}
	}
	if err := validatePointer("hover", &opts.ActionOptions, "", 0, 0, opts.Modifiers); err != nil {
		return nil, nil, err
	}
	return dom.Hover{Modifiers: opts.Modifiers, Position: opts.Position, Trial: opts.Trial}, &opts.ActionOptions, nil
}

func tapAction(opts *HoverOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &HoverOptions{}
	}
	if err := validatePointer("tap", &opts.ActionOptions, "", 0, 0, opts.Modifiers); err != nil {
		return nil, nil, err
	}
	return dom.Tap{Modifiers: opts.Modifiers, Position: opts.Position, Trial: opts.Trial}, &opts.ActionOptions, nil
}

func pressAction(key string, opts *KeyboardOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &KeyboardOptions{}
	}
	if key == "" {
		return nil, nil, &ValidationError{Op: "press", Msg: "key must not be empty"}
	}
	if err := validatePointer("press", &opts.ActionOptions, "", 0, opts.Delay, nil); err != nil {
		return nil, nil, err
	}
	return dom.Press{Key: key, Delay: opts.Delay}, &opts.ActionOptions, nil
}

func typeAction(text string, opts *KeyboardOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &KeyboardOptions{}
	}
	if err := validatePointer("type", &opts.ActionOptions, "", 0, opts.Delay, nil); err != nil {
		return nil, nil, err
	}
	return dom.Type{Text: text, Delay: opts.Delay}, &opts.ActionOptions, nil
}

func setCheckedAction(checked bool, opts *CheckOptions) (dom.Action, *ActionOptions, error) {
	if opts == nil {
		opts = &CheckOptions{}
	}
	if err := opts.validate("set checked"); err != nil {
		return nil, nil, err
	}
	return dom.SetChecked{Checked: checked, Position: opts.Position, Trial: opts.Trial}, &opts.ActionOptions, nil
}

func selectOptionAction(values []dom.SelectOptionValue, opts *ActionOptions) (dom.Action, *ActionOptions, error) {
	if err := opts.validate("select option"); err != nil {
		return nil, nil, err
	}
	for i, v := range values {
		if !v.Value.Valid && !v.Label.Valid && !v.Index.Valid {
			return nil, nil, &ValidationError{
				Op: "select option", Msg: fmt.Sprintf("value %d must have a value, a label or an index", i),
			}
		}
		if v.Index.Valid && v.Index.Int64 < 0 {
			return nil, nil, &ValidationError{
				Op: "select option", Msg: fmt.Sprintf("value %d has a negative index %d", i, v.Index.Int64),
			}
		}
	}
	return dom.SelectOption{Values: values}, opts, nil
}

func scrollIntoViewAction(opts *ActionOptions) (dom.Action, *ActionOptions, error) {
	if err := opts.validate("scroll into view"); err != nil {
		return nil, nil, err
	}
	return dom.ScrollIntoView{Block: dom.ScrollPositionCenter, Inline: dom.ScrollPositionCenter}, opts, nil
}

func dispatchEventAction(typ string, init map[string]any, opts *ActionOptions) (dom.Action, *ActionOptions, error) {
	if typ == "" {
		return nil, nil, &ValidationError{Op: "dispatch event", Msg: "event type must not be empty"}
	}
	if err := opts.validate("dispatch event"); err != nil {
		return nil, nil, err
	}
	return dom.DispatchEvent{Type: typ, Init: init}, opts, nil
}

func buttonOrDefault(b MouseButton) string {
	if b == "" {
		return string(MouseButtonLeft)
	}
	return string(b)
}

// SelectValues builds select option values matching by value.
func SelectValues(values ...string) []dom.SelectOptionValue {
	out := make([]dom.SelectOptionValue, len(values))
	for i, v := range values {
		out[i] = dom.SelectOptionValue{Value: null.StringFrom(v)}
	}
	return out
}

// resultAs converts an action result to the type the action produces.
func resultAs[T any](a dom.Action, res any) (T, error) {
	var zero T
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected %s result type %T, want %T", dom.ActionName(a), res, zero)
	}
	return v, nil
}

func nullString(a dom.Action, res any) (string, bool, error) {
	s, err := resultAs[null.String](a, res)
	if err != nil {
		return "", false, err
	}
	return s.String, s.Valid, nil
}
