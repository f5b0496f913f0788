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

package common

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/log"
)

// ElementHandle refers to one element of one document. It must be disposed
// exactly once; every method fails with ErrHandleDisposed afterwards.
type ElementHandle struct {
	frame    *Frame
	doc      *documentInfo
	ref      dom.ElementRef
	log      *log.Logger
	disposed atomic.Bool
}

func newElementHandle(f *Frame, doc *documentInfo, ref dom.ElementRef) *ElementHandle {
	return &ElementHandle{
		frame: f,
		doc:   doc,
		ref:   ref,
		log:   f.log,
	}
}

// Ref returns the provider reference of the element.
func (h *ElementHandle) Ref() dom.ElementRef { return h.ref }

// DocumentID returns the document the element belongs to.
func (h *ElementHandle) DocumentID() dom.DocumentID { return h.doc.id }

// Frame returns the frame the element was resolved in.
func (h *ElementHandle) Frame() *Frame { return h.frame }

// Disposed reports whether Dispose was called.
func (h *ElementHandle) Disposed() bool { return h.disposed.Load() }

// IsStale reports whether the element's document was superseded.
func (h *ElementHandle) IsStale() bool { return h.doc.err() != nil }

// Dispose releases the element. Only the first call reaches the provider;
// later calls return ErrHandleDisposed.
func (h *ElementHandle) Dispose() error {
	if !h.disposed.CompareAndSwap(false, true) {
		return ErrHandleDisposed
	}
	h.log.Debugf("ElementHandle:Dispose", "fid:%s doc:%s ref:%s", h.frame.ID(), h.doc.id, h.ref)

	if err := h.frame.provider().Release(context.WithoutCancel(h.frame.ctx), h.doc.id, h.ref); err != nil {
		return fmt.Errorf("disposing element: %w", err)
	}
	return nil
}

func (h *ElementHandle) dispose() {
	if err := h.Dispose(); err != nil && !errors.Is(err, ErrHandleDisposed) {
		h.log.Debugf("ElementHandle:dispose", "fid:%s ref:%s err:%v", h.frame.ID(), h.ref, err)
	}
}

func (h *ElementHandle) act(op string, a dom.Action, opts *ActionOptions) (any, error) {
	h.log.Debugf("ElementHandle:"+dom.ActionName(a), "fid:%s doc:%s ref:%s opts:%+v", h.frame.ID(), h.doc.id, h.ref, opts)

	if h.Disposed() {
		return nil, ErrHandleDisposed
	}
	p := NewProgress(h.frame.ctx, h.frame.timeoutOr(opts.timeout()), h.log)
	defer p.Done()

	res, err := h.perform(p, a, opts.force())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (h *ElementHandle) actWith(op string, a dom.Action, opts *ActionOptions, err error) (any, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return h.act(op, a, opts)
}

// Click clicks the element.
func (h *ElementHandle) Click(opts *ClickOptions) error {
	a, base, err := clickAction(opts)
	_, err = h.actWith("clicking on element", a, base, err)
	return err
}

// Dblclick double clicks the element.
func (h *ElementHandle) Dblclick(opts *DblclickOptions) error {
	a, base, err := dblclickAction(opts)
	_, err = h.actWith("double clicking on element", a, base, err)
	return err
}

// Hover moves the pointer over the element.
func (h *ElementHandle) Hover(opts *HoverOptions) error {
	a, base, err := hoverAction(opts)
	_, err = h.actWith("hovering on element", a, base, err)
	return err
}

// Tap taps the element.
func (h *ElementHandle) Tap(opts *HoverOptions) error {
	a, base, err := tapAction(opts)
	_, err = h.actWith("tapping on element", a, base, err)
	return err
}

// Fill replaces the value of the element.
func (h *ElementHandle) Fill(value string, opts *ActionOptions) error {
	err := opts.validate("fill")
	_, err = h.actWith("filling element", dom.Fill{Value: value}, opts, err)
	return err
}

// Press presses key while the element is focused.
func (h *ElementHandle) Press(key string, opts *KeyboardOptions) error {
	a, base, err := pressAction(key, opts)
	_, err = h.actWith("pressing on element", a, base, err)
	return err
}

// Type types text into the element.
func (h *ElementHandle) Type(text string, opts *KeyboardOptions) error {
	a, base, err := typeAction(text, opts)
	_, err = h.actWith("typing into element", a, base, err)
	return err
}

// SetChecked checks or unchecks a checkbox or radio element.
func (h *ElementHandle) SetChecked(checked bool, opts *CheckOptions) error {
	a, base, err := setCheckedAction(checked, opts)
	_, err = h.actWith("setting checked state of element", a, base, err)
	return err
}

// Check checks a checkbox or radio element.
func (h *ElementHandle) Check(opts *CheckOptions) error { return h.SetChecked(true, opts) }

// Uncheck unchecks a checkbox element.
func (h *ElementHandle) Uncheck(opts *CheckOptions) error { return h.SetChecked(false, opts) }

// SelectOption selects options of a select element and returns the values
// of the selected options.
func (h *ElementHandle) SelectOption(values []dom.SelectOptionValue, opts *ActionOptions) ([]string, error) {
	a, base, err := selectOptionAction(values, opts)
	res, err := h.actWith("selecting options of element", a, base, err)
	if err != nil {
		return nil, err
	}
	return resultAs[[]string](a, res)
}

// Focus focuses the element.
func (h *ElementHandle) Focus() error {
	_, err := h.act("focusing on element", dom.Focus{}, nil)
	return err
}

// Blur removes the focus from the element.
func (h *ElementHandle) Blur() error {
	_, err := h.act("blurring element", dom.Blur{}, nil)
	return err
}

// ScrollIntoViewIfNeeded scrolls the element into view.
func (h *ElementHandle) ScrollIntoViewIfNeeded(opts *ActionOptions) error {
	a, base, err := scrollIntoViewAction(opts)
	_, err = h.actWith("scrolling element into view", a, base, err)
	return err
}

// DispatchEvent dispatches a DOM event of type typ on the element.
func (h *ElementHandle) DispatchEvent(typ string, eventInit map[string]any) error {
	a, base, err := dispatchEventAction(typ, eventInit, nil)
	_, err = h.actWith("dispatching event on element", a, base, err)
	return err
}

// AriaSnapshot returns the accessibility snapshot of the element.
func (h *ElementHandle) AriaSnapshot() (string, error) {
	a := dom.AriaSnapshot{}
	res, err := h.act("getting aria snapshot of element", a, nil)
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// TextContent returns the text content of the element. The second return
// value is false when the content is null.
func (h *ElementHandle) TextContent() (string, bool, error) {
	a := dom.TextContent{}
	res, err := h.act("getting text content of element", a, nil)
	if err != nil {
		return "", false, err
	}
	return nullString(a, res)
}

// InnerText returns the rendered text of the element.
func (h *ElementHandle) InnerText() (string, error) {
	a := dom.InnerText{}
	res, err := h.act("getting inner text of element", a, nil)
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// InnerHTML returns the markup of the element's children.
func (h *ElementHandle) InnerHTML() (string, error) {
	a := dom.InnerHTML{}
	res, err := h.act("getting inner HTML of element", a, nil)
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// InputValue returns the value of an input, textarea or select element.
func (h *ElementHandle) InputValue() (string, error) {
	a := dom.InputValue{}
	res, err := h.act("getting input value of element", a, nil)
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// GetAttribute returns the value of the named attribute. The second return
// value is false when the attribute is missing.
func (h *ElementHandle) GetAttribute(name string) (string, bool, error) {
	a := dom.GetAttribute{Attr: name}
	res, err := h.act("getting attribute of element", a, nil)
	if err != nil {
		return "", false, err
	}
	return nullString(a, res)
}

// BoundingBox returns the box of the element, or nil when it is not
// rendered.
func (h *ElementHandle) BoundingBox() (*dom.Rect, error) {
	a := dom.BoundingBox{}
	res, err := h.act("getting bounding box of element", a, nil)
	if err != nil {
		return nil, err
	}
	return resultAs[*dom.Rect](a, res)
}

// SelectText selects the text of the element.
func (h *ElementHandle) SelectText(opts *ActionOptions) error {
	_, err := h.act("selecting text of element", dom.SelectText{}, opts)
	return err
}

func (h *ElementHandle) is(s dom.ElementState) (bool, error) {
	if h.Disposed() {
		return false, ErrHandleDisposed
	}
	p := NewProgress(h.frame.ctx, h.frame.defaultTimeout(), h.log)
	defer p.Done()

	ok, err := Race(p, func(ctx context.Context) (bool, error) {
		return h.state(ctx, s)
	})
	if err != nil {
		return false, fmt.Errorf("checking element is %s: %w", s, err)
	}
	return ok, nil
}

// IsVisible reports whether the element is visible.
func (h *ElementHandle) IsVisible() (bool, error) { return h.is(dom.StateVisible) }

// IsHidden reports whether the element is hidden.
func (h *ElementHandle) IsHidden() (bool, error) { return h.is(dom.StateHidden) }

// IsEnabled reports whether the element is enabled.
func (h *ElementHandle) IsEnabled() (bool, error) { return h.is(dom.StateEnabled) }

// IsDisabled reports whether the element is disabled.
func (h *ElementHandle) IsDisabled() (bool, error) { return h.is(dom.StateDisabled) }

// IsEditable reports whether the element accepts input.
func (h *ElementHandle) IsEditable() (bool, error) { return h.is(dom.StateEditable) }

// IsChecked reports whether a checkbox or radio element is checked.
func (h *ElementHandle) IsChecked() (bool, error) { return h.is(dom.StateChecked) }

// WaitForElementState waits until the element is in state s.
func (h *ElementHandle) WaitForElementState(s dom.ElementState, opts *ElementHandleWaitForElementStateOptions) error {
	h.log.Debugf("ElementHandle:WaitForElementState", "fid:%s ref:%s state:%s", h.frame.ID(), h.ref, s)

	if h.Disposed() {
		return ErrHandleDisposed
	}
	var timeout time.Duration
	if opts != nil {
		if opts.Timeout < 0 {
			return &ValidationError{Op: "waiting for element state", Msg: fmt.Sprintf("timeout must not be negative, got %s", opts.Timeout)}
		}
		timeout = opts.Timeout
	}
	p := NewProgress(h.frame.ctx, h.frame.timeoutOr(timeout), h.log)
	defer p.Done()

	if err := h.waitForStates(p, []dom.ElementState{s}); err != nil {
		return fmt.Errorf("waiting for element to be %s: %w", s, err)
	}
	return nil
}

// Query returns a handle to the first element under this one matching sel,
// or nil.
func (h *ElementHandle) Query(sel string) (*ElementHandle, error) {
	hs, err := h.QueryAll(sel)
	if err != nil || len(hs) == 0 {
		return nil, err
	}
	for _, other := range hs[1:] {
		other.dispose()
	}
	return hs[0], nil
}

// QueryAll returns handles to every element under this one matching sel.
func (h *ElementHandle) QueryAll(sel string) ([]*ElementHandle, error) {
	h.log.Debugf("ElementHandle:QueryAll", "fid:%s ref:%s sel:%q", h.frame.ID(), h.ref, sel)

	if h.Disposed() {
		return nil, ErrHandleDisposed
	}
	p := NewProgress(h.frame.ctx, h.frame.defaultTimeout(), h.log)
	defer p.Done()

	hs, err := h.frame.handles(p, sel, h)
	if err != nil {
		return nil, fmt.Errorf("querying %q under element: %w", sel, err)
	}
	return hs, nil
}

// WaitForSelector waits for sel, resolved under this element, to reach
// opts.State.
func (h *ElementHandle) WaitForSelector(sel string, opts *FrameWaitForSelectorOptions) (*ElementHandle, error) {
	h.log.Debugf("ElementHandle:WaitForSelector", "fid:%s ref:%s sel:%q opts:%+v", h.frame.ID(), h.ref, sel, opts)

	if h.Disposed() {
		return nil, ErrHandleDisposed
	}
	var o FrameWaitForSelectorOptions
	if opts != nil {
		o = *opts
	}
	o.Root = h
	p := NewProgress(h.frame.ctx, h.frame.timeoutOr(o.Timeout), h.log)
	defer p.Done()

	res, err := h.frame.waitForSelector(p, sel, true, &o)
	if err != nil {
		return nil, fmt.Errorf("waiting for %q under element: %w", sel, err)
	}
	return res, nil
}
