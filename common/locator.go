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
	"time"

	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/log"
	"github.com/liuxd6825/xk6-locator/selector"
	"github.com/liuxd6825/xk6-locator/trace"
)

// Strict mode:
// All operations on locators fail if more than one element matches the
// locator's selector.

// Locator represents a way to find element(s) on the page at any moment.
// Locators are immutable: every combinator returns a new one.
type Locator struct {
	selector    string
	description string

	frame *Frame

	ctx context.Context
	log *log.Logger
}

// NewLocator creates and returns a new locator.
func NewLocator(ctx context.Context, opts *LocatorOptions, sel string, f *Frame, l *log.Logger) *Locator {
	if opts == nil {
		opts = new(LocatorOptions)
	}
	if opts.HasText != "" {
		sel = selector.HasText(sel, textMatchOf(opts.HasText, nil))
	}
	if opts.HasNotText != "" {
		sel = selector.HasNotText(sel, textMatchOf(opts.HasNotText, nil))
	}
	return &Locator{
		selector: sel,
		frame:    f,
		ctx:      ctx,
		log:      l,
	}
}

func (l *Locator) derive(sel string) *Locator {
	return NewLocator(l.ctx, nil, sel, l.frame, l.log)
}

// Selector returns the selector of the locator.
func (l *Locator) Selector() string { return l.selector }

// Description returns the description set with Describe.
func (l *Locator) Description() string { return l.description }

// Frame returns the frame the locator resolves in.
func (l *Locator) Frame() *Frame { return l.frame }

// Equal reports whether both locators resolve the same selector in the same
// frame.
func (l *Locator) Equal(other *Locator) bool {
	return other != nil && l.frame == other.frame && l.selector == other.selector
}

func (l *Locator) String() string {
	if l.description != "" {
		return l.description
	}
	return describeSelector(l.selector)
}

// Describe returns a copy of the locator carrying desc in logs and errors.
func (l *Locator) Describe(desc string) *Locator {
	c := *l
	c.description = desc
	return &c
}

// Locator creates and returns a new locator chained/relative to the current locator.
func (l *Locator) Locator(sel string, opts *LocatorOptions) *Locator {
	return NewLocator(l.ctx, opts, selector.Chain(l.selector, sel), l.frame, l.log)
}

// sameFrame fails when other cannot be combined with l.
func (l *Locator) sameFrame(op string, other *Locator) error {
	if other == nil {
		return &ValidationError{Op: op, Msg: "locator must not be nil"}
	}
	if other.frame != l.frame {
		return &ValidationError{Op: op, Msg: "locators must belong to the same frame"}
	}
	return nil
}

// Chain returns a locator for the elements of other found inside the
// elements of l.
func (l *Locator) Chain(other *Locator) (*Locator, error) {
	if err := l.sameFrame("chaining locators", other); err != nil {
		return nil, err
	}
	return l.derive(selector.ChainJSON(l.selector, other.selector)), nil
}

// And returns a locator for the elements matching both l and other.
func (l *Locator) And(other *Locator) (*Locator, error) {
	if err := l.sameFrame("combining locators with and", other); err != nil {
		return nil, err
	}
	return l.derive(selector.And(l.selector, other.selector)), nil
}

// Or returns a locator for the elements matching either l or other.
func (l *Locator) Or(other *Locator) (*Locator, error) {
	if err := l.sameFrame("combining locators with or", other); err != nil {
		return nil, err
	}
	return l.derive(selector.Or(l.selector, other.selector)), nil
}

// Has narrows l to the elements containing an element matching inner.
func (l *Locator) Has(inner *Locator) (*Locator, error) {
	if err := l.sameFrame("filtering locator with has", inner); err != nil {
		return nil, err
	}
	return l.derive(selector.Has(l.selector, inner.selector)), nil
}

// HasNot narrows l to the elements containing no element matching inner.
func (l *Locator) HasNot(inner *Locator) (*Locator, error) {
	if err := l.sameFrame("filtering locator with has not", inner); err != nil {
		return nil, err
	}
	return l.derive(selector.HasNot(l.selector, inner.selector)), nil
}

// HasText narrows l to the elements containing text.
func (l *Locator) HasText(text string) *Locator {
	return l.derive(selector.HasText(l.selector, textMatchOf(text, nil)))
}

// HasNotText narrows l to the elements not containing text.
func (l *Locator) HasNotText(text string) *Locator {
	return l.derive(selector.HasNotText(l.selector, textMatchOf(text, nil)))
}

// Filter returns a new [Locator] after applying the options to the current one.
func (l *Locator) Filter(opts *LocatorFilterOptions) (*Locator, error) {
	if opts == nil {
		return l.derive(l.selector), nil
	}
	sel := l.selector
	if opts.HasText != "" {
		sel = selector.HasText(sel, textMatchOf(opts.HasText, nil))
	}
	if opts.HasNotText != "" {
		sel = selector.HasNotText(sel, textMatchOf(opts.HasNotText, nil))
	}
	if opts.Has != nil {
		if err := l.sameFrame("filtering locator with has", opts.Has); err != nil {
			return nil, err
		}
		sel = selector.Has(sel, opts.Has.selector)
	}
	if opts.HasNot != nil {
		if err := l.sameFrame("filtering locator with has not", opts.HasNot); err != nil {
			return nil, err
		}
		sel = selector.HasNot(sel, opts.HasNot.selector)
	}
	if opts.Visible != nil {
		sel = selector.Visible(sel, *opts.Visible)
	}
	return l.derive(sel), nil
}

// First will return the first element matching the locator's selector.
func (l *Locator) First() *Locator {
	return l.derive(selector.First(l.selector))
}

// Last will return the last element matching the locator's selector.
func (l *Locator) Last() *Locator {
	return l.derive(selector.Last(l.selector))
}

// Nth will return the nth element matching the locator's selector.
// Negative values count from the end.
func (l *Locator) Nth(nth int) *Locator {
	return l.derive(selector.Nth(l.selector, nth))
}

// ContentFrame creates and returns a new FrameLocator, which is useful when
// needing to interact with elements in an iframe and the current locator already
// points to the iframe.
func (l *Locator) ContentFrame() *FrameLocator {
	return NewFrameLocator(l.ctx, l.selector, l.frame, l.log)
}

// FrameLocator creates a frame locator for an iframe matching the given selector
// within the current locator's scope.
func (l *Locator) FrameLocator(sel string) *FrameLocator {
	l.log.Debugf("Locator:FrameLocator", "selector:%q childSelector:%q", l.selector, sel)

	return l.Locator(sel, nil).ContentFrame()
}

// GetByAltText returns a locator for elements with the given alt text
// inside this locator.
func (l *Locator) GetByAltText(alt string, opts *GetByBaseOptions) *Locator {
	return l.Locator(l.frame.buildAttributeSelector("alt", alt, opts), nil)
}

// GetByLabel returns a locator for form controls with the given label
// inside this locator.
func (l *Locator) GetByLabel(label string, opts *GetByBaseOptions) *Locator {
	return l.Locator(l.frame.buildLabelSelector(label, opts), nil)
}

// GetByPlaceholder returns a locator for inputs with the given placeholder
// inside this locator.
func (l *Locator) GetByPlaceholder(placeholder string, opts *GetByBaseOptions) *Locator {
	return l.Locator(l.frame.buildAttributeSelector("placeholder", placeholder, opts), nil)
}

// GetByRole returns a locator for elements with the given ARIA role inside
// this locator.
func (l *Locator) GetByRole(role string, opts *GetByRoleOptions) *Locator {
	return l.Locator(l.frame.buildRoleSelector(role, opts), nil)
}

// GetByTestID returns a locator for elements with the given test id inside
// this locator.
func (l *Locator) GetByTestID(testID string) *Locator {
	return l.Locator(l.frame.buildTestIDSelector(testID), nil)
}

// GetByText returns a locator for elements containing the given text inside
// this locator.
func (l *Locator) GetByText(text string, opts *GetByBaseOptions) *Locator {
	return l.Locator(l.frame.buildTextSelector(text, opts), nil)
}

// GetByTitle returns a locator for elements with the given title inside
// this locator.
func (l *Locator) GetByTitle(title string, opts *GetByBaseOptions) *Locator {
	return l.Locator(l.frame.buildAttributeSelector("title", title, opts), nil)
}

// DefaultTimeout returns the timeout used by operations without one.
func (l *Locator) DefaultTimeout() time.Duration {
	return l.frame.defaultTimeout()
}

func (l *Locator) debugf(method string, opts any) {
	l.log.Debugf("Locator:"+method, "fid:%s furl:%q sel:%q opts:%+v", l.frame.ID(), l.frame.URL(), l.selector, opts)
}

// act runs a through the action protocol and wraps failures.
func (l *Locator) act(span, op string, a dom.Action, opts *ActionOptions) (any, error) {
	ctx, s := l.frame.manager.tracer.TraceAPICall(l.ctx, l.frame.TabID(), span)
	defer s.End()

	res, err := l.frame.runAction(ctx, l.selector, a, opts)
	if err != nil {
		err = newActionError(op, l.selector, err)
		trace.RecordError(s, err)
		return nil, err
	}
	return res, nil
}

func (l *Locator) actWith(span, op string, a dom.Action, opts *ActionOptions, err error) (any, error) {
	if err != nil {
		return nil, newActionError(op, l.selector, err)
	}
	return l.act(span, op, a, opts)
}

// ElementHandle resolves the locator strictly, waiting for exactly one
// element to be attached. The caller owns the returned handle.
func (l *Locator) ElementHandle(opts *ActionOptions) (*ElementHandle, error) {
	l.debugf("ElementHandle", opts)

	if err := opts.validate("element handle"); err != nil {
		return nil, newActionError("resolving", l.selector, err)
	}
	p := NewProgress(l.ctx, l.frame.timeoutOr(opts.timeout()), l.log)
	defer p.Done()

	h, err := l.frame.waitForSelector(p, l.selector, true, &FrameWaitForSelectorOptions{Strict: true})
	if err != nil {
		return nil, newActionError("resolving", l.selector, err)
	}
	return h, nil
}

// ElementHandles returns handles to every element matching the locator,
// without waiting.
func (l *Locator) ElementHandles() ([]*ElementHandle, error) {
	l.debugf("ElementHandles", nil)

	p := NewProgress(l.ctx, l.frame.defaultTimeout(), l.log)
	defer p.Done()

	hs, err := l.frame.handles(p, l.selector, nil)
	if err != nil {
		return nil, newActionError("resolving all", l.selector, err)
	}
	return hs, nil
}

// Count APIs do not wait for the element to be present. It also does not set
// strict to true, allowing it to return the total number of elements matching
// the selector.
func (l *Locator) Count() (int, error) {
	l.debugf("Count", nil)

	p := NewProgress(l.ctx, l.frame.defaultTimeout(), l.log)
	defer p.Done()

	n, err := l.frame.count(p, l.selector)
	if err != nil {
		return 0, newActionError("counting", l.selector, err)
	}
	return n, nil
}

// All returns a locator for each element currently matching the locator.
func (l *Locator) All() ([]*Locator, error) {
	l.debugf("All", nil)

	count, err := l.Count()
	if err != nil {
		return nil, err
	}

	locators := make([]*Locator, count)
	for i := 0; i < count; i++ {
		locators[i] = l.Nth(i)
	}

	return locators, nil
}

// WaitFor waits for the element matching the locator's selector with strict
// mode on to reach opts.State.
func (l *Locator) WaitFor(opts *LocatorWaitForOptions) error {
	l.debugf("WaitFor", opts)

	if opts == nil {
		opts = &LocatorWaitForOptions{}
	}
	if opts.Timeout < 0 {
		return newActionError("waiting for", l.selector, &ValidationError{
			Op: "wait for", Msg: fmt.Sprintf("timeout must not be negative, got %s", opts.Timeout),
		})
	}
	ctx, span := l.frame.manager.tracer.TraceAPICall(l.ctx, l.frame.TabID(), "locator.waitFor")
	defer span.End()

	p := NewProgress(ctx, l.frame.timeoutOr(opts.Timeout), l.log)
	defer p.Done()

	_, err := l.frame.waitForSelector(p, l.selector, true, &FrameWaitForSelectorOptions{
		State:           opts.State,
		Strict:          true,
		OmitReturnValue: true,
	})
	if err != nil {
		err = newActionError("waiting for", l.selector, err)
		trace.RecordError(span, err)
		return err
	}
	return nil
}

// Click on an element using locator's selector with strict mode on.
func (l *Locator) Click(opts *ClickOptions) error {
	l.debugf("Click", opts)

	a, base, err := clickAction(opts)
	_, err = l.actWith("locator.click", "clicking on", a, base, err)
	return err
}

// Dblclick double clicks on an element using locator's selector with strict mode on.
func (l *Locator) Dblclick(opts *DblclickOptions) error {
	l.debugf("Dblclick", opts)

	a, base, err := dblclickAction(opts)
	_, err = l.actWith("locator.dblclick", "double clicking on", a, base, err)
	return err
}

// Hover moves the pointer over an element using locator's selector with strict mode on.
func (l *Locator) Hover(opts *HoverOptions) error {
	l.debugf("Hover", opts)

	a, base, err := hoverAction(opts)
	_, err = l.actWith("locator.hover", "hovering on", a, base, err)
	return err
}

// Tap taps on an element using locator's selector with strict mode on.
func (l *Locator) Tap(opts *HoverOptions) error {
	l.debugf("Tap", opts)

	a, base, err := tapAction(opts)
	_, err = l.actWith("locator.tap", "tapping on", a, base, err)
	return err
}

// Fill out the element using locator's selector with strict mode on.
func (l *Locator) Fill(value string, opts *ActionOptions) error {
	l.debugf("Fill", opts)

	err := opts.validate("fill")
	_, err = l.actWith("locator.fill", "filling", dom.Fill{Value: value}, opts, err)
	return err
}

// Clear will clear the input field.
// This works with the Fill API and fills the input field with an empty string.
func (l *Locator) Clear(opts *ActionOptions) error {
	l.debugf("Clear", opts)

	err := opts.validate("clear")
	_, err = l.actWith("locator.clear", "clearing", dom.Fill{Value: ""}, opts, err)
	return err
}

// Press the given key on the element found that matches the locator's
// selector with strict mode on.
func (l *Locator) Press(key string, opts *KeyboardOptions) error {
	l.debugf("Press", opts)

	a, base, err := pressAction(key, opts)
	_, err = l.actWith("locator.press", "pressing on", a, base, err)
	return err
}

// Type text on the element found that matches the locator's
// selector with strict mode on.
func (l *Locator) Type(text string, opts *KeyboardOptions) error {
	l.debugf("Type", opts)

	a, base, err := typeAction(text, opts)
	_, err = l.actWith("locator.type", "typing in", a, base, err)
	return err
}

// SetChecked sets the checked state of the element using locator's selector
// with strict mode on.
func (l *Locator) SetChecked(checked bool, opts *CheckOptions) error {
	l.debugf("SetChecked", opts)

	a, base, err := setCheckedAction(checked, opts)
	_, err = l.actWith("locator.setChecked", "setting checked state of", a, base, err)
	return err
}

// Check element using locator's selector with strict mode on.
func (l *Locator) Check(opts *CheckOptions) error { return l.SetChecked(true, opts) }

// Uncheck element using locator's selector with strict mode on.
func (l *Locator) Uncheck(opts *CheckOptions) error { return l.SetChecked(false, opts) }

// SelectOption filters option values of the first element found that
// matches the locator's selector (strict mode on), selects the options,
// and returns the filtered options.
func (l *Locator) SelectOption(values []dom.SelectOptionValue, opts *ActionOptions) ([]string, error) {
	l.debugf("SelectOption", opts)

	a, base, err := selectOptionAction(values, opts)
	res, err := l.actWith("locator.selectOption", "selecting option on", a, base, err)
	if err != nil {
		return nil, err
	}
	return resultAs[[]string](a, res)
}

// Focus on the element using locator's selector with strict mode on.
func (l *Locator) Focus(opts *ActionOptions) error {
	l.debugf("Focus", opts)

	err := opts.validate("focus")
	_, err = l.actWith("locator.focus", "focusing on", dom.Focus{}, opts, err)
	return err
}

// Blur removes the focus from the element using locator's selector with
// strict mode on.
func (l *Locator) Blur(opts *ActionOptions) error {
	l.debugf("Blur", opts)

	err := opts.validate("blur")
	_, err = l.actWith("locator.blur", "blurring", dom.Blur{}, opts, err)
	return err
}

// ScrollIntoViewIfNeeded scrolls the element using locator's selector with
// strict mode on into view.
func (l *Locator) ScrollIntoViewIfNeeded(opts *ActionOptions) error {
	l.debugf("ScrollIntoViewIfNeeded", opts)

	a, base, err := scrollIntoViewAction(opts)
	_, err = l.actWith("locator.scrollIntoViewIfNeeded", "scrolling into view", a, base, err)
	return err
}

// DispatchEvent dispatches an event for the element matching the
// locator's selector with strict mode on.
func (l *Locator) DispatchEvent(typ string, eventInit map[string]any, opts *ActionOptions) error {
	l.debugf("DispatchEvent", opts)

	a, base, err := dispatchEventAction(typ, eventInit, opts)
	_, err = l.actWith("locator.dispatchEvent", "dispatching event on", a, base, err)
	return err
}

// AriaSnapshot returns the accessibility snapshot of the element matching
// the locator's selector with strict mode on.
func (l *Locator) AriaSnapshot(opts *ActionOptions) (string, error) {
	l.debugf("AriaSnapshot", opts)

	a := dom.AriaSnapshot{}
	res, err := l.actWith("locator.ariaSnapshot", "getting aria snapshot of", a, opts, opts.validate("aria snapshot"))
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// TextContent returns the element's text content that matches
// the locator's selector with strict mode on. The second return
// value is true if the returned text content is not null,
// and false otherwise.
func (l *Locator) TextContent(opts *ActionOptions) (string, bool, error) {
	l.debugf("TextContent", opts)

	a := dom.TextContent{}
	res, err := l.actWith("locator.textContent", "getting text content of", a, opts, opts.validate("text content"))
	if err != nil {
		return "", false, err
	}
	return nullString(a, res)
}

// InnerText returns the element's inner text that matches
// the locator's selector with strict mode on.
func (l *Locator) InnerText(opts *ActionOptions) (string, error) {
	l.debugf("InnerText", opts)

	a := dom.InnerText{}
	res, err := l.actWith("locator.innerText", "getting inner text of", a, opts, opts.validate("inner text"))
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// InnerHTML returns the element's inner HTML that matches
// the locator's selector with strict mode on.
func (l *Locator) InnerHTML(opts *ActionOptions) (string, error) {
	l.debugf("InnerHTML", opts)

	a := dom.InnerHTML{}
	res, err := l.actWith("locator.innerHTML", "getting inner HTML of", a, opts, opts.validate("inner html"))
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// InputValue returns the element's input value that matches
// the locator's selector with strict mode on.
func (l *Locator) InputValue(opts *ActionOptions) (string, error) {
	l.debugf("InputValue", opts)

	a := dom.InputValue{}
	res, err := l.actWith("locator.inputValue", "getting input value of", a, opts, opts.validate("input value"))
	if err != nil {
		return "", err
	}
	return resultAs[string](a, res)
}

// GetAttribute of the element using locator's selector with strict mode on.
// The second return value is true if the attribute exists, and false otherwise.
func (l *Locator) GetAttribute(name string, opts *ActionOptions) (string, bool, error) {
	l.log.Debugf(
		"Locator:GetAttribute", "fid:%s furl:%q sel:%q name:%q opts:%+v",
		l.frame.ID(), l.frame.URL(), l.selector, name, opts,
	)

	a := dom.GetAttribute{Attr: name}
	res, err := l.actWith("locator.getAttribute", "getting attribute of", a, opts, opts.validate("get attribute"))
	if err != nil {
		return "", false, err
	}
	return nullString(a, res)
}

// BoundingBox will return the bounding box of the element, or nil when it
// is not rendered.
func (l *Locator) BoundingBox(opts *ActionOptions) (*dom.Rect, error) {
	l.debugf("BoundingBox", opts)

	a := dom.BoundingBox{}
	res, err := l.actWith("locator.boundingBox", "getting bounding box of", a, opts, opts.validate("bounding box"))
	if err != nil {
		return nil, err
	}
	return resultAs[*dom.Rect](a, res)
}

// SelectText selects the text of the element using locator's selector with
// strict mode on.
func (l *Locator) SelectText(opts *ActionOptions) error {
	l.debugf("SelectText", opts)

	_, err := l.actWith("locator.selectText", "selecting text of", dom.SelectText{}, opts, opts.validate("select text"))
	return err
}

// IsVisible returns true if the element matches the locator's
// selector and is visible. Otherwise, returns false. It does not wait.
func (l *Locator) IsVisible() (bool, error) {
	l.debugf("IsVisible", nil)

	visible, err := l.frame.peekState(l.ctx, l.selector, dom.StateVisible, false)
	if err != nil {
		return false, newActionError("checking is visible", l.selector, err)
	}
	return visible, nil
}

// IsHidden returns true if the element matches the locator's
// selector and is hidden, or nothing matches. It does not wait.
func (l *Locator) IsHidden() (bool, error) {
	l.debugf("IsHidden", nil)

	hidden, err := l.frame.peekState(l.ctx, l.selector, dom.StateHidden, true)
	if err != nil {
		return false, newActionError("checking is hidden", l.selector, err)
	}
	return hidden, nil
}

func (l *Locator) is(method, op string, s dom.ElementState, opts *ActionOptions) (bool, error) {
	l.debugf(method, opts)

	if err := opts.validate(op); err != nil {
		return false, newActionError(op, l.selector, err)
	}
	ok, err := l.frame.checkState(l.ctx, l.selector, s, opts)
	if err != nil {
		return false, newActionError(op, l.selector, err)
	}
	return ok, nil
}

// IsEnabled returns true if the element matches the locator's
// selector and is enabled. Otherwise, returns false.
func (l *Locator) IsEnabled(opts *ActionOptions) (bool, error) {
	return l.is("IsEnabled", "checking is enabled", dom.StateEnabled, opts)
}

// IsDisabled returns true if the element matches the locator's
// selector and is disabled. Otherwise, returns false.
func (l *Locator) IsDisabled(opts *ActionOptions) (bool, error) {
	return l.is("IsDisabled", "checking is disabled", dom.StateDisabled, opts)
}

// IsChecked returns true if the element matches the locator's
// selector and is checked. Otherwise, returns false.
func (l *Locator) IsChecked(opts *ActionOptions) (bool, error) {
	return l.is("IsChecked", "checking is checked", dom.StateChecked, opts)
}

// IsEditable returns true if the element matches the locator's
// selector and is editable. Otherwise, returns false.
func (l *Locator) IsEditable(opts *ActionOptions) (bool, error) {
	return l.is("IsEditable", "checking is editable", dom.StateEditable, opts)
}
