package browser

import (
	"context"
	"time"

	"github.com/dop251/goja"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom"
	"github.com/liuxd6825/xk6-locator/k6ext"
)

// mapping is a type of mapping between our API (common/) and the JS
// module. It acts like a bridge and allows adding wildcard methods
// and customization over our API.
type mapping map[string]any

// moduleVU carries what the mappings need from the script runner.
type moduleVU struct {
	rt  *goja.Runtime
	ctx context.Context
}

// object builds the JS object for the mapping. The native value, when
// given, can be recovered from the object with unwrapLocator.
func (m mapping) object(rt *goja.Runtime, native any) *goja.Object {
	obj := rt.NewObject()
	for k, v := range m {
		if err := obj.Set(k, rt.ToValue(v)); err != nil {
			k6ext.Throw(rt, "mapping %s: %w", k, err)
		}
	}
	if native != nil {
		if err := obj.SetSymbol(nativeSymbol, rt.ToValue(native)); err != nil {
			k6ext.Throw(rt, "mapping: %w", err)
		}
	}
	return obj
}

// throwIf raises err as a JS exception.
func throwIf(rt *goja.Runtime, err error) {
	if err != nil {
		k6ext.Throw(rt, "%w", err)
	}
}

// nullable returns JS null when ok is false.
func nullable(rt *goja.Runtime, s string, ok bool) goja.Value {
	if !ok {
		return goja.Null()
	}
	return rt.ToValue(s)
}

// orNull maps a missing object to JS null.
func orNull(o *goja.Object) goja.Value {
	if o == nil {
		return goja.Null()
	}
	return o
}

func mapRect(rt *goja.Runtime, r *dom.Rect) goja.Value {
	if r == nil {
		return goja.Null()
	}
	return rt.ToValue(map[string]float64{
		"x":      r.X,
		"y":      r.Y,
		"width":  r.Width,
		"height": r.Height,
	})
}

// locatorFactory is the locator building surface shared by frames,
// locators and frame locators.
type locatorFactory interface {
	Locator(sel string, opts *common.LocatorOptions) *common.Locator
	FrameLocator(sel string) *common.FrameLocator
	GetByAltText(alt string, opts *common.GetByBaseOptions) *common.Locator
	GetByLabel(label string, opts *common.GetByBaseOptions) *common.Locator
	GetByPlaceholder(placeholder string, opts *common.GetByBaseOptions) *common.Locator
	GetByRole(role string, opts *common.GetByRoleOptions) *common.Locator
	GetByTestID(testID string) *common.Locator
	GetByText(text string, opts *common.GetByBaseOptions) *common.Locator
	GetByTitle(title string, opts *common.GetByBaseOptions) *common.Locator
}

// addLocatorFactory adds locator, frameLocator and the getBy* builders.
// Text arguments may be strings or regular expressions.
func (m mapping) addLocatorFactory(vu moduleVU, lf locatorFactory) {
	rt := vu.rt
	getBy := func(fn func(string, *common.GetByBaseOptions) *common.Locator) func(goja.Value, goja.Value) *goja.Object {
		return func(text goja.Value, opts goja.Value) *goja.Object {
			return mapLocator(vu, fn(text.String(), parseGetByBaseOptions(rt, opts)))
		}
	}

	m["locator"] = func(sel string, opts goja.Value) *goja.Object {
		return mapLocator(vu, lf.Locator(sel, parseLocatorOptions(rt, opts)))
	}
	m["frameLocator"] = func(sel string) *goja.Object {
		return mapFrameLocator(vu, lf.FrameLocator(sel))
	}
	m["getByAltText"] = getBy(lf.GetByAltText)
	m["getByLabel"] = getBy(lf.GetByLabel)
	m["getByPlaceholder"] = getBy(lf.GetByPlaceholder)
	m["getByText"] = getBy(lf.GetByText)
	m["getByTitle"] = getBy(lf.GetByTitle)
	m["getByRole"] = func(role string, opts goja.Value) *goja.Object {
		return mapLocator(vu, lf.GetByRole(role, parseGetByRoleOptions(rt, opts)))
	}
	m["getByTestId"] = func(testID goja.Value) *goja.Object {
		return mapLocator(vu, lf.GetByTestID(testID.String()))
	}
}

// mapLocator to the JS module.
func mapLocator(vu moduleVU, l *common.Locator) *goja.Object { //nolint:funlen,gocognit,cyclop
	rt := vu.rt
	combine := func(fn func(*common.Locator) (*common.Locator, error)) func(goja.Value) *goja.Object {
		return func(other goja.Value) *goja.Object {
			o, err := unwrapLocator(rt, other)
			throwIf(rt, err)
			out, err := fn(o)
			throwIf(rt, err)
			return mapLocator(vu, out)
		}
	}

	maps := mapping{
		"all": func() *goja.Object {
			ls, err := l.All()
			throwIf(rt, err)
			out := make([]any, 0, len(ls))
			for _, x := range ls {
				out = append(out, mapLocator(vu, x))
			}
			return rt.NewArray(out...)
		},
		"and": combine(l.And),
		"or":  combine(l.Or),
		"ariaSnapshot": func(opts goja.Value) string {
			s, err := l.AriaSnapshot(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return s
		},
		"blur": func(opts goja.Value) {
			throwIf(rt, l.Blur(parseActionOptions(rt, opts)))
		},
		"boundingBox": func(opts goja.Value) goja.Value {
			r, err := l.BoundingBox(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return mapRect(rt, r)
		},
		"check": func(opts goja.Value) {
			throwIf(rt, l.Check(parseCheckOptions(rt, opts)))
		},
		"clear": func(opts goja.Value) {
			throwIf(rt, l.Clear(parseActionOptions(rt, opts)))
		},
		"click": func(opts goja.Value) {
			throwIf(rt, l.Click(parseClickOptions(rt, opts)))
		},
		"contentFrame": func() *goja.Object {
			return mapFrameLocator(vu, l.ContentFrame())
		},
		"count": func() int {
			n, err := l.Count()
			throwIf(rt, err)
			return n
		},
		"dblclick": func(opts goja.Value) {
			throwIf(rt, l.Dblclick(parseDblclickOptions(rt, opts)))
		},
		"describe": func(desc string) *goja.Object {
			return mapLocator(vu, l.Describe(desc))
		},
		"dispatchEvent": func(typ string, eventInit, opts goja.Value) {
			throwIf(rt, l.DispatchEvent(typ, exportMap(eventInit), parseActionOptions(rt, opts)))
		},
		"elementHandle": func(opts goja.Value) goja.Value {
			h, err := l.ElementHandle(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return orNull(mapElementHandle(vu, h))
		},
		"elementHandles": func() *goja.Object {
			hs, err := l.ElementHandles()
			throwIf(rt, err)
			return mapElementHandles(vu, hs)
		},
		"equals": func(other goja.Value) bool {
			o, err := unwrapLocator(rt, other)
			return err == nil && l.Equal(o)
		},
		"fill": func(value string, opts goja.Value) {
			throwIf(rt, l.Fill(value, parseActionOptions(rt, opts)))
		},
		"filter": func(opts goja.Value) *goja.Object {
			fopts, err := parseFilterOptions(rt, opts)
			throwIf(rt, err)
			out, err := l.Filter(fopts)
			throwIf(rt, err)
			return mapLocator(vu, out)
		},
		"first": func() *goja.Object { return mapLocator(vu, l.First()) },
		"focus": func(opts goja.Value) {
			throwIf(rt, l.Focus(parseActionOptions(rt, opts)))
		},
		"getAttribute": func(name string, opts goja.Value) goja.Value {
			v, ok, err := l.GetAttribute(name, parseActionOptions(rt, opts))
			throwIf(rt, err)
			return nullable(rt, v, ok)
		},
		"hover": func(opts goja.Value) {
			throwIf(rt, l.Hover(parseHoverOptions(rt, opts)))
		},
		"innerHTML": func(opts goja.Value) string {
			s, err := l.InnerHTML(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return s
		},
		"innerText": func(opts goja.Value) string {
			s, err := l.InnerText(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return s
		},
		"inputValue": func(opts goja.Value) string {
			s, err := l.InputValue(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return s
		},
		"isChecked": func(opts goja.Value) bool {
			ok, err := l.IsChecked(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return ok
		},
		"isDisabled": func(opts goja.Value) bool {
			ok, err := l.IsDisabled(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return ok
		},
		"isEditable": func(opts goja.Value) bool {
			ok, err := l.IsEditable(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return ok
		},
		"isEnabled": func(opts goja.Value) bool {
			ok, err := l.IsEnabled(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return ok
		},
		"isHidden": func() bool {
			ok, err := l.IsHidden()
			throwIf(rt, err)
			return ok
		},
		"isVisible": func() bool {
			ok, err := l.IsVisible()
			throwIf(rt, err)
			return ok
		},
		"last": func() *goja.Object { return mapLocator(vu, l.Last()) },
		"nth":  func(i int) *goja.Object { return mapLocator(vu, l.Nth(i)) },
		"press": func(key string, opts goja.Value) {
			throwIf(rt, l.Press(key, parseKeyboardOptions(rt, opts)))
		},
		"pressSequentially": func(text string, opts goja.Value) {
			throwIf(rt, l.Type(text, parseKeyboardOptions(rt, opts)))
		},
		"scrollIntoViewIfNeeded": func(opts goja.Value) {
			throwIf(rt, l.ScrollIntoViewIfNeeded(parseActionOptions(rt, opts)))
		},
		"selectOption": func(values, opts goja.Value) []string {
			selected, err := l.SelectOption(parseSelectOptionValues(values), parseActionOptions(rt, opts))
			throwIf(rt, err)
			return selected
		},
		"selectText": func(opts goja.Value) {
			throwIf(rt, l.SelectText(parseActionOptions(rt, opts)))
		},
		"selector": l.Selector,
		"setChecked": func(checked bool, opts goja.Value) {
			throwIf(rt, l.SetChecked(checked, parseCheckOptions(rt, opts)))
		},
		"tap": func(opts goja.Value) {
			throwIf(rt, l.Tap(parseHoverOptions(rt, opts)))
		},
		"textContent": func(opts goja.Value) goja.Value {
			s, ok, err := l.TextContent(parseActionOptions(rt, opts))
			throwIf(rt, err)
			return nullable(rt, s, ok)
		},
		"toString": l.String,
		"type": func(text string, opts goja.Value) {
			throwIf(rt, l.Type(text, parseKeyboardOptions(rt, opts)))
		},
		"uncheck": func(opts goja.Value) {
			throwIf(rt, l.Uncheck(parseCheckOptions(rt, opts)))
		},
		"waitFor": func(opts goja.Value) {
			wopts, err := parseWaitForOptions(rt, opts)
			throwIf(rt, err)
			throwIf(rt, l.WaitFor(wopts))
		},
	}
	maps.addLocatorFactory(vu, l)

	return maps.object(rt, l)
}

// mapFrameLocator to the JS module.
func mapFrameLocator(vu moduleVU, fl *common.FrameLocator) *goja.Object {
	maps := mapping{
		"first": func() *goja.Object { return mapFrameLocator(vu, fl.First()) },
		"last":  func() *goja.Object { return mapFrameLocator(vu, fl.Last()) },
		"nth":   func(i int) *goja.Object { return mapFrameLocator(vu, fl.Nth(i)) },
		"owner": func() *goja.Object { return mapLocator(vu, fl.Owner()) },
	}
	maps.addLocatorFactory(vu, fl)

	return maps.object(vu.rt, nil)
}

func mapElementHandles(vu moduleVU, hs []*common.ElementHandle) *goja.Object {
	out := make([]any, 0, len(hs))
	for _, h := range hs {
		out = append(out, mapElementHandle(vu, h))
	}
	return vu.rt.NewArray(out...)
}

// mapElementHandle to the JS module. A nil handle maps to null.
func mapElementHandle(vu moduleVU, h *common.ElementHandle) *goja.Object { //nolint:funlen
	if h == nil {
		return nil
	}
	rt := vu.rt
	maps := mapping{
		"$": func(sel string) goja.Value {
			c, err := h.Query(sel)
			throwIf(rt, err)
			return orNull(mapElementHandle(vu, c))
		},
		"$$": func(sel string) *goja.Object {
			cs, err := h.QueryAll(sel)
			throwIf(rt, err)
			return mapElementHandles(vu, cs)
		},
		"boundingBox": func() goja.Value {
			r, err := h.BoundingBox()
			throwIf(rt, err)
			return mapRect(rt, r)
		},
		"check": func(opts goja.Value) {
			throwIf(rt, h.Check(parseCheckOptions(rt, opts)))
		},
		"click": func(opts goja.Value) {
			throwIf(rt, h.Click(parseClickOptions(rt, opts)))
		},
		"dblclick": func(opts goja.Value) {
			throwIf(rt, h.Dblclick(parseDblclickOptions(rt, opts)))
		},
		"dispatchEvent": func(typ string, eventInit goja.Value) {
			throwIf(rt, h.DispatchEvent(typ, exportMap(eventInit)))
		},
		"dispose": func() {
			throwIf(rt, h.Dispose())
		},
		"fill": func(value string, opts goja.Value) {
			throwIf(rt, h.Fill(value, parseActionOptions(rt, opts)))
		},
		"focus": func() { throwIf(rt, h.Focus()) },
		"getAttribute": func(name string) goja.Value {
			v, ok, err := h.GetAttribute(name)
			throwIf(rt, err)
			return nullable(rt, v, ok)
		},
		"hover": func(opts goja.Value) {
			throwIf(rt, h.Hover(parseHoverOptions(rt, opts)))
		},
		"innerHTML": func() string {
			s, err := h.InnerHTML()
			throwIf(rt, err)
			return s
		},
		"innerText": func() string {
			s, err := h.InnerText()
			throwIf(rt, err)
			return s
		},
		"inputValue": func() string {
			s, err := h.InputValue()
			throwIf(rt, err)
			return s
		},
		"isChecked":  h.IsChecked,
		"isDisabled": h.IsDisabled,
		"isEditable": h.IsEditable,
		"isEnabled":  h.IsEnabled,
		"isHidden":   h.IsHidden,
		"isVisible":  h.IsVisible,
		"ownerFrame": func() goja.Value { return orNull(mapFrame(vu, h.Frame())) },
		"press": func(key string, opts goja.Value) {
			throwIf(rt, h.Press(key, parseKeyboardOptions(rt, opts)))
		},
		"selectOption": func(values, opts goja.Value) []string {
			selected, err := h.SelectOption(parseSelectOptionValues(values), parseActionOptions(rt, opts))
			throwIf(rt, err)
			return selected
		},
		"setChecked": func(checked bool, opts goja.Value) {
			throwIf(rt, h.SetChecked(checked, parseCheckOptions(rt, opts)))
		},
		"tap": func(opts goja.Value) {
			throwIf(rt, h.Tap(parseHoverOptions(rt, opts)))
		},
		"textContent": func() goja.Value {
			s, ok, err := h.TextContent()
			throwIf(rt, err)
			return nullable(rt, s, ok)
		},
		"type": func(text string, opts goja.Value) {
			throwIf(rt, h.Type(text, parseKeyboardOptions(rt, opts)))
		},
		"uncheck": func(opts goja.Value) {
			throwIf(rt, h.Uncheck(parseCheckOptions(rt, opts)))
		},
		"waitForElementState": func(state string, opts goja.Value) {
			var s dom.ElementState
			throwIf(rt, s.UnmarshalText([]byte(state)))
			wopts := &common.ElementHandleWaitForElementStateOptions{}
			if obj := optionsObject(rt, opts); obj != nil {
				if v := obj.Get("timeout"); gojaValueExists(v) {
					wopts.Timeout = millis(v)
				}
			}
			throwIf(rt, h.WaitForElementState(s, wopts))
		},
		"waitForSelector": func(sel string, opts goja.Value) goja.Value {
			wopts, err := parseWaitForSelectorOptions(rt, opts)
			throwIf(rt, err)
			c, err := h.WaitForSelector(sel, wopts)
			throwIf(rt, err)
			return orNull(mapElementHandle(vu, c))
		},
	}

	return maps.object(rt, nil)
}

func mapFrameEvent(vu moduleVU, ev *common.FrameEvent) goja.Value {
	if ev == nil {
		return goja.Null()
	}
	return mapping{
		"documentId":  ev.DocumentID,
		"frame":       orNull(mapFrame(vu, ev.Frame)),
		"newDocument": ev.NewDocument,
		"state":       ev.State.String(),
		"url":         ev.URL,
	}.object(vu.rt, nil)
}

// mapFrame to the JS module.
func mapFrame(vu moduleVU, f *common.Frame) *goja.Object {
	if f == nil {
		return nil
	}
	rt := vu.rt
	maps := mapping{
		"$": func(sel string) goja.Value {
			h, err := f.Query(sel)
			throwIf(rt, err)
			return orNull(mapElementHandle(vu, h))
		},
		"$$": func(sel string) *goja.Object {
			hs, err := f.QueryAll(sel)
			throwIf(rt, err)
			return mapElementHandles(vu, hs)
		},
		"childFrames": func() *goja.Object {
			cs := f.ChildFrames()
			out := make([]any, 0, len(cs))
			for _, c := range cs {
				out = append(out, mapFrame(vu, c))
			}
			return rt.NewArray(out...)
		},
		"count": func(sel string) int {
			n, err := f.Count(sel)
			throwIf(rt, err)
			return n
		},
		"documentId":  func() string { return string(f.DocumentID()) },
		"id":          f.ID,
		"isDetached":  f.IsDetached,
		"parentFrame": func() goja.Value { return orNull(mapFrame(vu, f.ParentFrame())) },
		"url":         f.URL,
		"waitForNavigation": func(opts goja.Value) goja.Value {
			ev, err := f.WaitForNavigation(vu.ctx, parseTimeout(rt, opts))
			throwIf(rt, err)
			return mapFrameEvent(vu, ev)
		},
		"waitForSelector": func(sel string, opts goja.Value) goja.Value {
			wopts, err := parseWaitForSelectorOptions(rt, opts)
			throwIf(rt, err)
			h, err := f.WaitForSelector(sel, wopts)
			throwIf(rt, err)
			return orNull(mapElementHandle(vu, h))
		},
	}
	maps.addLocatorFactory(vu, f)

	return maps.object(rt, nil)
}

// Navigator is implemented by pages that can load a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) (*common.FrameEvent, error)
}

// mapPage to the JS module. The page forwards the frame API to its main
// frame and adds the history methods.
func mapPage(vu moduleVU, p Page) *goja.Object {
	rt := vu.rt
	maps := mapping{
		"goBack":    func() bool { return p.GoBack(vu.ctx) },
		"goForward": func() bool { return p.GoForward(vu.ctx) },
		"mainFrame": func() goja.Value { return orNull(mapFrame(vu, p.MainFrame())) },
		"setDefaultNavigationTimeout": func(ms int64) {
			p.MainFrame().Manager().SetDefaultNavigationTimeout(time.Duration(ms) * time.Millisecond)
		},
		"setDefaultTimeout": func(ms int64) {
			p.MainFrame().Manager().SetDefaultTimeout(time.Duration(ms) * time.Millisecond)
		},
		"url": func() string { return p.MainFrame().URL() },
	}
	if nav, ok := p.(Navigator); ok {
		maps["goto"] = func(url string, opts goja.Value) goja.Value {
			ev, err := nav.Navigate(vu.ctx, url, parseTimeout(rt, opts))
			throwIf(rt, err)
			return mapFrameEvent(vu, ev)
		}
	}

	// The frame surface resolves the main frame on every call since it
	// changes across cross process navigations.
	for _, name := range []string{
		"$", "$$", "count", "frameLocator", "getByAltText", "getByLabel",
		"getByPlaceholder", "getByRole", "getByTestId", "getByText",
		"getByTitle", "locator", "waitForNavigation", "waitForSelector",
	} {
		maps[name] = func(call goja.FunctionCall) goja.Value {
			mf := mapFrame(vu, p.MainFrame())
			if mf == nil {
				k6ext.Throw(rt, "page.%s: page has no main frame", name)
			}
			fn, ok := goja.AssertFunction(mf.Get(name))
			if !ok {
				k6ext.Throw(rt, "page.%s is not a function", name)
			}
			v, err := fn(call.This, call.Arguments...)
			if ex, ok := err.(*goja.Exception); ok { //nolint:errorlint
				panic(ex)
			}
			throwIf(rt, err)
			return v
		}
	}

	return maps.object(rt, nil)
}
