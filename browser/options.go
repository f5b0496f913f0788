package browser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/liuxd6825/xk6-locator/common"
	"github.com/liuxd6825/xk6-locator/dom"
)

// Option objects follow the JS conventions: durations are numbers of
// milliseconds and unknown keys are ignored.

func optionsObject(rt *goja.Runtime, opts goja.Value) *goja.Object {
	if !gojaValueExists(opts) {
		return nil
	}
	return opts.ToObject(rt)
}

func millis(v goja.Value) time.Duration {
	return time.Duration(v.ToInteger()) * time.Millisecond
}

// parseTimeout reads the timeout of a {timeout} object. Zero means the
// default timeout.
func parseTimeout(rt *goja.Runtime, opts goja.Value) time.Duration {
	obj := optionsObject(rt, opts)
	if obj == nil {
		return 0
	}
	if v := obj.Get("timeout"); gojaValueExists(v) {
		return millis(v)
	}
	return 0
}

func parseActionOptions(rt *goja.Runtime, opts goja.Value) *common.ActionOptions {
	o := &common.ActionOptions{}
	if obj := optionsObject(rt, opts); obj != nil {
		parseActionKeys(obj, o)
	}
	return o
}

func parseActionKeys(obj *goja.Object, o *common.ActionOptions) {
	for _, k := range obj.Keys() {
		switch k {
		case "timeout":
			o.Timeout = millis(obj.Get(k))
		case "force":
			o.Force = obj.Get(k).ToBoolean()
		case "noWaitAfter", "noRetry":
			o.NoRetry = obj.Get(k).ToBoolean()
		}
	}
}

func parsePosition(rt *goja.Runtime, v goja.Value) *dom.Position {
	obj := optionsObject(rt, v)
	if obj == nil {
		return nil
	}
	p := &dom.Position{}
	for _, k := range obj.Keys() {
		switch k {
		case "x":
			p.X = obj.Get(k).ToFloat()
		case "y":
			p.Y = obj.Get(k).ToFloat()
		}
	}
	return p
}

func parseModifiers(rt *goja.Runtime, v goja.Value) []string {
	var mods []string
	if !gojaValueExists(v) {
		return nil
	}
	if err := rt.ExportTo(v, &mods); err != nil {
		return nil
	}
	return mods
}

func parseClickOptions(rt *goja.Runtime, opts goja.Value) *common.ClickOptions {
	o := &common.ClickOptions{Button: common.MouseButtonLeft, ClickCount: 1}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o
	}
	parseActionKeys(obj, &o.ActionOptions)
	for _, k := range obj.Keys() {
		switch k {
		case "button":
			o.Button = common.MouseButton(obj.Get(k).String())
		case "clickCount":
			o.ClickCount = int(obj.Get(k).ToInteger())
		case "delay":
			o.Delay = millis(obj.Get(k))
		case "modifiers":
			o.Modifiers = parseModifiers(rt, obj.Get(k))
		case "position":
			o.Position = parsePosition(rt, obj.Get(k))
		case "trial":
			o.Trial = obj.Get(k).ToBoolean()
		}
	}
	return o
}

func parseDblclickOptions(rt *goja.Runtime, opts goja.Value) *common.DblclickOptions {
	o := &common.DblclickOptions{Button: common.MouseButtonLeft}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o
	}
	parseActionKeys(obj, &o.ActionOptions)
	for _, k := range obj.Keys() {
		switch k {
		case "button":
			o.Button = common.MouseButton(obj.Get(k).String())
		case "delay":
			o.Delay = millis(obj.Get(k))
		case "modifiers":
			o.Modifiers = parseModifiers(rt, obj.Get(k))
		case "position":
			o.Position = parsePosition(rt, obj.Get(k))
		case "trial":
			o.Trial = obj.Get(k).ToBoolean()
		}
	}
	return o
}

func parseHoverOptions(rt *goja.Runtime, opts goja.Value) *common.HoverOptions {
	o := &common.HoverOptions{}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o
	}
	parseActionKeys(obj, &o.ActionOptions)
	for _, k := range obj.Keys() {
		switch k {
		case "modifiers":
			o.Modifiers = parseModifiers(rt, obj.Get(k))
		case "position":
			o.Position = parsePosition(rt, obj.Get(k))
		case "trial":
			o.Trial = obj.Get(k).ToBoolean()
		}
	}
	return o
}

func parseKeyboardOptions(rt *goja.Runtime, opts goja.Value) *common.KeyboardOptions {
	o := &common.KeyboardOptions{}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o
	}
	parseActionKeys(obj, &o.ActionOptions)
	if v := obj.Get("delay"); gojaValueExists(v) {
		o.Delay = millis(v)
	}
	return o
}

func parseCheckOptions(rt *goja.Runtime, opts goja.Value) *common.CheckOptions {
	o := &common.CheckOptions{}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o
	}
	parseActionKeys(obj, &o.ActionOptions)
	for _, k := range obj.Keys() {
		switch k {
		case "position":
			o.Position = parsePosition(rt, obj.Get(k))
		case "trial":
			o.Trial = obj.Get(k).ToBoolean()
		}
	}
	return o
}

func parseElementState(v goja.Value) (common.DOMElementState, error) {
	var s common.DOMElementState
	if err := s.UnmarshalText([]byte(v.String())); err != nil {
		return s, err //nolint:wrapcheck
	}
	return s, nil
}

func parseWaitForSelectorOptions(rt *goja.Runtime, opts goja.Value) (*common.FrameWaitForSelectorOptions, error) {
	o := &common.FrameWaitForSelectorOptions{State: common.DOMElementStateVisible}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o, nil
	}
	for _, k := range obj.Keys() {
		switch k {
		case "state":
			s, err := parseElementState(obj.Get(k))
			if err != nil {
				return nil, err
			}
			o.State = s
		case "strict":
			o.Strict = obj.Get(k).ToBoolean()
		case "timeout":
			o.Timeout = millis(obj.Get(k))
		}
	}
	return o, nil
}

func parseWaitForOptions(rt *goja.Runtime, opts goja.Value) (*common.LocatorWaitForOptions, error) {
	o := &common.LocatorWaitForOptions{State: common.DOMElementStateVisible}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o, nil
	}
	for _, k := range obj.Keys() {
		switch k {
		case "state":
			s, err := parseElementState(obj.Get(k))
			if err != nil {
				return nil, err
			}
			o.State = s
		case "timeout":
			o.Timeout = millis(obj.Get(k))
		}
	}
	return o, nil
}

func parseLocatorOptions(rt *goja.Runtime, opts goja.Value) *common.LocatorOptions {
	obj := optionsObject(rt, opts)
	if obj == nil {
		return nil
	}
	o := &common.LocatorOptions{}
	for _, k := range obj.Keys() {
		switch k {
		case "hasText":
			o.HasText = obj.Get(k).String()
		case "hasNotText":
			o.HasNotText = obj.Get(k).String()
		}
	}
	return o
}

// parseFilterOptions reads a filter object. The has and hasNot entries
// must be mapped locators.
func parseFilterOptions(rt *goja.Runtime, opts goja.Value) (*common.LocatorFilterOptions, error) {
	o := &common.LocatorFilterOptions{}
	obj := optionsObject(rt, opts)
	if obj == nil {
		return o, nil
	}
	for _, k := range obj.Keys() {
		switch k {
		case "has", "hasNot":
			l, err := unwrapLocator(rt, obj.Get(k))
			if err != nil {
				return nil, fmt.Errorf("filter option %s: %w", k, err)
			}
			if k == "has" {
				o.Has = l
			} else {
				o.HasNot = l
			}
		case "hasText":
			o.HasText = obj.Get(k).String()
		case "hasNotText":
			o.HasNotText = obj.Get(k).String()
		case "visible":
			v := obj.Get(k).ToBoolean()
			o.Visible = &v
		}
	}
	return o, nil
}

func parseGetByBaseOptions(rt *goja.Runtime, opts goja.Value) *common.GetByBaseOptions {
	obj := optionsObject(rt, opts)
	if obj == nil {
		return nil
	}
	o := &common.GetByBaseOptions{}
	if v := obj.Get("exact"); gojaValueExists(v) {
		exact := v.ToBoolean()
		o.Exact = &exact
	}
	return o
}

func parseGetByRoleOptions(rt *goja.Runtime, opts goja.Value) *common.GetByRoleOptions {
	obj := optionsObject(rt, opts)
	if obj == nil {
		return nil
	}
	o := &common.GetByRoleOptions{}
	boolOpt := func(v goja.Value) *bool {
		b := v.ToBoolean()
		return &b
	}
	for _, k := range obj.Keys() {
		v := obj.Get(k)
		if !gojaValueExists(v) {
			continue
		}
		switch k {
		case "checked":
			o.Checked = boolOpt(v)
		case "disabled":
			o.Disabled = boolOpt(v)
		case "exact":
			o.Exact = boolOpt(v)
		case "expanded":
			o.Expanded = boolOpt(v)
		case "includeHidden":
			o.IncludeHidden = boolOpt(v)
		case "level":
			level := v.ToInteger()
			o.Level = &level
		case "name":
			name := v.String()
			o.Name = &name
		case "pressed":
			o.Pressed = boolOpt(v)
		case "selected":
			o.Selected = boolOpt(v)
		}
	}
	return o
}

// parseSelectOptionValues accepts a string, an option object
// ({value, label, index}) or an array of either.
func parseSelectOptionValues(values goja.Value) []dom.SelectOptionValue {
	if !gojaValueExists(values) {
		return nil
	}
	items := []goja.Value{values}
	if obj, ok := values.(*goja.Object); ok && obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		items = make([]goja.Value, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, obj.Get(strconv.Itoa(i)))
		}
	}

	out := make([]dom.SelectOptionValue, 0, len(items))
	for _, item := range items {
		obj, ok := item.(*goja.Object)
		if !ok {
			out = append(out, dom.SelectOptionValue{Value: nullString(item.String())})
			continue
		}
		var v dom.SelectOptionValue
		for _, k := range obj.Keys() {
			switch k {
			case "value":
				v.Value = nullString(obj.Get(k).String())
			case "label":
				v.Label = nullString(obj.Get(k).String())
			case "index":
				v.Index = nullInt(obj.Get(k).ToInteger())
			}
		}
		out = append(out, v)
	}
	return out
}
