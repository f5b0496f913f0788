package dom

import (
	"time"

	"gopkg.in/guregu/null.v3"
)

// Action is something a provider performs on one element. The set of
// actions is closed: providers switch over the concrete types below.
type Action interface {
	// Name is the public name of the action, used in errors and logs.
	Name() string
	// Requires lists the states the element must be in before the action
	// is performed, unless forced.
	Requires() []ElementState

	action()
}

// ActionName returns the public name of a, or "" for nil.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.Name()
}

var (
	pointerStates = []ElementState{StateVisible, StateStable, StateEnabled}
	hoverStates   = []ElementState{StateVisible, StateStable}
	editStates    = []ElementState{StateVisible, StateEnabled, StateEditable}
	visibleStates = []ElementState{StateVisible}
)

// Position is a point relative to the top left corner of an element.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an element bounding box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScrollPosition is a parameter for scrolling an element.
type ScrollPosition string

const (
	// ScrollPositionStart scrolls an element at the top of its parent.
	ScrollPositionStart ScrollPosition = "start"
	// ScrollPositionCenter scrolls an element at the center of its parent.
	ScrollPositionCenter ScrollPosition = "center"
	// ScrollPositionEnd scrolls an element at the end of its parent.
	ScrollPositionEnd ScrollPosition = "end"
	// ScrollPositionNearest scrolls an element at the nearest position of its parent.
	ScrollPositionNearest ScrollPosition = "nearest"
)

// Click clicks an element.
type Click struct {
	Button     string        `json:"button"`
	ClickCount int           `json:"clickCount"`
	Delay      time.Duration `json:"delay"`
	Modifiers  []string      `json:"modifiers"`
	Position   *Position     `json:"position"`
	Trial      bool          `json:"trial"`
}

// Dblclick double clicks an element.
type Dblclick struct {
	Button    string        `json:"button"`
	Delay     time.Duration `json:"delay"`
	Modifiers []string      `json:"modifiers"`
	Position  *Position     `json:"position"`
	Trial     bool          `json:"trial"`
}

// Hover moves the pointer over an element.
type Hover struct {
	Modifiers []string  `json:"modifiers"`
	Position  *Position `json:"position"`
	Trial     bool      `json:"trial"`
}

// Tap taps an element.
type Tap struct {
	Modifiers []string  `json:"modifiers"`
	Position  *Position `json:"position"`
	Trial     bool      `json:"trial"`
}

// Fill replaces the value of an input, textarea or contenteditable element.
type Fill struct {
	Value string `json:"value"`
}

// Press focuses an element and presses a key combination such as "Shift+A".
type Press struct {
	Key   string        `json:"key"`
	Delay time.Duration `json:"delay"`
}

// Type focuses an element and types text one key at a time.
type Type struct {
	Text  string        `json:"text"`
	Delay time.Duration `json:"delay"`
}

// SetChecked checks or unchecks a checkbox or radio button.
type SetChecked struct {
	Checked  bool      `json:"checked"`
	Position *Position `json:"position"`
	Trial    bool      `json:"trial"`
}

// SelectOptionValue identifies an option of a select element. Unset fields
// are ignored; an option matches if any set field matches.
type SelectOptionValue struct {
	Value null.String `json:"value"`
	Label null.String `json:"label"`
	Index null.Int    `json:"index"`
}

// SelectOption selects options of a select element. The result is the
// list of selected values.
type SelectOption struct {
	Values []SelectOptionValue `json:"values"`
}

// Focus focuses an element.
type Focus struct{}

// Blur removes focus from an element.
type Blur struct{}

// ScrollIntoView scrolls an element into view if it is not already.
type ScrollIntoView struct {
	Block  ScrollPosition `json:"block"`
	Inline ScrollPosition `json:"inline"`
}

// DispatchEvent dispatches a DOM event of Type on an element.
type DispatchEvent struct {
	Type string         `json:"type"`
	Init map[string]any `json:"eventInit"`
}

// AriaSnapshot returns the provider's accessibility snapshot of an element
// as a string.
type AriaSnapshot struct{}

// TextContent returns the textContent of an element as a null.String.
type TextContent struct{}

// InnerText returns the rendered text of an element.
type InnerText struct{}

// InnerHTML returns the markup of the children of an element.
type InnerHTML struct{}

// InputValue returns the value of an input, textarea or select element.
type InputValue struct{}

// GetAttribute returns an attribute value as a null.String.
type GetAttribute struct {
	Attr string `json:"name"`
}

// BoundingBox returns a *Rect, or nil for elements that are not rendered.
type BoundingBox struct{}

// SelectText selects the text of an element.
type SelectText struct{}

func (Click) Name() string          { return "click" }
func (Dblclick) Name() string       { return "dblclick" }
func (Hover) Name() string          { return "hover" }
func (Tap) Name() string            { return "tap" }
func (Fill) Name() string           { return "fill" }
func (Press) Name() string          { return "press" }
func (Type) Name() string           { return "type" }
func (SetChecked) Name() string     { return "setChecked" }
func (SelectOption) Name() string   { return "selectOption" }
func (Focus) Name() string          { return "focus" }
func (Blur) Name() string           { return "blur" }
func (ScrollIntoView) Name() string { return "scrollIntoViewIfNeeded" }
func (DispatchEvent) Name() string  { return "dispatchEvent" }
func (AriaSnapshot) Name() string   { return "ariaSnapshot" }
func (TextContent) Name() string    { return "textContent" }
func (InnerText) Name() string      { return "innerText" }
func (InnerHTML) Name() string      { return "innerHTML" }
func (InputValue) Name() string     { return "inputValue" }
func (GetAttribute) Name() string   { return "getAttribute" }
func (BoundingBox) Name() string    { return "boundingBox" }
func (SelectText) Name() string     { return "selectText" }

func (Click) Requires() []ElementState          { return pointerStates }
func (Dblclick) Requires() []ElementState       { return pointerStates }
func (Hover) Requires() []ElementState          { return hoverStates }
func (Tap) Requires() []ElementState            { return pointerStates }
func (Fill) Requires() []ElementState           { return editStates }
func (Press) Requires() []ElementState          { return nil }
func (Type) Requires() []ElementState           { return nil }
func (SetChecked) Requires() []ElementState     { return pointerStates }
func (SelectOption) Requires() []ElementState   { return []ElementState{StateVisible, StateEnabled} }
func (Focus) Requires() []ElementState          { return nil }
func (Blur) Requires() []ElementState           { return nil }
func (ScrollIntoView) Requires() []ElementState { return []ElementState{StateStable} }
func (DispatchEvent) Requires() []ElementState  { return nil }
func (AriaSnapshot) Requires() []ElementState   { return nil }
func (TextContent) Requires() []ElementState    { return nil }
func (InnerText) Requires() []ElementState      { return nil }
func (InnerHTML) Requires() []ElementState      { return nil }
func (InputValue) Requires() []ElementState     { return nil }
func (GetAttribute) Requires() []ElementState   { return nil }
func (BoundingBox) Requires() []ElementState    { return nil }
func (SelectText) Requires() []ElementState     { return visibleStates }

func (Click) action()          {}
func (Dblclick) action()       {}
func (Hover) action()          {}
func (Tap) action()            {}
func (Fill) action()           {}
func (Press) action()          {}
func (Type) action()           {}
func (SetChecked) action()     {}
func (SelectOption) action()   {}
func (Focus) action()          {}
func (Blur) action()           {}
func (ScrollIntoView) action() {}
func (DispatchEvent) action()  {}
func (AriaSnapshot) action()   {}
func (TextContent) action()    {}
func (InnerText) action()      {}
func (InnerHTML) action()      {}
func (InputValue) action()     {}
func (GetAttribute) action()   {}
func (BoundingBox) action()    {}
func (SelectText) action()     {}
