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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DOMElementState is the condition waitForSelector waits for.
type DOMElementState int

const (
	DOMElementStateAttached DOMElementState = iota
	DOMElementStateDetached
	DOMElementStateVisible
	DOMElementStateHidden
)

func (s DOMElementState) String() string {
	return domElementStateToString[s]
}

var domElementStateToString = map[DOMElementState]string{
	DOMElementStateAttached: "attached",
	DOMElementStateDetached: "detached",
	DOMElementStateVisible:  "visible",
	DOMElementStateHidden:   "hidden",
}

var domElementStateToID = map[string]DOMElementState{
	"attached": DOMElementStateAttached,
	"detached": DOMElementStateDetached,
	"visible":  DOMElementStateVisible,
	"hidden":   DOMElementStateHidden,
}

// MarshalJSON marshals the enum as a quoted JSON string.
func (s DOMElementState) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(domElementStateToString[s])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value.
func (s *DOMElementState) UnmarshalJSON(b []byte) error {
	var j string
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(j))
}

// UnmarshalText unmarshals a text representation to the enum value.
func (s *DOMElementState) UnmarshalText(text []byte) error {
	val := string(text)
	state, ok := domElementStateToID[val]
	if !ok {
		return fmt.Errorf(
			"invalid element state: %q; must be one of: %s",
			val, strings.Join(enumNames(domElementStateToID), ", "))
	}
	*s = state
	return nil
}

// FrameState is the lifecycle state of a frame's document.
type FrameState int

const (
	FrameStateLoading FrameState = iota
	FrameStateActive
	FrameStateNavigating
	FrameStateDetached
)

func (s FrameState) String() string {
	return frameStateToString[s]
}

var frameStateToString = map[FrameState]string{
	FrameStateLoading:    "loading",
	FrameStateActive:     "active",
	FrameStateNavigating: "navigating",
	FrameStateDetached:   "detached",
}

// MarshalJSON marshals the enum as a quoted JSON string.
func (s FrameState) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameStateToString[s])
}

// MouseButton is the button a pointer action presses.
type MouseButton string

const (
	MouseButtonLeft   MouseButton = "left"
	MouseButtonRight  MouseButton = "right"
	MouseButtonMiddle MouseButton = "middle"
)

var validMouseButtons = map[string]int{
	string(MouseButtonLeft):   0,
	string(MouseButtonRight):  1,
	string(MouseButtonMiddle): 2,
}

var validModifiers = map[string]int{
	"Alt":     0,
	"Control": 1,
	"Meta":    2,
	"Shift":   3,
}

// enumNames returns the names of an enum lookup table in value order.
func enumNames[T ~int](m map[string]T) []string {
	valid := make([]string, 0, len(m))
	for k := range m {
		valid = append(valid, k)
	}
	sort.Slice(valid, func(i, j int) bool {
		return m[valid[j]] > m[valid[i]]
	})
	return valid
}
