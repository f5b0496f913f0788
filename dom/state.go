package dom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ElementState is a condition of an element a provider can check.
type ElementState int

// Element states.
const (
	StateConnected ElementState = iota
	StateVisible
	StateHidden
	StateEnabled
	StateDisabled
	StateEditable
	StateChecked
	StateStable
)

var elementStateToString = map[ElementState]string{
	StateConnected: "connected",
	StateVisible:   "visible",
	StateHidden:    "hidden",
	StateEnabled:   "enabled",
	StateDisabled:  "disabled",
	StateEditable:  "editable",
	StateChecked:   "checked",
	StateStable:    "stable",
}

var elementStateToID = map[string]ElementState{
	"connected": StateConnected,
	"visible":   StateVisible,
	"hidden":    StateHidden,
	"enabled":   StateEnabled,
	"disabled":  StateDisabled,
	"editable":  StateEditable,
	"checked":   StateChecked,
	"stable":    StateStable,
}

func (s ElementState) String() string {
	return elementStateToString[s]
}

// MarshalJSON marshals the enum as a quoted JSON string.
func (s ElementState) MarshalJSON() ([]byte, error) {
	buffer := bytes.NewBufferString(`"`)
	buffer.WriteString(elementStateToString[s])
	buffer.WriteString(`"`)
	return buffer.Bytes(), nil
}

// UnmarshalJSON unmarshals a quoted JSON string to the enum value.
func (s *ElementState) UnmarshalJSON(b []byte) error {
	var j string
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(j))
}

// UnmarshalText unmarshals a text representation to the enum value.
// It returns an error if given a wrong value.
func (s *ElementState) UnmarshalText(text []byte) error {
	var (
		ok  bool
		val = string(text)
	)

	if *s, ok = elementStateToID[val]; !ok {
		valid := make([]string, 0, len(elementStateToID))
		for k := range elementStateToID {
			valid = append(valid, k)
		}
		sort.Slice(valid, func(i, j int) bool {
			return elementStateToID[valid[j]] > elementStateToID[valid[i]]
		})
		return fmt.Errorf(
			"invalid element state: %q; must be one of: %s",
			val, strings.Join(valid, ", "))
	}

	return nil
}
