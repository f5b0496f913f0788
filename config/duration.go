package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// NullDuration is a nullable time.Duration, in the same vein as the nullable
// types provided by package gopkg.in/guregu/null.v3.
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// NewNullDuration is a simple helper constructor function.
func NewNullDuration(d time.Duration, valid bool) NullDuration {
	return NullDuration{Duration: d, Valid: valid}
}

// NullDurationFrom returns a new valid NullDuration from a time.Duration.
func NullDurationFrom(d time.Duration) NullDuration {
	return NullDuration{Duration: d, Valid: true}
}

// UnmarshalText converts text data to a valid NullDuration. Unitless
// numbers are milliseconds.
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = NullDuration{}
		return nil
	}
	v, err := parseDuration(string(data))
	if err != nil {
		return err
	}
	*d = NullDurationFrom(v)
	return nil
}

// UnmarshalJSON converts JSON data to a valid NullDuration.
func (d *NullDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`null`)) {
		d.Valid = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*d = NullDurationFrom(time.Duration(ms * float64(time.Millisecond)))
	return nil
}

// MarshalJSON returns the JSON representation of d.
func (d NullDuration) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte(`null`), nil
	}
	return json.Marshal(d.Duration.String())
}

// ValueOrZero returns the underlying duration if valid or zero otherwise.
func (d NullDuration) ValueOrZero() time.Duration {
	if !d.Valid {
		return 0
	}
	return d.Duration
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	if ms, perr := strconv.ParseFloat(s, 64); perr == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("invalid duration %q: %w", s, err)
}
