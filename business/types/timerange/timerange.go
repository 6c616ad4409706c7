// Package timerange represents a half-open time interval [start, end).
package timerange

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range does not start strictly before
// it ends.
var ErrInvalidRange = errors.New("start must be before end")

// Range is a half-open interval. The start instant is included and the end
// instant is not, so back to back ranges do not overlap.
type Range struct {
	start time.Time
	end   time.Time
}

// New constructs a range, rejecting empty and inverted intervals.
func New(start time.Time, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, fmt.Errorf("range[%s, %s): %w", start.Format(time.RFC3339), end.Format(time.RFC3339), ErrInvalidRange)
	}

	return Range{start: start.UTC(), end: end.UTC()}, nil
}

// MustNew constructs a range and panics when it is invalid.
func MustNew(start time.Time, end time.Time) Range {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}

	return r
}

// Start returns the first instant of the range.
func (r Range) Start() time.Time {
	return r.start
}

// End returns the first instant after the range.
func (r Range) End() time.Time {
	return r.end
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.end.Sub(r.start)
}

// IsZero reports whether the range was never set.
func (r Range) IsZero() bool {
	return r.start.IsZero() && r.end.IsZero()
}

// Overlaps reports whether the two ranges share at least one instant.
func (r Range) Overlaps(o Range) bool {
	return r.start.Before(o.end) && o.start.Before(r.end)
}

// Equal provides support for the go-cmp package and testing.
func (r Range) Equal(o Range) bool {
	return r.start.Equal(o.start) && r.end.Equal(o.end)
}

// String implements the stringer interface.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.start.Format(time.RFC3339), r.end.Format(time.RFC3339))
}

type rangeJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MarshalJSON renders the range as an object with start and end instants.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(rangeJSON{Start: r.start, End: r.end})
}

// UnmarshalJSON parses an object with start and end instants, applying the
// same rule as New.
func (r *Range) UnmarshalJSON(data []byte) error {
	var v rangeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	nr, err := New(v.Start, v.End)
	if err != nil {
		return err
	}

	*r = nr

	return nil
}
