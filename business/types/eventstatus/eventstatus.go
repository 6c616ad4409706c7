// Package eventstatus represents the delivery status of an outbox event.
package eventstatus

import "fmt"

// The set of delivery statuses.
var (
	Pending    = newStatus("pending")
	Delivering = newStatus("delivering")
	Delivered  = newStatus("delivered")
	Failed     = newStatus("failed")
)

var statuses = make(map[string]Status)

// Status represents where an outbox event is in its delivery lifecycle.
type Status struct {
	value string
}

func newStatus(status string) Status {
	s := Status{status}
	statuses[status] = s
	return s
}

// String returns the name of the status.
func (s Status) String() string {
	return s.value
}

// Equal provides support for the go-cmp package and testing.
func (s Status) Equal(s2 Status) bool {
	return s.value == s2.value
}

// MarshalText provides support for logging and any marshal needs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.value), nil
}

// IsFinal reports whether the dispatcher will no longer pick the event up
// on its own.
func (s Status) IsFinal() bool {
	return s == Delivered || s == Failed
}

// Parse parses the string value and returns a status if one exists.
func Parse(value string) (Status, error) {
	status, exists := statuses[value]
	if !exists {
		return Status{}, fmt.Errorf("invalid event status %q", value)
	}

	return status, nil
}

// MustParse parses the string value and returns a status if one exists. If
// an error occurs the function panics.
func MustParse(value string) Status {
	status, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return status
}
