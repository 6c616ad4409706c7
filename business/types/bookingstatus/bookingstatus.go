// Package bookingstatus represents the lifecycle status of a booking.
package bookingstatus

import "fmt"

// The set of booking statuses.
var (
	Pending   = newStatus("pending")
	Confirmed = newStatus("confirmed")
	CheckedIn = newStatus("checked_in")
	Completed = newStatus("completed")
	Cancelled = newStatus("cancelled")
	NoShow    = newStatus("no_show")
)

var statuses = make(map[string]Status)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[Status][]Status{
	Pending:   {Confirmed, Cancelled},
	Confirmed: {CheckedIn, Completed, Cancelled, NoShow},
	CheckedIn: {Completed, NoShow},
}

// Status represents a booking lifecycle status.
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

// IsConflicting reports whether a booking in this status occupies its
// resource for its time range.
func (s Status) IsConflicting() bool {
	return s == Pending || s == Confirmed || s == CheckedIn
}

// IsTerminal reports whether the booking lifecycle has ended. Terminal
// bookings never block other bookings.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Cancelled || s == NoShow
}

// CanTransition reports whether moving from s to next is allowed by
// ChangeStatus. Leaving a terminal status is only possible by reopening.
func (s Status) CanTransition(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}

	return false
}

// Conflicting returns the statuses that occupy a resource.
func Conflicting() []Status {
	return []Status{Pending, Confirmed, CheckedIn}
}

// Parse parses the string value and returns a status if one exists.
func Parse(value string) (Status, error) {
	status, exists := statuses[value]
	if !exists {
		return Status{}, fmt.Errorf("invalid booking status %q", value)
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
