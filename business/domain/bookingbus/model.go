package bookingbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
)

// Note is an append-only remark attached to a booking.
type Note struct {
	Text      string     `json:"text"`
	AuthorID  *uuid.UUID `json:"author_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Booking reserves a resource for a half-open time range.
type Booking struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ResourceID    uuid.UUID
	Range         timerange.Range
	Status        bookingstatus.Status
	CustomerName  string
	CustomerEmail string
	CustomerPhone phone.Null
	Notes         []Note
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAnonymized reports whether the personal fields have been erased.
func (b Booking) IsAnonymized() bool {
	return b.CustomerName == "" && b.CustomerEmail == "" && !b.CustomerPhone.Valid()
}

// NewBooking contains information needed to propose a booking.
type NewBooking struct {
	TenantID      uuid.UUID
	ResourceID    uuid.UUID
	Range         timerange.Range
	CustomerName  string
	CustomerEmail string
	CustomerPhone phone.Null
}

// StatusChange is the payload of the booking.status_changed event.
type StatusChange struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
}

// Created is the payload of the booking.created event.
type Created struct {
	BookingID  uuid.UUID       `json:"booking_id"`
	ResourceID uuid.UUID       `json:"resource_id"`
	Range      timerange.Range `json:"range"`
	Status     string          `json:"status"`
}
