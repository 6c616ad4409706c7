package bookingdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
)

type booking struct {
	ID            uuid.UUID      `db:"booking_id"`
	TenantID      uuid.UUID      `db:"tenant_id"`
	ResourceID    uuid.UUID      `db:"resource_id"`
	StartsAt      time.Time      `db:"starts_at"`
	EndsAt        time.Time      `db:"ends_at"`
	Status        string         `db:"status"`
	CustomerName  string         `db:"customer_name"`
	CustomerEmail string         `db:"customer_email"`
	CustomerPhone sql.NullString `db:"customer_phone"`
	Notes         string         `db:"notes"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toDBBooking(bus bookingbus.Booking) (booking, error) {
	notes := bus.Notes
	if notes == nil {
		notes = []bookingbus.Note{}
	}

	data, err := json.Marshal(notes)
	if err != nil {
		return booking{}, fmt.Errorf("marshal notes: %w", err)
	}

	return booking{
		ID:            bus.ID,
		TenantID:      bus.TenantID,
		ResourceID:    bus.ResourceID,
		StartsAt:      bus.Range.Start(),
		EndsAt:        bus.Range.End(),
		Status:        bus.Status.String(),
		CustomerName:  bus.CustomerName,
		CustomerEmail: bus.CustomerEmail,
		CustomerPhone: phone.ToSQLNullString(bus.CustomerPhone),
		Notes:         string(data),
		CreatedAt:     bus.CreatedAt.UTC(),
		UpdatedAt:     bus.UpdatedAt.UTC(),
	}, nil
}

func toBusBooking(db booking) (bookingbus.Booking, error) {
	rng, err := timerange.New(db.StartsAt, db.EndsAt)
	if err != nil {
		return bookingbus.Booking{}, fmt.Errorf("parse range: %w", err)
	}

	status, err := bookingstatus.Parse(db.Status)
	if err != nil {
		return bookingbus.Booking{}, fmt.Errorf("parse status: %w", err)
	}

	notes := []bookingbus.Note{}
	if db.Notes != "" {
		if err := json.Unmarshal([]byte(db.Notes), &notes); err != nil {
			return bookingbus.Booking{}, fmt.Errorf("parse notes: %w", err)
		}
	}

	return bookingbus.Booking{
		ID:            db.ID,
		TenantID:      db.TenantID,
		ResourceID:    db.ResourceID,
		Range:         rng,
		Status:        status,
		CustomerName:  db.CustomerName,
		CustomerEmail: db.CustomerEmail,
		CustomerPhone: phone.FromSQLNullString(db.CustomerPhone),
		Notes:         notes,
		CreatedAt:     db.CreatedAt.In(time.UTC),
		UpdatedAt:     db.UpdatedAt.In(time.UTC),
	}, nil
}

func toBusBookings(dbs []booking) ([]bookingbus.Booking, error) {
	bus := make([]bookingbus.Booking, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusBooking(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
