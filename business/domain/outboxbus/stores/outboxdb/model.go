package outboxdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
)

type event struct {
	ID          uuid.UUID      `db:"event_id"`
	TenantID    uuid.UUID      `db:"tenant_id"`
	EventCode   string         `db:"event_code"`
	Payload     []byte         `db:"payload"`
	DedupKey    sql.NullString `db:"dedup_key"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	LastError   sql.NullString `db:"last_error"`
	ReadyAt     time.Time      `db:"ready_at"`
	DeliveredAt sql.NullTime   `db:"delivered_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func toDBEvent(bus outboxbus.Event) event {
	db := event{
		ID:        bus.ID,
		TenantID:  bus.TenantID,
		EventCode: bus.Code,
		Payload:   bus.Payload,
		DedupKey:  sql.NullString{String: bus.DedupKey, Valid: bus.DedupKey != ""},
		Status:    bus.Status.String(),
		Attempts:  bus.Attempts,
		LastError: sql.NullString{String: bus.LastError, Valid: bus.LastError != ""},
		ReadyAt:   bus.ReadyAt.UTC(),
		CreatedAt: bus.CreatedAt.UTC(),
	}

	if bus.DeliveredAt != nil {
		db.DeliveredAt = sql.NullTime{Time: bus.DeliveredAt.UTC(), Valid: true}
	}

	return db
}

func toBusEvent(db event) (outboxbus.Event, error) {
	status, err := eventstatus.Parse(db.Status)
	if err != nil {
		return outboxbus.Event{}, fmt.Errorf("parse status: %w", err)
	}

	bus := outboxbus.Event{
		ID:        db.ID,
		TenantID:  db.TenantID,
		Code:      db.EventCode,
		Payload:   db.Payload,
		DedupKey:  db.DedupKey.String,
		Status:    status,
		Attempts:  db.Attempts,
		LastError: db.LastError.String,
		ReadyAt:   db.ReadyAt,
		CreatedAt: db.CreatedAt,
	}

	if db.DeliveredAt.Valid {
		t := db.DeliveredAt.Time
		bus.DeliveredAt = &t
	}

	return bus, nil
}

func toBusEvents(dbs []event) ([]outboxbus.Event, error) {
	bus := make([]outboxbus.Event, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusEvent(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// fence identifies a claimed event at a specific attempt. A dispatcher whose
// lease expired and was reclaimed no longer matches.
type fence struct {
	ID        uuid.UUID      `db:"event_id"`
	Attempts  int            `db:"attempts"`
	At        time.Time      `db:"at"`
	LastError sql.NullString `db:"last_error"`
}
