package auditdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

type record struct {
	ID          uuid.UUID      `db:"audit_id"`
	TenantID    uuid.UUID      `db:"tenant_id"`
	EntityName  string         `db:"entity_name"`
	Operation   string         `db:"operation"`
	EntityID    string         `db:"entity_id"`
	BeforeState sql.NullString `db:"before_state"`
	AfterState  sql.NullString `db:"after_state"`
	ActorUserID uuid.NullUUID  `db:"actor_user_id"`
	CreatedAt   time.Time      `db:"created_at"`
}

func toDBRecord(bus auditbus.Record) record {
	db := record{
		ID:          bus.ID,
		TenantID:    bus.TenantID,
		EntityName:  bus.Entity,
		Operation:   bus.Op.String(),
		EntityID:    bus.EntityKey,
		BeforeState: nullJSON(bus.Before),
		AfterState:  nullJSON(bus.After),
		CreatedAt:   bus.CreatedAt.UTC(),
	}

	if bus.ActorID != nil {
		db.ActorUserID = uuid.NullUUID{UUID: *bus.ActorID, Valid: true}
	}

	return db
}

func toBusRecord(db record) (auditbus.Record, error) {
	op, err := auditop.Parse(db.Operation)
	if err != nil {
		return auditbus.Record{}, fmt.Errorf("parse operation: %w", err)
	}

	bus := auditbus.Record{
		ID:        db.ID,
		TenantID:  db.TenantID,
		Entity:    db.EntityName,
		EntityKey: db.EntityID,
		Op:        op,
		CreatedAt: db.CreatedAt.In(time.Local),
	}

	if db.BeforeState.Valid {
		bus.Before = json.RawMessage(db.BeforeState.String)
	}

	if db.AfterState.Valid {
		bus.After = json.RawMessage(db.AfterState.String)
	}

	if db.ActorUserID.Valid {
		id := db.ActorUserID.UUID
		bus.ActorID = &id
	}

	return bus, nil
}

func toBusRecords(dbs []record) ([]auditbus.Record, error) {
	bus := make([]auditbus.Record, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusRecord(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if raw == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: string(raw), Valid: true}
}
