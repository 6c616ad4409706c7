// Package outboxdb contains outbox related CRUD functionality.
package outboxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

const columns = `event_id, tenant_id, event_code, payload, dedup_key, status, attempts, last_error, ready_at, delivered_at, created_at`

// Store manages the set of APIs for outbox database access.
type Store struct {
	log *logger.Logger
	db  sqlx.ExtContext
}

// NewStore constructs the api for data access.
func NewStore(log *logger.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

// NewWithTx constructs a new Store value replacing the sqlx DB
// value with a sqlx DB value that is currently inside a transaction.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (outboxbus.Storer, error) {
	ec, err := sqldb.GetExtContext(tx)
	if err != nil {
		return nil, err
	}

	store := Store{
		log: s.log,
		db:  ec,
	}

	return &store, nil
}

// Insert adds the event unless its dedup key already exists for the tenant.
func (s *Store) Insert(ctx context.Context, e outboxbus.Event) (bool, error) {
	const q = `
	INSERT INTO outbox_events
		(event_id, tenant_id, event_code, payload, dedup_key, status, attempts, ready_at, created_at)
	VALUES
		(:event_id, :tenant_id, :event_code, :payload, :dedup_key, :status, :attempts, :ready_at, :created_at)
	ON CONFLICT (tenant_id, dedup_key) DO NOTHING`

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, toDBEvent(e))
	if err != nil {
		return false, fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	return n == 1, nil
}

// Claim atomically marks up to limit ready events as delivering and returns
// them. Rows locked by another claimer are skipped. Delivering rows whose
// lease ran out are ready again.
func (s *Store) Claim(ctx context.Context, now time.Time, leaseUntil time.Time, limit int) ([]outboxbus.Event, error) {
	data := map[string]any{
		"now":         now.UTC(),
		"lease_until": leaseUntil.UTC(),
		"limit":       limit,
	}

	const q = `
	UPDATE outbox_events SET
		status = 'delivering',
		attempts = attempts + 1,
		ready_at = :lease_until
	WHERE event_id IN (
		SELECT event_id FROM outbox_events
		WHERE status IN ('pending', 'delivering') AND ready_at <= :now
		ORDER BY ready_at
		LIMIT :limit
		FOR UPDATE SKIP LOCKED)
	RETURNING ` + columns

	var dbEvents []event
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbEvents); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusEvents(dbEvents)
}

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, e outboxbus.Event, at time.Time) error {
	const q = `
	UPDATE outbox_events SET
		status = 'delivered',
		delivered_at = :at,
		last_error = NULL
	WHERE
		event_id = :event_id AND status = 'delivering' AND attempts = :attempts`

	return s.fenced(ctx, q, fence{ID: e.ID, Attempts: e.Attempts, At: at.UTC()})
}

// MarkRetry puts the event back to pending until readyAt.
func (s *Store) MarkRetry(ctx context.Context, e outboxbus.Event, readyAt time.Time, lastErr string) error {
	const q = `
	UPDATE outbox_events SET
		status = 'pending',
		ready_at = :at,
		last_error = :last_error
	WHERE
		event_id = :event_id AND status = 'delivering' AND attempts = :attempts`

	return s.fenced(ctx, q, fence{ID: e.ID, Attempts: e.Attempts, At: readyAt.UTC(), LastError: nullString(lastErr)})
}

// MarkFailed parks the event; only a redrive brings it back.
func (s *Store) MarkFailed(ctx context.Context, e outboxbus.Event, lastErr string) error {
	const q = `
	UPDATE outbox_events SET
		status = 'failed',
		last_error = :last_error
	WHERE
		event_id = :event_id AND status = 'delivering' AND attempts = :attempts`

	return s.fenced(ctx, q, fence{ID: e.ID, Attempts: e.Attempts, LastError: nullString(lastErr)})
}

func (s *Store) fenced(ctx context.Context, q string, f fence) error {
	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, f)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("event[%s] attempt[%d]: %w", f.ID, f.Attempts, outboxbus.ErrLeaseLost)
	}

	return nil
}

// Redrive resets failed events to pending with zero attempts.
func (s *Store) Redrive(ctx context.Context, ac tenancy.AccessContext, eventID *uuid.UUID, now time.Time) (int, error) {
	data := map[string]any{
		"now": now.UTC(),
	}

	q := `
	UPDATE outbox_events SET
		status = 'pending',
		attempts = 0,
		ready_at = :now,
		last_error = NULL
	WHERE
		status = 'failed' AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	if eventID != nil {
		data["event_id"] = *eventID
		q += " AND event_id = :event_id"
	}

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return 0, fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	return int(n), nil
}

// CountByStatus returns the number of events in status.
func (s *Store) CountByStatus(ctx context.Context, ac tenancy.AccessContext, status eventstatus.Status) (int, error) {
	data := map[string]any{
		"status": status.String(),
	}

	q := `
	SELECT
		count(1)
	FROM
		outbox_events
	WHERE
		status = :status AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &count); err != nil {
		return 0, fmt.Errorf("namedquerystruct: %w", err)
	}

	return count.Count, nil
}

// QueryByID gets the specified event from the database.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, eventID uuid.UUID) (outboxbus.Event, error) {
	data := map[string]any{
		"event_id": eventID,
	}

	q := `
	SELECT
		` + columns + `
	FROM
		outbox_events
	WHERE
		event_id = :event_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	var dbEvent event
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbEvent); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return outboxbus.Event{}, fmt.Errorf("db: %w", outboxbus.ErrNotFound)
		}
		return outboxbus.Event{}, fmt.Errorf("db: %w", err)
	}

	return toBusEvent(dbEvent)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
