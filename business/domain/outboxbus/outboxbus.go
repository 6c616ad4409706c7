// Package outboxbus provides the transactional outbox: events are enqueued in
// the same transaction as the business change and delivered later by the
// Dispatcher.
package outboxbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// Set of error variables for outbox operations.
var (
	ErrNotFound     = errors.New("outbox event not found")
	ErrInvalidEvent = errors.New("invalid outbox event")
	ErrLeaseLost    = errors.New("outbox event lease lost")
)

// Storer interface declares the behavior this package needs to persist and
// retrieve data.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Insert(ctx context.Context, e Event) (bool, error)
	Claim(ctx context.Context, now time.Time, leaseUntil time.Time, limit int) ([]Event, error)
	MarkDelivered(ctx context.Context, e Event, at time.Time) error
	MarkRetry(ctx context.Context, e Event, readyAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, e Event, lastErr string) error
	Redrive(ctx context.Context, ac tenancy.AccessContext, eventID *uuid.UUID, now time.Time) (int, error)
	CountByStatus(ctx context.Context, ac tenancy.AccessContext, status eventstatus.Status) (int, error)
	QueryByID(ctx context.Context, ac tenancy.AccessContext, eventID uuid.UUID) (Event, error)
}

// Core manages the set of APIs for outbox access.
type Core struct {
	log    *logger.Logger
	storer Storer
	now    func() time.Time
}

// NewCore constructs an outbox core for api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		log:    log,
		storer: storer,
		now:    time.Now,
	}
}

// NewWithTx constructs a new Core value that will use the
// specified transaction in any store related calls.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Core{
		log:    c.log,
		storer: storer,
		now:    c.now,
	}, nil
}

// Enqueue stores a pending event. It must run on a Core bound to the
// business transaction, so the event exists if and only if the change
// commits. When DedupKey repeats within the tenant nothing is stored and
// enqueued is false; that is not an error.
func (c *Core) Enqueue(ctx context.Context, ac tenancy.AccessContext, ne NewEvent) (enqueued bool, err error) {
	ctx, span := otel.AddSpan(ctx, "business.outboxbus.enqueue")
	defer span.End()

	if ne.Code == "" {
		return false, fmt.Errorf("enqueue: %w: missing event code", ErrInvalidEvent)
	}

	if err := tenancy.CheckWrite(ac, ne.TenantID); err != nil {
		return false, fmt.Errorf("enqueue: %w", err)
	}

	payload, err := json.Marshal(ne.Payload)
	if err != nil {
		return false, fmt.Errorf("enqueue: marshal payload: %w", err)
	}

	now := c.now().UTC()

	e := Event{
		ID:        uuid.New(),
		TenantID:  ne.TenantID,
		Code:      ne.Code,
		Payload:   payload,
		DedupKey:  ne.DedupKey,
		Status:    eventstatus.Pending,
		ReadyAt:   now,
		CreatedAt: now,
	}

	inserted, err := c.storer.Insert(ctx, e)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}

	if !inserted {
		c.log.Debug(ctx, "outbox: duplicate dedup key ignored", "tenant_id", ne.TenantID, "event_code", ne.Code, "dedup_key", ne.DedupKey)
	}

	return inserted, nil
}

// Redrive moves failed events visible to the caller back to pending with a
// fresh attempt budget. A nil eventID redrives every failed event.
func (c *Core) Redrive(ctx context.Context, ac tenancy.AccessContext, eventID *uuid.UUID) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.outboxbus.redrive")
	defer span.End()

	n, err := c.storer.Redrive(ctx, ac, eventID, c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("redrive: %w", err)
	}

	return n, nil
}

// CountByStatus returns how many events visible to the caller are in status.
func (c *Core) CountByStatus(ctx context.Context, ac tenancy.AccessContext, status eventstatus.Status) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.outboxbus.countbystatus")
	defer span.End()

	return c.storer.CountByStatus(ctx, ac, status)
}

// QueryByID finds the event by the specified ID.
func (c *Core) QueryByID(ctx context.Context, ac tenancy.AccessContext, eventID uuid.UUID) (Event, error) {
	ctx, span := otel.AddSpan(ctx, "business.outboxbus.querybyid")
	defer span.End()

	e, err := c.storer.QueryByID(ctx, ac, eventID)
	if err != nil {
		return Event{}, fmt.Errorf("query: eventID[%s]: %w", eventID, err)
	}

	return e, nil
}
