// Package auditbus records every committed mutation of a tenant-owned entity
// and provides the retention and query APIs over those records.
package auditbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// DefaultRetentionMonths is how long records are kept before Purge removes
// them.
const DefaultRetentionMonths = 12

// ErrInvalidChange is returned when a change violates the before/after
// image rules of its operation.
var ErrInvalidChange = errors.New("invalid audit change")

// Storer interface declares the behavior this package needs to persist and
// retrieve data.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Insert(ctx context.Context, rec Record) error
	Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Record, error)
	Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error)
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}

// Core manages the set of APIs for audit access.
type Core struct {
	log    *logger.Logger
	storer Storer
	now    func() time.Time
}

// NewCore constructs an audit core for api access.
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

// Record persists one audit entry for the change. It must run on a Core
// bound to the transaction that performs the mutation so both commit or
// roll back together.
func (c *Core) Record(ctx context.Context, ch Change) error {
	ctx, span := otel.AddSpan(ctx, "business.auditbus.record")
	defer span.End()

	if ch.Entity == "" || len(ch.Key) == 0 {
		return fmt.Errorf("record: entity[%s]: %w: missing identity", ch.Entity, ErrInvalidChange)
	}

	if ch.TenantID == uuid.Nil {
		return fmt.Errorf("record: entity[%s]: %w: missing tenant", ch.Entity, ErrInvalidChange)
	}

	before, err := snapshot(ch.Before)
	if err != nil {
		return fmt.Errorf("record: before: %w", err)
	}

	after, err := snapshot(ch.After)
	if err != nil {
		return fmt.Errorf("record: after: %w", err)
	}

	if (before != nil) != ch.Op.HasBefore() || (after != nil) != ch.Op.HasAfter() {
		return fmt.Errorf("record: entity[%s] op[%s]: %w: image mismatch", ch.Entity, ch.Op, ErrInvalidChange)
	}

	rec := Record{
		ID:        uuid.New(),
		TenantID:  ch.TenantID,
		Entity:    ch.Entity,
		EntityKey: ch.Key.String(),
		Op:        ch.Op,
		Before:    before,
		After:     after,
		ActorID:   ch.ActorID,
		CreatedAt: c.now().UTC(),
	}

	if err := c.storer.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// Query retrieves the audit records visible to the caller.
func (c *Core) Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Record, error) {
	ctx, span := otel.AddSpan(ctx, "business.auditbus.query")
	defer span.End()

	recs, err := c.storer.Query(ctx, ac, filter, orderBy, page)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return recs, nil
}

// Count returns the number of audit records visible to the caller.
func (c *Core) Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.auditbus.count")
	defer span.End()

	return c.storer.Count(ctx, ac, filter)
}

// Purge deletes every record older than the retention window measured back
// from now and returns how many were removed. Running it twice for the same
// instant removes nothing the second time.
func (c *Core) Purge(ctx context.Context, now time.Time, retentionMonths int) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.auditbus.purge")
	defer span.End()

	if retentionMonths <= 0 {
		retentionMonths = DefaultRetentionMonths
	}

	cutoff := Cutoff(now, retentionMonths)

	n, err := c.storer.Purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: cutoff[%s]: %w", cutoff.Format(time.RFC3339), err)
	}

	c.log.Info(ctx, "audit purge", "cutoff", cutoff, "deleted", n)

	return n, nil
}

// Cutoff returns the instant before which records are outside the
// retention window.
func Cutoff(now time.Time, retentionMonths int) time.Time {
	return now.UTC().AddDate(0, -retentionMonths, 0)
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return nil, nil
	}

	return data, nil
}
