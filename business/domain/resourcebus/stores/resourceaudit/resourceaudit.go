// Package resourceaudit wraps a resource store so every committed resource
// mutation leaves an audit record in the same transaction.
package resourceaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

// Entity is the entity name stored in audit records.
const Entity = "resources"

type resourceState struct {
	ID        uuid.UUID `json:"resource_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toState(r resourcebus.Resource) *resourceState {
	return &resourceState{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Kind:      r.Kind.String(),
		Capacity:  r.Capacity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Store decorates a resourcebus.Storer with audit recording.
type Store struct {
	storer resourcebus.Storer
	audit  *auditbus.Core
}

// NewStore constructs the audited store.
func NewStore(storer resourcebus.Storer, audit *auditbus.Core) *Store {
	return &Store{
		storer: storer,
		audit:  audit,
	}
}

// NewWithTx binds both the wrapped store and the recorder to tx.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (resourcebus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	audit, err := s.audit.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return NewStore(storer, audit), nil
}

// Create inserts the resource and records an INSERT.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	if err := s.storer.Create(ctx, ac, r); err != nil {
		return err
	}

	return s.record(ctx, ac, r, auditop.Insert, nil, toState(r))
}

// Update replaces the resource and records an UPDATE with both images.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	before, err := s.storer.QueryByID(ctx, ac, r.ID)
	if err != nil {
		return err
	}

	if err := s.storer.Update(ctx, ac, r); err != nil {
		return err
	}

	return s.record(ctx, ac, r, auditop.Update, toState(before), toState(r))
}

// Delete removes the resource and records a DELETE with the stored image.
func (s *Store) Delete(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	before, err := s.storer.QueryByID(ctx, ac, r.ID)
	if err != nil {
		return err
	}

	if err := s.storer.Delete(ctx, ac, r); err != nil {
		return err
	}

	return s.record(ctx, ac, before, auditop.Delete, toState(before), nil)
}

// Query implements resourcebus.Storer.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter, orderBy order.By, pg page.Page) ([]resourcebus.Resource, error) {
	return s.storer.Query(ctx, ac, filter, orderBy, pg)
}

// Count implements resourcebus.Storer.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, ac, filter)
}

// QueryByID implements resourcebus.Storer.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) (resourcebus.Resource, error) {
	return s.storer.QueryByID(ctx, ac, resourceID)
}

// LockForBooking implements resourcebus.Storer.
func (s *Store) LockForBooking(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID, wait time.Duration) error {
	return s.storer.LockForBooking(ctx, ac, resourceID, wait)
}

func (s *Store) record(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource, op auditop.Op, before any, after any) error {
	ch := auditbus.Change{
		TenantID: r.TenantID,
		Entity:   Entity,
		Key:      auditbus.IDKey("resource_id", r.ID),
		Op:       op,
		Before:   before,
		After:    after,
		ActorID:  ac.Actor(),
	}

	if err := s.audit.Record(ctx, ch); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	return nil
}
