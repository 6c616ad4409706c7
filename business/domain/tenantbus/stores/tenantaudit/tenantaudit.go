// Package tenantaudit wraps a tenant store so every committed tenant and
// membership mutation leaves an audit record in the same transaction.
package tenantaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

// Entity names as stored in audit records.
const (
	EntityTenant     = "tenant"
	EntityMembership = "tenant_membership"
)

type tenantState struct {
	ID        uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTenantState(t tenantbus.Tenant) *tenantState {
	return &tenantState{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Enabled:   t.Enabled,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type membershipState struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func membershipKey(m tenantbus.Membership) auditbus.Key {
	return auditbus.Key{
		{Column: "tenant_id", Value: m.TenantID.String()},
		{Column: "user_id", Value: m.UserID.String()},
	}
}

// Store decorates a tenantbus.Storer with audit recording.
type Store struct {
	storer tenantbus.Storer
	audit  *auditbus.Core
}

// NewStore constructs the audited store.
func NewStore(storer tenantbus.Storer, audit *auditbus.Core) *Store {
	return &Store{
		storer: storer,
		audit:  audit,
	}
}

// NewWithTx binds both the wrapped store and the recorder to tx.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (tenantbus.Storer, error) {
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

// Create inserts the tenant and records an INSERT.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, t tenantbus.Tenant) error {
	if err := s.storer.Create(ctx, ac, t); err != nil {
		return err
	}

	return s.record(ctx, ac, t.ID, EntityTenant, auditbus.IDKey("tenant_id", t.ID), auditop.Insert, nil, toTenantState(t))
}

// Update replaces the tenant and records an UPDATE with both images.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, t tenantbus.Tenant) error {
	before, err := s.storer.QueryByID(ctx, ac, t.ID)
	if err != nil {
		return err
	}

	if err := s.storer.Update(ctx, ac, t); err != nil {
		return err
	}

	return s.record(ctx, ac, t.ID, EntityTenant, auditbus.IDKey("tenant_id", t.ID), auditop.Update, toTenantState(before), toTenantState(t))
}

// QueryByID implements tenantbus.Storer.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID) (tenantbus.Tenant, error) {
	return s.storer.QueryByID(ctx, ac, tenantID)
}

// Query implements tenantbus.Storer.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext) ([]tenantbus.Tenant, error) {
	return s.storer.Query(ctx, ac)
}

// QueryIDBySlug implements tenantbus.Storer.
func (s *Store) QueryIDBySlug(ctx context.Context, slug string) (uuid.UUID, error) {
	return s.storer.QueryIDBySlug(ctx, slug)
}

// AddMember inserts the membership and records an INSERT keyed by the
// (tenant_id, user_id) pair.
func (s *Store) AddMember(ctx context.Context, ac tenancy.AccessContext, m tenantbus.Membership) error {
	if err := s.storer.AddMember(ctx, ac, m); err != nil {
		return err
	}

	after := membershipState{TenantID: m.TenantID, UserID: m.UserID, CreatedAt: m.CreatedAt}

	return s.record(ctx, ac, m.TenantID, EntityMembership, membershipKey(m), auditop.Insert, nil, &after)
}

// RemoveMember deletes the membership and records a DELETE.
func (s *Store) RemoveMember(ctx context.Context, ac tenancy.AccessContext, m tenantbus.Membership) error {
	if err := s.storer.RemoveMember(ctx, ac, m); err != nil {
		return err
	}

	before := membershipState{TenantID: m.TenantID, UserID: m.UserID, CreatedAt: m.CreatedAt}

	return s.record(ctx, ac, m.TenantID, EntityMembership, membershipKey(m), auditop.Delete, &before, nil)
}

// QueryMember implements tenantbus.Storer.
func (s *Store) QueryMember(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (tenantbus.Membership, error) {
	return s.storer.QueryMember(ctx, tenantID, userID)
}

// QueryTenantIDsByUserID implements tenantbus.Storer.
func (s *Store) QueryTenantIDsByUserID(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.storer.QueryTenantIDsByUserID(ctx, userID)
}

func (s *Store) record(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID, entity string, key auditbus.Key, op auditop.Op, before any, after any) error {
	ch := auditbus.Change{
		TenantID: tenantID,
		Entity:   entity,
		Key:      key,
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
