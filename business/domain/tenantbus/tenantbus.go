// Package tenantbus provides the tenant registry and its memberships. These
// entities span tenants, so visibility follows membership rather than a
// tenant column.
package tenantbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// Set of error variables for CRUD operations.
var (
	ErrNotFound       = errors.New("tenant not found")
	ErrUniqueSlug     = errors.New("slug is not unique")
	ErrMemberNotFound = errors.New("membership not found")
	ErrMemberExists   = errors.New("user is already a member")
	ErrNotMember      = errors.New("user is not a member of tenant")
	ErrTenantRequired = errors.New("user belongs to several tenants, tenant must be chosen")
	ErrForeignUser    = errors.New("user belongs to tenants the caller does not share")
)

// Storer defines the behavior required by the tenantbus to interact with the
// database. Reads and updates are confined by membership of the caller.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Create(ctx context.Context, ac tenancy.AccessContext, t Tenant) error
	Update(ctx context.Context, ac tenancy.AccessContext, t Tenant) error
	QueryByID(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID) (Tenant, error)
	Query(ctx context.Context, ac tenancy.AccessContext) ([]Tenant, error)
	QueryIDBySlug(ctx context.Context, slug string) (uuid.UUID, error)
	AddMember(ctx context.Context, ac tenancy.AccessContext, m Membership) error
	RemoveMember(ctx context.Context, ac tenancy.AccessContext, m Membership) error
	QueryMember(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (Membership, error)
	QueryTenantIDsByUserID(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Core manages the set of APIs for tenant access.
type Core struct {
	storer Storer
	log    *logger.Logger
	now    func() time.Time
}

// NewCore constructs a core for tenant api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		storer: storer,
		log:    log,
		now:    time.Now,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, fmt.Errorf("newWithTx: %w", err)
	}

	return &Core{
		storer: storer,
		log:    c.log,
		now:    c.now,
	}, nil
}

// Create adds a new tenant to the system. A user tier caller becomes its
// first member.
func (c *Core) Create(ctx context.Context, ac tenancy.AccessContext, nt NewTenant) (Tenant, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.create")
	defer span.End()

	now := c.now().UTC()

	t := Tenant{
		ID:        uuid.New(),
		Name:      nt.Name,
		Slug:      nt.Slug,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, ac, t); err != nil {
		return Tenant{}, fmt.Errorf("create: %w", err)
	}

	if userID, ok := ac.UserID(); ok && !ac.IsService() {
		m := Membership{TenantID: t.ID, UserID: userID, CreatedAt: now}
		if err := c.storer.AddMember(ctx, ac, m); err != nil {
			return Tenant{}, fmt.Errorf("addmember: %w", err)
		}
	}

	return t, nil
}

// Update modifies data about a tenant. Only the tenant the caller is acting
// in can be updated.
func (c *Core) Update(ctx context.Context, ac tenancy.AccessContext, t Tenant, ut UpdateTenant) (Tenant, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.update")
	defer span.End()

	if err := tenancy.CheckWrite(ac, t.ID); err != nil {
		return Tenant{}, fmt.Errorf("update: tenantID[%s]: %w", t.ID, err)
	}

	if ut.Name != nil {
		t.Name = *ut.Name
	}

	if ut.Enabled != nil {
		t.Enabled = *ut.Enabled
	}

	t.UpdatedAt = c.now().UTC()

	if err := c.storer.Update(ctx, ac, t); err != nil {
		return Tenant{}, fmt.Errorf("update: %w", err)
	}

	return t, nil
}

// QueryByID finds the tenant by the specified ID. Tenants the caller is not
// a member of are reported as not found.
func (c *Core) QueryByID(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID) (Tenant, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.queryByID")
	defer span.End()

	tenant, err := c.storer.QueryByID(ctx, ac, tenantID)
	if err != nil {
		return Tenant{}, fmt.Errorf("query: tenantID[%s]: %w", tenantID, err)
	}

	return tenant, nil
}

// Query returns the tenants the caller is a member of.
func (c *Core) Query(ctx context.Context, ac tenancy.AccessContext) ([]Tenant, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.query")
	defer span.End()

	tenants, err := c.storer.Query(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return tenants, nil
}

// QueryIDBySlug returns the tenant ID for the specified slug string.
func (c *Core) QueryIDBySlug(ctx context.Context, slug string) (uuid.UUID, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.queryIDBySlug")
	defer span.End()

	id, err := c.storer.QueryIDBySlug(ctx, slug)
	if err != nil {
		return uuid.Nil, fmt.Errorf("query by slug[%s]: %w", slug, err)
	}

	return id, nil
}

// AddMember makes the user a member of the tenant. The caller must be acting
// in that tenant, and the user must either belong to no tenant yet or share
// one with the caller.
func (c *Core) AddMember(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID, userID uuid.UUID) (Membership, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.addmember")
	defer span.End()

	if err := tenancy.CheckWrite(ac, tenantID); err != nil {
		return Membership{}, fmt.Errorf("addmember: tenantID[%s]: %w", tenantID, err)
	}

	if !ac.IsService() {
		if err := c.checkCandidate(ctx, ac, userID); err != nil {
			return Membership{}, fmt.Errorf("addmember: userID[%s]: %w", userID, err)
		}
	}

	m := Membership{
		TenantID:  tenantID,
		UserID:    userID,
		CreatedAt: c.now().UTC(),
	}

	if err := c.storer.AddMember(ctx, ac, m); err != nil {
		return Membership{}, fmt.Errorf("addmember: %w", err)
	}

	return m, nil
}

func (c *Core) checkCandidate(ctx context.Context, ac tenancy.AccessContext, userID uuid.UUID) error {
	theirs, err := c.storer.QueryTenantIDsByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("querytenantidsbyuserid: %w", err)
	}

	if len(theirs) == 0 {
		return nil
	}

	callerID, ok := ac.UserID()
	if !ok {
		return ErrForeignUser
	}

	mine, err := c.storer.QueryTenantIDsByUserID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("querytenantidsbyuserid: %w", err)
	}

	for _, id := range theirs {
		if slices.Contains(mine, id) {
			return nil
		}
	}

	return ErrForeignUser
}

// RemoveMember deletes the membership of the user in the tenant.
func (c *Core) RemoveMember(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID, userID uuid.UUID) error {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.removemember")
	defer span.End()

	if err := tenancy.CheckWrite(ac, tenantID); err != nil {
		return fmt.Errorf("removemember: tenantID[%s]: %w", tenantID, err)
	}

	m, err := c.storer.QueryMember(ctx, tenantID, userID)
	if err != nil {
		return fmt.Errorf("querymember: %w", err)
	}

	if err := c.storer.RemoveMember(ctx, ac, m); err != nil {
		return fmt.Errorf("removemember: %w", err)
	}

	return nil
}

// CheckAccess returns nil when the user is a member of the tenant and
// ErrNotMember otherwise.
func (c *Core) CheckAccess(ctx context.Context, userID uuid.UUID, tenantID uuid.UUID) error {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.checkAccess")
	defer span.End()

	if _, err := c.storer.QueryMember(ctx, tenantID, userID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("querymember: %w", err)
	}

	return nil
}

// ResolveSessionTenant picks the tenant a login session acts in. When
// requested is set the user must be a member of it. Otherwise the user's
// only tenant is used; a user with several tenants must choose one and a
// user with none gets a session without a tenant.
func (c *Core) ResolveSessionTenant(ctx context.Context, userID uuid.UUID, requested *uuid.UUID) (uuid.UUID, error) {
	ctx, span := otel.AddSpan(ctx, "business.tenantbus.resolvesessiontenant")
	defer span.End()

	if requested != nil {
		if err := c.CheckAccess(ctx, userID, *requested); err != nil {
			return uuid.Nil, err
		}
		return *requested, nil
	}

	ids, err := c.storer.QueryTenantIDsByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("querytenantidsbyuserid[%s]: %w", userID, err)
	}

	switch len(ids) {
	case 0:
		return uuid.Nil, nil
	case 1:
		return ids[0], nil
	default:
		return uuid.Nil, ErrTenantRequired
	}
}
