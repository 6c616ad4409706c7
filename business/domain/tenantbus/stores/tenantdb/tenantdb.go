// Package tenantdb contains tenant and membership related CRUD functionality.
package tenantdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for tenant database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (tenantbus.Storer, error) {
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

// Create inserts a new tenant into the database.
func (s *Store) Create(ctx context.Context, _ tenancy.AccessContext, t tenantbus.Tenant) error {
	const q = `
	INSERT INTO tenant
		(tenant_id, name, slug, enabled, created_at, updated_at)
	VALUES
		(:tenant_id, :name, :slug, :enabled, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBTenant(t)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) && (dupErr.Column == "slug" || dupErr.Column == "uq_tenant_slug") {
			return fmt.Errorf("namedexeccontext: %w", tenantbus.ErrUniqueSlug)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces a tenant row the caller is a member of.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, t tenantbus.Tenant) error {
	dbT := toDBTenant(t)

	data := map[string]any{
		"tenant_id":  dbT.ID,
		"name":       dbT.Name,
		"enabled":    dbT.Enabled,
		"updated_at": dbT.UpdatedAt,
	}

	q := `
	UPDATE
		tenant
	SET
		name = :name,
		enabled = :enabled,
		updated_at = :updated_at
	WHERE
		tenant_id = :tenant_id AND ` + tenancy.MemberPredicate(ac, "tenant.tenant_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("update: %w", tenantbus.ErrNotFound)
	}

	return nil
}

// QueryByID gets the specified tenant from the database.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, tenantID uuid.UUID) (tenantbus.Tenant, error) {
	data := map[string]any{
		"tenant_id": tenantID,
	}

	q := `
	SELECT
		tenant_id, name, slug, enabled, created_at, updated_at
	FROM
		tenant
	WHERE
		tenant_id = :tenant_id AND ` + tenancy.MemberPredicate(ac, "tenant.tenant_id", data)

	var dbT tenantDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbT); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return tenantbus.Tenant{}, fmt.Errorf("db: %w", tenantbus.ErrNotFound)
		}
		return tenantbus.Tenant{}, fmt.Errorf("db: %w", err)
	}

	return toBusTenant(dbT), nil
}

// Query returns every tenant the caller is a member of.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext) ([]tenantbus.Tenant, error) {
	data := map[string]any{}

	q := `
	SELECT
		tenant_id, name, slug, enabled, created_at, updated_at
	FROM
		tenant
	WHERE ` + tenancy.MemberPredicate(ac, "tenant.tenant_id", data) + `
	ORDER BY
		name`

	var dbTs []tenantDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbTs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusTenants(dbTs), nil
}

// QueryIDBySlug retrieves the tenant ID for the specified slug.
func (s *Store) QueryIDBySlug(ctx context.Context, slug string) (uuid.UUID, error) {
	data := struct {
		Slug string `db:"slug"`
	}{
		Slug: slug,
	}

	const q = `
	SELECT
		tenant_id
	FROM
		tenant
	WHERE
		slug = :slug`

	var result struct {
		ID uuid.UUID `db:"tenant_id"`
	}

	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &result); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return uuid.Nil, tenantbus.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("db: %w", err)
	}

	return result.ID, nil
}

// AddMember inserts a record into tenant_membership.
func (s *Store) AddMember(ctx context.Context, _ tenancy.AccessContext, m tenantbus.Membership) error {
	const q = `
	INSERT INTO tenant_membership
		(tenant_id, user_id, created_at)
	VALUES
		(:tenant_id, :user_id, :created_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBMembership(m)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", tenantbus.ErrMemberExists)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// RemoveMember deletes a record from tenant_membership.
func (s *Store) RemoveMember(ctx context.Context, _ tenancy.AccessContext, m tenantbus.Membership) error {
	const q = `
	DELETE FROM
		tenant_membership
	WHERE
		tenant_id = :tenant_id AND user_id = :user_id`

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, toDBMembership(m))
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("delete: %w", tenantbus.ErrMemberNotFound)
	}

	return nil
}

// QueryMember gets the membership of the user in the tenant.
func (s *Store) QueryMember(ctx context.Context, tenantID uuid.UUID, userID uuid.UUID) (tenantbus.Membership, error) {
	data := membershipDB{
		TenantID: tenantID,
		UserID:   userID,
	}

	const q = `
	SELECT
		tenant_id, user_id, created_at
	FROM
		tenant_membership
	WHERE
		tenant_id = :tenant_id AND user_id = :user_id`

	var dbM membershipDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbM); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return tenantbus.Membership{}, tenantbus.ErrMemberNotFound
		}
		return tenantbus.Membership{}, fmt.Errorf("db: %w", err)
	}

	return toBusMembership(dbM), nil
}

// QueryTenantIDsByUserID retrieves the tenants the user is a member of.
func (s *Store) QueryTenantIDsByUserID(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	data := struct {
		UserID uuid.UUID `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT
		tenant_id, user_id, created_at
	FROM
		tenant_membership
	WHERE
		user_id = :user_id
	ORDER BY
		created_at`

	var dbMs []membershipDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbMs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	ids := make([]uuid.UUID, len(dbMs))
	for i, m := range dbMs {
		ids[i] = m.TenantID
	}

	return ids, nil
}
