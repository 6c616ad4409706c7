// Package resourcedb contains resource related CRUD functionality.
package resourcedb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

const columns = `resource_id, tenant_id, name, kind, capacity, created_at, updated_at`

// Store manages the set of APIs for resource database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (resourcebus.Storer, error) {
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

// Create inserts a new resource into the database.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	if err := tenancy.CheckWrite(ac, r.TenantID); err != nil {
		return err
	}

	const q = `
	INSERT INTO resources
		(resource_id, tenant_id, name, kind, capacity, created_at, updated_at)
	VALUES
		(:resource_id, :tenant_id, :name, :kind, :capacity, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBResource(r)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces a resource of the caller's tenant. The tenant column is
// never rewritten.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	if err := tenancy.CheckWrite(ac, r.TenantID); err != nil {
		return err
	}

	dbR := toDBResource(r)

	data := map[string]any{
		"resource_id": dbR.ID,
		"name":        dbR.Name,
		"capacity":    dbR.Capacity,
		"updated_at":  dbR.UpdatedAt,
	}

	q := `
	UPDATE
		resources
	SET
		name = :name,
		capacity = :capacity,
		updated_at = :updated_at
	WHERE
		resource_id = :resource_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("update: %w", resourcebus.ErrNotFound)
	}

	return nil
}

// Delete removes a resource of the caller's tenant.
func (s *Store) Delete(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	data := map[string]any{
		"resource_id": r.ID,
	}

	q := `
	DELETE FROM
		resources
	WHERE
		resource_id = :resource_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, sqldb.ErrDBForeignKey) {
			return fmt.Errorf("namedexecrowsaffected: %w", resourcebus.ErrInUse)
		}
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("delete: %w", resourcebus.ErrNotFound)
	}

	return nil
}

// Query retrieves a list of resources of the caller's tenant.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter, orderBy order.By, pg page.Page) ([]resourcebus.Resource, error) {
	data := map[string]any{
		"offset":        pg.Offset(),
		"rows_per_page": pg.RowsPerPage(),
	}

	const q = `
	SELECT
		` + columns + `
	FROM
		resources`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	orderByClause, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}

	buf.WriteString(orderByClause)
	buf.WriteString(" OFFSET :offset ROWS FETCH NEXT :rows_per_page ROWS ONLY")

	var dbRs []resource
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbRs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusResources(dbRs)
}

// Count returns the number of resources of the caller's tenant.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter) (int, error) {
	data := map[string]any{}

	const q = `
	SELECT
		count(1)
	FROM
		resources`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, buf.String(), data, &count); err != nil {
		return 0, fmt.Errorf("namedquerystruct: %w", err)
	}

	return count.Count, nil
}

// QueryByID gets the specified resource from the database.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) (resourcebus.Resource, error) {
	data := map[string]any{
		"resource_id": resourceID,
	}

	q := `
	SELECT
		` + columns + `
	FROM
		resources
	WHERE
		resource_id = :resource_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	var dbR resource
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbR); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return resourcebus.Resource{}, fmt.Errorf("namedquerystruct: %w", resourcebus.ErrNotFound)
		}
		return resourcebus.Resource{}, fmt.Errorf("namedquerystruct: %w", err)
	}

	return toBusResource(dbR)
}

// LockForBooking bounds the lock wait of the current transaction and locks
// the resource row. A row outside the caller's tenant is not found.
func (s *Store) LockForBooking(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID, wait time.Duration) error {
	setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeoutMillis(wait))
	if err := sqldb.ExecContext(ctx, s.log, s.db, setTimeout); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	data := map[string]any{
		"resource_id": resourceID,
	}

	q := `
	SELECT
		resource_id
	FROM
		resources
	WHERE
		resource_id = :resource_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data) + `
	FOR UPDATE`

	var locked struct {
		ID uuid.UUID `db:"resource_id"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &locked); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return fmt.Errorf("namedquerystruct: %w", resourcebus.ErrNotFound)
		}
		return fmt.Errorf("namedquerystruct: %w", err)
	}

	return nil
}

// lockTimeoutMillis converts wait for lock_timeout, where 0 disables the
// timeout. Anything shorter than a millisecond rounds up to one.
func lockTimeoutMillis(wait time.Duration) int64 {
	return max(wait.Milliseconds(), 1)
}
