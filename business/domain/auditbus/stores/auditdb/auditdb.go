// Package auditdb contains audit related CRUD functionality.
package auditdb

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for audit database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (auditbus.Storer, error) {
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

// Insert appends a record. Records are never updated.
func (s *Store) Insert(ctx context.Context, rec auditbus.Record) error {
	const q = `
	INSERT INTO audit_records
		(audit_id, tenant_id, entity_name, operation, entity_id, before_state, after_state, actor_user_id, created_at)
	VALUES
		(:audit_id, :tenant_id, :entity_name, :operation, :entity_id, :before_state, :after_state, :actor_user_id, :created_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBRecord(rec)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Query retrieves a list of audit records from the database.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter auditbus.QueryFilter, orderBy order.By, pg page.Page) ([]auditbus.Record, error) {
	data := map[string]any{
		"offset":        pg.Offset(),
		"rows_per_page": pg.RowsPerPage(),
	}

	const q = `
	SELECT
		audit_id, tenant_id, entity_name, operation, entity_id, before_state, after_state, actor_user_id, created_at
	FROM
		audit_records`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	orderByClause, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}

	buf.WriteString(orderByClause)
	buf.WriteString(" OFFSET :offset ROWS FETCH NEXT :rows_per_page ROWS ONLY")

	var dbRecs []record
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbRecs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusRecords(dbRecs)
}

// Count returns the total number of audit records matching the filter.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter auditbus.QueryFilter) (int, error) {
	data := map[string]any{}

	const q = `
	SELECT
		count(1)
	FROM
		audit_records`

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

// Purge removes records created before the cutoff across all tenants.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	data := struct {
		Cutoff time.Time `db:"cutoff"`
	}{
		Cutoff: cutoff.UTC(),
	}

	const q = `
	DELETE FROM
		audit_records
	WHERE
		created_at < :cutoff`

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return 0, fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	return int(n), nil
}
