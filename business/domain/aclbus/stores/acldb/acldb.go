// Package acldb contains role policy related CRUD functionality.
package acldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for policy database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (aclbus.Storer, error) {
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

// Grant inserts a policy.
func (s *Store) Grant(ctx context.Context, p aclbus.Policy) error {
	const q = `
	INSERT INTO role_policy
		(role, resource, action)
	VALUES
		(:role, :resource, :action)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBPolicy(p)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", aclbus.ErrUnique)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Revoke deletes a policy.
func (s *Store) Revoke(ctx context.Context, p aclbus.Policy) error {
	const q = `
	DELETE FROM
		role_policy
	WHERE
		role = :role AND resource = :resource AND action = :action`

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, toDBPolicy(p))
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return aclbus.ErrNotFound
	}

	return nil
}

// QueryPolicies retrieves every policy.
func (s *Store) QueryPolicies(ctx context.Context) ([]aclbus.Policy, error) {
	const q = `
	SELECT
		role, resource, action
	FROM
		role_policy
	ORDER BY
		role, resource, action`

	var dbPs []policyDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, struct{}{}, &dbPs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusPolicies(dbPs)
}

// Allowed reports whether the policy exists. ADMIN is always allowed.
func (s *Store) Allowed(ctx context.Context, p aclbus.Policy) (bool, error) {
	if p.Role.Equal(role.Admin) {
		return true, nil
	}

	const q = `
	SELECT
		count(1)
	FROM
		role_policy
	WHERE
		role = :role AND resource = :resource AND action = :action`

	var count struct {
		Count int `db:"count"`
	}

	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, toDBPolicy(p), &count); err != nil {
		return false, fmt.Errorf("namedquerystruct: %w", err)
	}

	return count.Count > 0, nil
}
