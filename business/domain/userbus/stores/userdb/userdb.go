// Package userdb contains user related CRUD functionality.
package userdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

const columns = `u.user_id, u.name, u.email, u.role, u.password_hash, u.enabled, u.created_at, u.updated_at`

// Store manages the set of APIs for user database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (userbus.Storer, error) {
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

// Create inserts a new user into the database.
func (s *Store) Create(ctx context.Context, usr userbus.User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, enabled, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :enabled, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBUser(usr)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) && (dupErr.Column == "email" || dupErr.Column == "uq_user_email") {
			return fmt.Errorf("namedexeccontext: %w", userbus.ErrUniqueEmail)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces a user row the caller manages.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, usr userbus.User) error {
	dbUsr := toDBUser(usr)

	data := map[string]any{
		"user_id":       dbUsr.ID,
		"name":          dbUsr.Name,
		"email":         dbUsr.Email,
		"role":          dbUsr.Role,
		"password_hash": dbUsr.PasswordHash,
		"enabled":       dbUsr.Enabled,
		"updated_at":    dbUsr.UpdatedAt,
	}

	q := `
	UPDATE
		users AS u
	SET
		name = :name,
		email = :email,
		role = :role,
		password_hash = :password_hash,
		enabled = :enabled,
		updated_at = :updated_at
	WHERE
		u.user_id = :user_id AND ` + tenancy.ManagedUserPredicate(ac, "u.user_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) && (dupErr.Column == "email" || dupErr.Column == "uq_user_email") {
			return userbus.ErrUniqueEmail
		}
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("update: %w", userbus.ErrNotFound)
	}

	return nil
}

// Delete removes a user the caller manages from the database.
func (s *Store) Delete(ctx context.Context, ac tenancy.AccessContext, usr userbus.User) error {
	data := map[string]any{
		"user_id": usr.ID,
	}

	q := `
	DELETE FROM
		users AS u
	WHERE
		u.user_id = :user_id AND ` + tenancy.ManagedUserPredicate(ac, "u.user_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("delete: %w", userbus.ErrNotFound)
	}

	return nil
}

// Query retrieves a list of users visible to the caller.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter userbus.QueryFilter, orderBy order.By, pg page.Page) ([]userbus.User, error) {
	data := map[string]any{
		"offset":        pg.Offset(),
		"rows_per_page": pg.RowsPerPage(),
	}

	const q = `
	SELECT
		` + columns + `
	FROM
		users AS u`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	orderByClause, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}

	buf.WriteString(orderByClause)
	buf.WriteString(" OFFSET :offset ROWS FETCH NEXT :rows_per_page ROWS ONLY")

	var dbUsrs []userDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbUsrs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusUsers(dbUsrs)
}

// Count returns the total number of users visible to the caller.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter userbus.QueryFilter) (int, error) {
	data := map[string]any{}

	const q = `
	SELECT
		count(1)
	FROM
		users AS u`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, buf.String(), data, &count); err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}

	return count.Count, nil
}

// QueryByID gets the specified user from the database.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, userID uuid.UUID) (userbus.User, error) {
	data := map[string]any{
		"user_id": userID,
	}

	q := `
	SELECT
		` + columns + `
	FROM
		users AS u
	WHERE
		u.user_id = :user_id AND ` + tenancy.SharedMemberPredicate(ac, "u.user_id", data)

	var dbUsr userDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbUsr); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return userbus.User{}, fmt.Errorf("db: %w", userbus.ErrNotFound)
		}
		return userbus.User{}, fmt.Errorf("db: %w", err)
	}

	return toBusUser(dbUsr)
}

// QueryByEmail gets the specified user from the database by email. It is
// used before a session exists, so it carries no visibility predicate.
func (s *Store) QueryByEmail(ctx context.Context, email mail.Address) (userbus.User, error) {
	data := struct {
		Email string `db:"email"`
	}{
		Email: email.Address,
	}

	const q = `
	SELECT
		` + columns + `
	FROM
		users AS u
	WHERE
		u.email = :email`

	var dbUsr userDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbUsr); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return userbus.User{}, fmt.Errorf("db: %w", userbus.ErrNotFound)
		}
		return userbus.User{}, fmt.Errorf("db: %w", err)
	}

	return toBusUser(dbUsr)
}
