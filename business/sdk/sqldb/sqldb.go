// Package sqldb provides support for access the database.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const (
	uniqueViolation    = "23505"
	foreignKeyViolate  = "23503"
	checkViolation     = "23514"
	exclusionViolation = "23P01"
	serializationFail  = "40001"
	deadlockDetected   = "40P01"
	lockNotAvailable   = "55P03"
	undefinedTable     = "42P01"
)

// Set of error variables for CRUD operations.
var (
	ErrDBNotFound           = sql.ErrNoRows
	ErrDBExclusionViolation = errors.New("exclusion constraint violated")
	ErrDBCheckViolation     = errors.New("check constraint violated")
	ErrDBForeignKey         = errors.New("foreign key constraint violated")
	ErrDBTransient          = errors.New("transient database failure")
	ErrUndefinedTable       = errors.New("undefined table")
)

// ErrDBDuplicatedEntry is returned when a unique constraint rejects a write.
// Column holds the name of the violated constraint.
type ErrDBDuplicatedEntry struct {
	Column string
}

func (e ErrDBDuplicatedEntry) Error() string {
	return fmt.Sprintf("duplicated entry: %s", e.Column)
}

// Config is the required properties to use the database.
type Config struct {
	User         string
	Password     string
	Host         string
	Name         string
	Schema       string
	MaxIdleConns int
	MaxOpenConns int
	DisableTLS   bool
}

// Open knows how to open a database connection based on the configuration.
func Open(cfg Config) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	return OpenDSN(u.String(), cfg.MaxIdleConns, cfg.MaxOpenConns)
}

// OpenDSN opens a connection using an already formed connection string.
func OpenDSN(dsn string, maxIdle int, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)

	return db, nil
}

// StatusCheck returns nil if it can successfully talk to the database. It
// returns a non-nil error otherwise.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {

	// If the user doesn't give us a deadline set 1 second.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second)
		defer cancel()
	}

	var pingError error
	for attempts := 1; ; attempts++ {
		pingError = db.Ping()
		if pingError == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Run a simple query to determine connectivity.
	// Running this query forces a round trip through the database.
	const q = `SELECT TRUE`
	var tmp bool
	return db.QueryRowContext(ctx, q).Scan(&tmp)
}

// ExecContext is a helper function to execute a CUD operation with
// logging and tracing.
func ExecContext(ctx context.Context, log *logger.Logger, db sqlx.ExtContext, query string) error {
	return NamedExecContext(ctx, log, db, query, struct{}{})
}

// NamedExecContext is a helper function to execute a CUD operation with
// logging and tracing where field replacement is necessary.
func NamedExecContext(ctx context.Context, log *logger.Logger, db sqlx.ExtContext, query string, data any) error {
	_, err := NamedExecRowsAffected(ctx, log, db, query, data)
	return err
}

// NamedExecRowsAffected executes a CUD operation and reports how many rows
// the statement touched.
func NamedExecRowsAffected(ctx context.Context, log *logger.Logger, db sqlx.ExtContext, query string, data any) (int64, error) {
	q := queryString(query, data)

	log.Debugc(ctx, 5, "database.NamedExecContext", "query", q)

	ctx, span := otel.AddSpan(ctx, "business.sdk.sqldb.exec", attribute.String("query", q))
	defer span.End()

	res, err := sqlx.NamedExecContext(ctx, db, query, data)
	if err != nil {
		return 0, mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

// NamedQuerySlice is a helper function for executing queries that return a
// collection of data to be unmarshalled into a slice where field replacement is
// necessary.
func NamedQuerySlice[T any](ctx context.Context, log *logger.Logger, db sqlx.ExtContext, query string, data any, dest *[]T) error {
	q := queryString(query, data)

	log.Debugc(ctx, 5, "database.NamedQuerySlice", "query", q)

	ctx, span := otel.AddSpan(ctx, "business.sdk.sqldb.queryslice", attribute.String("query", q))
	defer span.End()

	rows, err := sqlx.NamedQueryContext(ctx, db, query, data)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	var slice []T
	for rows.Next() {
		v := new(T)
		if err := rows.StructScan(v); err != nil {
			return err
		}
		slice = append(slice, *v)
	}

	if err := rows.Err(); err != nil {
		return mapError(err)
	}

	*dest = slice

	return nil
}

// NamedQueryStruct is a helper function for executing queries that return a
// single value to be unmarshalled into a struct type where field replacement is
// necessary.
func NamedQueryStruct(ctx context.Context, log *logger.Logger, db sqlx.ExtContext, query string, data any, dest any) error {
	q := queryString(query, data)

	log.Debugc(ctx, 5, "database.NamedQueryStruct", "query", q)

	ctx, span := otel.AddSpan(ctx, "business.sdk.sqldb.query", attribute.String("query", q))
	defer span.End()

	rows, err := sqlx.NamedQueryContext(ctx, db, query, data)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return mapError(err)
		}
		return ErrDBNotFound
	}

	if err := rows.StructScan(dest); err != nil {
		return err
	}

	return nil
}

// IsTransient reports whether the error is worth retrying the surrounding
// transaction for.
func IsTransient(err error) bool {
	return errors.Is(err, ErrDBTransient)
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolation:
		return ErrDBDuplicatedEntry{Column: pgErr.ConstraintName}
	case exclusionViolation:
		return fmt.Errorf("%w: %s", ErrDBExclusionViolation, pgErr.ConstraintName)
	case foreignKeyViolate:
		return fmt.Errorf("%w: %s", ErrDBForeignKey, pgErr.ConstraintName)
	case checkViolation:
		return fmt.Errorf("%w: %s", ErrDBCheckViolation, pgErr.ConstraintName)
	case serializationFail, deadlockDetected, lockNotAvailable:
		return fmt.Errorf("%w: %s: %s", ErrDBTransient, pgErr.Code, pgErr.Message)
	case undefinedTable:
		return ErrUndefinedTable
	}

	return err
}

// queryString provides a pretty print version of the query and parameters.
func queryString(query string, args any) string {
	query, params, err := sqlx.Named(query, args)
	if err != nil {
		return err.Error()
	}

	for _, param := range params {
		var value string
		switch v := param.(type) {
		case string:
			value = fmt.Sprintf("'%s'", v)
		case []byte:
			value = fmt.Sprintf("'%s'", string(v))
		default:
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
				value = "NULL"
			} else {
				value = fmt.Sprintf("%v", v)
			}
		}
		query = strings.Replace(query, "?", value, 1)
	}

	query = strings.ReplaceAll(query, "\t", "")
	query = strings.ReplaceAll(query, "\n", " ")

	return strings.Trim(query, " ")
}
