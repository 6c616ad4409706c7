package sqldb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// Beginner represents a value that can begin a transaction.
type Beginner interface {
	Begin() (CommitRollbacker, error)
}

// CommitRollbacker represents a value that can commit or rollback a transaction.
type CommitRollbacker interface {
	Commit() error
	Rollback() error
}

// =============================================================================

// DBBeginner implements the Beginner interface,
type DBBeginner struct {
	sqlxDB *sqlx.DB
}

// NewBeginner constructs a value that implements the beginner interface.
func NewBeginner(sqlxDB *sqlx.DB) *DBBeginner {
	return &DBBeginner{
		sqlxDB: sqlxDB,
	}
}

// Begin implements the Beginner interface and returns a concrete value that
// implements the CommitRollbacker interface.
func (db *DBBeginner) Begin() (CommitRollbacker, error) {
	tx, err := db.sqlxDB.Beginx()
	if err != nil {
		return nil, err
	}

	return NewTx(tx), nil
}

// =============================================================================

// Tx wraps a transaction with hooks that run once it has committed. Hooks
// are dropped on rollback.
type Tx struct {
	CommitRollbacker

	mu    sync.Mutex
	hooks []func()
}

// NewTx wraps tx.
func NewTx(tx CommitRollbacker) *Tx {
	return &Tx{CommitRollbacker: tx}
}

// Commit commits the wrapped transaction and then runs the hooks in the
// order they were registered.
func (tx *Tx) Commit() error {
	if err := tx.CommitRollbacker.Commit(); err != nil {
		return err
	}

	tx.mu.Lock()
	hooks := tx.hooks
	tx.hooks = nil
	tx.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	return nil
}

// Rollback rolls back the wrapped transaction and forgets the hooks.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	tx.hooks = nil
	tx.mu.Unlock()

	return tx.CommitRollbacker.Rollback()
}

// AfterCommit registers fn to run after tx commits. A transaction that
// cannot carry hooks runs fn immediately.
func AfterCommit(tx CommitRollbacker, fn func()) {
	t, ok := tx.(*Tx)
	if !ok {
		fn()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.hooks = append(t.hooks, fn)
}

// GetExtContext is a helper function that extracts the sqlx value
// from the domain transactor interface for transactional use.
func GetExtContext(tx CommitRollbacker) (sqlx.ExtContext, error) {
	if t, ok := tx.(*Tx); ok {
		tx = t.CommitRollbacker
	}

	ec, ok := tx.(sqlx.ExtContext)
	if !ok {
		return nil, fmt.Errorf("Transactor(%T) not of a type *sql.Tx", tx)
	}

	return ec, nil
}

// =============================================================================

// RetryDelay is the pause between attempts of a transaction that failed with
// a transient error. Attempt n waits n*RetryDelay.
var RetryDelay = 25 * time.Millisecond

// WithinTran runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise. When the failure is transient
// (deadlock, lock timeout, serialization) the whole unit is retried up to
// retries more times.
func WithinTran(ctx context.Context, log *logger.Logger, bgn Beginner, retries int, fn func(tx CommitRollbacker) error) error {
	var err error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Warn(ctx, "sqldb: retrying transaction", "attempt", attempt, "err", err)

			select {
			case <-ctx.Done():
				return fmt.Errorf("retry: %w", errors.Join(err, ctx.Err()))
			case <-time.After(time.Duration(attempt) * RetryDelay):
			}
		}

		err = runTran(bgn, fn)
		if err == nil || !IsTransient(err) {
			return err
		}
	}

	return err
}

func runTran(bgn Beginner, fn func(tx CommitRollbacker) error) error {
	tx, err := bgn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %w: %w", rbErr, err)
		}
		return err
	}

	if err := Commit(tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Commit commits tx and maps the driver error the same way queries are
// mapped, so a serialization failure at commit time reads as transient.
func Commit(tx CommitRollbacker) error {
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}

	return nil
}
