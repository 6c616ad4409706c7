package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		code string
		is   error
	}{
		{name: "exclusion", code: exclusionViolation, is: ErrDBExclusionViolation},
		{name: "check", code: checkViolation, is: ErrDBCheckViolation},
		{name: "foreign-key", code: foreignKeyViolate, is: ErrDBForeignKey},
		{name: "deadlock", code: deadlockDetected, is: ErrDBTransient},
		{name: "lock-timeout", code: lockNotAvailable, is: ErrDBTransient},
		{name: "serialization", code: serializationFail, is: ErrDBTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(&pgconn.PgError{Code: tt.code, ConstraintName: "c"})
			assert.ErrorIs(t, err, tt.is)
		})
	}

	t.Run("unique", func(t *testing.T) {
		err := mapError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "uq_tenant_slug"})

		var dup ErrDBDuplicatedEntry
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "uq_tenant_slug", dup.Column)
	})

	t.Run("passthrough", func(t *testing.T) {
		other := errors.New("boom")
		assert.Equal(t, other, mapError(other))
	})
}

func TestQueryString(t *testing.T) {
	data := map[string]any{"tenant_id": "abc", "limit": 10}

	q := queryString("SELECT *\n\tFROM bookings WHERE tenant_id = :tenant_id LIMIT :limit", data)

	assert.Equal(t, "SELECT * FROM bookings WHERE tenant_id = 'abc' LIMIT 10", q)
}

func TestWithinTranRetriesTransient(t *testing.T) {
	RetryDelay = 0

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE resources`).WillReturnError(&pgconn.PgError{Code: deadlockDetected})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE resources`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err = WithinTran(context.Background(), logger.NewDiscard(), NewBeginner(sqlxDB), 2, func(tx CommitRollbacker) error {
		calls++
		ec, err := GetExtContext(tx)
		if err != nil {
			return err
		}
		return ExecContext(context.Background(), logger.NewDiscard(), ec, `UPDATE resources SET name = name`)
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTranStopsOnPermanentError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectRollback()

	permanent := errors.New("validation")
	calls := 0
	err = WithinTran(context.Background(), logger.NewDiscard(), NewBeginner(sqlxDB), 3, func(tx CommitRollbacker) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingTx struct {
	events *[]string
}

func (tx recordingTx) Commit() error {
	*tx.events = append(*tx.events, "commit")
	return nil
}

func (tx recordingTx) Rollback() error {
	*tx.events = append(*tx.events, "rollback")
	return nil
}

func TestTxRunsHooksAfterCommit(t *testing.T) {
	var events []string
	tx := NewTx(recordingTx{events: &events})

	AfterCommit(tx, func() { events = append(events, "hook-1") })
	AfterCommit(tx, func() { events = append(events, "hook-2") })
	assert.Empty(t, events)

	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"commit", "hook-1", "hook-2"}, events)
}

func TestTxDropsHooksOnRollback(t *testing.T) {
	var events []string
	tx := NewTx(recordingTx{events: &events})

	AfterCommit(tx, func() { events = append(events, "hook") })

	require.NoError(t, tx.Rollback())
	assert.Equal(t, []string{"rollback"}, events)
}

func TestAfterCommitWithoutHooksRunsNow(t *testing.T) {
	var events []string

	AfterCommit(recordingTx{events: &events}, func() { events = append(events, "hook") })
	assert.Equal(t, []string{"hook"}, events)
}
