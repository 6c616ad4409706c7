package auditdb

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(logger.NewDiscard(), sqlx.NewDb(db, "pgx")), mock
}

func TestQueryWithoutTenantMatchesNothing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records WHERE FALSE ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"audit_id"}))

	recs, err := store.Query(context.Background(), tenancy.AccessContext{}, auditbus.QueryFilter{}, auditbus.DefaultOrderBy, page.MustParse("1", "10"))
	require.NoError(t, err)
	require.Empty(t, recs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryBindsTenant(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()
	ac := tenancy.New(tenantID, uuid.New())
	op := auditop.Anonymize
	now := time.Now().UTC()

	cols := []string{"audit_id", "tenant_id", "entity_name", "operation", "entity_id", "before_state", "after_state", "actor_user_id", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(uuid.NewString(), tenantID.String(), "bookings", "ANONYMIZE", "b1", `{"customer_email":"a@b.c"}`, `{"customer_email":""}`, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND operation = $2")).
		WithArgs(tenantID, "ANONYMIZE", 0, 10).
		WillReturnRows(rows)

	recs, err := store.Query(context.Background(), ac, auditbus.QueryFilter{Op: &op}, auditbus.DefaultOrderBy, page.MustParse("1", "10"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, auditop.Anonymize, recs[0].Op)
	require.JSONEq(t, `{"customer_email":""}`, string(recs[0].After))
	require.Nil(t, recs[0].ActorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWritesNullImages(t *testing.T) {
	store, mock := newMockStore(t)

	rec := auditbus.Record{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Entity:    "bookings",
		EntityKey: "b1",
		Op:        auditop.Insert,
		After:     json.RawMessage(`{"status":"pending"}`),
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WithArgs(rec.ID, rec.TenantID, "bookings", "INSERT", "b1", nil, `{"status":"pending"}`, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Insert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_records WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
