package resourcedb

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
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

func TestQueryByIDOtherTenantFindsNothing(t *testing.T) {
	store, mock := newMockStore(t)

	tenantB := uuid.New()
	resourceOfA := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE resource_id = $1 AND tenant_id = $2")).
		WithArgs(resourceOfA, tenantB).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id"}))

	_, err := store.QueryByID(context.Background(), tenancy.New(tenantB, uuid.New()), resourceOfA)
	require.ErrorIs(t, err, resourcebus.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsForeignTenant(t *testing.T) {
	store, mock := newMockStore(t)

	r := resourcebus.Resource{ID: uuid.New(), TenantID: uuid.New(), Name: "Room 1", Kind: resourcekind.Room, Capacity: 1}

	err := store.Create(context.Background(), tenancy.New(uuid.New(), uuid.New()), r)
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)
	require.NoError(t, mock.ExpectationsWereMet(), "nothing reaches the database")
}

func TestLockForBookingBoundsWait(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()
	resourceID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '1500ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE resource_id = $1 AND tenant_id = $2 FOR UPDATE")).
		WithArgs(resourceID, tenantID).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	err := store.LockForBooking(context.Background(), tenancy.New(tenantID, uuid.New()), resourceID, 1500*time.Millisecond)
	require.ErrorIs(t, err, sqldb.ErrDBTransient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockTimeoutNeverDisablesTimeout(t *testing.T) {
	require.Equal(t, int64(1), lockTimeoutMillis(0))
	require.Equal(t, int64(1), lockTimeoutMillis(500*time.Microsecond))
	require.Equal(t, int64(2000), lockTimeoutMillis(2*time.Second))
}
