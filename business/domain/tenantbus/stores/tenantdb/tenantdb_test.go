package tenantdb

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
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

func TestQueryIsConfinedByMembership(t *testing.T) {
	store, mock := newMockStore(t)

	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE gm.tenant_id = tenant.tenant_id AND gm.user_id = $1")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "name", "slug", "enabled", "created_at", "updated_at"}))

	tenants, err := store.Query(context.Background(), tenancy.New(uuid.New(), userID))
	require.NoError(t, err)
	require.Empty(t, tenants)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryByIDAnonymousMatchesNothing(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 AND FALSE")).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}))

	_, err := store.QueryByID(context.Background(), tenancy.AccessContext{}, tenantID)
	require.ErrorIs(t, err, tenantbus.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNonMemberIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenant SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), tenancy.New(uuid.New(), uuid.New()), tenantbus.Tenant{ID: uuid.New(), Name: "x"})
	require.ErrorIs(t, err, tenantbus.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
