package bookingdb

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
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

func testBooking(tenantID uuid.UUID) bookingbus.Booking {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	return bookingbus.Booking{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ResourceID: uuid.New(),
		Range:      timerange.MustNew(start, start.Add(30*time.Minute)),
		Status:     bookingstatus.Pending,
		CreatedAt:  start,
		UpdatedAt:  start,
	}
}

func TestCreateExclusionViolationIsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "ex_bookings_active_overlap"})

	err := store.Create(context.Background(), tenancy.New(tenantID, uuid.New()), testBooking(tenantID))
	require.ErrorIs(t, err, bookingbus.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsForeignTenant(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.Create(context.Background(), tenancy.New(uuid.New(), uuid.New()), testBooking(uuid.New()))
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusGuardsPreviousStatus(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()
	b := testBooking(tenantID)
	b.Status = bookingstatus.Confirmed

	mock.ExpectExec(regexp.QuoteMeta("WHERE booking_id = $3 AND status = $4 AND tenant_id = $5")).
		WithArgs("confirmed", sqlmock.AnyArg(), b.ID, "pending", tenantID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateStatus(context.Background(), tenancy.New(tenantID, uuid.New()), b, bookingstatus.Pending)
	require.ErrorIs(t, err, bookingbus.ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryByIDWithoutTenantMatchesNothing(t *testing.T) {
	store, mock := newMockStore(t)

	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE booking_id = $1 AND FALSE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id"}))

	_, err := store.QueryByID(context.Background(), tenancy.AccessContext{}, id)
	require.ErrorIs(t, err, bookingbus.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryByIDScansRow(t *testing.T) {
	store, mock := newMockStore(t)

	tenantID := uuid.New()
	b := testBooking(tenantID)

	cols := []string{"booking_id", "tenant_id", "resource_id", "starts_at", "ends_at", "status",
		"customer_name", "customer_email", "customer_phone", "notes", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).AddRow(
		b.ID.String(), tenantID.String(), b.ResourceID.String(), b.Range.Start(), b.Range.End(), "checked_in",
		"Ana", "ana@example.com", "+5511999990000", `[{"text":"late","created_at":"2025-03-10T10:05:00Z"}]`, b.CreatedAt, b.UpdatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE booking_id = $1 AND tenant_id = $2")).
		WithArgs(b.ID, tenantID).
		WillReturnRows(rows)

	got, err := store.QueryByID(context.Background(), tenancy.New(tenantID, uuid.New()), b.ID)
	require.NoError(t, err)
	require.Equal(t, bookingstatus.CheckedIn, got.Status)
	require.True(t, got.Range.Equal(b.Range))
	require.Equal(t, "+5511999990000", got.CustomerPhone.String())
	require.Len(t, got.Notes, 1)
	require.Equal(t, "late", got.Notes[0].Text)
	require.NoError(t, mock.ExpectationsWereMet())
}
