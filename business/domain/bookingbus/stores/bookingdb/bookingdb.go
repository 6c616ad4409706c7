// Package bookingdb contains booking related CRUD functionality.
package bookingdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

const columns = `booking_id, tenant_id, resource_id, starts_at, ends_at, status,
		customer_name, customer_email, customer_phone, notes, created_at, updated_at`

// Store manages the set of APIs for booking database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (bookingbus.Storer, error) {
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

// Create inserts a new booking. The exclusion constraint on active ranges
// decides admission at insert time.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	if err := tenancy.CheckWrite(ac, b.TenantID); err != nil {
		return err
	}

	dbB, err := toDBBooking(b)
	if err != nil {
		return err
	}

	const q = `
	INSERT INTO bookings
		(booking_id, tenant_id, resource_id, starts_at, ends_at, status,
		customer_name, customer_email, customer_phone, notes, created_at, updated_at)
	VALUES
		(:booking_id, :tenant_id, :resource_id, :starts_at, :ends_at, :status,
		:customer_name, :customer_email, :customer_phone, CAST(:notes AS jsonb), :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbB); err != nil {
		return fmt.Errorf("namedexeccontext: %w", mapError(err))
	}

	return nil
}

// UpdateStatus moves the booking from status from to b.Status. A row whose
// status is no longer from is left untouched and reported as
// ErrStatusChanged.
func (s *Store) UpdateStatus(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking, from bookingstatus.Status) error {
	if err := tenancy.CheckWrite(ac, b.TenantID); err != nil {
		return err
	}

	data := map[string]any{
		"booking_id":  b.ID,
		"status":      b.Status.String(),
		"from_status": from.String(),
		"updated_at":  b.UpdatedAt.UTC(),
	}

	q := `
	UPDATE
		bookings
	SET
		status = :status,
		updated_at = :updated_at
	WHERE
		booking_id = :booking_id AND status = :from_status AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", mapError(err))
	}

	if n == 0 {
		return fmt.Errorf("update: %w", bookingbus.ErrStatusChanged)
	}

	return nil
}

// AppendNote adds a note to the end of the booking's notes without
// rewriting the existing ones.
func (s *Store) AppendNote(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking, n bookingbus.Note) error {
	note, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}

	data := map[string]any{
		"booking_id": b.ID,
		"note":       string(note),
		"updated_at": n.CreatedAt.UTC(),
	}

	q := `
	UPDATE
		bookings
	SET
		notes = notes || jsonb_build_array(CAST(:note AS jsonb)),
		updated_at = :updated_at
	WHERE
		booking_id = :booking_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	rows, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("appendnote: %w", bookingbus.ErrNotFound)
	}

	return nil
}

// Anonymize blanks the customer fields of the booking.
func (s *Store) Anonymize(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	data := map[string]any{
		"booking_id": b.ID,
	}

	q := `
	UPDATE
		bookings
	SET
		customer_name = '',
		customer_email = '',
		customer_phone = NULL
	WHERE
		booking_id = :booking_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, data)
	if err != nil {
		return fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("anonymize: %w", bookingbus.ErrNotFound)
	}

	return nil
}

// Query retrieves a list of existing bookings from the database.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter, orderBy order.By, pg page.Page) ([]bookingbus.Booking, error) {
	data := map[string]any{
		"offset":        pg.Offset(),
		"rows_per_page": pg.RowsPerPage(),
	}

	const q = `
	SELECT
		` + columns + `
	FROM
		bookings`

	buf := bytes.NewBufferString(q)
	applyFilter(ac, filter, data, buf)

	orderByClause, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}

	buf.WriteString(orderByClause)
	buf.WriteString(" OFFSET :offset ROWS FETCH NEXT :rows_per_page ROWS ONLY")

	var dbBks []booking
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbBks); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusBookings(dbBks)
}

// Count returns the total number of bookings in the DB.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter) (int, error) {
	data := map[string]any{}

	const q = `
	SELECT
		count(1)
	FROM
		bookings`

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

// QueryByID gets the specified booking from the database.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, bookingID uuid.UUID) (bookingbus.Booking, error) {
	data := map[string]any{
		"booking_id": bookingID,
	}

	q := `
	SELECT
		` + columns + `
	FROM
		bookings
	WHERE
		booking_id = :booking_id AND ` + tenancy.TenantPredicate(ac, "tenant_id", data)

	var dbB booking
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbB); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return bookingbus.Booking{}, fmt.Errorf("namedquerystruct: %w", bookingbus.ErrNotFound)
		}
		return bookingbus.Booking{}, fmt.Errorf("namedquerystruct: %w", err)
	}

	return toBusBooking(dbB)
}

// QueryByCustomerEmail gets every booking of the caller's tenant made by the
// customer with the given email.
func (s *Store) QueryByCustomerEmail(ctx context.Context, ac tenancy.AccessContext, email string) ([]bookingbus.Booking, error) {
	data := map[string]any{
		"customer_email": email,
	}

	q := `
	SELECT
		` + columns + `
	FROM
		bookings
	WHERE
		customer_email = :customer_email AND ` + tenancy.TenantPredicate(ac, "tenant_id", data) + `
	ORDER BY
		starts_at`

	var dbBks []booking
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbBks); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusBookings(dbBks)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sqldb.ErrDBExclusionViolation):
		return fmt.Errorf("%w: %w", bookingbus.ErrConflict, err)
	case errors.Is(err, sqldb.ErrDBCheckViolation):
		return fmt.Errorf("%w: %w", bookingbus.ErrInvalidRange, err)
	}

	return err
}
