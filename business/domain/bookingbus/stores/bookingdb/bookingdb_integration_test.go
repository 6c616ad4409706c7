package bookingdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingaudit"
	"github.com/jcpaschoal/spi-agenda/business/sdk/dbtest"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func rng(h1, m1, h2, m2 int) timerange.Range {
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	return timerange.MustNew(at(h1, m1), at(h2, m2))
}

func propose(ctx context.Context, db *dbtest.Database, fx dbtest.Fixture, r timerange.Range) (bookingbus.Booking, error) {
	var b bookingbus.Booking

	err := db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		var err error
		b, err = bus.Booking.Propose(ctx, fx.AC, bookingbus.NewBooking{
			TenantID:      fx.Tenant.ID,
			ResourceID:    fx.Resource.ID,
			Range:         r,
			CustomerEmail: "ana@example.com",
		})
		return err
	})

	return b, err
}

func changeStatus(ctx context.Context, db *dbtest.Database, ac tenancy.AccessContext, b bookingbus.Booking, to bookingstatus.Status) (bookingbus.Booking, error) {
	var out bookingbus.Booking

	err := db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		var err error
		out, err = bus.Booking.ChangeStatus(ctx, ac, b, to)
		return err
	})

	return out, err
}

func Test_Booking(t *testing.T) {
	db := dbtest.New(t, "test_booking")

	t.Run("no-double-booking", func(t *testing.T) { noDoubleBooking(t, db) })
	t.Run("terminal-exclusion", func(t *testing.T) { terminalExclusion(t, db) })
	t.Run("isolation", func(t *testing.T) { isolation(t, db) })
	t.Run("outbox-atomicity", func(t *testing.T) { outboxAtomicity(t, db) })
	t.Run("audit-completeness", func(t *testing.T) { auditCompleteness(t, db) })
}

func noDoubleBooking(t *testing.T, db *dbtest.Database) {
	const n = 12

	ctx := context.Background()
	fx, err := db.SeedTenant(ctx, "double-"+uuid.NewString()[:8])
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := propose(ctx, db, fx, rng(10, i, 10, 30+i))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				ok++
			case errors.Is(err, bookingbus.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, n-1, conflicts)

	active, err := db.Count(ctx, `SELECT count(1) FROM bookings WHERE resource_id = $1`, fx.Resource.ID)
	require.NoError(t, err)
	require.Equal(t, 1, active)
}

func terminalExclusion(t *testing.T, db *dbtest.Database) {
	ctx := context.Background()
	fx, err := db.SeedTenant(ctx, "terminal-"+uuid.NewString()[:8])
	require.NoError(t, err)

	first, err := propose(ctx, db, fx, rng(10, 0, 10, 30))
	require.NoError(t, err)

	first, err = changeStatus(ctx, db, fx.AC, first, bookingstatus.Confirmed)
	require.NoError(t, err)

	_, err = propose(ctx, db, fx, rng(10, 15, 10, 45))
	require.ErrorIs(t, err, bookingbus.ErrConflict)

	_, err = propose(ctx, db, fx, rng(10, 30, 11, 0))
	require.NoError(t, err, "back to back")

	first, err = changeStatus(ctx, db, fx.AC, first, bookingstatus.Completed)
	require.NoError(t, err)

	second, err := propose(ctx, db, fx, rng(10, 0, 10, 30))
	require.NoError(t, err, "completed booking does not block")

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		_, err := bus.Booking.Reopen(ctx, fx.AC, first, bookingstatus.Confirmed)
		return err
	})
	require.ErrorIs(t, err, bookingbus.ErrConflict, "reopening re-runs the check")

	_, err = changeStatus(ctx, db, fx.AC, second, bookingstatus.Cancelled)
	require.NoError(t, err)

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		_, err := bus.Booking.Reopen(ctx, fx.AC, first, bookingstatus.Confirmed)
		return err
	})
	require.NoError(t, err)
}

func isolation(t *testing.T, db *dbtest.Database) {
	ctx := context.Background()

	a, err := db.SeedTenant(ctx, "iso-a-"+uuid.NewString()[:8])
	require.NoError(t, err)

	b, err := db.SeedTenant(ctx, "iso-b-"+uuid.NewString()[:8])
	require.NoError(t, err)

	bkA, err := propose(ctx, db, a, rng(9, 0, 9, 30))
	require.NoError(t, err)

	core := db.BusDomain.Booking

	_, err = core.QueryByID(ctx, b.AC, bkA.ID)
	require.ErrorIs(t, err, bookingbus.ErrNotFound)

	_, err = core.QueryByID(ctx, tenancy.AccessContext{}, bkA.ID)
	require.ErrorIs(t, err, bookingbus.ErrNotFound)

	bks, err := core.Query(ctx, b.AC, bookingbus.QueryFilter{ID: &bkA.ID}, bookingbus.DefaultOrderBy, page.MustParse("1", "10"))
	require.NoError(t, err)
	require.Empty(t, bks)

	bks, err = core.Query(ctx, tenancy.Resolve("not-a-uuid", uuid.NewString()), bookingbus.QueryFilter{}, bookingbus.DefaultOrderBy, page.MustParse("1", "10"))
	require.NoError(t, err)
	require.Empty(t, bks, "malformed tenant fails closed")

	_, err = changeStatus(ctx, db, b.AC, bkA, bookingstatus.Confirmed)
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		_, err := bus.Booking.Propose(ctx, b.AC, bookingbus.NewBooking{TenantID: b.Tenant.ID, ResourceID: a.Resource.ID, Range: rng(12, 0, 13, 0)})
		return err
	})
	require.Error(t, err, "another tenant's resource cannot be booked")
}

func outboxAtomicity(t *testing.T, db *dbtest.Database) {
	ctx := context.Background()
	fx, err := db.SeedTenant(ctx, "outbox-"+uuid.NewString()[:8])
	require.NoError(t, err)

	abort := errors.New("abort")

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		if _, err := bus.Booking.Propose(ctx, fx.AC, bookingbus.NewBooking{TenantID: fx.Tenant.ID, ResourceID: fx.Resource.ID, Range: rng(14, 0, 15, 0)}); err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	count := func(q string) int {
		n, err := db.Count(ctx, q, fx.Tenant.ID)
		require.NoError(t, err)
		return n
	}

	require.Zero(t, count(`SELECT count(1) FROM bookings WHERE tenant_id = $1`))
	require.Zero(t, count(`SELECT count(1) FROM outbox_events WHERE tenant_id = $1`))
	require.Zero(t, count(`SELECT count(1) FROM audit_records WHERE tenant_id = $1 AND entity_name = 'bookings'`))

	_, err = propose(ctx, db, fx, rng(14, 0, 15, 0))
	require.NoError(t, err)

	require.Equal(t, 1, count(`SELECT count(1) FROM outbox_events WHERE tenant_id = $1 AND event_code = 'booking.created'`))
}

func auditCompleteness(t *testing.T, db *dbtest.Database) {
	ctx := context.Background()
	fx, err := db.SeedTenant(ctx, "audit-"+uuid.NewString()[:8])
	require.NoError(t, err)

	b, err := propose(ctx, db, fx, rng(16, 0, 17, 0))
	require.NoError(t, err)

	b, err = changeStatus(ctx, db, fx.AC, b, bookingstatus.Cancelled)
	require.NoError(t, err)

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		_, err := bus.Booking.AppendNote(ctx, fx.AC, b, "refund issued")
		return err
	})
	require.NoError(t, err)

	err = db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
		_, err := bus.Booking.Anonymize(ctx, fx.AC, "ana@example.com")
		return err
	})
	require.NoError(t, err)

	type row struct {
		Op        string
		HasBefore bool
		HasAfter  bool
	}

	rows, err := db.DB.QueryContext(ctx, `
		SELECT operation, before_state IS NOT NULL, after_state IS NOT NULL
		FROM audit_records
		WHERE entity_name = $1 AND entity_id = $2
		ORDER BY created_at`, bookingaudit.Entity, b.ID.String())
	require.NoError(t, err)
	defer rows.Close()

	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.Op, &r.HasBefore, &r.HasAfter))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Equal(t, []row{
		{Op: "INSERT", HasBefore: false, HasAfter: true},
		{Op: "UPDATE", HasBefore: true, HasAfter: true},
		{Op: "UPDATE", HasBefore: true, HasAfter: true},
		{Op: "ANONYMIZE", HasBefore: true, HasAfter: true},
	}, got)

	_, err = db.DB.ExecContext(ctx, `UPDATE audit_records SET entity_id = 'x' WHERE tenant_id = $1`, fx.Tenant.ID)
	require.Error(t, err, "audit records are append-only")
}
