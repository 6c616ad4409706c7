package bookingbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/bookingtest"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time {
	return day.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func rng(h1, m1, h2, m2 int) timerange.Range {
	return timerange.MustNew(at(h1, m1), at(h2, m2))
}

type fixture struct {
	env      bookingtest.Env
	ac       tenancy.AccessContext
	tenantID uuid.UUID
	resource resourcebus.Resource
}

func newFixture() fixture {
	env := bookingtest.New(nil)
	tenantID := uuid.New()

	return fixture{
		env:      env,
		ac:       tenancy.New(tenantID, uuid.New()),
		tenantID: tenantID,
		resource: env.Resources.Add(tenantID),
	}
}

func (f fixture) propose(t *testing.T, r timerange.Range) (bookingbus.Booking, error) {
	t.Helper()

	return f.env.Core.Propose(context.Background(), f.ac, bookingbus.NewBooking{
		TenantID:   f.tenantID,
		ResourceID: f.resource.ID,
		Range:      r,
	})
}

func TestScheduleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.propose(t, rng(10, 0, 10, 30))
	require.NoError(t, err)
	require.Equal(t, bookingstatus.Pending, first.Status)

	first, err = f.env.Core.ChangeStatus(ctx, f.ac, first, bookingstatus.Confirmed)
	require.NoError(t, err)

	_, err = f.propose(t, rng(10, 15, 10, 45))
	require.ErrorIs(t, err, bookingbus.ErrConflict)

	_, err = f.propose(t, rng(10, 30, 11, 0))
	require.NoError(t, err, "back to back ranges do not overlap")

	_, err = f.env.Core.ChangeStatus(ctx, f.ac, first, bookingstatus.Completed)
	require.NoError(t, err)

	_, err = f.propose(t, rng(10, 0, 10, 30))
	require.NoError(t, err, "a terminal booking never blocks")

	assert.Equal(t, []string{
		bookingbus.EventCreated,
		bookingbus.EventStatusChanged,
		bookingbus.EventCreated,
		bookingbus.EventStatusChanged,
		bookingbus.EventCreated,
	}, f.env.Outbox.Codes(), "rejected proposals enqueue nothing")
}

func TestConcurrentOverlappingProposals(t *testing.T) {
	const n = 32

	f := newFixture()

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

			// Every range contains 10:29, so all pairs overlap.
			_, err := f.propose(t, timerange.MustNew(at(10, 0).Add(time.Duration(i)*time.Second), at(10, 30)))

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
	require.Len(t, f.env.Outbox.Events(), 1)
}

func TestProposeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.env.Core.Propose(ctx, f.ac, bookingbus.NewBooking{TenantID: f.tenantID, ResourceID: f.resource.ID})
	require.ErrorIs(t, err, bookingbus.ErrInvalidRange)

	_, err = f.env.Core.Propose(ctx, f.ac, bookingbus.NewBooking{TenantID: f.tenantID, Range: rng(9, 0, 10, 0)})
	require.ErrorIs(t, err, bookingbus.ErrResourceRequired)

	_, err = timerange.New(at(10, 0), at(10, 0))
	require.ErrorIs(t, err, timerange.ErrInvalidRange)

	require.Empty(t, f.env.Outbox.Events())
}

func TestProposeIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	other := tenancy.New(uuid.New(), uuid.New())

	_, err := f.env.Core.Propose(ctx, other, bookingbus.NewBooking{TenantID: f.tenantID, ResourceID: f.resource.ID, Range: rng(9, 0, 10, 0)})
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)

	otherTenant, _ := other.TenantID()
	_, err = f.env.Core.Propose(ctx, other, bookingbus.NewBooking{TenantID: otherTenant, ResourceID: f.resource.ID, Range: rng(9, 0, 10, 0)})
	require.ErrorIs(t, err, resourcebus.ErrNotFound, "another tenant's resource does not exist for the caller")

	_, err = f.env.Core.Propose(ctx, tenancy.AccessContext{}, bookingbus.NewBooking{TenantID: f.tenantID, ResourceID: f.resource.ID, Range: rng(9, 0, 10, 0)})
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	b, err := f.propose(t, rng(9, 0, 10, 0))
	require.NoError(t, err)

	_, err = f.env.Core.ChangeStatus(ctx, f.ac, b, bookingstatus.CheckedIn)
	require.ErrorIs(t, err, bookingbus.ErrInvalidTransition)

	b, err = f.env.Core.ChangeStatus(ctx, f.ac, b, bookingstatus.Cancelled)
	require.NoError(t, err)

	_, err = f.env.Core.ChangeStatus(ctx, f.ac, b, bookingstatus.Confirmed)
	require.ErrorIs(t, err, bookingbus.ErrTerminal)

	stale := b
	stale.Status = bookingstatus.Pending
	_, err = f.env.Core.ChangeStatus(ctx, f.ac, stale, bookingstatus.Confirmed)
	require.ErrorIs(t, err, bookingbus.ErrStatusChanged)
}

func TestReopenRechecksConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	b, err := f.propose(t, rng(10, 0, 10, 30))
	require.NoError(t, err)

	b, err = f.env.Core.ChangeStatus(ctx, f.ac, b, bookingstatus.Cancelled)
	require.NoError(t, err)

	_, err = f.env.Core.Reopen(ctx, f.ac, b, bookingstatus.CheckedIn)
	require.ErrorIs(t, err, bookingbus.ErrInvalidTransition)

	_, err = f.propose(t, rng(10, 15, 10, 45))
	require.NoError(t, err)

	_, err = f.env.Core.Reopen(ctx, f.ac, b, bookingstatus.Confirmed)
	require.ErrorIs(t, err, bookingbus.ErrConflict)

	stored, err := f.env.Core.QueryByID(ctx, f.ac, b.ID)
	require.NoError(t, err)
	require.Equal(t, bookingstatus.Cancelled, stored.Status)

	active, err := f.propose(t, rng(11, 0, 11, 30))
	require.NoError(t, err)

	_, err = f.env.Core.Reopen(ctx, f.ac, active, bookingstatus.Pending)
	require.ErrorIs(t, err, bookingbus.ErrNotTerminal)
}

func TestAppendNoteOnTerminalBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	b, err := f.propose(t, rng(9, 0, 10, 0))
	require.NoError(t, err)

	b, err = f.env.Core.ChangeStatus(ctx, f.ac, b, bookingstatus.Cancelled)
	require.NoError(t, err)

	_, err = f.env.Core.AppendNote(ctx, f.ac, b, "  ")
	require.ErrorIs(t, err, bookingbus.ErrInvalidNote)

	b, err = f.env.Core.AppendNote(ctx, f.ac, b, "customer called")
	require.NoError(t, err)
	require.Len(t, b.Notes, 1)

	uid, _ := f.ac.UserID()
	require.Equal(t, uid, *b.Notes[0].AuthorID)

	stored, err := f.env.Core.QueryByID(ctx, f.ac, b.ID)
	require.NoError(t, err)
	require.Equal(t, "customer called", stored.Notes[0].Text)
}

func TestAnonymizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for i := range 2 {
		_, err := f.env.Core.Propose(ctx, f.ac, bookingbus.NewBooking{
			TenantID:      f.tenantID,
			ResourceID:    f.resource.ID,
			Range:         rng(9+i, 0, 9+i, 30),
			CustomerName:  "Ana Souza",
			CustomerEmail: "Ana@Example.com",
			CustomerPhone: phone.MustParseNull("+55 11 99999-0000"),
		})
		require.NoError(t, err)
	}

	n, err := f.env.Core.Anonymize(ctx, f.ac, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	bks, err := f.env.Core.Query(ctx, f.ac, bookingbus.QueryFilter{}, bookingbus.DefaultOrderBy, page.MustParse("1", "100"))
	require.NoError(t, err)
	for _, b := range bks {
		require.True(t, b.IsAnonymized())
	}

	n, err = f.env.Core.Anonymize(ctx, f.ac, "ana@example.com")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.env.Core.Anonymize(ctx, f.ac, "")
	require.ErrorIs(t, err, bookingbus.ErrEmailRequired)
}
