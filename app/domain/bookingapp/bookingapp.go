// Package bookingapp maintains the app layer api for bookings.
package bookingapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/query"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

type app struct {
	bookingBus *bookingbus.Core
}

func newApp(bookingBus *bookingbus.Core) *app {
	return &app{
		bookingBus: bookingBus,
	}
}

func (a *app) newWithTx(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, err
	}

	bookingBus, err := a.bookingBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return newApp(bookingBus), nil
}

func (a *app) propose(ctx context.Context, r *http.Request) web.Encoder {
	var app NewBooking
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	ac := mid.GetAccessContext(ctx)

	tenantID, err := ac.RequireTenant()
	if err != nil {
		return errs.NewHidden(errs.PermissionDenied, "session has no tenant", err)
	}

	nb, err := toBusNewBooking(app, tenantID)
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.New(errs.InvalidArgument, err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	b, err := a.bookingBus.Propose(ctx, ac, nb)
	if err != nil {
		if errors.Is(err, bookingbus.ErrConflict) {
			return errs.New(errs.Aborted, bookingbus.ErrConflict).WithDetails(Conflict{
				ResourceID: nb.ResourceID.String(),
				Range:      nb.Range,
			})
		}
		return busError(err)
	}

	return toAppBooking(b)
}

func (a *app) changeStatus(ctx context.Context, r *http.Request) web.Encoder {
	var app StatusChange
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	to, err := app.toBus()
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.New(errs.InvalidArgument, err)
	}

	return a.mutate(ctx, r, func(a *app, ac tenancy.AccessContext, b bookingbus.Booking) (bookingbus.Booking, error) {
		return a.bookingBus.ChangeStatus(ctx, ac, b, to)
	})
}

func (a *app) reopen(ctx context.Context, r *http.Request) web.Encoder {
	var app StatusChange
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	to, err := app.toBus()
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.New(errs.InvalidArgument, err)
	}

	return a.mutate(ctx, r, func(a *app, ac tenancy.AccessContext, b bookingbus.Booking) (bookingbus.Booking, error) {
		return a.bookingBus.Reopen(ctx, ac, b, to)
	})
}

func (a *app) appendNote(ctx context.Context, r *http.Request) web.Encoder {
	var app NewNote
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	return a.mutate(ctx, r, func(a *app, ac tenancy.AccessContext, b bookingbus.Booking) (bookingbus.Booking, error) {
		return a.bookingBus.AppendNote(ctx, ac, b, app.Text)
	})
}

// mutate loads the booking named in the path inside the request transaction
// and applies fn to it.
func (a *app) mutate(ctx context.Context, r *http.Request, fn func(a *app, ac tenancy.AccessContext, b bookingbus.Booking) (bookingbus.Booking, error)) web.Encoder {
	bookingID, err := uuid.Parse(web.Param(r, "booking_id"))
	if err != nil {
		return errs.NewFieldErrors("booking_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	ac := mid.GetAccessContext(ctx)

	b, err := a.bookingBus.QueryByID(ctx, ac, bookingID)
	if err != nil {
		return busError(err)
	}

	upd, err := fn(a, ac, b)
	if err != nil {
		if errors.Is(err, bookingbus.ErrConflict) {
			return errs.New(errs.Aborted, bookingbus.ErrConflict).WithDetails(Conflict{
				ResourceID: b.ResourceID.String(),
				Range:      b.Range,
			})
		}
		return busError(err)
	}

	return toAppBooking(upd)
}

func (a *app) anonymize(ctx context.Context, r *http.Request) web.Encoder {
	var app AnonymizeRequest
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	a, err := a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	n, err := a.bookingBus.Anonymize(ctx, mid.GetAccessContext(ctx), app.Email)
	if err != nil {
		if errors.Is(err, tenancy.ErrAccessDenied) {
			return errs.NewHidden(errs.PermissionDenied, "session has no tenant", err)
		}
		return busError(err)
	}

	return Anonymized{Bookings: n}
}

func (a *app) query(ctx context.Context, r *http.Request) web.Encoder {
	qp := parseQueryParams(r)

	pg, err := page.Parse(qp.Page, qp.Rows)
	if err != nil {
		return errs.NewFieldErrors("page", err)
	}

	filter, err := parseFilter(qp)
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.NewFieldErrors("filter", err)
	}

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, bookingbus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	ac := mid.GetAccessContext(ctx)

	bks, err := a.bookingBus.Query(ctx, ac, filter, orderBy, pg)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %w", err)
	}

	total, err := a.bookingBus.Count(ctx, ac, filter)
	if err != nil {
		return errs.Errorf(errs.Internal, "count: %w", err)
	}

	return query.NewResult(toAppBookings(bks), total, pg)
}

func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	bookingID, err := uuid.Parse(web.Param(r, "booking_id"))
	if err != nil {
		return errs.NewFieldErrors("booking_id", err)
	}

	b, err := a.bookingBus.QueryByID(ctx, mid.GetAccessContext(ctx), bookingID)
	if err != nil {
		return busError(err)
	}

	return toAppBooking(b)
}

// busError maps booking failures onto app errors. Rows of other tenants are
// reported exactly like missing rows.
func busError(err error) *errs.Error {
	switch {
	case errors.Is(err, bookingbus.ErrNotFound), errors.Is(err, tenancy.ErrAccessDenied):
		return errs.NewHidden(errs.NotFound, "booking not found", err)

	case errors.Is(err, resourcebus.ErrNotFound):
		return errs.NewHidden(errs.NotFound, "resource not found", err)

	case errors.Is(err, bookingbus.ErrStatusChanged):
		return errs.New(errs.Aborted, bookingbus.ErrStatusChanged)

	case errors.Is(err, bookingbus.ErrInvalidTransition):
		return errs.New(errs.FailedPrecondition, bookingbus.ErrInvalidTransition)

	case errors.Is(err, bookingbus.ErrTerminal):
		return errs.New(errs.FailedPrecondition, bookingbus.ErrTerminal)

	case errors.Is(err, bookingbus.ErrNotTerminal):
		return errs.New(errs.FailedPrecondition, bookingbus.ErrNotTerminal)

	case errors.Is(err, bookingbus.ErrInvalidRange):
		return errs.NewFieldErrors("range", bookingbus.ErrInvalidRange)

	case errors.Is(err, bookingbus.ErrResourceRequired):
		return errs.NewFieldErrors("resource_id", bookingbus.ErrResourceRequired)

	case errors.Is(err, bookingbus.ErrInvalidNote):
		return errs.NewFieldErrors("text", bookingbus.ErrInvalidNote)

	case errors.Is(err, bookingbus.ErrEmailRequired):
		return errs.NewFieldErrors("email", bookingbus.ErrEmailRequired)
	}

	return errs.Errorf(errs.Internal, "booking: %w", err)
}
