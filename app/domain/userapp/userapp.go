// Package userapp maintains the app layer api for the user domain.
package userapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/query"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

type app struct {
	userBus   *userbus.Core
	tenantBus *tenantbus.Core
}

func newApp(userBus *userbus.Core, tenantBus *tenantbus.Core) *app {
	return &app{
		userBus:   userBus,
		tenantBus: tenantBus,
	}
}

// newWithTx constructs a new app value with the domain apis
// using a store transaction that was created via middleware.
func (a *app) newWithTx(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, err
	}

	userBus, err := a.userBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	tenantBus, err := a.tenantBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &app{
		userBus:   userBus,
		tenantBus: tenantBus,
	}, nil
}

// create adds a new user. When the caller acts in a tenant the new user
// becomes a member of it in the same transaction.
func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewUser
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	nu, err := toBusNewUser(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	usr, err := a.userBus.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, userbus.ErrUniqueEmail) {
			return errs.New(errs.Aborted, userbus.ErrUniqueEmail)
		}
		return errs.Errorf(errs.Internal, "create: email[%s]: %w", nu.Email.Address, err)
	}

	ac := mid.GetAccessContext(ctx)
	if tenantID, ok := ac.TenantID(); ok {
		if _, err := a.tenantBus.AddMember(ctx, ac, tenantID, usr.ID); err != nil {
			return errs.Errorf(errs.Internal, "addmember: tenantID[%s]: %w", tenantID, err)
		}
	}

	return toAppUser(usr)
}

func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateUser
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	uu, err := toBusUpdateUser(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	userID, err := uuid.Parse(web.Param(r, "user_id"))
	if err != nil {
		return errs.NewFieldErrors("user_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	ac := mid.GetAccessContext(ctx)

	usr, err := a.userBus.QueryByID(ctx, ac, userID)
	if err != nil {
		return busError(err, userID)
	}

	updUsr, err := a.userBus.Update(ctx, ac, usr, uu)
	if err != nil {
		if errors.Is(err, userbus.ErrUniqueEmail) {
			return errs.New(errs.Aborted, userbus.ErrUniqueEmail)
		}
		return busError(err, userID)
	}

	return toAppUser(updUsr)
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

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, userbus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	ac := mid.GetAccessContext(ctx)

	usrs, err := a.userBus.Query(ctx, ac, filter, orderBy, pg)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %w", err)
	}

	total, err := a.userBus.Count(ctx, ac, filter)
	if err != nil {
		return errs.Errorf(errs.Internal, "count: %w", err)
	}

	return query.NewResult(toAppUsers(usrs), total, pg)
}

func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	userID, err := uuid.Parse(web.Param(r, "user_id"))
	if err != nil {
		return errs.NewFieldErrors("user_id", err)
	}

	usr, err := a.userBus.QueryByID(ctx, mid.GetAccessContext(ctx), userID)
	if err != nil {
		return busError(err, userID)
	}

	return toAppUser(usr)
}

// busError maps lookup failures. A user outside the caller's tenants is
// reported exactly like a missing one.
func busError(err error, userID uuid.UUID) *errs.Error {
	switch {
	case errors.Is(err, userbus.ErrNotFound), errors.Is(err, tenancy.ErrAccessDenied):
		return errs.NewHidden(errs.NotFound, "user not found", err)
	}

	return errs.Errorf(errs.Internal, "user[%s]: %w", userID, err)
}
