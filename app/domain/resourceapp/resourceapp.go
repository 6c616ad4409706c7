// Package resourceapp maintains the app layer api for bookable resources.
package resourceapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/query"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

type app struct {
	resourceBus *resourcebus.Core
}

func newApp(resourceBus *resourcebus.Core) *app {
	return &app{
		resourceBus: resourceBus,
	}
}

func (a *app) newWithTx(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, err
	}

	resourceBus, err := a.resourceBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return newApp(resourceBus), nil
}

func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewResource
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	ac := mid.GetAccessContext(ctx)

	tenantID, err := ac.RequireTenant()
	if err != nil {
		return errs.NewHidden(errs.PermissionDenied, "session has no tenant", err)
	}

	nr, err := toBusNewResource(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}
	nr.TenantID = tenantID

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	res, err := a.resourceBus.Create(ctx, ac, nr)
	if err != nil {
		return busError(err)
	}

	return toAppResource(res)
}

func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateResource
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	resourceID, err := uuid.Parse(web.Param(r, "resource_id"))
	if err != nil {
		return errs.NewFieldErrors("resource_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	ac := mid.GetAccessContext(ctx)

	res, err := a.resourceBus.QueryByID(ctx, ac, resourceID)
	if err != nil {
		return busError(err)
	}

	res, err = a.resourceBus.Update(ctx, ac, res, toBusUpdateResource(app))
	if err != nil {
		return busError(err)
	}

	return toAppResource(res)
}

func (a *app) delete(ctx context.Context, r *http.Request) web.Encoder {
	resourceID, err := uuid.Parse(web.Param(r, "resource_id"))
	if err != nil {
		return errs.NewFieldErrors("resource_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	ac := mid.GetAccessContext(ctx)

	res, err := a.resourceBus.QueryByID(ctx, ac, resourceID)
	if err != nil {
		return busError(err)
	}

	if err := a.resourceBus.Delete(ctx, ac, res); err != nil {
		return busError(err)
	}

	return nil
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

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, resourcebus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	ac := mid.GetAccessContext(ctx)

	rs, err := a.resourceBus.Query(ctx, ac, filter, orderBy, pg)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %w", err)
	}

	total, err := a.resourceBus.Count(ctx, ac, filter)
	if err != nil {
		return errs.Errorf(errs.Internal, "count: %w", err)
	}

	return query.NewResult(toAppResources(rs), total, pg)
}

func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	resourceID, err := uuid.Parse(web.Param(r, "resource_id"))
	if err != nil {
		return errs.NewFieldErrors("resource_id", err)
	}

	res, err := a.resourceBus.QueryByID(ctx, mid.GetAccessContext(ctx), resourceID)
	if err != nil {
		return busError(err)
	}

	return toAppResource(res)
}

func busError(err error) *errs.Error {
	switch {
	case errors.Is(err, resourcebus.ErrNotFound), errors.Is(err, tenancy.ErrAccessDenied):
		return errs.NewHidden(errs.NotFound, "resource not found", err)
	case errors.Is(err, resourcebus.ErrInvalidName):
		return errs.NewFieldErrors("name", resourcebus.ErrInvalidName)
	case errors.Is(err, resourcebus.ErrInvalidCapacity):
		return errs.NewFieldErrors("capacity", resourcebus.ErrInvalidCapacity)
	case errors.Is(err, resourcebus.ErrInUse):
		return errs.New(errs.FailedPrecondition, resourcebus.ErrInUse)
	}

	return errs.Errorf(errs.Internal, "resource: %w", err)
}
