// Package auditapp maintains the app layer api for the audit trail.
package auditapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/query"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

type app struct {
	auditBus *auditbus.Core
}

func newApp(auditBus *auditbus.Core) *app {
	return &app{
		auditBus: auditBus,
	}
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

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, auditbus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	ac := mid.GetAccessContext(ctx)

	if _, err := ac.RequireTenant(); err != nil {
		return errs.NewHidden(errs.PermissionDenied, "session has no tenant", err)
	}

	recs, err := a.auditBus.Query(ctx, ac, filter, orderBy, pg)
	if err != nil {
		return busError(err)
	}

	total, err := a.auditBus.Count(ctx, ac, filter)
	if err != nil {
		return busError(err)
	}

	return query.NewResult(toAppRecords(recs), total, pg)
}

func busError(err error) *errs.Error {
	if errors.Is(err, tenancy.ErrAccessDenied) {
		return errs.NewHidden(errs.PermissionDenied, "audit not available", err)
	}

	return errs.Errorf(errs.Internal, "audit: %w", err)
}
