// Package tenantapp maintains the app layer api for tenants and their
// memberships.
package tenantapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

type app struct {
	tenantBus *tenantbus.Core
}

func newApp(tenantBus *tenantbus.Core) *app {
	return &app{
		tenantBus: tenantBus,
	}
}

func (a *app) newWithTx(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, err
	}

	tenantBus, err := a.tenantBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return newApp(tenantBus), nil
}

func (a *app) query(ctx context.Context, _ *http.Request) web.Encoder {
	tenants, err := a.tenantBus.Query(ctx, mid.GetAccessContext(ctx))
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %w", err)
	}

	return toAppTenants(tenants)
}

func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewTenant
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	a, err := a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	t, err := a.tenantBus.Create(ctx, mid.GetAccessContext(ctx), toBusNewTenant(app))
	if err != nil {
		if errors.Is(err, tenantbus.ErrUniqueSlug) {
			return errs.New(errs.Aborted, tenantbus.ErrUniqueSlug)
		}
		return errs.Errorf(errs.Internal, "create: slug[%s]: %w", app.Slug, err)
	}

	return toAppTenant(t)
}

func (a *app) addMember(ctx context.Context, r *http.Request) web.Encoder {
	tenantID, err := uuid.Parse(web.Param(r, "tenant_id"))
	if err != nil {
		return errs.NewFieldErrors("tenant_id", err)
	}

	var app NewMember
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	userID, err := uuid.Parse(app.UserID)
	if err != nil {
		return errs.NewFieldErrors("user_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	m, err := a.tenantBus.AddMember(ctx, mid.GetAccessContext(ctx), tenantID, userID)
	if err != nil {
		switch {
		case errors.Is(err, tenantbus.ErrMemberExists):
			return errs.New(errs.AlreadyExists, tenantbus.ErrMemberExists)
		case errors.Is(err, sqldb.ErrDBForeignKey), errors.Is(err, tenantbus.ErrForeignUser):
			return errs.NewHidden(errs.NotFound, "user not found", err)
		}
		return busError(err)
	}

	return toAppMembership(m)
}

func (a *app) removeMember(ctx context.Context, r *http.Request) web.Encoder {
	tenantID, err := uuid.Parse(web.Param(r, "tenant_id"))
	if err != nil {
		return errs.NewFieldErrors("tenant_id", err)
	}

	userID, err := uuid.Parse(web.Param(r, "user_id"))
	if err != nil {
		return errs.NewFieldErrors("user_id", err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	if err := a.tenantBus.RemoveMember(ctx, mid.GetAccessContext(ctx), tenantID, userID); err != nil {
		if errors.Is(err, tenantbus.ErrMemberNotFound) {
			return errs.New(errs.NotFound, tenantbus.ErrMemberNotFound)
		}
		return busError(err)
	}

	return nil
}

// busError hides tenants the caller is not acting in behind not found.
func busError(err error) *errs.Error {
	switch {
	case errors.Is(err, tenancy.ErrAccessDenied), errors.Is(err, tenantbus.ErrNotFound):
		return errs.NewHidden(errs.NotFound, "tenant not found", err)
	}

	return errs.Errorf(errs.Internal, "tenant: %w", err)
}
