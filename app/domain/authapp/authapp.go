// Package authapp maintains the app layer api for signing in.
package authapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

type app struct {
	log       *logger.Logger
	auth      *auth.Auth
	activeKID string
	userBus   *userbus.Core
	tenantBus *tenantbus.Core
}

func newApp(cfg Config) *app {
	return &app{
		log:       cfg.Log,
		auth:      cfg.Auth,
		activeKID: cfg.ActiveKID,
		userBus:   cfg.UserBus,
		tenantBus: cfg.TenantBus,
	}
}

func (a *app) login(ctx context.Context, r *http.Request) web.Encoder {
	var req Login
	if err := web.Decode(r, &req); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	addr, err := mail.ParseAddress(req.Email)
	if err != nil {
		return errs.NewFieldErrors("email", err)
	}

	var requested *uuid.UUID
	if req.Tenant != "" {
		id, err := uuid.Parse(req.Tenant)
		if err != nil {
			return errs.NewFieldErrors("tenant", err)
		}
		requested = &id
	}

	usr, err := a.userBus.Authenticate(ctx, *addr, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, userbus.ErrAuthenticationFailure), errors.Is(err, userbus.ErrDisabled):
			a.log.Warn(ctx, "login: rejected", "security", true, "email", addr.Address)
			return errs.NewHidden(errs.Unauthenticated, "invalid credentials", err)
		}
		return errs.Errorf(errs.Internal, "authenticate: %w", err)
	}

	tenantID, err := a.tenantBus.ResolveSessionTenant(ctx, usr.ID, requested)
	if err != nil {
		switch {
		case errors.Is(err, tenantbus.ErrNotMember):
			a.log.Warn(ctx, "login: tenant refused", "security", true, "userID", usr.ID, "tenant", req.Tenant)
			return errs.NewHidden(errs.PermissionDenied, "not a member of the requested tenant", err)
		case errors.Is(err, tenantbus.ErrTenantRequired):
			return errs.NewFieldErrors("tenant", err)
		}
		return errs.Errorf(errs.Internal, "resolve tenant: %w", err)
	}

	tokenStr, err := a.auth.GenerateToken(a.activeKID, tenantID, usr.ID, usr.Role)
	if err != nil {
		return errs.Errorf(errs.Internal, "generate token: %w", err)
	}

	return toAppToken(tokenStr, tenantID)
}

// tokenInfo returns what the presented session resolves to.
func (a *app) tokenInfo(ctx context.Context, r *http.Request) web.Encoder {
	claims, err := a.auth.Authenticate(ctx, r.Header.Get("authorization"))
	if err != nil {
		return errs.New(errs.Unauthenticated, fmt.Errorf("authenticate: %w", err))
	}

	return toAppSession(claims)
}
