package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Authenticate validates the bearer token and resolves the access context
// the rest of the request runs under. A session without a usable tenant id
// still authenticates; it just cannot see tenant data.
func Authenticate(log *logger.Logger, a *auth.Auth) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			authStr := r.Header.Get("authorization")
			if authStr == "" {
				return errs.New(errs.Unauthenticated, errors.New("missing authorization header"))
			}

			claims, err := a.Authenticate(ctx, authStr)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			ac := tenancy.Resolve(claims.TenantID, claims.Subject)
			if _, ok := ac.UserID(); !ok {
				log.Warn(ctx, "authenticate: subject rejected", "security", true, "subject", claims.Subject)
				return errs.New(errs.Unauthenticated, errors.New("invalid subject"))
			}

			if claims.TenantID != "" {
				if _, ok := ac.TenantID(); !ok {
					log.Warn(ctx, "authenticate: tenant claim rejected", "security", true, "subject", claims.Subject, "tenant", claims.TenantID)
				}
			}

			ctx = setClaims(ctx, claims)
			ctx = setAccessContext(ctx, ac)

			return next(ctx, r)
		}

		return h
	}

	return m
}
