package mid

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Authorize checks the session role against the policy for res. The action
// is derived from the HTTP method.
func Authorize(log *logger.Logger, acl *aclbus.Core, res resource.Resource) web.MidFunc {
	return authorize(log, acl, res, nil)
}

// AuthorizeAction is Authorize for routes whose method does not describe
// what they do, like a POST that changes a booking's status.
func AuthorizeAction(log *logger.Logger, acl *aclbus.Core, res resource.Resource, act actions.Action) web.MidFunc {
	return authorize(log, acl, res, &act)
}

func authorize(log *logger.Logger, acl *aclbus.Core, res resource.Resource, fixed *actions.Action) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			rl, err := GetRole(ctx)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			act, err := actionFor(r.Method, fixed)
			if err != nil {
				return errs.New(errs.FailedPrecondition, err)
			}

			actx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := acl.Authorize(actx, rl, res, act); err != nil {
				if errors.Is(err, aclbus.ErrAccessDenied) {
					log.Warn(ctx, "authorize: denied", "security", true, "role", rl, "resource", res, "action", act, "ac", GetAccessContext(ctx))
					return errs.New(errs.PermissionDenied, err)
				}
				return errs.New(errs.Internal, err)
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}

func actionFor(method string, fixed *actions.Action) (actions.Action, error) {
	if fixed != nil {
		return *fixed, nil
	}

	return actions.FromMethod(method)
}
