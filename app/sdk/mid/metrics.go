package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/metrics"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
)

// Metrics updates program counters.
func Metrics() web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			ctx = metrics.Set(ctx)

			resp := next(ctx, r)

			n := metrics.AddRequests(ctx)

			if n%1000 == 0 {
				metrics.AddGoroutines(ctx)
			}

			if err := checkIsError(resp); err != nil {
				metrics.AddErrors(ctx)

				if errors.Is(err, tenancy.ErrAccessDenied) {
					metrics.AddDenied(ctx)
				}

				if appErr := errs.GetError(err); appErr != nil && appErr.Code == errs.Aborted {
					metrics.AddConflicts(ctx)
				}
			}

			return resp
		}

		return h
	}

	return m
}
