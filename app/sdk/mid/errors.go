package mid

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Errors handles errors coming out of the call chain. Internal failures are
// logged in full and reach the client as a generic message.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err := checkIsError(resp)
			if err == nil {
				return resp
			}

			var appErr *errs.Error
			if !errors.As(err, &appErr) {
				appErr = errs.New(errs.Internal, err)
			}

			log.Error(ctx, "handled error during request",
				"err", err,
				"source_err_file", path.Base(appErr.FileName),
				"source_err_func", path.Base(appErr.FuncName))

			if errors.Is(err, tenancy.ErrAccessDenied) {
				log.Warn(ctx, "access denied", "security", true, "method", r.Method, "path", r.URL.Path, "ac", GetAccessContext(ctx))
			}

			switch appErr.Code {
			case errs.Internal, errs.InternalOnlyLog:
				return errs.Errorf(errs.Internal, "Internal Server Error")
			}

			return appErr
		}

		return h
	}

	return m
}
