package mid

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// maxTranBody bounds the request body kept around for retries. Larger
// bodies are rejected before a transaction begins.
const maxTranBody = 1 << 20

// BeginCommitRollback starts a transaction for the domain call. When the
// handler fails with a transient database error the whole handler runs again
// on a fresh transaction, at most retries more times.
func BeginCommitRollback(log *logger.Logger, bgn sqldb.Beginner, retries int) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			var body []byte
			if r.Body != nil {
				b, err := io.ReadAll(io.LimitReader(r.Body, maxTranBody+1))
				if err != nil {
					return errs.Errorf(errs.InvalidArgument, "read body: %s", err)
				}
				if len(b) > maxTranBody {
					return errs.Errorf(errs.OutOfRange, "request body exceeds %d bytes", maxTranBody)
				}
				body = b
			}

			var resp web.Encoder

			for attempt := 0; attempt <= retries; attempt++ {
				if attempt > 0 {
					log.Warn(ctx, "RETRY TRANSACTION", "attempt", attempt, "ERROR", checkIsError(resp))

					select {
					case <-ctx.Done():
						return errs.New(errs.Unavailable, ctx.Err())
					case <-time.After(time.Duration(attempt) * sqldb.RetryDelay):
					}
				}

				r.Body = io.NopCloser(bytes.NewReader(body))

				resp = runTran(ctx, log, bgn, next, r)
				if !sqldb.IsTransient(checkIsError(resp)) {
					return resp
				}
			}

			return resp
		}

		return h
	}

	return m
}

func runTran(ctx context.Context, log *logger.Logger, bgn sqldb.Beginner, next web.HandlerFunc, r *http.Request) web.Encoder {
	hasCommitted := false

	log.Info(ctx, "BEGIN TRANSACTION")
	tx, err := bgn.Begin()
	if err != nil {
		return errs.Errorf(errs.Internal, "BEGIN TRANSACTION: %s", err)
	}

	defer func() {
		if hasCommitted {
			return
		}

		log.Info(ctx, "ROLLBACK TRANSACTION")
		if err := tx.Rollback(); err != nil {
			if errors.Is(err, sql.ErrTxDone) {
				return
			}
			log.Error(ctx, "ROLLBACK TRANSACTION", "ERROR", err)
		}
	}()

	ctx = setTran(ctx, tx)

	resp := next(ctx, r)

	if checkIsError(resp) != nil {
		return resp
	}

	log.Info(ctx, "COMMIT TRANSACTION")
	if err := sqldb.Commit(tx); err != nil {
		return errs.New(errs.Internal, fmt.Errorf("COMMIT TRANSACTION: %w", err))
	}

	hasCommitted = true

	return resp
}
