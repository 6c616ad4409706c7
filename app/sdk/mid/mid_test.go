package mid_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type beginner struct {
	begun     int
	commits   int
	rollbacks int
}

func (b *beginner) Begin() (sqldb.CommitRollbacker, error) {
	b.begun++
	return &tx{b: b}, nil
}

type tx struct {
	b    *beginner
	done bool
}

func (t *tx) Commit() error {
	t.done = true
	t.b.commits++
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.b.rollbacks++
	return nil
}

type text string

func (t text) Encode() ([]byte, string, error) {
	return []byte(t), "text/plain", nil
}

func TestBeginCommitRollbackRetriesTransient(t *testing.T) {
	sqldb.RetryDelay = time.Millisecond

	b := &beginner{}
	calls := 0

	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		calls++

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, `{"status":"confirmed"}`, string(body))

		_, err = mid.GetTran(ctx)
		require.NoError(t, err)

		if calls < 3 {
			return errs.New(errs.Internal, fmt.Errorf("updatestatus: %w", sqldb.ErrDBTransient))
		}

		return text("ok")
	}

	h := mid.BeginCommitRollback(logger.NewDiscard(), b, 3)(handler)

	r := httptest.NewRequest(http.MethodPut, "/v1/bookings/x/status", strings.NewReader(`{"status":"confirmed"}`))
	resp := h(context.Background(), r)

	require.Equal(t, text("ok"), resp)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, b.begun)
	assert.Equal(t, 1, b.commits)
	assert.Equal(t, 2, b.rollbacks)
}

func TestBeginCommitRollbackGivesUp(t *testing.T) {
	sqldb.RetryDelay = time.Millisecond

	b := &beginner{}

	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		return errs.New(errs.Internal, sqldb.ErrDBTransient)
	}

	h := mid.BeginCommitRollback(logger.NewDiscard(), b, 2)(handler)

	resp := h(context.Background(), httptest.NewRequest(http.MethodPost, "/", nil))

	err, ok := resp.(error)
	require.True(t, ok)
	require.ErrorIs(t, err, sqldb.ErrDBTransient)
	assert.Equal(t, 3, b.begun)
	assert.Zero(t, b.commits)
}

func TestBeginCommitRollbackPermanentErrorNotRetried(t *testing.T) {
	b := &beginner{}

	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		return errs.New(errs.Aborted, errors.New("conflict"))
	}

	h := mid.BeginCommitRollback(logger.NewDiscard(), b, 3)(handler)
	h(context.Background(), httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, 1, b.begun)
	assert.Equal(t, 1, b.rollbacks)
}

func TestErrorsHidesInternal(t *testing.T) {
	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		return errs.New(errs.Internal, errors.New("pq: password authentication failed for user agenda"))
	}

	h := mid.Errors(logger.NewDiscard())(handler)
	resp := h(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))

	appErr := errs.GetError(resp.(error))
	require.NotNil(t, appErr)
	assert.Equal(t, errs.Internal, appErr.Code)
	assert.Equal(t, "Internal Server Error", appErr.Message)
}

func TestErrorsKeepsClientErrors(t *testing.T) {
	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		return errs.NewHidden(errs.NotFound, "booking not found", tenancy.ErrAccessDenied)
	}

	h := mid.Errors(logger.NewDiscard())(handler)
	resp := h(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))

	appErr := errs.GetError(resp.(error))
	require.NotNil(t, appErr)
	assert.Equal(t, errs.NotFound, appErr.Code)
	assert.Equal(t, "booking not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus())
}

func TestPanicsRecovered(t *testing.T) {
	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		panic("boom")
	}

	h := mid.Panics()(handler)
	resp := h(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))

	appErr := errs.GetError(resp.(error))
	require.NotNil(t, appErr)
	assert.Equal(t, errs.InternalOnlyLog, appErr.Code)
}

func TestGetAccessContextDefaultsToAnonymous(t *testing.T) {
	ac := mid.GetAccessContext(context.Background())

	_, hasTenant := ac.TenantID()
	_, hasUser := ac.UserID()
	assert.False(t, hasTenant)
	assert.False(t, hasUser)
	assert.False(t, ac.IsService())
}

func TestBeginCommitRollbackRejectsOversizeBody(t *testing.T) {
	b := &beginner{}
	calls := 0

	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		calls++
		return text("ok")
	}

	h := mid.BeginCommitRollback(logger.NewDiscard(), b, 0)(handler)

	body := strings.Repeat("x", 1<<20+1)
	resp := h(context.Background(), httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body)))

	appErr := errs.GetError(resp.(error))
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
	assert.Zero(t, calls, "the handler must not see a truncated body")
	assert.Zero(t, b.begun)
}

func TestBeginCommitRollbackAcceptsBodyAtLimit(t *testing.T) {
	b := &beginner{}
	size := 0

	handler := func(ctx context.Context, r *http.Request) web.Encoder {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		size = len(data)
		return text("ok")
	}

	h := mid.BeginCommitRollback(logger.NewDiscard(), b, 0)(handler)

	resp := h(context.Background(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 1<<20))))
	require.Equal(t, text("ok"), resp)
	assert.Equal(t, 1<<20, size)
}
