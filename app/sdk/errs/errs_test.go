package errs_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/stretchr/testify/require"
)

type newThing struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestCheck(t *testing.T) {
	err := errs.Check(newThing{Email: "nope"})
	require.Error(t, err)

	fe := errs.GetFieldErrors(err)
	require.Len(t, fe, 2)

	fields := fe.Fields()
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "email")

	require.NoError(t, errs.Check(newThing{Name: "Ann", Email: "ann@example.com"}))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code errs.ErrCode
		want int
	}{
		{errs.InvalidArgument, http.StatusBadRequest},
		{errs.Aborted, http.StatusConflict},
		{errs.NotFound, http.StatusNotFound},
		{errs.PermissionDenied, http.StatusForbidden},
		{errs.Unauthenticated, http.StatusUnauthorized},
		{errs.Unavailable, http.StatusServiceUnavailable},
		{errs.InternalOnlyLog, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, errs.New(tt.code, errors.New("x")).HTTPStatus(), tt.code.String())
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("lock timeout")
	err := errs.New(errs.Internal, fmt.Errorf("propose: %w", cause))

	require.True(t, errors.Is(err, cause))
	require.True(t, errs.IsError(fmt.Errorf("wrapped: %w", err)))
}

func TestEncodeDetails(t *testing.T) {
	err := errs.New(errs.Aborted, errors.New("booking conflict")).WithDetails(map[string]string{"booking_id": "b1"})

	data, ct, encErr := err.Encode()
	require.NoError(t, encErr)
	require.Equal(t, "application/json", ct)

	var got struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "aborted", got.Code)
	require.Equal(t, "b1", got.Details["booking_id"])
}
