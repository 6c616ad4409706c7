package bookingapp_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/domain/bookingapp"
	"github.com/jcpaschoal/spi-agenda/app/sdk/auth"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/bookingtest"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/jcpaschoal/spi-agenda/foundation/keystore"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

const kid = "test-kid"

type policies map[aclbus.Policy]bool

func (p policies) NewWithTx(sqldb.CommitRollbacker) (aclbus.Storer, error) { return p, nil }
func (p policies) Grant(_ context.Context, pol aclbus.Policy) error        { p[pol] = true; return nil }
func (p policies) Revoke(_ context.Context, pol aclbus.Policy) error       { delete(p, pol); return nil }

func (p policies) QueryPolicies(context.Context) ([]aclbus.Policy, error) {
	var out []aclbus.Policy
	for pol := range p {
		out = append(out, pol)
	}
	return out, nil
}

func (p policies) Allowed(_ context.Context, pol aclbus.Policy) (bool, error) {
	return p[pol], nil
}

type beginner struct{}

func (beginner) Begin() (sqldb.CommitRollbacker, error) { return tx{}, nil }

type tx struct{}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

// =============================================================================

type fixture struct {
	handler  http.Handler
	auth     *auth.Auth
	env      bookingtest.Env
	tenantID uuid.UUID
	resource resourcebus.Resource
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	log := logger.NewDiscard()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ks := keystore.New()
	require.NoError(t, ks.Add(kid, pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(pk),
	})))

	a := auth.New(auth.Config{Log: log, KeyLookup: ks, Issuer: "agenda"})

	acl := policies{}
	for _, act := range []actions.Action{actions.Get, actions.Create, actions.Update} {
		acl[aclbus.Policy{Role: role.Staff, Resource: resource.Booking, Action: act}] = true
		acl[aclbus.Policy{Role: role.Admin, Resource: resource.Booking, Action: act}] = true
	}
	acl[aclbus.Policy{Role: role.Admin, Resource: resource.Customer, Action: actions.Delete}] = true

	env := bookingtest.New(nil)
	tenantID := uuid.New()

	app := web.NewApp(log.Info, noop.NewTracerProvider().Tracer("test"), mid.Errors(log), mid.Panics())

	bookingapp.Routes(app, bookingapp.Config{
		Log:        log,
		Auth:       a,
		ACLBus:     aclbus.NewCore(log, acl),
		BookingBus: env.Core,
		Beginner:   beginner{},
		TxRetries:  1,
	})

	return fixture{
		handler:  app,
		auth:     a,
		env:      env,
		tenantID: tenantID,
		resource: env.Resources.Add(tenantID),
	}
}

func (f fixture) token(t *testing.T, tenantID uuid.UUID, r role.Role) string {
	t.Helper()

	tok, err := f.auth.GenerateToken(kid, tenantID, uuid.New(), r)
	require.NoError(t, err)

	return "Bearer " + tok
}

func (f fixture) do(t *testing.T, method string, path string, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Authorization", token)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	return w
}

func (f fixture) proposal(start string, end string, email string) string {
	return fmt.Sprintf(`{"resource_id":%q,"start":%q,"end":%q,"customer_name":"Ana","customer_email":%q}`,
		f.resource.ID, start, end, email)
}

// =============================================================================

func TestProposeAndConflict(t *testing.T) {
	f := newFixture(t)
	staff := f.token(t, f.tenantID, role.Staff)

	w := f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:00:00Z", "2025-03-10T10:30:00Z", "ana@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var b bookingapp.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "pending", b.Status)
	assert.Equal(t, f.tenantID.String(), b.TenantID)

	w = f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:15:00Z", "2025-03-10T10:45:00Z", "bia@example.com"))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var errResp struct {
		Code    string              `json:"code"`
		Details bookingapp.Conflict `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "aborted", errResp.Code)
	assert.Equal(t, f.resource.ID.String(), errResp.Details.ResourceID)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC), errResp.Details.Range.Start())

	w = f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:30:00Z", "2025-03-10T11:00:00Z", "bia@example.com"))
	assert.Equal(t, http.StatusOK, w.Code, "back to back ranges do not overlap")
}

func TestProposeRejectsInvalidRange(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/bookings", f.token(t, f.tenantID, role.Staff), f.proposal("2025-03-10T11:00:00Z", "2025-03-10T10:00:00Z", "ana@example.com"))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestOtherTenantSeesNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/bookings", f.token(t, f.tenantID, role.Staff), f.proposal("2025-03-10T10:00:00Z", "2025-03-10T10:30:00Z", "ana@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var b bookingapp.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))

	other := f.token(t, uuid.New(), role.Admin)

	w = f.do(t, http.MethodGet, "/v1/bookings/"+b.ID, other, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/v1/bookings/"+uuid.NewString(), f.token(t, f.tenantID, role.Staff), "")
	assert.Equal(t, http.StatusNotFound, w.Code, "a missing booking looks the same as a foreign one")

	w = f.do(t, http.MethodPut, "/v1/bookings/"+b.ID+"/status", other, `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	staff := f.token(t, f.tenantID, role.Staff)

	w := f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:00:00Z", "2025-03-10T10:30:00Z", "ana@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var b bookingapp.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))

	w = f.do(t, http.MethodPut, "/v1/bookings/"+b.ID+"/status", staff, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPut, "/v1/bookings/"+b.ID+"/status", staff, `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a terminal booking does not move")

	w = f.do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/reopen", staff, `{"status":"pending"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAnonymize(t *testing.T) {
	f := newFixture(t)
	staff := f.token(t, f.tenantID, role.Staff)

	w := f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:00:00Z", "2025-03-10T10:30:00Z", "ana@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/v1/customers/anonymize", staff, `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusForbidden, w.Code, "staff may not erase customers")

	w = f.do(t, http.MethodPost, "/v1/customers/anonymize", f.token(t, f.tenantID, role.Admin), `{"email":"ANA@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res bookingapp.Anonymized
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Bookings)
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMalformedInputIsBadRequest(t *testing.T) {
	f := newFixture(t)
	staff := f.token(t, f.tenantID, role.Staff)

	body := `{"resource_id":"not-a-uuid","start":"2025-03-10T10:00:00Z","end":"2025-03-10T10:30:00Z","customer_name":"Ana","customer_email":"ana@example.com"}`
	w := f.do(t, http.MethodPost, "/v1/bookings", staff, body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	var errResp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_argument", errResp.Code)
	assert.Contains(t, errResp.Details, "resource_id")

	w = f.do(t, http.MethodPost, "/v1/bookings", staff, f.proposal("2025-03-10T10:00:00Z", "2025-03-10T10:30:00Z", "ana@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var b bookingapp.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))

	w = f.do(t, http.MethodPut, "/v1/bookings/"+b.ID+"/status", staff, `{"status":"teleported"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/v1/bookings?status=teleported", staff, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}
