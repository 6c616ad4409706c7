// Package webhookapp receives callbacks from external providers. Every
// callback goes through the inbox so a provider retry is applied once.
package webhookapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/app/sdk/metrics"
	"github.com/jcpaschoal/spi-agenda/app/sdk/mid"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/sdk/web"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// SignatureHeader carries the hex encoded HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// ProviderPayments is the provider whose events drive booking status.
const ProviderPayments = "payments"

// Payment event types.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

type app struct {
	log        *logger.Logger
	secrets    map[string]string
	inboxBus   *inboxbus.Core
	bookingBus *bookingbus.Core
}

func newApp(log *logger.Logger, secrets map[string]string, inboxBus *inboxbus.Core, bookingBus *bookingbus.Core) *app {
	return &app{
		log:        log,
		secrets:    secrets,
		inboxBus:   inboxBus,
		bookingBus: bookingBus,
	}
}

func (a *app) newWithTx(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return nil, err
	}

	inboxBus, err := a.inboxBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	bookingBus, err := a.bookingBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return newApp(a.log, a.secrets, inboxBus, bookingBus), nil
}

func (a *app) receive(ctx context.Context, r *http.Request) web.Encoder {
	provider := web.Param(r, "provider")

	secret, exists := a.secrets[provider]
	if !exists {
		return errs.Errorf(errs.NotFound, "unknown provider %q", provider)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	if !validSignature(secret, body, r.Header.Get(SignatureHeader)) {
		a.log.Warn(ctx, "webhook: bad signature", "security", true, "provider", provider)
		return errs.Errorf(errs.Unauthenticated, "invalid signature")
	}

	var env Envelope
	if err := env.Decode(body); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	if err := env.Validate(); err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.New(errs.InvalidArgument, err)
	}

	a, err = a.newWithTx(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	svc := tenancy.Service()

	applied, err := a.inboxBus.Record(ctx, svc, inboxbus.NewEvent{
		Provider:        provider,
		ProviderEventID: env.ID,
		Payload:         body,
	})
	if err != nil {
		if errors.Is(err, inboxbus.ErrInvalidEvent) {
			return errs.New(errs.InvalidArgument, err)
		}
		return errs.Errorf(errs.Internal, "record: %w", err)
	}

	if !applied {
		metrics.AddInboxDuplicates(ctx)
		return Receipt{ID: env.ID, Applied: false}
	}

	if provider == ProviderPayments {
		if err := a.applyPayment(ctx, svc, env); err != nil {
			return errs.Errorf(errs.Internal, "apply: %w", err)
		}
	}

	return Receipt{ID: env.ID, Applied: true}
}

// applyPayment moves the referenced booking. Events that cannot move it
// are acknowledged and logged so the provider stops retrying.
func (a *app) applyPayment(ctx context.Context, ac tenancy.AccessContext, env Envelope) error {
	var to bookingstatus.Status
	switch env.Type {
	case PaymentSucceeded:
		to = bookingstatus.Confirmed
	case PaymentFailed:
		to = bookingstatus.Cancelled
	default:
		a.log.Info(ctx, "webhook: ignored", "type", env.Type, "id", env.ID)
		return nil
	}

	var p Payment
	if err := p.Decode(env.Data); err != nil {
		a.log.Warn(ctx, "webhook: bad payment data", "id", env.ID, "ERROR", err)
		return nil
	}

	b, err := a.bookingBus.QueryByID(ctx, ac, p.BookingID)
	if err != nil {
		if errors.Is(err, bookingbus.ErrNotFound) {
			a.log.Warn(ctx, "webhook: booking not found", "id", env.ID, "bookingID", p.BookingID)
			return nil
		}
		return fmt.Errorf("query booking: %w", err)
	}

	if b.Status != bookingstatus.Pending {
		a.log.Info(ctx, "webhook: booking not pending", "id", env.ID, "bookingID", b.ID, "status", b.Status)
		return nil
	}

	if _, err := a.bookingBus.ChangeStatus(ctx, ac, b, to); err != nil {
		if errors.Is(err, bookingbus.ErrConflict) || errors.Is(err, bookingbus.ErrInvalidTransition) {
			a.log.Warn(ctx, "webhook: booking not moved", "id", env.ID, "bookingID", b.ID, "ERROR", err)
			return nil
		}
		return fmt.Errorf("change status: %w", err)
	}

	return nil
}

// Sign returns the signature a provider sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(got, mac.Sum(nil))
}
