// Package inboxbus provides the deduplication ledger for callbacks received
// from external providers.
package inboxbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// Set of error variables for inbox operations.
var (
	ErrNotFound     = errors.New("inbox event not found")
	ErrInvalidEvent = errors.New("invalid inbox event")
)

// Storer interface declares the behavior this package needs to persist and
// retrieve data.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Insert(ctx context.Context, e Event) (bool, error)
	QueryByKey(ctx context.Context, provider string, providerEventID string) (Event, error)
}

// Core manages the set of APIs for inbox access.
type Core struct {
	log    *logger.Logger
	storer Storer
	now    func() time.Time
}

// NewCore constructs an inbox core for api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		log:    log,
		storer: storer,
		now:    time.Now,
	}
}

// NewWithTx constructs a new Core value that will use the
// specified transaction in any store related calls.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Core{
		log:    c.log,
		storer: storer,
		now:    c.now,
	}, nil
}

// Record stores the callback unless the (provider, provider event id) pair
// was seen before. applied is false for a replay, which is not an error:
// the caller must skip its side effects and answer success. Run it on a
// Core bound to the transaction that applies the side effects so a failed
// application can be redelivered.
func (c *Core) Record(ctx context.Context, ac tenancy.AccessContext, ne NewEvent) (applied bool, err error) {
	ctx, span := otel.AddSpan(ctx, "business.inboxbus.record")
	defer span.End()

	if !ac.IsService() {
		return false, fmt.Errorf("record: %w", tenancy.ErrAccessDenied)
	}

	if ne.Provider == "" || ne.ProviderEventID == "" {
		return false, fmt.Errorf("record: %w: missing provider key", ErrInvalidEvent)
	}

	payload := ne.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	e := Event{
		Provider:        ne.Provider,
		ProviderEventID: ne.ProviderEventID,
		Payload:         payload,
		ReceivedAt:      c.now().UTC(),
	}

	inserted, err := c.storer.Insert(ctx, e)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}

	if !inserted {
		c.log.Info(ctx, "inbox: replay absorbed", "provider", ne.Provider, "provider_event_id", ne.ProviderEventID)
	}

	return inserted, nil
}

// QueryByKey returns the recorded callback.
func (c *Core) QueryByKey(ctx context.Context, provider string, providerEventID string) (Event, error) {
	ctx, span := otel.AddSpan(ctx, "business.inboxbus.querybykey")
	defer span.End()

	e, err := c.storer.QueryByKey(ctx, provider, providerEventID)
	if err != nil {
		return Event{}, fmt.Errorf("query: provider[%s] id[%s]: %w", provider, providerEventID, err)
	}

	return e, nil
}
