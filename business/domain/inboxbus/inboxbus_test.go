package inboxbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	events map[[2]string]Event
}

func (m *memStore) NewWithTx(sqldb.CommitRollbacker) (Storer, error) { return m, nil }

func (m *memStore) Insert(_ context.Context, e Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := [2]string{e.Provider, e.ProviderEventID}
	if _, ok := m.events[k]; ok {
		return false, nil
	}

	m.events[k] = e
	return true, nil
}

func (m *memStore) QueryByKey(_ context.Context, provider string, id string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[[2]string{provider, id}]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func TestRecordReplayKeepsFirstPayload(t *testing.T) {
	store := &memStore{events: make(map[[2]string]Event)}
	core := NewCore(logger.NewDiscard(), store)
	ctx := context.Background()

	applied, err := core.Record(ctx, tenancy.Service(), NewEvent{Provider: "payments", ProviderEventID: "evt_1", Payload: json.RawMessage(`{"n":1}`)})
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = core.Record(ctx, tenancy.Service(), NewEvent{Provider: "payments", ProviderEventID: "evt_1", Payload: json.RawMessage(`{"n":2}`)})
	require.NoError(t, err)
	require.False(t, applied)

	e, err := core.QueryByKey(ctx, "payments", "evt_1")
	require.NoError(t, err)
	require.JSONEq(t, `{"n":1}`, string(e.Payload))

	applied, err = core.Record(ctx, tenancy.Service(), NewEvent{Provider: "other", ProviderEventID: "evt_1"})
	require.NoError(t, err)
	require.True(t, applied, "keys are scoped by provider")
}

func TestRecordRequiresServiceTier(t *testing.T) {
	store := &memStore{events: make(map[[2]string]Event)}
	core := NewCore(logger.NewDiscard(), store)

	_, err := core.Record(context.Background(), tenancy.New(uuid.New(), uuid.New()), NewEvent{Provider: "payments", ProviderEventID: "evt_1"})
	require.True(t, errors.Is(err, tenancy.ErrAccessDenied))

	_, err = core.Record(context.Background(), tenancy.Service(), NewEvent{Provider: "payments"})
	require.True(t, errors.Is(err, ErrInvalidEvent))
}
