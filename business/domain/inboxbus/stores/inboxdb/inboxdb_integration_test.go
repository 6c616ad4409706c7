package inboxdb_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/dbtest"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/stretchr/testify/require"
)

func Test_InboxIdempotence(t *testing.T) {
	db := dbtest.New(t, "test_inbox")
	ctx := context.Background()

	id := "evt_" + uuid.NewString()

	record := func(payload string) bool {
		var applied bool
		err := db.WithinTran(ctx, func(bus dbtest.BusDomain) error {
			var err error
			applied, err = bus.Inbox.Record(ctx, tenancy.Service(), inboxbus.NewEvent{
				Provider:        "payments",
				ProviderEventID: id,
				Payload:         json.RawMessage(payload),
			})
			return err
		})
		require.NoError(t, err)
		return applied
	}

	require.True(t, record(`{"amount":100}`))
	require.False(t, record(`{"amount":999}`))

	e, err := db.BusDomain.Inbox.QueryByKey(ctx, "payments", id)
	require.NoError(t, err)
	require.JSONEq(t, `{"amount":100}`, string(e.Payload), "the replay leaves state unchanged")

	n, err := db.Count(ctx, `SELECT count(1) FROM inbox_events WHERE provider_event_id = $1`, id)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = db.BusDomain.Inbox.Record(ctx, tenancy.New(uuid.New(), uuid.New()), inboxbus.NewEvent{Provider: "payments", ProviderEventID: "x"})
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)
}
