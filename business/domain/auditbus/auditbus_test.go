package auditbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	recs   []Record
	cutoff time.Time
}

func (m *memStore) NewWithTx(sqldb.CommitRollbacker) (Storer, error) { return m, nil }

func (m *memStore) Insert(_ context.Context, rec Record) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Query(context.Context, tenancy.AccessContext, QueryFilter, order.By, page.Page) ([]Record, error) {
	return m.recs, nil
}

func (m *memStore) Count(context.Context, tenancy.AccessContext, QueryFilter) (int, error) {
	return len(m.recs), nil
}

func (m *memStore) Purge(_ context.Context, cutoff time.Time) (int, error) {
	m.cutoff = cutoff

	var kept []Record
	n := 0
	for _, r := range m.recs {
		if r.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.recs = kept

	return n, nil
}

type thing struct {
	Name string `json:"name"`
}

func TestRecordImageRules(t *testing.T) {
	store := &memStore{}
	core := NewCore(logger.NewDiscard(), store)

	tenantID := uuid.New()
	id := uuid.New()
	actor := uuid.New()

	tests := []struct {
		name    string
		ch      Change
		wantErr bool
	}{
		{"insert", Change{Op: auditop.Insert, After: thing{"a"}}, false},
		{"insert with before", Change{Op: auditop.Insert, Before: thing{"a"}, After: thing{"b"}}, true},
		{"update", Change{Op: auditop.Update, Before: thing{"a"}, After: thing{"b"}}, false},
		{"update without after", Change{Op: auditop.Update, Before: thing{"a"}}, true},
		{"delete", Change{Op: auditop.Delete, Before: thing{"a"}}, false},
		{"delete with after", Change{Op: auditop.Delete, Before: thing{"a"}, After: thing{"b"}}, true},
		{"anonymize", Change{Op: auditop.Anonymize, Before: thing{"a"}, After: thing{""}}, false},
		{"nil pointer image", Change{Op: auditop.Insert, Before: (*thing)(nil), After: thing{"a"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ch.TenantID = tenantID
			tt.ch.Entity = "things"
			tt.ch.Key = IDKey("thing_id", id)
			tt.ch.ActorID = &actor

			err := core.Record(context.Background(), tt.ch)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrInvalidChange), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Len(t, store.recs, 5)

	first := store.recs[0]
	require.Nil(t, first.Before)
	require.JSONEq(t, `{"name":"a"}`, string(first.After))
	require.Equal(t, id.String(), first.EntityKey)
	require.Equal(t, actor, *first.ActorID)
}

func TestRecordRequiresIdentityAndTenant(t *testing.T) {
	core := NewCore(logger.NewDiscard(), &memStore{})

	err := core.Record(context.Background(), Change{Op: auditop.Insert, Entity: "things", Key: IDKey("id", uuid.New()), After: thing{}})
	require.True(t, errors.Is(err, ErrInvalidChange))

	err = core.Record(context.Background(), Change{TenantID: uuid.New(), Op: auditop.Insert, Entity: "things", After: thing{}})
	require.True(t, errors.Is(err, ErrInvalidChange))
}

func TestCompositeKey(t *testing.T) {
	tenantID := uuid.MustParse("5cf37266-3473-4006-984f-9325122678b7")
	userID := uuid.MustParse("45b5fbd3-755f-4379-8f07-a58d4a30fa2f")

	key := Key{
		{Column: "tenant_id", Value: tenantID.String()},
		{Column: "user_id", Value: userID.String()},
	}

	require.Equal(t, "tenant_id=5cf37266-3473-4006-984f-9325122678b7&user_id=45b5fbd3-755f-4379-8f07-a58d4a30fa2f", key.String())
}

func TestPurgeIsIdempotent(t *testing.T) {
	store := &memStore{}
	core := NewCore(logger.NewDiscard(), store)

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(-1, 0, -1)
	fresh := now.AddDate(0, -11, 0)

	for _, at := range []time.Time{old, old, fresh} {
		store.recs = append(store.recs, Record{ID: uuid.New(), CreatedAt: at, Before: json.RawMessage(`{}`)})
	}

	n, err := core.Purge(context.Background(), now, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), store.cutoff)

	n, err = core.Purge(context.Background(), now, 0)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, store.recs, 1)
}
