package usercache_test

import (
	"context"
	"net/mail"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus/stores/usercache"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	usr   userbus.User
	calls atomic.Int32
}

func (c *countingStore) NewWithTx(sqldb.CommitRollbacker) (userbus.Storer, error) { return c, nil }
func (c *countingStore) Create(context.Context, userbus.User) error               { return nil }

func (c *countingStore) Update(_ context.Context, _ tenancy.AccessContext, usr userbus.User) error {
	c.usr = usr
	return nil
}

func (c *countingStore) Delete(context.Context, tenancy.AccessContext, userbus.User) error {
	return nil
}

func (c *countingStore) Query(context.Context, tenancy.AccessContext, userbus.QueryFilter, order.By, page.Page) ([]userbus.User, error) {
	return nil, nil
}

func (c *countingStore) Count(context.Context, tenancy.AccessContext, userbus.QueryFilter) (int, error) {
	return 0, nil
}

func (c *countingStore) QueryByID(context.Context, tenancy.AccessContext, uuid.UUID) (userbus.User, error) {
	return c.usr, nil
}

func (c *countingStore) QueryByEmail(_ context.Context, email mail.Address) (userbus.User, error) {
	c.calls.Add(1)
	if email.Address != c.usr.Email.Address {
		return userbus.User{}, userbus.ErrNotFound
	}
	return c.usr, nil
}

func TestQueryByEmailReadsThroughAndEvicts(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{usr: userbus.User{ID: uuid.New(), Email: mail.Address{Address: "a@example.com"}, Enabled: true}}
	store := usercache.NewStore(logger.NewDiscard(), inner, time.Minute)

	for range 3 {
		usr, err := store.QueryByEmail(ctx, mail.Address{Address: "a@example.com"})
		require.NoError(t, err)
		require.Equal(t, inner.usr.ID, usr.ID)
	}
	require.EqualValues(t, 1, inner.calls.Load())

	updated := inner.usr
	updated.Enabled = false
	require.NoError(t, store.Update(ctx, tenancy.Service(), updated))

	usr, err := store.QueryByEmail(ctx, mail.Address{Address: "a@example.com"})
	require.NoError(t, err)
	require.False(t, usr.Enabled)
	require.EqualValues(t, 2, inner.calls.Load())
}

// =============================================================================

// stagedStore keeps writes invisible to readers until its transaction
// commits, the way the database does.
type stagedStore struct {
	countingStore
	staged *userbus.User
}

func (s *stagedStore) NewWithTx(sqldb.CommitRollbacker) (userbus.Storer, error) { return s, nil }

func (s *stagedStore) Update(_ context.Context, _ tenancy.AccessContext, usr userbus.User) error {
	s.staged = &usr
	return nil
}

type stagedTx struct {
	store *stagedStore
}

func (tx stagedTx) Commit() error {
	if tx.store.staged != nil {
		tx.store.usr = *tx.store.staged
		tx.store.staged = nil
	}
	return nil
}

func (tx stagedTx) Rollback() error {
	tx.store.staged = nil
	return nil
}

func TestReadBeforeCommitDoesNotOutliveCommit(t *testing.T) {
	ctx := context.Background()
	email := mail.Address{Address: "a@example.com"}

	inner := &stagedStore{countingStore: countingStore{usr: userbus.User{ID: uuid.New(), Email: email, Enabled: true}}}
	store := usercache.NewStore(logger.NewDiscard(), inner, time.Minute)

	tx := sqldb.NewTx(stagedTx{store: inner})
	txStore, err := store.NewWithTx(tx)
	require.NoError(t, err)

	disabled := inner.usr
	disabled.Enabled = false
	require.NoError(t, txStore.Update(ctx, tenancy.Service(), disabled))

	usr, err := store.QueryByEmail(ctx, email)
	require.NoError(t, err)
	require.True(t, usr.Enabled, "the update is not committed yet")

	require.NoError(t, tx.Commit())

	usr, err = store.QueryByEmail(ctx, email)
	require.NoError(t, err)
	require.False(t, usr.Enabled, "a disabled user must not be served from the cache")
}

func TestRollbackKeepsCachedRow(t *testing.T) {
	ctx := context.Background()
	email := mail.Address{Address: "a@example.com"}

	inner := &stagedStore{countingStore: countingStore{usr: userbus.User{ID: uuid.New(), Email: email, Enabled: true}}}
	store := usercache.NewStore(logger.NewDiscard(), inner, time.Minute)

	tx := sqldb.NewTx(stagedTx{store: inner})
	txStore, err := store.NewWithTx(tx)
	require.NoError(t, err)

	disabled := inner.usr
	disabled.Enabled = false
	require.NoError(t, txStore.Update(ctx, tenancy.Service(), disabled))
	require.NoError(t, tx.Rollback())

	usr, err := store.QueryByEmail(ctx, email)
	require.NoError(t, err)
	require.True(t, usr.Enabled)
}
