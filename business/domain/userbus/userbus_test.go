package userbus_test

import (
	"context"
	"net/mail"
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/name"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	users map[uuid.UUID]userbus.User
}

func (m *memStore) NewWithTx(sqldb.CommitRollbacker) (userbus.Storer, error) { return m, nil }

func (m *memStore) Create(_ context.Context, usr userbus.User) error {
	m.users[usr.ID] = usr
	return nil
}

func (m *memStore) Update(_ context.Context, _ tenancy.AccessContext, usr userbus.User) error {
	m.users[usr.ID] = usr
	return nil
}

func (m *memStore) Delete(_ context.Context, _ tenancy.AccessContext, usr userbus.User) error {
	delete(m.users, usr.ID)
	return nil
}

func (m *memStore) Query(context.Context, tenancy.AccessContext, userbus.QueryFilter, order.By, page.Page) ([]userbus.User, error) {
	return nil, nil
}

func (m *memStore) Count(context.Context, tenancy.AccessContext, userbus.QueryFilter) (int, error) {
	return len(m.users), nil
}

func (m *memStore) QueryByID(_ context.Context, _ tenancy.AccessContext, id uuid.UUID) (userbus.User, error) {
	usr, ok := m.users[id]
	if !ok {
		return userbus.User{}, userbus.ErrNotFound
	}
	return usr, nil
}

func (m *memStore) QueryByEmail(_ context.Context, email mail.Address) (userbus.User, error) {
	for _, usr := range m.users {
		if usr.Email.Address == email.Address {
			return usr, nil
		}
	}
	return userbus.User{}, userbus.ErrNotFound
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	core := userbus.NewCore(&memStore{users: make(map[uuid.UUID]userbus.User)})

	email := mail.Address{Address: "ana@example.com"}

	usr, err := core.Create(ctx, userbus.NewUser{
		Name:     name.MustParse("Ana Souza"),
		Email:    email,
		Role:     role.Staff,
		Password: "gophers",
	})
	require.NoError(t, err)

	got, err := core.Authenticate(ctx, email, "gophers")
	require.NoError(t, err)
	require.Equal(t, usr.ID, got.ID)

	_, err = core.Authenticate(ctx, email, "wrong")
	require.ErrorIs(t, err, userbus.ErrAuthenticationFailure)

	_, err = core.Authenticate(ctx, mail.Address{Address: "nobody@example.com"}, "gophers")
	require.ErrorIs(t, err, userbus.ErrAuthenticationFailure)

	disabled := false
	_, err = core.Update(ctx, tenancy.Service(), usr, userbus.UpdateUser{Enabled: &disabled})
	require.NoError(t, err)

	_, err = core.Authenticate(ctx, email, "gophers")
	require.ErrorIs(t, err, userbus.ErrDisabled)
}
