package tenantaudit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus/audittest"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus/stores/tenantaudit"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	tenants map[uuid.UUID]tenantbus.Tenant
	members map[[2]uuid.UUID]tenantbus.Membership
}

func newMemStore() *memStore {
	return &memStore{
		tenants: make(map[uuid.UUID]tenantbus.Tenant),
		members: make(map[[2]uuid.UUID]tenantbus.Membership),
	}
}

func (m *memStore) NewWithTx(sqldb.CommitRollbacker) (tenantbus.Storer, error) { return m, nil }

func (m *memStore) Create(_ context.Context, _ tenancy.AccessContext, t tenantbus.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *memStore) Update(_ context.Context, _ tenancy.AccessContext, t tenantbus.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *memStore) QueryByID(_ context.Context, _ tenancy.AccessContext, id uuid.UUID) (tenantbus.Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return tenantbus.Tenant{}, tenantbus.ErrNotFound
	}
	return t, nil
}

func (m *memStore) Query(context.Context, tenancy.AccessContext) ([]tenantbus.Tenant, error) {
	return nil, nil
}

func (m *memStore) QueryIDBySlug(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, tenantbus.ErrNotFound
}

func (m *memStore) AddMember(_ context.Context, _ tenancy.AccessContext, mb tenantbus.Membership) error {
	k := [2]uuid.UUID{mb.TenantID, mb.UserID}
	if _, ok := m.members[k]; ok {
		return tenantbus.ErrMemberExists
	}
	m.members[k] = mb
	return nil
}

func (m *memStore) RemoveMember(_ context.Context, _ tenancy.AccessContext, mb tenantbus.Membership) error {
	delete(m.members, [2]uuid.UUID{mb.TenantID, mb.UserID})
	return nil
}

func (m *memStore) QueryMember(_ context.Context, tenantID uuid.UUID, userID uuid.UUID) (tenantbus.Membership, error) {
	mb, ok := m.members[[2]uuid.UUID{tenantID, userID}]
	if !ok {
		return tenantbus.Membership{}, tenantbus.ErrMemberNotFound
	}
	return mb, nil
}

func (m *memStore) QueryTenantIDsByUserID(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for k := range m.members {
		if k[1] == userID {
			ids = append(ids, k[0])
		}
	}
	return ids, nil
}

func TestMembershipAuditUsesCompositeKey(t *testing.T) {
	ctx := context.Background()
	audit, recs := audittest.NewCore()
	core := tenantbus.NewCore(logger.NewDiscard(), tenantaudit.NewStore(newMemStore(), audit))

	adminID := uuid.New()
	tnt, err := core.Create(ctx, tenancy.New(uuid.Nil, adminID), tenantbus.NewTenant{Name: "Clinic", Slug: "clinic"})
	require.NoError(t, err)

	ac := tenancy.New(tnt.ID, adminID)
	memberID := uuid.New()

	_, err = core.AddMember(ctx, ac, tnt.ID, memberID)
	require.NoError(t, err)

	require.NoError(t, core.RemoveMember(ctx, ac, tnt.ID, memberID))

	got := recs.Records()
	require.Len(t, got, 4, "tenant insert, creator membership, member insert, member delete")

	require.Equal(t, tenantaudit.EntityTenant, got[0].Entity)
	require.Equal(t, auditop.Insert, got[0].Op)
	require.Nil(t, got[0].Before)
	require.Equal(t, tnt.ID.String(), got[0].EntityKey)

	wantKey := "tenant_id=" + tnt.ID.String() + "&user_id=" + memberID.String()

	require.Equal(t, tenantaudit.EntityMembership, got[2].Entity)
	require.Equal(t, auditop.Insert, got[2].Op)
	require.Equal(t, wantKey, got[2].EntityKey)

	require.Equal(t, auditop.Delete, got[3].Op)
	require.Equal(t, wantKey, got[3].EntityKey)
	require.NotNil(t, got[3].Before)
	require.Nil(t, got[3].After)
	require.Equal(t, adminID, *got[3].ActorID)
	require.Equal(t, tnt.ID, got[3].TenantID)
}

func TestUpdateCapturesBothImages(t *testing.T) {
	ctx := context.Background()
	audit, recs := audittest.NewCore()
	store := newMemStore()
	core := tenantbus.NewCore(logger.NewDiscard(), tenantaudit.NewStore(store, audit))

	tnt, err := core.Create(ctx, tenancy.Service(), tenantbus.NewTenant{Name: "Old", Slug: "old"})
	require.NoError(t, err)

	name := "New"
	_, err = core.Update(ctx, tenancy.New(tnt.ID, uuid.New()), tnt, tenantbus.UpdateTenant{Name: &name})
	require.NoError(t, err)

	got := recs.Records()
	require.Len(t, got, 2, "service tier creation adds no membership")
	require.Equal(t, auditop.Update, got[1].Op)
	require.Contains(t, string(got[1].Before), `"name":"Old"`)
	require.Contains(t, string(got[1].After), `"name":"New"`)
}

func TestUpdateOtherTenantIsRejectedWithoutAudit(t *testing.T) {
	ctx := context.Background()
	audit, recs := audittest.NewCore()
	core := tenantbus.NewCore(logger.NewDiscard(), tenantaudit.NewStore(newMemStore(), audit))

	tnt := tenantbus.Tenant{ID: uuid.New(), Name: "A", CreatedAt: time.Now()}
	name := "B"

	_, err := core.Update(ctx, tenancy.New(uuid.New(), uuid.New()), tnt, tenantbus.UpdateTenant{Name: &name})
	require.ErrorIs(t, err, tenancy.ErrAccessDenied)
	require.Empty(t, recs.Records())
}

func TestAddMemberRejectsForeignUser(t *testing.T) {
	ctx := context.Background()
	audit, _ := audittest.NewCore()
	core := tenantbus.NewCore(logger.NewDiscard(), tenantaudit.NewStore(newMemStore(), audit))

	adminA := uuid.New()
	adminB := uuid.New()

	tntA, err := core.Create(ctx, tenancy.New(uuid.Nil, adminA), tenantbus.NewTenant{Name: "Clinic A", Slug: "clinic-a"})
	require.NoError(t, err)

	_, err = core.Create(ctx, tenancy.New(uuid.Nil, adminB), tenantbus.NewTenant{Name: "Clinic B", Slug: "clinic-b"})
	require.NoError(t, err)

	acA := tenancy.New(tntA.ID, adminA)

	_, err = core.AddMember(ctx, acA, tntA.ID, adminB)
	require.ErrorIs(t, err, tenantbus.ErrForeignUser, "a member of another tenant cannot be pulled in")

	_, err = core.AddMember(ctx, acA, tntA.ID, uuid.New())
	require.NoError(t, err, "a user without tenants can be added")

	_, err = core.AddMember(ctx, tenancy.Service(), tntA.ID, adminB)
	require.NoError(t, err, "the service tier links any user")
}

func TestAddMemberAcceptsUserSharingATenant(t *testing.T) {
	ctx := context.Background()
	audit, _ := audittest.NewCore()
	core := tenantbus.NewCore(logger.NewDiscard(), tenantaudit.NewStore(newMemStore(), audit))

	admin := uuid.New()
	staff := uuid.New()

	tntA, err := core.Create(ctx, tenancy.New(uuid.Nil, admin), tenantbus.NewTenant{Name: "Clinic A", Slug: "clinic-a"})
	require.NoError(t, err)

	tntB, err := core.Create(ctx, tenancy.New(uuid.Nil, admin), tenantbus.NewTenant{Name: "Clinic B", Slug: "clinic-b"})
	require.NoError(t, err)

	_, err = core.AddMember(ctx, tenancy.New(tntB.ID, admin), tntB.ID, staff)
	require.NoError(t, err)

	_, err = core.AddMember(ctx, tenancy.New(tntA.ID, admin), tntA.ID, staff)
	require.NoError(t, err)
}
