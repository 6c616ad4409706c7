package tenancy_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name      string
		tenant    string
		user      string
		hasTenant bool
		hasUser   bool
		tier      tenancy.Tier
	}{
		{name: "complete", tenant: tenantID.String(), user: userID.String(), hasTenant: true, hasUser: true, tier: tenancy.TierUser},
		{name: "no-tenant", tenant: "", user: userID.String(), hasUser: true, tier: tenancy.TierUser},
		{name: "garbage-tenant", tenant: "'; DROP TABLE bookings; --", user: userID.String(), hasUser: true, tier: tenancy.TierUser},
		{name: "nil-tenant", tenant: uuid.Nil.String(), user: userID.String(), hasUser: true, tier: tenancy.TierUser},
		{name: "anonymous", tenant: tenantID.String(), user: "", tier: tenancy.TierAnonymous},
		{name: "garbage-user", tenant: tenantID.String(), user: "admin", tier: tenancy.TierAnonymous},
		{name: "empty", tier: tenancy.TierAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := tenancy.Resolve(tt.tenant, tt.user)

			_, hasTenant := ac.TenantID()
			_, hasUser := ac.UserID()

			assert.Equal(t, tt.hasTenant, hasTenant)
			assert.Equal(t, tt.hasUser, hasUser)
			assert.Equal(t, tt.tier, ac.Tier())
			assert.False(t, ac.IsService())
		})
	}
}

func TestTenantPredicateFailsClosed(t *testing.T) {
	data := map[string]any{}

	pred := tenancy.TenantPredicate(tenancy.Resolve("not-a-uuid", uuid.NewString()), "b.tenant_id", data)

	assert.Equal(t, "FALSE", pred)
	assert.Empty(t, data)
}

func TestTenantPredicateBindsTenant(t *testing.T) {
	tenantID := uuid.New()
	data := map[string]any{}

	pred := tenancy.TenantPredicate(tenancy.New(tenantID, uuid.New()), "b.tenant_id", data)

	assert.Equal(t, "b.tenant_id = :guard_tenant_id", pred)
	assert.Equal(t, tenantID, data[tenancy.ParamTenantID])
}

func TestServiceBypassesGuard(t *testing.T) {
	data := map[string]any{}

	assert.Equal(t, "TRUE", tenancy.TenantPredicate(tenancy.Service(), "tenant_id", data))
	assert.Equal(t, "TRUE", tenancy.MemberPredicate(tenancy.Service(), "t.tenant_id", data))
	assert.Nil(t, tenancy.Service().Actor())
}

func TestMemberPredicates(t *testing.T) {
	userID := uuid.New()
	ac := tenancy.New(uuid.Nil, userID)

	data := map[string]any{}
	pred := tenancy.MemberPredicate(ac, "t.tenant_id", data)
	assert.Contains(t, pred, "gm.tenant_id = t.tenant_id")
	assert.Equal(t, userID, data[tenancy.ParamUserID])

	data = map[string]any{}
	pred = tenancy.SharedMemberPredicate(ac, "u.user_id", data)
	assert.Contains(t, pred, "u.user_id = :guard_user_id")
	assert.Contains(t, pred, "theirs.user_id = u.user_id")

	assert.Equal(t, "FALSE", tenancy.SharedMemberPredicate(tenancy.AccessContext{}, "u.user_id", map[string]any{}))
}

func TestCheckWrite(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	acA := tenancy.New(tenantA, uuid.New())

	require.NoError(t, tenancy.CheckWrite(acA, tenantA))
	require.ErrorIs(t, tenancy.CheckWrite(acA, tenantB), tenancy.ErrAccessDenied)
	require.ErrorIs(t, tenancy.CheckWrite(acA, uuid.Nil), tenancy.ErrAccessDenied)
	require.ErrorIs(t, tenancy.CheckWrite(tenancy.New(uuid.Nil, uuid.New()), tenantA), tenancy.ErrAccessDenied)

	require.NoError(t, tenancy.CheckWrite(tenancy.Service(), tenantB))
	require.ErrorIs(t, tenancy.CheckWrite(tenancy.Service(), uuid.Nil), tenancy.ErrAccessDenied)
}

func TestActor(t *testing.T) {
	userID := uuid.New()

	actor := tenancy.New(uuid.New(), userID).Actor()
	require.NotNil(t, actor)
	assert.Equal(t, userID, *actor)

	assert.Nil(t, tenancy.AccessContext{}.Actor())
}

func TestManagedUserPredicate(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	data := map[string]any{}
	pred := tenancy.ManagedUserPredicate(tenancy.New(tenantID, userID), "u.user_id", data)
	assert.Contains(t, pred, "u.user_id = :guard_user_id")
	assert.Contains(t, pred, "own.tenant_id = :guard_tenant_id")
	assert.Contains(t, pred, "NOT EXISTS")
	assert.Contains(t, pred, "other.tenant_id <> :guard_tenant_id")
	assert.Equal(t, userID, data[tenancy.ParamUserID])
	assert.Equal(t, tenantID, data[tenancy.ParamTenantID])

	data = map[string]any{}
	pred = tenancy.ManagedUserPredicate(tenancy.New(uuid.Nil, userID), "u.user_id", data)
	assert.Equal(t, "u.user_id = :guard_user_id", pred, "without a tenant only the caller itself")

	assert.Equal(t, "FALSE", tenancy.ManagedUserPredicate(tenancy.AccessContext{}, "u.user_id", map[string]any{}))
	assert.Equal(t, "TRUE", tenancy.ManagedUserPredicate(tenancy.Service(), "u.user_id", map[string]any{}))
}

func TestAnonymousSeesNothing(t *testing.T) {
	tenantID := uuid.New()

	for _, ac := range []tenancy.AccessContext{
		tenancy.Resolve(tenantID.String(), ""),
		tenancy.New(tenantID, uuid.Nil),
	} {
		_, ok := ac.TenantID()
		assert.False(t, ok)
		assert.Equal(t, tenancy.TierAnonymous, ac.Tier())
		assert.Equal(t, "FALSE", tenancy.TenantPredicate(ac, "tenant_id", map[string]any{}))
		assert.ErrorIs(t, tenancy.CheckWrite(ac, tenantID), tenancy.ErrAccessDenied)
	}
}

func TestJob(t *testing.T) {
	tenantID := uuid.New()
	ac := tenancy.Job(tenantID)

	assert.Equal(t, tenancy.TierJob, ac.Tier())
	assert.False(t, ac.IsService())
	assert.Nil(t, ac.Actor())

	data := map[string]any{}
	assert.Equal(t, "tenant_id = :guard_tenant_id", tenancy.TenantPredicate(ac, "tenant_id", data))
	assert.Equal(t, tenantID, data[tenancy.ParamTenantID])

	require.NoError(t, tenancy.CheckWrite(ac, tenantID))
	require.ErrorIs(t, tenancy.CheckWrite(ac, uuid.New()), tenancy.ErrAccessDenied)

	assert.Equal(t, "FALSE", tenancy.MemberPredicate(ac, "t.tenant_id", map[string]any{}))

	_, ok := tenancy.Job(uuid.Nil).TenantID()
	assert.False(t, ok)
}
