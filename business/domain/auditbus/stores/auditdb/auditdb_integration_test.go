package auditdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/dbtest"
	"github.com/stretchr/testify/require"
)

func Test_AuditPurge(t *testing.T) {
	db := dbtest.New(t, "test_audit")
	ctx := context.Background()

	fx, err := db.SeedTenant(ctx, "purge-"+uuid.NewString()[:8])
	require.NoError(t, err)

	seeded, err := db.Count(ctx, `SELECT count(1) FROM audit_records WHERE tenant_id = $1`, fx.Tenant.ID)
	require.NoError(t, err)
	require.Equal(t, 2, seeded, "tenant and resource inserts")

	audit := db.BusDomain.Audit

	n, err := audit.Purge(ctx, time.Now(), 12)
	require.NoError(t, err)
	require.Zero(t, n, "nothing is old enough")

	future := time.Now().AddDate(1, 1, 0)

	n, err = audit.Purge(ctx, future, 12)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, seeded)

	n, err = audit.Purge(ctx, future, 12)
	require.NoError(t, err)
	require.Zero(t, n, "purge is idempotent")
}
