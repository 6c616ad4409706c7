package tenantdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
)

// tenantDB represents the structure of the tenant table in the database.
type tenantDB struct {
	ID        uuid.UUID `db:"tenant_id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDBTenant(bus tenantbus.Tenant) tenantDB {
	return tenantDB{
		ID:        bus.ID,
		Name:      bus.Name,
		Slug:      bus.Slug,
		Enabled:   bus.Enabled,
		CreatedAt: bus.CreatedAt.UTC(),
		UpdatedAt: bus.UpdatedAt.UTC(),
	}
}

func toBusTenant(db tenantDB) tenantbus.Tenant {
	return tenantbus.Tenant{
		ID:        db.ID,
		Name:      db.Name,
		Slug:      db.Slug,
		Enabled:   db.Enabled,
		CreatedAt: db.CreatedAt.In(time.UTC),
		UpdatedAt: db.UpdatedAt.In(time.UTC),
	}
}

func toBusTenants(dbs []tenantDB) []tenantbus.Tenant {
	out := make([]tenantbus.Tenant, len(dbs))
	for i, db := range dbs {
		out[i] = toBusTenant(db)
	}
	return out
}

type membershipDB struct {
	TenantID  uuid.UUID `db:"tenant_id"`
	UserID    uuid.UUID `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func toDBMembership(bus tenantbus.Membership) membershipDB {
	return membershipDB{
		TenantID:  bus.TenantID,
		UserID:    bus.UserID,
		CreatedAt: bus.CreatedAt.UTC(),
	}
}

func toBusMembership(db membershipDB) tenantbus.Membership {
	return tenantbus.Membership{
		TenantID:  db.TenantID,
		UserID:    db.UserID,
		CreatedAt: db.CreatedAt.In(time.UTC),
	}
}
