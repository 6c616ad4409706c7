package dbtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

// Fixture is a tenant with one resource and a user context acting in it.
type Fixture struct {
	Tenant   tenantbus.Tenant
	Resource resourcebus.Resource
	AC       tenancy.AccessContext
}

// SeedTenant creates a tenant with a single room.
func (d *Database) SeedTenant(ctx context.Context, slug string) (Fixture, error) {
	var fx Fixture

	err := d.WithinTran(ctx, func(bus BusDomain) error {
		tnt, err := bus.Tenant.Create(ctx, tenancy.Service(), tenantbus.NewTenant{Name: slug, Slug: slug})
		if err != nil {
			return fmt.Errorf("seeding tenant: %w", err)
		}

		ac := tenancy.New(tnt.ID, uuid.New())

		res, err := bus.Resource.Create(ctx, ac, resourcebus.NewResource{
			TenantID: tnt.ID,
			Name:     "Room 1",
			Kind:     resourcekind.Room,
			Capacity: 1,
		})
		if err != nil {
			return fmt.Errorf("seeding resource: %w", err)
		}

		fx = Fixture{Tenant: tnt, Resource: res, AC: ac}
		return nil
	})

	return fx, err
}

// Count returns the result of a count(1) query.
func (d *Database) Count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := d.DB.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}
