package resourcedb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

type resource struct {
	ID        uuid.UUID `db:"resource_id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	Name      string    `db:"name"`
	Kind      string    `db:"kind"`
	Capacity  int       `db:"capacity"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDBResource(bus resourcebus.Resource) resource {
	return resource{
		ID:        bus.ID,
		TenantID:  bus.TenantID,
		Name:      bus.Name,
		Kind:      bus.Kind.String(),
		Capacity:  bus.Capacity,
		CreatedAt: bus.CreatedAt.UTC(),
		UpdatedAt: bus.UpdatedAt.UTC(),
	}
}

func toBusResource(db resource) (resourcebus.Resource, error) {
	kind, err := resourcekind.Parse(db.Kind)
	if err != nil {
		return resourcebus.Resource{}, fmt.Errorf("parse kind: %w", err)
	}

	return resourcebus.Resource{
		ID:        db.ID,
		TenantID:  db.TenantID,
		Name:      db.Name,
		Kind:      kind,
		Capacity:  db.Capacity,
		CreatedAt: db.CreatedAt.In(time.UTC),
		UpdatedAt: db.UpdatedAt.In(time.UTC),
	}, nil
}

func toBusResources(dbs []resource) ([]resourcebus.Resource, error) {
	bus := make([]resourcebus.Resource, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusResource(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
