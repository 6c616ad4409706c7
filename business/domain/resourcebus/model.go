package resourcebus

import (
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

// Resource is a bookable unit owned by a tenant.
type Resource struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Kind      resourcekind.Kind
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewResource contains information needed to create a new resource.
type NewResource struct {
	TenantID uuid.UUID
	Name     string
	Kind     resourcekind.Kind
	Capacity int
}

// UpdateResource contains information needed to update a resource.
type UpdateResource struct {
	Name     *string
	Capacity *int
}
