package tenantbus

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a client organization, the isolation boundary of every
// booking, resource and event in the system.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership links a user to a tenant. Its identity is the (tenant, user)
// pair.
type Membership struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
}

// NewTenant contains information needed to create a new tenant.
type NewTenant struct {
	Name string
	Slug string
}

// UpdateTenant contains information needed to update a tenant.
type UpdateTenant struct {
	Name    *string
	Enabled *bool
}
