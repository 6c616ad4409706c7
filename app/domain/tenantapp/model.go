package tenantapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
)

// Tenant represents a tenant visible to the caller.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Enabled     bool   `json:"enabled"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (t Tenant) Encode() ([]byte, string, error) {
	data, err := json.Marshal(t)
	return data, "application/json", err
}

func toAppTenant(bus tenantbus.Tenant) Tenant {
	return Tenant{
		ID:          bus.ID.String(),
		Name:        bus.Name,
		Slug:        bus.Slug,
		Enabled:     bus.Enabled,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

// Tenants is the list returned to the caller.
type Tenants []Tenant

// Encode implements the web.Encoder interface.
func (ts Tenants) Encode() ([]byte, string, error) {
	data, err := json.Marshal(ts)
	return data, "application/json", err
}

func toAppTenants(tenants []tenantbus.Tenant) Tenants {
	app := make(Tenants, len(tenants))
	for i, t := range tenants {
		app[i] = toAppTenant(t)
	}
	return app
}

// NewTenant defines the data needed to add a tenant.
type NewTenant struct {
	Name string `json:"name" validate:"required,max=120"`
	Slug string `json:"slug" validate:"required,max=60,lowercase"`
}

// Decode implements the web.Decoder interface.
func (app *NewTenant) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewTenant) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewTenant(app NewTenant) tenantbus.NewTenant {
	return tenantbus.NewTenant{
		Name: app.Name,
		Slug: app.Slug,
	}
}

// Membership links a user to a tenant.
type Membership struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	DateCreated string `json:"dateCreated"`
}

// Encode implements the web.Encoder interface.
func (m Membership) Encode() ([]byte, string, error) {
	data, err := json.Marshal(m)
	return data, "application/json", err
}

func toAppMembership(bus tenantbus.Membership) Membership {
	return Membership{
		TenantID:    bus.TenantID.String(),
		UserID:      bus.UserID.String(),
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
	}
}

// NewMember names the user to add.
type NewMember struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// Decode implements the web.Decoder interface.
func (app *NewMember) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewMember) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}
