package resourceapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

// Resource represents a bookable resource.
type Resource struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Capacity    int    `json:"capacity"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app Resource) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppResource(bus resourcebus.Resource) Resource {
	return Resource{
		ID:          bus.ID.String(),
		TenantID:    bus.TenantID.String(),
		Name:        bus.Name,
		Kind:        bus.Kind.String(),
		Capacity:    bus.Capacity,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

func toAppResources(rs []resourcebus.Resource) []Resource {
	app := make([]Resource, len(rs))
	for i, r := range rs {
		app[i] = toAppResource(r)
	}
	return app
}

// =============================================================================

// NewResource defines the data needed to add a resource.
type NewResource struct {
	Name     string `json:"name" validate:"required,max=120"`
	Kind     string `json:"kind" validate:"required,oneof=staff room"`
	Capacity int    `json:"capacity" validate:"omitempty,min=1"`
}

// Decode implements the web.Decoder interface.
func (app *NewResource) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewResource) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewResource(app NewResource) (resourcebus.NewResource, error) {
	kind, err := resourcekind.Parse(app.Kind)
	if err != nil {
		return resourcebus.NewResource{}, fmt.Errorf("parse kind: %w", err)
	}

	capacity := app.Capacity
	if capacity == 0 {
		capacity = 1
	}

	return resourcebus.NewResource{
		Name:     app.Name,
		Kind:     kind,
		Capacity: capacity,
	}, nil
}

// =============================================================================

// UpdateResource defines the data needed to update a resource.
type UpdateResource struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1"`
}

// Decode implements the web.Decoder interface.
func (app *UpdateResource) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app UpdateResource) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusUpdateResource(app UpdateResource) resourcebus.UpdateResource {
	return resourcebus.UpdateResource{
		Name:     app.Name,
		Capacity: app.Capacity,
	}
}
