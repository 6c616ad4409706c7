package bookingapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
)

// Customer holds the personal fields of a booking. They are blank once the
// booking has been anonymized.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Note is a remark attached to a booking.
type Note struct {
	Text        string `json:"text"`
	AuthorID    string `json:"author_id,omitempty"`
	DateCreated string `json:"dateCreated"`
}

// Booking represents a reservation of a resource.
type Booking struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ResourceID  string          `json:"resource_id"`
	Range       timerange.Range `json:"range"`
	Status      string          `json:"status"`
	Customer    Customer        `json:"customer"`
	Anonymized  bool            `json:"anonymized"`
	Notes       []Note          `json:"notes"`
	DateCreated string          `json:"dateCreated"`
	DateUpdated string          `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app Booking) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppBooking(bus bookingbus.Booking) Booking {
	notes := make([]Note, len(bus.Notes))
	for i, n := range bus.Notes {
		notes[i] = Note{
			Text:        n.Text,
			DateCreated: n.CreatedAt.Format(time.RFC3339),
		}
		if n.AuthorID != nil {
			notes[i].AuthorID = n.AuthorID.String()
		}
	}

	return Booking{
		ID:         bus.ID.String(),
		TenantID:   bus.TenantID.String(),
		ResourceID: bus.ResourceID.String(),
		Range:      bus.Range,
		Status:     bus.Status.String(),
		Customer: Customer{
			Name:  bus.CustomerName,
			Email: bus.CustomerEmail,
			Phone: bus.CustomerPhone.String(),
		},
		Anonymized:  bus.IsAnonymized(),
		Notes:       notes,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

func toAppBookings(bks []bookingbus.Booking) []Booking {
	app := make([]Booking, len(bks))
	for i, b := range bks {
		app[i] = toAppBooking(b)
	}
	return app
}

// Conflict is the payload returned with a rejected proposal.
type Conflict struct {
	ResourceID string          `json:"resource_id"`
	Range      timerange.Range `json:"range"`
}

// =============================================================================

// NewBooking defines the data needed to propose a booking.
type NewBooking struct {
	ResourceID    string    `json:"resource_id" validate:"required,uuid"`
	Start         time.Time `json:"start" validate:"required"`
	End           time.Time `json:"end" validate:"required"`
	CustomerName  string    `json:"customer_name" validate:"required,max=120"`
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	CustomerPhone string    `json:"customer_phone"`
}

// Decode implements the web.Decoder interface.
func (app *NewBooking) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewBooking) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewBooking(app NewBooking, tenantID uuid.UUID) (bookingbus.NewBooking, error) {
	var fieldErrors errs.FieldErrors

	resourceID, err := uuid.Parse(app.ResourceID)
	if err != nil {
		fieldErrors.Add("resource_id", err)
	}

	rng, err := timerange.New(app.Start, app.End)
	if err != nil {
		fieldErrors.Add("range", err)
	}

	ph, err := phone.ParseNull(app.CustomerPhone)
	if err != nil {
		fieldErrors.Add("customer_phone", err)
	}

	if fieldErrors != nil {
		return bookingbus.NewBooking{}, fieldErrors.ToError()
	}

	return bookingbus.NewBooking{
		TenantID:      tenantID,
		ResourceID:    resourceID,
		Range:         rng,
		CustomerName:  app.CustomerName,
		CustomerEmail: app.CustomerEmail,
		CustomerPhone: ph,
	}, nil
}

// =============================================================================

// StatusChange moves a booking to another status.
type StatusChange struct {
	Status string `json:"status" validate:"required"`
}

// Decode implements the web.Decoder interface.
func (app *StatusChange) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app StatusChange) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func (app StatusChange) toBus() (bookingstatus.Status, error) {
	st, err := bookingstatus.Parse(app.Status)
	if err != nil {
		return bookingstatus.Status{}, errs.NewFieldErrors("status", err)
	}
	return st, nil
}

// NewNote holds the text of a note.
type NewNote struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Decode implements the web.Decoder interface.
func (app *NewNote) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewNote) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// AnonymizeRequest names the customer whose personal data is erased.
type AnonymizeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Decode implements the web.Decoder interface.
func (app *AnonymizeRequest) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app AnonymizeRequest) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// Anonymized reports how many bookings were erased.
type Anonymized struct {
	Bookings int `json:"bookings"`
}

// Encode implements the web.Encoder interface.
func (app Anonymized) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}
