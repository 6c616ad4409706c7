package webhookapp

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/app/sdk/errs"
)

// Envelope is the common shape of a provider callback.
type Envelope struct {
	ID   string          `json:"id" validate:"required,max=200"`
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// Decode implements the web.Decoder interface.
func (app *Envelope) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app Envelope) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// Payment is the data of a payments provider event.
type Payment struct {
	BookingID uuid.UUID `json:"booking_id"`
}

// Decode implements the web.Decoder interface.
func (app *Payment) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Receipt acknowledges a callback.
type Receipt struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
}

// Encode implements the web.Encoder interface.
func (app Receipt) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}
