package outboxbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
)

// Event is a durable notification waiting for, or done with, delivery.
type Event struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Code        string
	Payload     json.RawMessage
	DedupKey    string
	Status      eventstatus.Status
	Attempts    int
	LastError   string
	ReadyAt     time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

// NewEvent is what a business operation enqueues. Payload is marshalled to
// JSON. An empty DedupKey disables deduplication.
type NewEvent struct {
	TenantID uuid.UUID
	Code     string
	Payload  any
	DedupKey string
}

// Message is the envelope handed to a Sink.
type Message struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventCode string          `json:"event_code"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Encode renders the message as JSON, the wire format of every sink.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func toMessage(e Event) Message {
	return Message{
		EventID:   e.ID,
		EventCode: e.Code,
		TenantID:  e.TenantID,
		Payload:   e.Payload,
		Attempt:   e.Attempts,
		CreatedAt: e.CreatedAt,
	}
}
