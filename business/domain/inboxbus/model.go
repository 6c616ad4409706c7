package inboxbus

import (
	"encoding/json"
	"time"
)

// Event is an inbound provider callback as recorded in the inbox.
type Event struct {
	Provider        string
	ProviderEventID string
	Payload         json.RawMessage
	ReceivedAt      time.Time
}

// NewEvent contains what a webhook handler knows about a callback.
type NewEvent struct {
	Provider        string
	ProviderEventID string
	Payload         json.RawMessage
}
