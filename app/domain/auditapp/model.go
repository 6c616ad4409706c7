package auditapp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
)

var errEndBeforeStart = errors.New("end_date is before start_date")

// Record represents an audit entry.
type Record struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Entity    string          `json:"entity"`
	EntityKey string          `json:"entity_key"`
	Op        string          `json:"op"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// Encode implements the web.Encoder interface.
func (app Record) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppRecord(bus auditbus.Record) Record {
	var actor string
	if bus.ActorID != nil {
		actor = bus.ActorID.String()
	}

	return Record{
		ID:        bus.ID.String(),
		TenantID:  bus.TenantID.String(),
		Entity:    bus.Entity,
		EntityKey: bus.EntityKey,
		Op:        bus.Op.String(),
		Before:    bus.Before,
		After:     bus.After,
		ActorID:   actor,
		CreatedAt: bus.CreatedAt.Format(time.RFC3339),
	}
}

func toAppRecords(recs []auditbus.Record) []Record {
	app := make([]Record, len(recs))
	for i, r := range recs {
		app[i] = toAppRecord(r)
	}
	return app
}
