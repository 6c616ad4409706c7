package auditbus

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

// KeyPart is one column of an entity identity.
type KeyPart struct {
	Column string
	Value  string
}

// Key identifies the mutated entity. Entities with a single-column primary
// key have one part, join entities such as memberships have several.
type Key []KeyPart

// IDKey builds the key of an entity identified by a single uuid column.
func IDKey(column string, id uuid.UUID) Key {
	return Key{{Column: column, Value: id.String()}}
}

// String renders the key as stored. A single-part key is its bare value,
// a composite key is "col=value" pairs joined by "&" in declaration order.
func (k Key) String() string {
	if len(k) == 1 {
		return k[0].Value
	}

	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = p.Column + "=" + p.Value
	}

	return strings.Join(parts, "&")
}

// Change describes one committed mutation to be recorded.
type Change struct {
	TenantID uuid.UUID
	Entity   string
	Key      Key
	Op       auditop.Op
	Before   any
	After    any
	ActorID  *uuid.UUID
}

// Record is an immutable audit entry.
type Record struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Entity    string
	EntityKey string
	Op        auditop.Op
	Before    json.RawMessage
	After     json.RawMessage
	ActorID   *uuid.UUID
	CreatedAt time.Time
}
