package resourcebus

import (
	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/resourcekind"
)

// QueryFilter holds the available fields a query can be filtered on.
type QueryFilter struct {
	ID   *uuid.UUID
	Name *string
	Kind *resourcekind.Kind
}
