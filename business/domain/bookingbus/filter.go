package bookingbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
)

// QueryFilter holds the available fields a query can be filtered on.
type QueryFilter struct {
	ID            *uuid.UUID
	ResourceID    *uuid.UUID
	Status        *bookingstatus.Status
	StartsAfter   *time.Time
	EndsBefore    *time.Time
	CustomerEmail *string
}
