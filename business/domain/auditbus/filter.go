package auditbus

import (
	"time"

	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
)

// QueryFilter holds the available fields a query can be filtered on.
type QueryFilter struct {
	Entity    *string
	EntityKey *string
	Op        *auditop.Op
	StartDate *time.Time
	EndDate   *time.Time
}
