package auditbus

import "github.com/jcpaschoal/spi-agenda/business/sdk/order"

// DefaultOrderBy represents the default way we sort.
var DefaultOrderBy = order.NewBy(OrderByCreatedAt, order.DESC)

// Set of fields that the results can be ordered by.
const (
	OrderByCreatedAt = "created_at"
	OrderByEntity    = "entity_name"
	OrderByOp        = "operation"
)
