package resourcebus

import "github.com/jcpaschoal/spi-agenda/business/sdk/order"

// DefaultOrderBy represents the default way we sort.
var DefaultOrderBy = order.NewBy(OrderByName, order.ASC)

// Set of fields that the results can be ordered by.
const (
	OrderByID       = "resource_id"
	OrderByName     = "name"
	OrderByKind     = "kind"
	OrderByCapacity = "capacity"
)
