package bookingbus

import "github.com/jcpaschoal/spi-agenda/business/sdk/order"

// DefaultOrderBy represents the default way we sort.
var DefaultOrderBy = order.NewBy(OrderByStartsAt, order.ASC)

// Set of fields that the results can be ordered by.
const (
	OrderByID         = "booking_id"
	OrderByResourceID = "resource_id"
	OrderByStartsAt   = "starts_at"
	OrderByStatus     = "status"
)
