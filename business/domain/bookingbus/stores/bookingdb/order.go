package bookingdb

import (
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
)

var orderByFields = map[string]string{
	bookingbus.OrderByID:         "booking_id",
	bookingbus.OrderByResourceID: "resource_id",
	bookingbus.OrderByStartsAt:   "starts_at",
	bookingbus.OrderByStatus:     "status",
}

func orderByClause(orderBy order.By) (string, error) {
	by, exists := orderByFields[orderBy.Field]
	if !exists {
		return "", fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	return " ORDER BY " + by + " " + orderBy.Direction, nil
}
