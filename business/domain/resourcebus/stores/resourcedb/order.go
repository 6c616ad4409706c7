package resourcedb

import (
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
)

var orderByFields = map[string]string{
	resourcebus.OrderByID:       "resource_id",
	resourcebus.OrderByName:     "name",
	resourcebus.OrderByKind:     "kind",
	resourcebus.OrderByCapacity: "capacity",
}

func orderByClause(orderBy order.By) (string, error) {
	by, exists := orderByFields[orderBy.Field]
	if !exists {
		return "", fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	return " ORDER BY " + by + " " + orderBy.Direction, nil
}
