package auditdb

import (
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
)

var orderByFields = map[string]string{
	auditbus.OrderByCreatedAt: "created_at",
	auditbus.OrderByEntity:    "entity_name",
	auditbus.OrderByOp:        "operation",
}

func orderByClause(orderBy order.By) (string, error) {
	by, exists := orderByFields[orderBy.Field]
	if !exists {
		return "", fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	return " ORDER BY " + by + " " + orderBy.Direction, nil
}
