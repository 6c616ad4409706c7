package resourceapp

import "github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"

var orderByFields = map[string]string{
	"resource_id": resourcebus.OrderByID,
	"name":        resourcebus.OrderByName,
	"kind":        resourcebus.OrderByKind,
	"capacity":    resourcebus.OrderByCapacity,
}
