package auditapp

import "github.com/jcpaschoal/spi-agenda/business/domain/auditbus"

var orderByFields = map[string]string{
	"created_at": auditbus.OrderByCreatedAt,
	"entity":     auditbus.OrderByEntity,
	"op":         auditbus.OrderByOp,
}
