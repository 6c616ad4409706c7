package aclbus

import (
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
)

// Policy grants a role one action on a protected resource type.
type Policy struct {
	Role     role.Role
	Resource resource.Resource
	Action   actions.Action
}
