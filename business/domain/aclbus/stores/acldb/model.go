package acldb

import (
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
)

type policyDB struct {
	Role     string `db:"role"`
	Resource string `db:"resource"`
	Action   string `db:"action"`
}

func toDBPolicy(p aclbus.Policy) policyDB {
	return policyDB{
		Role:     p.Role.String(),
		Resource: p.Resource.String(),
		Action:   p.Action.String(),
	}
}

func toBusPolicy(db policyDB) (aclbus.Policy, error) {
	r, err := role.Parse(db.Role)
	if err != nil {
		return aclbus.Policy{}, fmt.Errorf("parse role: %w", err)
	}

	res, err := resource.Parse(db.Resource)
	if err != nil {
		return aclbus.Policy{}, fmt.Errorf("parse resource: %w", err)
	}

	act, err := actions.Parse(db.Action)
	if err != nil {
		return aclbus.Policy{}, fmt.Errorf("parse action: %w", err)
	}

	return aclbus.Policy{Role: r, Resource: res, Action: act}, nil
}

func toBusPolicies(dbs []policyDB) ([]aclbus.Policy, error) {
	bus := make([]aclbus.Policy, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusPolicy(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
