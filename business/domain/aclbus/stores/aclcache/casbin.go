package aclcache

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

const casbinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == "ADMIN" || (r.sub == p.sub && r.obj == p.obj && r.act == p.act)
`

type memoryCache struct {
	log      *logger.Logger
	enforcer *casbin.Enforcer
}

func newMemoryCache(log *logger.Logger) (*memoryCache, error) {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	return &memoryCache{
		log:      log,
		enforcer: e,
	}, nil
}

func (c *memoryCache) add(ctx context.Context, p aclbus.Policy) {
	sub, obj, act := p.Role.String(), p.Resource.String(), p.Action.String()

	if _, err := c.enforcer.AddPolicy(sub, obj, act); err != nil {
		c.log.Error(ctx, "aclcache: casbin add policy failed", "sub", sub, "obj", obj, "act", act, "err", err)
	}
}

func (c *memoryCache) remove(ctx context.Context, p aclbus.Policy) {
	sub, obj, act := p.Role.String(), p.Resource.String(), p.Action.String()

	if _, err := c.enforcer.RemovePolicy(sub, obj, act); err != nil {
		c.log.Error(ctx, "aclcache: casbin remove policy failed", "sub", sub, "obj", obj, "act", act, "err", err)
	}
}

func (c *memoryCache) reset() {
	c.enforcer.ClearPolicy()
}

func (c *memoryCache) check(p aclbus.Policy) (bool, error) {
	ok, err := c.enforcer.Enforce(p.Role.String(), p.Resource.String(), p.Action.String())
	if err != nil {
		return false, fmt.Errorf("enforce: %w", err)
	}

	return ok, nil
}
