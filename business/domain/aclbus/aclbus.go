// Package aclbus decides which role may perform which action on which
// protected resource type. ADMIN is allowed everything; every other role is
// limited to the policies stored in role_policy.
package aclbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/types/actions"
	"github.com/jcpaschoal/spi-agenda/business/types/resource"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// Set of error variables for policy operations.
var (
	ErrAccessDenied = errors.New("role is not allowed to perform this action")
	ErrUnique       = errors.New("policy already exists")
	ErrNotFound     = errors.New("policy not found")
)

// Storer interface declares the behavior this package needs to persist and
// evaluate policies.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Grant(ctx context.Context, p Policy) error
	Revoke(ctx context.Context, p Policy) error
	QueryPolicies(ctx context.Context) ([]Policy, error)
	Allowed(ctx context.Context, p Policy) (bool, error)
}

// Core manages the set of APIs for policy access.
type Core struct {
	log    *logger.Logger
	storer Storer
}

// NewCore constructs a policy core for api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		log:    log,
		storer: storer,
	}
}

// NewWithTx constructs a new Core value that will use the
// specified transaction in any store related calls.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return NewCore(c.log, storer), nil
}

// Authorize returns nil when the role may perform the action on the
// resource type and ErrAccessDenied otherwise.
func (c *Core) Authorize(ctx context.Context, r role.Role, res resource.Resource, act actions.Action) error {
	ctx, span := otel.AddSpan(ctx, "business.aclbus.authorize")
	defer span.End()

	ok, err := c.storer.Allowed(ctx, Policy{Role: r, Resource: res, Action: act})
	if err != nil {
		return fmt.Errorf("allowed: %w", err)
	}

	if !ok {
		return fmt.Errorf("authorize: role[%s] %s %s: %w", r, act, res, ErrAccessDenied)
	}

	return nil
}

// Grant adds a policy.
func (c *Core) Grant(ctx context.Context, p Policy) error {
	ctx, span := otel.AddSpan(ctx, "business.aclbus.grant")
	defer span.End()

	if err := c.storer.Grant(ctx, p); err != nil {
		return fmt.Errorf("grant: %w", err)
	}

	return nil
}

// Revoke removes a policy.
func (c *Core) Revoke(ctx context.Context, p Policy) error {
	ctx, span := otel.AddSpan(ctx, "business.aclbus.revoke")
	defer span.End()

	if err := c.storer.Revoke(ctx, p); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	return nil
}

// QueryPolicies returns every stored policy.
func (c *Core) QueryPolicies(ctx context.Context) ([]Policy, error) {
	ctx, span := otel.AddSpan(ctx, "business.aclbus.querypolicies")
	defer span.End()

	ps, err := c.storer.QueryPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("querypolicies: %w", err)
	}

	return ps, nil
}
