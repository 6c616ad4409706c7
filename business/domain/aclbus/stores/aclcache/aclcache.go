// Package aclcache keeps the role policies in a casbin enforcer in front of
// the policy database.
package aclcache

import (
	"context"
	"fmt"

	"github.com/jcpaschoal/spi-agenda/business/domain/aclbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Store implements aclbus.Storer with a write-through cache. Decisions are
// answered from memory; the database is consulted on a miss so a policy
// granted by another instance is picked up.
type Store struct {
	log    *logger.Logger
	storer aclbus.Storer
	cache  *memoryCache
}

// NewStore constructs the cached store and loads every policy.
func NewStore(ctx context.Context, log *logger.Logger, storer aclbus.Storer) (*Store, error) {
	mem, err := newMemoryCache(log)
	if err != nil {
		return nil, err
	}

	s := &Store{
		log:    log,
		storer: storer,
		cache:  mem,
	}

	if err := s.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync cache: %w", err)
	}

	return s, nil
}

// NewWithTx binds the wrapped store to tx. The enforcer is shared.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (aclbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:    s.log,
		storer: storer,
		cache:  s.cache,
	}, nil
}

// Grant persists the policy and adds it to memory.
func (s *Store) Grant(ctx context.Context, p aclbus.Policy) error {
	if err := s.storer.Grant(ctx, p); err != nil {
		return err
	}

	s.cache.add(ctx, p)
	return nil
}

// Revoke deletes the policy and removes it from memory.
func (s *Store) Revoke(ctx context.Context, p aclbus.Policy) error {
	if err := s.storer.Revoke(ctx, p); err != nil {
		return err
	}

	s.cache.remove(ctx, p)
	return nil
}

// QueryPolicies implements aclbus.Storer.
func (s *Store) QueryPolicies(ctx context.Context) ([]aclbus.Policy, error) {
	return s.storer.QueryPolicies(ctx)
}

// Allowed answers from memory and falls back to the database on a miss.
// A policy found only in the database is added to memory.
func (s *Store) Allowed(ctx context.Context, p aclbus.Policy) (bool, error) {
	ok, err := s.cache.check(p)
	if err != nil {
		s.log.Error(ctx, "aclcache: enforce failed", "err", err)
	}
	if ok {
		return true, nil
	}

	ok, err = s.storer.Allowed(ctx, p)
	if err != nil {
		return false, err
	}

	if ok {
		s.log.Info(ctx, "aclcache: cache miss repaired", "role", p.Role, "resource", p.Resource, "action", p.Action)
		s.cache.add(ctx, p)
	}

	return ok, nil
}

// Sync replaces the in-memory policies with the stored ones.
func (s *Store) Sync(ctx context.Context) error {
	ps, err := s.storer.QueryPolicies(ctx)
	if err != nil {
		return fmt.Errorf("fetch policies: %w", err)
	}

	s.cache.reset()
	for _, p := range ps {
		s.cache.add(ctx, p)
	}

	return nil
}
