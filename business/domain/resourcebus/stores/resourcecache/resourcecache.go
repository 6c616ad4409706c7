// Package resourcecache contains resource related CRUD functionality with caching.
package resourcecache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/viccon/sturdyc"
)

// Store manages the set of APIs for resource data and caching. Entries are
// keyed by the caller's tenant so a lookup never returns a row the caller's
// own query would not.
type Store struct {
	log    *logger.Logger
	storer resourcebus.Storer
	tx     sqldb.CommitRollbacker
	cache  *sturdyc.Client[resourcebus.Resource]
}

// NewStore constructs the api for data and caching access.
func NewStore(log *logger.Logger, storer resourcebus.Storer, ttl time.Duration) *Store {
	const (
		capacity           = 10000
		numShards          = 10
		evictionPercentage = 10
	)

	return &Store{
		log:    log,
		storer: storer,
		cache:  sturdyc.New[resourcebus.Resource](capacity, numShards, ttl, evictionPercentage),
	}
}

// NewWithTx constructs a new Store value replacing the wrapped store with
// one bound to tx. The cache is shared; writes through the returned Store
// evict again once tx commits.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (resourcebus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:    s.log,
		storer: storer,
		tx:     tx,
		cache:  s.cache,
	}, nil
}

// Create inserts a new resource.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	return s.storer.Create(ctx, ac, r)
}

// Update replaces a resource and evicts it from the cache.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	if err := s.storer.Update(ctx, ac, r); err != nil {
		return err
	}

	s.evict(ctx, r)
	return nil
}

// Delete removes a resource and evicts it from the cache.
func (s *Store) Delete(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	if err := s.storer.Delete(ctx, ac, r); err != nil {
		return err
	}

	s.evict(ctx, r)
	return nil
}

// Query implements resourcebus.Storer.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter, orderBy order.By, pg page.Page) ([]resourcebus.Resource, error) {
	return s.storer.Query(ctx, ac, filter, orderBy, pg)
}

// Count implements resourcebus.Storer.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter resourcebus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, ac, filter)
}

// QueryByID gets the resource by id, reading through the cache. A caller
// without a tenant bypasses the cache.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) (resourcebus.Resource, error) {
	key, ok := cacheKey(ac, resourceID)
	if !ok {
		return s.storer.QueryByID(ctx, ac, resourceID)
	}

	return s.cache.GetOrFetch(ctx, key, func(ctx context.Context) (resourcebus.Resource, error) {
		return s.storer.QueryByID(ctx, ac, resourceID)
	})
}

// LockForBooking always reaches the database.
func (s *Store) LockForBooking(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID, wait time.Duration) error {
	return s.storer.LockForBooking(ctx, ac, resourceID, wait)
}

// evict drops the entries now and, inside a transaction, again after commit.
func (s *Store) evict(ctx context.Context, r resourcebus.Resource) {
	s.drop(ctx, r)

	if s.tx != nil {
		sqldb.AfterCommit(s.tx, func() { s.drop(ctx, r) })
	}
}

func (s *Store) drop(ctx context.Context, r resourcebus.Resource) {
	s.cache.Delete(tenantKey(r.TenantID, r.ID))
	s.cache.Delete(serviceKey(r.ID))

	s.log.Debug(ctx, "resourcecache: evicted", "resource_id", r.ID)
}

func cacheKey(ac tenancy.AccessContext, resourceID uuid.UUID) (string, bool) {
	if ac.IsService() {
		return serviceKey(resourceID), true
	}

	tenantID, ok := ac.TenantID()
	if !ok {
		return "", false
	}

	return tenantKey(tenantID, resourceID), true
}

func tenantKey(tenantID uuid.UUID, resourceID uuid.UUID) string {
	return tenantID.String() + ":" + resourceID.String()
}

func serviceKey(resourceID uuid.UUID) string {
	return "service:" + resourceID.String()
}
