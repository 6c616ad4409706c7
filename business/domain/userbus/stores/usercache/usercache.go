// Package usercache contains user related CRUD functionality with caching.
package usercache

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/viccon/sturdyc"
)

// Store manages the set of APIs for user data and caching. Only the lookup
// by email is cached: it runs before a session exists and carries no
// visibility predicate, so the cached value is the same for every caller.
type Store struct {
	log    *logger.Logger
	storer userbus.Storer
	tx     sqldb.CommitRollbacker
	cache  *sturdyc.Client[userbus.User]
}

// NewStore constructs the api for data and caching access.
func NewStore(log *logger.Logger, storer userbus.Storer, ttl time.Duration) *Store {
	const (
		capacity           = 10000
		numShards          = 10
		evictionPercentage = 10
	)

	return &Store{
		log:    log,
		storer: storer,
		cache:  sturdyc.New[userbus.User](capacity, numShards, ttl, evictionPercentage),
	}
}

// NewWithTx constructs a new Store value replacing the wrapped store with
// one bound to tx. The cache is shared; writes through the returned Store
// evict again once tx commits.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (userbus.Storer, error) {
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

// Create inserts a new user.
func (s *Store) Create(ctx context.Context, usr userbus.User) error {
	return s.storer.Create(ctx, usr)
}

// Update replaces a user and evicts both its old and new email entries.
func (s *Store) Update(ctx context.Context, ac tenancy.AccessContext, usr userbus.User) error {
	before, err := s.storer.QueryByID(ctx, ac, usr.ID)
	if err != nil {
		return err
	}

	if err := s.storer.Update(ctx, ac, usr); err != nil {
		return err
	}

	s.evict(ctx, before.Email.Address, usr.Email.Address)
	return nil
}

// Delete removes a user and evicts it from the cache.
func (s *Store) Delete(ctx context.Context, ac tenancy.AccessContext, usr userbus.User) error {
	if err := s.storer.Delete(ctx, ac, usr); err != nil {
		return err
	}

	s.evict(ctx, usr.Email.Address)
	return nil
}

// Query implements userbus.Storer.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter userbus.QueryFilter, orderBy order.By, pg page.Page) ([]userbus.User, error) {
	return s.storer.Query(ctx, ac, filter, orderBy, pg)
}

// Count implements userbus.Storer.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter userbus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, ac, filter)
}

// QueryByID implements userbus.Storer.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, userID uuid.UUID) (userbus.User, error) {
	return s.storer.QueryByID(ctx, ac, userID)
}

// QueryByEmail gets the user by email, reading through the cache.
func (s *Store) QueryByEmail(ctx context.Context, email mail.Address) (userbus.User, error) {
	return s.cache.GetOrFetch(ctx, emailKey(email.Address), func(ctx context.Context) (userbus.User, error) {
		return s.storer.QueryByEmail(ctx, email)
	})
}

// evict drops the entries now and, inside a transaction, again after commit.
// A read between the write and the commit still sees the old row and may
// cache it; the second pass removes it.
func (s *Store) evict(ctx context.Context, emails ...string) {
	s.drop(ctx, emails)

	if s.tx != nil {
		sqldb.AfterCommit(s.tx, func() { s.drop(ctx, emails) })
	}
}

func (s *Store) drop(ctx context.Context, emails []string) {
	for _, email := range emails {
		s.cache.Delete(emailKey(email))
	}

	s.log.Debug(ctx, "usercache: evicted", "emails", emails)
}

func emailKey(email string) string {
	return "email:" + email
}
