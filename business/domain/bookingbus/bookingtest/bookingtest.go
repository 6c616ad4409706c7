// Package bookingtest provides in-memory stores that behave like the SQL
// stores of bookings and resources: tenant visibility, and rejection of a
// booking that overlaps an active booking of the same resource.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingaudit"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus/outboxtest"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Env is a booking core wired to in-memory stores.
type Env struct {
	Core      *bookingbus.Core
	Resources *ResourceStore
	Bookings  *Store
	Outbox    *outboxtest.Store
}

// New builds an Env. When audit is not nil the booking store is wrapped by
// the audit decorator.
func New(audit *auditbus.Core) Env {
	log := logger.NewDiscard()

	resources := NewResourceStore()
	bookings := NewStore()
	outbox, outboxStore := outboxtest.NewCore()

	var storer bookingbus.Storer = bookings
	if audit != nil {
		storer = bookingaudit.NewStore(bookings, audit)
	}

	core := bookingbus.NewCore(log, storer, resourcebus.NewCore(log, resources, 0), outbox)

	return Env{
		Core:      core,
		Resources: resources,
		Bookings:  bookings,
		Outbox:    outboxStore,
	}
}

func visible(ac tenancy.AccessContext, tenantID uuid.UUID) bool {
	if ac.IsService() {
		return true
	}

	id, ok := ac.TenantID()
	return ok && id == tenantID
}

// =============================================================================

// Store is an in-memory bookingbus.Storer.
type Store struct {
	mu  sync.Mutex
	bks map[uuid.UUID]bookingbus.Booking
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{bks: make(map[uuid.UUID]bookingbus.Booking)}
}

// NewWithTx returns the same store.
func (s *Store) NewWithTx(sqldb.CommitRollbacker) (bookingbus.Storer, error) {
	return s, nil
}

// Create rejects an overlap with an active booking of the same resource.
func (s *Store) Create(_ context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	if err := tenancy.CheckWrite(ac, b.TenantID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlaps(b) {
		return bookingbus.ErrConflict
	}

	s.bks[b.ID] = clone(b)
	return nil
}

// UpdateStatus applies the change only when the stored status is from.
func (s *Store) UpdateStatus(_ context.Context, ac tenancy.AccessContext, b bookingbus.Booking, from bookingstatus.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bks[b.ID]
	if !ok || !visible(ac, cur.TenantID) || cur.Status != from {
		return bookingbus.ErrStatusChanged
	}

	next := cur
	next.Status = b.Status
	next.UpdatedAt = b.UpdatedAt

	if s.overlaps(next) {
		return bookingbus.ErrConflict
	}

	s.bks[b.ID] = next
	return nil
}

// AppendNote implements bookingbus.Storer.
func (s *Store) AppendNote(_ context.Context, ac tenancy.AccessContext, b bookingbus.Booking, n bookingbus.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bks[b.ID]
	if !ok || !visible(ac, cur.TenantID) {
		return bookingbus.ErrNotFound
	}

	cur.Notes = append(append([]bookingbus.Note{}, cur.Notes...), n)
	cur.UpdatedAt = n.CreatedAt
	s.bks[b.ID] = cur
	return nil
}

// Anonymize implements bookingbus.Storer.
func (s *Store) Anonymize(_ context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bks[b.ID]
	if !ok || !visible(ac, cur.TenantID) {
		return bookingbus.ErrNotFound
	}

	cur.CustomerName = ""
	cur.CustomerEmail = ""
	cur.CustomerPhone = phone.Null{}
	s.bks[b.ID] = cur
	return nil
}

// Query returns the visible bookings ordered by start, ignoring paging.
func (s *Store) Query(_ context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter, _ order.By, _ page.Page) ([]bookingbus.Booking, error) {
	return s.filter(ac, filter), nil
}

// Count implements bookingbus.Storer.
func (s *Store) Count(_ context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter) (int, error) {
	return len(s.filter(ac, filter)), nil
}

// QueryByID implements bookingbus.Storer.
func (s *Store) QueryByID(_ context.Context, ac tenancy.AccessContext, id uuid.UUID) (bookingbus.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bks[id]
	if !ok || !visible(ac, b.TenantID) {
		return bookingbus.Booking{}, bookingbus.ErrNotFound
	}

	return clone(b), nil
}

// QueryByCustomerEmail implements bookingbus.Storer.
func (s *Store) QueryByCustomerEmail(_ context.Context, ac tenancy.AccessContext, email string) ([]bookingbus.Booking, error) {
	return s.filter(ac, bookingbus.QueryFilter{CustomerEmail: &email}), nil
}

func (s *Store) filter(ac tenancy.AccessContext, f bookingbus.QueryFilter) []bookingbus.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []bookingbus.Booking
	for _, b := range s.bks {
		switch {
		case !visible(ac, b.TenantID):
		case f.ID != nil && *f.ID != b.ID:
		case f.ResourceID != nil && *f.ResourceID != b.ResourceID:
		case f.Status != nil && *f.Status != b.Status:
		case f.CustomerEmail != nil && *f.CustomerEmail != b.CustomerEmail:
		default:
			out = append(out, clone(b))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Range.Start().Before(out[j].Range.Start())
	})

	return out
}

func (s *Store) overlaps(b bookingbus.Booking) bool {
	if !b.Status.IsConflicting() {
		return false
	}

	for _, x := range s.bks {
		if x.ID == b.ID || x.TenantID != b.TenantID || x.ResourceID != b.ResourceID {
			continue
		}
		if x.Status.IsConflicting() && x.Range.Overlaps(b.Range) {
			return true
		}
	}

	return false
}

func clone(b bookingbus.Booking) bookingbus.Booking {
	b.Notes = append([]bookingbus.Note{}, b.Notes...)
	return b
}

// =============================================================================

// ResourceStore is an in-memory resourcebus.Storer.
type ResourceStore struct {
	mu sync.Mutex
	rs map[uuid.UUID]resourcebus.Resource
}

// NewResourceStore constructs an empty store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{rs: make(map[uuid.UUID]resourcebus.Resource)}
}

// Add stores a resource of the tenant and returns it.
func (s *ResourceStore) Add(tenantID uuid.UUID) resourcebus.Resource {
	r := resourcebus.Resource{ID: uuid.New(), TenantID: tenantID, Name: "Room", Capacity: 1}

	s.mu.Lock()
	s.rs[r.ID] = r
	s.mu.Unlock()

	return r
}

// NewWithTx returns the same store.
func (s *ResourceStore) NewWithTx(sqldb.CommitRollbacker) (resourcebus.Storer, error) {
	return s, nil
}

// Create implements resourcebus.Storer.
func (s *ResourceStore) Create(_ context.Context, _ tenancy.AccessContext, r resourcebus.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rs[r.ID] = r
	return nil
}

// Update implements resourcebus.Storer.
func (s *ResourceStore) Update(ctx context.Context, ac tenancy.AccessContext, r resourcebus.Resource) error {
	return s.Create(ctx, ac, r)
}

// Delete implements resourcebus.Storer.
func (s *ResourceStore) Delete(_ context.Context, _ tenancy.AccessContext, r resourcebus.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rs, r.ID)
	return nil
}

// Query implements resourcebus.Storer.
func (s *ResourceStore) Query(context.Context, tenancy.AccessContext, resourcebus.QueryFilter, order.By, page.Page) ([]resourcebus.Resource, error) {
	return nil, nil
}

// Count implements resourcebus.Storer.
func (s *ResourceStore) Count(context.Context, tenancy.AccessContext, resourcebus.QueryFilter) (int, error) {
	return 0, nil
}

// QueryByID implements resourcebus.Storer.
func (s *ResourceStore) QueryByID(_ context.Context, ac tenancy.AccessContext, id uuid.UUID) (resourcebus.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rs[id]
	if !ok || !visible(ac, r.TenantID) {
		return resourcebus.Resource{}, resourcebus.ErrNotFound
	}

	return r, nil
}

// LockForBooking only checks that the resource is visible; admission is
// serialized by the booking store.
func (s *ResourceStore) LockForBooking(ctx context.Context, ac tenancy.AccessContext, id uuid.UUID, _ time.Duration) error {
	_, err := s.QueryByID(ctx, ac, id)
	return err
}
