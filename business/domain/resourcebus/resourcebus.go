// Package resourcebus provides the bookable resources of a tenant and the
// per-resource lock taken while a booking is admitted.
package resourcebus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// DefaultLockWait bounds how long LockForBooking waits for a concurrent
// admission on the same resource.
const DefaultLockWait = 2 * time.Second

// Set of error variables for CRUD operations.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrInvalidName     = errors.New("name is required")
	ErrInUse           = errors.New("resource has bookings")
)

// Storer interface declares the behavior this package needs to persist and
// retrieve data.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Create(ctx context.Context, ac tenancy.AccessContext, r Resource) error
	Update(ctx context.Context, ac tenancy.AccessContext, r Resource) error
	Delete(ctx context.Context, ac tenancy.AccessContext, r Resource) error
	Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Resource, error)
	Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error)
	QueryByID(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) (Resource, error)
	LockForBooking(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID, wait time.Duration) error
}

// Core manages the set of APIs for resource access.
type Core struct {
	log      *logger.Logger
	storer   Storer
	lockWait time.Duration
	now      func() time.Time
}

// NewCore constructs a resource core for api access.
func NewCore(log *logger.Logger, storer Storer, lockWait time.Duration) *Core {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}

	return &Core{
		log:      log,
		storer:   storer,
		lockWait: lockWait,
		now:      time.Now,
	}
}

// NewWithTx constructs a new Core value that will use the
// specified transaction in any store related calls.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Core{
		log:      c.log,
		storer:   storer,
		lockWait: c.lockWait,
		now:      c.now,
	}, nil
}

// Create adds a new resource to the caller's tenant.
func (c *Core) Create(ctx context.Context, ac tenancy.AccessContext, nr NewResource) (Resource, error) {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.create")
	defer span.End()

	if err := validate(nr.Name, nr.Capacity); err != nil {
		return Resource{}, fmt.Errorf("create: %w", err)
	}

	if err := tenancy.CheckWrite(ac, nr.TenantID); err != nil {
		return Resource{}, fmt.Errorf("create: %w", err)
	}

	now := c.now().UTC()

	r := Resource{
		ID:        uuid.New(),
		TenantID:  nr.TenantID,
		Name:      nr.Name,
		Kind:      nr.Kind,
		Capacity:  nr.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, ac, r); err != nil {
		return Resource{}, fmt.Errorf("create: %w", err)
	}

	return r, nil
}

// Update modifies a resource of the caller's tenant.
func (c *Core) Update(ctx context.Context, ac tenancy.AccessContext, r Resource, ur UpdateResource) (Resource, error) {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.update")
	defer span.End()

	if ur.Name != nil {
		r.Name = *ur.Name
	}

	if ur.Capacity != nil {
		r.Capacity = *ur.Capacity
	}

	if err := validate(r.Name, r.Capacity); err != nil {
		return Resource{}, fmt.Errorf("update: %w", err)
	}

	if err := tenancy.CheckWrite(ac, r.TenantID); err != nil {
		return Resource{}, fmt.Errorf("update: %w", err)
	}

	r.UpdatedAt = c.now().UTC()

	if err := c.storer.Update(ctx, ac, r); err != nil {
		return Resource{}, fmt.Errorf("update: %w", err)
	}

	return r, nil
}

// Delete removes a resource that has no bookings.
func (c *Core) Delete(ctx context.Context, ac tenancy.AccessContext, r Resource) error {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.delete")
	defer span.End()

	if err := tenancy.CheckWrite(ac, r.TenantID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if err := c.storer.Delete(ctx, ac, r); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// Query retrieves the resources of the caller's tenant.
func (c *Core) Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Resource, error) {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.query")
	defer span.End()

	rs, err := c.storer.Query(ctx, ac, filter, orderBy, page)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return rs, nil
}

// Count returns the number of resources of the caller's tenant.
func (c *Core) Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.count")
	defer span.End()

	return c.storer.Count(ctx, ac, filter)
}

// QueryByID finds the resource by the specified ID.
func (c *Core) QueryByID(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) (Resource, error) {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.querybyid")
	defer span.End()

	r, err := c.storer.QueryByID(ctx, ac, resourceID)
	if err != nil {
		return Resource{}, fmt.Errorf("query: resourceID[%s]: %w", resourceID, err)
	}

	return r, nil
}

// LockForBooking takes the exclusive row lock of the resource until the
// surrounding transaction ends. It must run on a Core bound to that
// transaction. Waiting longer than the configured bound fails with a
// transient error so the transaction is retried rather than blocked.
func (c *Core) LockForBooking(ctx context.Context, ac tenancy.AccessContext, resourceID uuid.UUID) error {
	ctx, span := otel.AddSpan(ctx, "business.resourcebus.lockforbooking")
	defer span.End()

	if err := c.storer.LockForBooking(ctx, ac, resourceID, c.lockWait); err != nil {
		return fmt.Errorf("lock: resourceID[%s]: %w", resourceID, err)
	}

	return nil
}

func validate(name string, capacity int) error {
	if name == "" {
		return ErrInvalidName
	}

	if capacity < 1 {
		return ErrInvalidCapacity
	}

	return nil
}
