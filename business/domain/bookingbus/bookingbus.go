// Package bookingbus admits bookings against a resource schedule and drives
// their lifecycle. Admission is atomic against concurrent proposals: the
// resource row is locked with a bounded wait and the store rejects any
// overlap with an active booking at insert time.
package bookingbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jcpaschoal/spi-agenda/foundation/otel"
)

// Event codes written to the outbox.
const (
	EventCreated       = "booking.created"
	EventStatusChanged = "booking.status_changed"
	EventReopened      = "booking.reopened"
)

// Set of error variables for booking operations.
var (
	ErrNotFound          = errors.New("booking not found")
	ErrConflict          = errors.New("booking overlaps an active booking")
	ErrInvalidRange      = errors.New("booking requires a time range")
	ErrResourceRequired  = errors.New("booking requires a resource")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrTerminal          = errors.New("booking is terminal")
	ErrNotTerminal       = errors.New("only terminal bookings can be reopened")
	ErrStatusChanged     = errors.New("booking status changed concurrently")
	ErrInvalidNote       = errors.New("note text is required")
	ErrEmailRequired     = errors.New("customer email is required")
)

// Storer interface declares the behavior this package needs to persist and
// retrieve data. Create and UpdateStatus must report an overlap with an
// active booking of the same resource as ErrConflict.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Create(ctx context.Context, ac tenancy.AccessContext, b Booking) error
	UpdateStatus(ctx context.Context, ac tenancy.AccessContext, b Booking, from bookingstatus.Status) error
	AppendNote(ctx context.Context, ac tenancy.AccessContext, b Booking, n Note) error
	Anonymize(ctx context.Context, ac tenancy.AccessContext, b Booking) error
	Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Booking, error)
	Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error)
	QueryByID(ctx context.Context, ac tenancy.AccessContext, bookingID uuid.UUID) (Booking, error)
	QueryByCustomerEmail(ctx context.Context, ac tenancy.AccessContext, email string) ([]Booking, error)
}

// Core manages the set of APIs for booking access.
type Core struct {
	log         *logger.Logger
	storer      Storer
	resourceBus *resourcebus.Core
	outboxBus   *outboxbus.Core
	now         func() time.Time
}

// NewCore constructs a booking core for api access.
func NewCore(log *logger.Logger, storer Storer, resourceBus *resourcebus.Core, outboxBus *outboxbus.Core) *Core {
	return &Core{
		log:         log,
		storer:      storer,
		resourceBus: resourceBus,
		outboxBus:   outboxBus,
		now:         time.Now,
	}
}

// NewWithTx constructs a new Core value that will use the specified
// transaction in any store related calls, including the resource lock and
// the outbox append.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	resourceBus, err := c.resourceBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	outboxBus, err := c.outboxBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Core{
		log:         c.log,
		storer:      storer,
		resourceBus: resourceBus,
		outboxBus:   outboxBus,
		now:         c.now,
	}, nil
}

// Propose admits a pending booking or fails with ErrConflict when the range
// overlaps an active booking of the same resource. Back to back ranges do
// not overlap. It must run on a Core bound to a transaction.
func (c *Core) Propose(ctx context.Context, ac tenancy.AccessContext, nb NewBooking) (Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.propose")
	defer span.End()

	if nb.Range.IsZero() {
		return Booking{}, fmt.Errorf("propose: %w", ErrInvalidRange)
	}

	if nb.ResourceID == uuid.Nil {
		return Booking{}, fmt.Errorf("propose: %w", ErrResourceRequired)
	}

	if err := tenancy.CheckWrite(ac, nb.TenantID); err != nil {
		return Booking{}, fmt.Errorf("propose: %w", err)
	}

	if err := c.resourceBus.LockForBooking(ctx, ac, nb.ResourceID); err != nil {
		return Booking{}, fmt.Errorf("propose: %w", err)
	}

	now := c.now().UTC()

	b := Booking{
		ID:            uuid.New(),
		TenantID:      nb.TenantID,
		ResourceID:    nb.ResourceID,
		Range:         nb.Range,
		Status:        bookingstatus.Pending,
		CustomerName:  strings.TrimSpace(nb.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(nb.CustomerEmail)),
		CustomerPhone: nb.CustomerPhone,
		Notes:         []Note{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.storer.Create(ctx, ac, b); err != nil {
		if errors.Is(err, ErrConflict) {
			c.log.Info(ctx, "booking: conflict", "resource_id", b.ResourceID, "range", b.Range.String())
		}
		return Booking{}, fmt.Errorf("propose: %w", err)
	}

	created := Created{
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		Range:      b.Range,
		Status:     b.Status.String(),
	}

	if err := c.enqueue(ctx, ac, b, EventCreated, created); err != nil {
		return Booking{}, fmt.Errorf("propose: %w", err)
	}

	return b, nil
}

// ChangeStatus moves a booking along the lifecycle. Terminal bookings are
// immutable here; use Reopen.
func (c *Core) ChangeStatus(ctx context.Context, ac tenancy.AccessContext, b Booking, to bookingstatus.Status) (Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.changestatus")
	defer span.End()

	if b.Status.IsTerminal() {
		return Booking{}, fmt.Errorf("changestatus: bookingID[%s]: %w", b.ID, ErrTerminal)
	}

	if !b.Status.CanTransition(to) {
		return Booking{}, fmt.Errorf("changestatus: %s -> %s: %w", b.Status, to, ErrInvalidTransition)
	}

	return c.updateStatus(ctx, ac, b, to, EventStatusChanged)
}

// Reopen moves a terminal booking back to an active status. The range is
// checked again against the active bookings of the resource.
func (c *Core) Reopen(ctx context.Context, ac tenancy.AccessContext, b Booking, to bookingstatus.Status) (Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.reopen")
	defer span.End()

	if !b.Status.IsTerminal() {
		return Booking{}, fmt.Errorf("reopen: bookingID[%s]: %w", b.ID, ErrNotTerminal)
	}

	if to != bookingstatus.Pending && to != bookingstatus.Confirmed {
		return Booking{}, fmt.Errorf("reopen: %s -> %s: %w", b.Status, to, ErrInvalidTransition)
	}

	if err := c.resourceBus.LockForBooking(ctx, ac, b.ResourceID); err != nil {
		return Booking{}, fmt.Errorf("reopen: %w", err)
	}

	return c.updateStatus(ctx, ac, b, to, EventReopened)
}

// AppendNote adds a note. Notes are append-only metadata and are allowed on
// terminal bookings.
func (c *Core) AppendNote(ctx context.Context, ac tenancy.AccessContext, b Booking, text string) (Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.appendnote")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Booking{}, fmt.Errorf("appendnote: %w", ErrInvalidNote)
	}

	if err := tenancy.CheckWrite(ac, b.TenantID); err != nil {
		return Booking{}, fmt.Errorf("appendnote: %w", err)
	}

	n := Note{
		Text:      text,
		AuthorID:  ac.Actor(),
		CreatedAt: c.now().UTC(),
	}

	if err := c.storer.AppendNote(ctx, ac, b, n); err != nil {
		return Booking{}, fmt.Errorf("appendnote: %w", err)
	}

	b.Notes = append(b.Notes, n)

	return b, nil
}

// Anonymize erases the personal fields of every booking of the caller's
// tenant made by the customer with the given email. Running it again finds
// nothing and returns zero.
func (c *Core) Anonymize(ctx context.Context, ac tenancy.AccessContext, email string) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.anonymize")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return 0, fmt.Errorf("anonymize: %w", ErrEmailRequired)
	}

	if _, err := ac.RequireTenant(); err != nil {
		return 0, fmt.Errorf("anonymize: %w", err)
	}

	bks, err := c.storer.QueryByCustomerEmail(ctx, ac, email)
	if err != nil {
		return 0, fmt.Errorf("anonymize: %w", err)
	}

	for _, b := range bks {
		if err := c.storer.Anonymize(ctx, ac, b); err != nil {
			return 0, fmt.Errorf("anonymize: bookingID[%s]: %w", b.ID, err)
		}
	}

	c.log.Info(ctx, "booking: anonymized", "bookings", len(bks))

	return len(bks), nil
}

// Query retrieves a list of existing bookings.
func (c *Core) Query(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter, orderBy order.By, page page.Page) ([]Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.query")
	defer span.End()

	bks, err := c.storer.Query(ctx, ac, filter, orderBy, page)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return bks, nil
}

// Count returns the total number of bookings.
func (c *Core) Count(ctx context.Context, ac tenancy.AccessContext, filter QueryFilter) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.count")
	defer span.End()

	return c.storer.Count(ctx, ac, filter)
}

// QueryByID finds the booking by the specified ID.
func (c *Core) QueryByID(ctx context.Context, ac tenancy.AccessContext, bookingID uuid.UUID) (Booking, error) {
	ctx, span := otel.AddSpan(ctx, "business.bookingbus.querybyid")
	defer span.End()

	b, err := c.storer.QueryByID(ctx, ac, bookingID)
	if err != nil {
		return Booking{}, fmt.Errorf("query: bookingID[%s]: %w", bookingID, err)
	}

	return b, nil
}

func (c *Core) updateStatus(ctx context.Context, ac tenancy.AccessContext, b Booking, to bookingstatus.Status, code string) (Booking, error) {
	if err := tenancy.CheckWrite(ac, b.TenantID); err != nil {
		return Booking{}, fmt.Errorf("updatestatus: %w", err)
	}

	from := b.Status
	b.Status = to
	b.UpdatedAt = c.now().UTC()

	if err := c.storer.UpdateStatus(ctx, ac, b, from); err != nil {
		return Booking{}, fmt.Errorf("updatestatus: %w", err)
	}

	change := StatusChange{
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		From:       from.String(),
		To:         to.String(),
	}

	if err := c.enqueue(ctx, ac, b, code, change); err != nil {
		return Booking{}, fmt.Errorf("updatestatus: %w", err)
	}

	return b, nil
}

func (c *Core) enqueue(ctx context.Context, ac tenancy.AccessContext, b Booking, code string, payload any) error {
	ne := outboxbus.NewEvent{
		TenantID: b.TenantID,
		Code:     code,
		Payload:  payload,
	}

	if _, err := c.outboxBus.Enqueue(ctx, ac, ne); err != nil {
		return fmt.Errorf("enqueue[%s]: %w", code, err)
	}

	return nil
}
