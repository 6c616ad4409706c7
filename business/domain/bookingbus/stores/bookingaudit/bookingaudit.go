// Package bookingaudit wraps a booking store so every committed booking
// mutation, including customer anonymization, leaves an audit record in the
// same transaction.
package bookingaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/auditop"
	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
)

// Entity is the entity name stored in audit records.
const Entity = "bookings"

type bookingState struct {
	ID            uuid.UUID         `json:"booking_id"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	ResourceID    uuid.UUID         `json:"resource_id"`
	StartsAt      time.Time         `json:"starts_at"`
	EndsAt        time.Time         `json:"ends_at"`
	Status        string            `json:"status"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone *string           `json:"customer_phone"`
	Notes         []bookingbus.Note `json:"notes"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toState(b bookingbus.Booking) *bookingState {
	s := bookingState{
		ID:            b.ID,
		TenantID:      b.TenantID,
		ResourceID:    b.ResourceID,
		StartsAt:      b.Range.Start(),
		EndsAt:        b.Range.End(),
		Status:        b.Status.String(),
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		Notes:         b.Notes,
		UpdatedAt:     b.UpdatedAt,
	}

	if b.CustomerPhone.Valid() {
		ph := b.CustomerPhone.String()
		s.CustomerPhone = &ph
	}

	return &s
}

// Store decorates a bookingbus.Storer with audit recording.
type Store struct {
	storer bookingbus.Storer
	audit  *auditbus.Core
}

// NewStore constructs the audited store.
func NewStore(storer bookingbus.Storer, audit *auditbus.Core) *Store {
	return &Store{
		storer: storer,
		audit:  audit,
	}
}

// NewWithTx binds both the wrapped store and the recorder to tx.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (bookingbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	audit, err := s.audit.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return NewStore(storer, audit), nil
}

// Create inserts the booking and records an INSERT.
func (s *Store) Create(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	if err := s.storer.Create(ctx, ac, b); err != nil {
		return err
	}

	return s.record(ctx, ac, b, auditop.Insert, nil, toState(b))
}

// UpdateStatus changes the status and records an UPDATE.
func (s *Store) UpdateStatus(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking, from bookingstatus.Status) error {
	return s.mutate(ctx, ac, b.ID, auditop.Update, func() error {
		return s.storer.UpdateStatus(ctx, ac, b, from)
	})
}

// AppendNote adds the note and records an UPDATE.
func (s *Store) AppendNote(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking, n bookingbus.Note) error {
	return s.mutate(ctx, ac, b.ID, auditop.Update, func() error {
		return s.storer.AppendNote(ctx, ac, b, n)
	})
}

// Anonymize erases the customer fields and records an ANONYMIZE whose after
// image is the anonymized row.
func (s *Store) Anonymize(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking) error {
	return s.mutate(ctx, ac, b.ID, auditop.Anonymize, func() error {
		return s.storer.Anonymize(ctx, ac, b)
	})
}

// Query implements bookingbus.Storer.
func (s *Store) Query(ctx context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter, orderBy order.By, pg page.Page) ([]bookingbus.Booking, error) {
	return s.storer.Query(ctx, ac, filter, orderBy, pg)
}

// Count implements bookingbus.Storer.
func (s *Store) Count(ctx context.Context, ac tenancy.AccessContext, filter bookingbus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, ac, filter)
}

// QueryByID implements bookingbus.Storer.
func (s *Store) QueryByID(ctx context.Context, ac tenancy.AccessContext, bookingID uuid.UUID) (bookingbus.Booking, error) {
	return s.storer.QueryByID(ctx, ac, bookingID)
}

// QueryByCustomerEmail implements bookingbus.Storer.
func (s *Store) QueryByCustomerEmail(ctx context.Context, ac tenancy.AccessContext, email string) ([]bookingbus.Booking, error) {
	return s.storer.QueryByCustomerEmail(ctx, ac, email)
}

// mutate captures the stored row before and after fn so the record holds
// exactly what was committed.
func (s *Store) mutate(ctx context.Context, ac tenancy.AccessContext, bookingID uuid.UUID, op auditop.Op, fn func() error) error {
	before, err := s.storer.QueryByID(ctx, ac, bookingID)
	if err != nil {
		return err
	}

	if err := fn(); err != nil {
		return err
	}

	after, err := s.storer.QueryByID(ctx, ac, bookingID)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	return s.record(ctx, ac, after, op, toState(before), toState(after))
}

func (s *Store) record(ctx context.Context, ac tenancy.AccessContext, b bookingbus.Booking, op auditop.Op, before any, after any) error {
	ch := auditbus.Change{
		TenantID: b.TenantID,
		Entity:   Entity,
		Key:      auditbus.IDKey("booking_id", b.ID),
		Op:       op,
		Before:   before,
		After:    after,
		ActorID:  ac.Actor(),
	}

	if err := s.audit.Record(ctx, ch); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	return nil
}
