// Package outboxtest provides an in-memory outbox store for testing the
// producers of outbox events.
package outboxtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Store keeps enqueued events in memory, deduplicating per tenant. It never
// hands events to a dispatcher.
type Store struct {
	mu     sync.Mutex
	events []outboxbus.Event
}

// NewCore returns an outbox core backed by a fresh in-memory store.
func NewCore() (*outboxbus.Core, *Store) {
	s := &Store{}
	return outboxbus.NewCore(logger.NewDiscard(), s), s
}

// NewWithTx returns the same store.
func (s *Store) NewWithTx(sqldb.CommitRollbacker) (outboxbus.Storer, error) {
	return s, nil
}

// Insert implements outboxbus.Storer.
func (s *Store) Insert(_ context.Context, e outboxbus.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.DedupKey != "" {
		for _, x := range s.events {
			if x.TenantID == e.TenantID && x.DedupKey == e.DedupKey {
				return false, nil
			}
		}
	}

	s.events = append(s.events, e)
	return true, nil
}

// Claim returns nothing.
func (s *Store) Claim(context.Context, time.Time, time.Time, int) ([]outboxbus.Event, error) {
	return nil, nil
}

// MarkDelivered implements outboxbus.Storer.
func (s *Store) MarkDelivered(context.Context, outboxbus.Event, time.Time) error {
	return nil
}

// MarkRetry implements outboxbus.Storer.
func (s *Store) MarkRetry(context.Context, outboxbus.Event, time.Time, string) error {
	return nil
}

// MarkFailed parks the stored event as failed.
func (s *Store) MarkFailed(_ context.Context, e outboxbus.Event, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == e.ID {
			s.events[i].Status = eventstatus.Failed
			s.events[i].LastError = lastErr
			return nil
		}
	}

	return outboxbus.ErrNotFound
}

// Redrive moves failed events back to pending, every one of them when
// eventID is nil.
func (s *Store) Redrive(_ context.Context, _ tenancy.AccessContext, eventID *uuid.UUID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.events {
		e := &s.events[i]
		if e.Status != eventstatus.Failed || (eventID != nil && e.ID != *eventID) {
			continue
		}

		e.Status = eventstatus.Pending
		e.Attempts = 0
		e.ReadyAt = now
		e.LastError = ""
		n++
	}

	return n, nil
}

// CountByStatus counts the stored events in status.
func (s *Store) CountByStatus(_ context.Context, _ tenancy.AccessContext, status eventstatus.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.events {
		if e.Status == status {
			n++
		}
	}

	return n, nil
}

// QueryByID implements outboxbus.Storer.
func (s *Store) QueryByID(_ context.Context, _ tenancy.AccessContext, id uuid.UUID) (outboxbus.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}

	return outboxbus.Event{}, outboxbus.ErrNotFound
}

// Events returns a copy of the enqueued events in order.
func (s *Store) Events() []outboxbus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outboxbus.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Codes returns the event codes in enqueue order.
func (s *Store) Codes() []string {
	evts := s.Events()

	codes := make([]string, len(evts))
	for i, e := range evts {
		codes[i] = e.Code
	}

	return codes
}
