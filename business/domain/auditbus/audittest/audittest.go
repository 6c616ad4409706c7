// Package audittest provides an in-memory audit store for testing the audit
// decorators of other domains.
package audittest

import (
	"context"
	"sync"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
)

// Store keeps every inserted record in memory.
type Store struct {
	mu   sync.Mutex
	recs []auditbus.Record
}

// NewCore returns an audit core backed by a fresh in-memory store.
func NewCore() (*auditbus.Core, *Store) {
	s := &Store{}
	return auditbus.NewCore(logger.NewDiscard(), s), s
}

// NewWithTx returns the same store; there is no transaction in memory.
func (s *Store) NewWithTx(sqldb.CommitRollbacker) (auditbus.Storer, error) {
	return s, nil
}

// Insert implements auditbus.Storer.
func (s *Store) Insert(_ context.Context, rec auditbus.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs = append(s.recs, rec)
	return nil
}

// Query returns every record.
func (s *Store) Query(context.Context, tenancy.AccessContext, auditbus.QueryFilter, order.By, page.Page) ([]auditbus.Record, error) {
	return s.Records(), nil
}

// Count returns the number of records.
func (s *Store) Count(context.Context, tenancy.AccessContext, auditbus.QueryFilter) (int, error) {
	return len(s.Records()), nil
}

// Purge removes records created before cutoff.
func (s *Store) Purge(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []auditbus.Record
	for _, r := range s.recs {
		if !r.CreatedAt.Before(cutoff) {
			kept = append(kept, r)
		}
	}

	n := len(s.recs) - len(kept)
	s.recs = kept

	return n, nil
}

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records() []auditbus.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auditbus.Record, len(s.recs))
	copy(out, s.recs)
	return out
}
