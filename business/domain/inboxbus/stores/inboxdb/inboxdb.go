// Package inboxdb contains inbox related CRUD functionality.
package inboxdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
)

type event struct {
	Provider        string    `db:"provider"`
	ProviderEventID string    `db:"provider_event_id"`
	Payload         []byte    `db:"payload"`
	ReceivedAt      time.Time `db:"received_at"`
}

// Store manages the set of APIs for inbox database access.
type Store struct {
	log *logger.Logger
	db  sqlx.ExtContext
}

// NewStore constructs the api for data access.
func NewStore(log *logger.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

// NewWithTx constructs a new Store value replacing the sqlx DB
// value with a sqlx DB value that is currently inside a transaction.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (inboxbus.Storer, error) {
	ec, err := sqldb.GetExtContext(tx)
	if err != nil {
		return nil, err
	}

	return &Store{log: s.log, db: ec}, nil
}

// Insert adds the callback. A replay of the primary key inserts nothing and
// reports false.
func (s *Store) Insert(ctx context.Context, e inboxbus.Event) (bool, error) {
	const q = `
	INSERT INTO inbox_events
		(provider, provider_event_id, payload, received_at)
	VALUES
		(:provider, :provider_event_id, :payload, :received_at)
	ON CONFLICT (provider, provider_event_id) DO NOTHING`

	dbEvent := event{
		Provider:        e.Provider,
		ProviderEventID: e.ProviderEventID,
		Payload:         e.Payload,
		ReceivedAt:      e.ReceivedAt.UTC(),
	}

	n, err := sqldb.NamedExecRowsAffected(ctx, s.log, s.db, q, dbEvent)
	if err != nil {
		return false, fmt.Errorf("namedexecrowsaffected: %w", err)
	}

	return n == 1, nil
}

// QueryByKey gets the callback recorded under the provider key.
func (s *Store) QueryByKey(ctx context.Context, provider string, providerEventID string) (inboxbus.Event, error) {
	data := struct {
		Provider        string `db:"provider"`
		ProviderEventID string `db:"provider_event_id"`
	}{
		Provider:        provider,
		ProviderEventID: providerEventID,
	}

	const q = `
	SELECT
		provider, provider_event_id, payload, received_at
	FROM
		inbox_events
	WHERE
		provider = :provider AND provider_event_id = :provider_event_id`

	var dbEvent event
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbEvent); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return inboxbus.Event{}, fmt.Errorf("namedquerystruct: %w", inboxbus.ErrNotFound)
		}
		return inboxbus.Event{}, fmt.Errorf("namedquerystruct: %w", err)
	}

	return inboxbus.Event{
		Provider:        dbEvent.Provider,
		ProviderEventID: dbEvent.ProviderEventID,
		Payload:         json.RawMessage(dbEvent.Payload),
		ReceivedAt:      dbEvent.ReceivedAt,
	}, nil
}
