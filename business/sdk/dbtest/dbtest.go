// Package dbtest starts a Postgres container and wires the business cores
// to real stores for integration tests.
package dbtest

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus/stores/auditdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingaudit"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/inboxbus/stores/inboxdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/outboxbus/stores/outboxdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus/stores/resourceaudit"
	"github.com/jcpaschoal/spi-agenda/business/domain/resourcebus/stores/resourcedb"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus/stores/tenantaudit"
	"github.com/jcpaschoal/spi-agenda/business/domain/tenantbus/stores/tenantdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/userbus/stores/userdb"
	"github.com/jcpaschoal/spi-agenda/business/sdk/migrate"
	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Image is the Postgres image the tests run against.
const Image = "postgres:16-alpine"

// BusDomain represents all the business domain apis needed for testing.
type BusDomain struct {
	Audit    *auditbus.Core
	Outbox   *outboxbus.Core
	Inbox    *inboxbus.Core
	Tenant   *tenantbus.Core
	User     *userbus.Core
	Resource *resourcebus.Core
	Booking  *bookingbus.Core
}

func newBusDomains(log *logger.Logger, db *sqlx.DB) BusDomain {
	audit := auditbus.NewCore(log, auditdb.NewStore(log, db))
	outbox := outboxbus.NewCore(log, outboxdb.NewStore(log, db))
	resource := resourcebus.NewCore(log, resourceaudit.NewStore(resourcedb.NewStore(log, db), audit), time.Second)

	return BusDomain{
		Audit:    audit,
		Outbox:   outbox,
		Inbox:    inboxbus.NewCore(log, inboxdb.NewStore(log, db)),
		Tenant:   tenantbus.NewCore(log, tenantaudit.NewStore(tenantdb.NewStore(log, db), audit)),
		User:     userbus.NewCore(userdb.NewStore(log, db)),
		Resource: resource,
		Booking:  bookingbus.NewCore(log, bookingaudit.NewStore(bookingdb.NewStore(log, db), audit), resource, outbox),
	}
}

// Database owns state for running and shutting down tests.
type Database struct {
	DB        *sqlx.DB
	Log       *logger.Logger
	BusDomain BusDomain
}

// New starts a fresh migrated database for the test. It is skipped under
// -short since it needs a container runtime.
func New(t *testing.T, name string) *Database {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test: needs a container runtime")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, Image,
		postgres.WithDatabase(name),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting database: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating database: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable", "timezone=utc")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := sqldb.OpenDSN(dsn, 10, 20)
	if err != nil {
		t.Fatalf("opening database connection: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	if err := migrate.Migrate(ctx, db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "TEST", func(context.Context) string { return "00000000-0000-0000-0000-000000000000" })

	t.Cleanup(func() {
		if t.Failed() {
			fmt.Println("******************** LOGS ********************")
			fmt.Print(buf.String())
			fmt.Println("******************** LOGS ********************")
		}
	})

	return &Database{
		DB:        db,
		Log:       log,
		BusDomain: newBusDomains(log, db),
	}
}

// WithinTran runs fn inside a transaction with the cores bound to it,
// retrying transient failures the way the service does.
func (d *Database) WithinTran(ctx context.Context, fn func(bus BusDomain) error) error {
	return sqldb.WithinTran(ctx, d.Log, sqldb.NewBeginner(d.DB), 3, func(tx sqldb.CommitRollbacker) error {
		bus, err := d.BusDomain.newWithTx(tx)
		if err != nil {
			return err
		}

		return fn(bus)
	})
}

func (b BusDomain) newWithTx(tx sqldb.CommitRollbacker) (BusDomain, error) {
	var (
		out BusDomain
		err error
	)

	if out.Audit, err = b.Audit.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.Outbox, err = b.Outbox.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.Inbox, err = b.Inbox.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.Tenant, err = b.Tenant.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.User, err = b.User.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.Resource, err = b.Resource.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}
	if out.Booking, err = b.Booking.NewWithTx(tx); err != nil {
		return BusDomain{}, err
	}

	return out, nil
}
