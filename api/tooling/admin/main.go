// This program performs administrative tasks for the scheduling service.
// It exits 0 on success, 1 when the command finished but left work pending
// that a later run can retry, and 2 on a usage, configuration or other fatal
// error.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/auditbus/stores/auditdb"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingaudit"
	"github.com/jcpaschoal/spi-agenda/business/domain/bookingbus/stores/bookingdb"
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
	"github.com/jcpaschoal/spi-agenda/business/sdk/tenancy"
	"github.com/jcpaschoal/spi-agenda/business/types/eventstatus"
	"github.com/jcpaschoal/spi-agenda/business/types/name"
	"github.com/jcpaschoal/spi-agenda/business/types/role"
	"github.com/jcpaschoal/spi-agenda/foundation/logger"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	// errUsage marks a command line that could not be understood.
	errUsage = errors.New("usage")

	// errConfig marks an environment the command cannot start with.
	errConfig = errors.New("config")

	// errPartial marks a command that did part of its work.
	errPartial = errors.New("partial")
)

// Exit codes.
const (
	exitOK      = 0
	exitPartial = 1
	exitFatal   = 2
)

// Config replicates the database settings of the service.
type Config struct {
	DB struct {
		User         string        `envconfig:"DB_USER" default:"postgres"`
		Password     string        `envconfig:"DB_PASSWORD" default:"postgres"`
		Host         string        `envconfig:"DB_HOST" default:"localhost"`
		Name         string        `envconfig:"DB_NAME" default:"agenda"`
		MaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"0"`
		MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"0"`
		DisableTLS   bool          `envconfig:"DB_DISABLE_TLS" default:"true"`
		LockWait     time.Duration `envconfig:"DB_LOCK_WAIT" default:"2s"`
	}
	Audit struct {
		RetentionMonths int `envconfig:"AUDIT_RETENTION_MONTHS" default:"12"`
	}
	TxRetries int `envconfig:"WEB_TX_RETRIES" default:"3"`
}

func main() {
	log := logger.New(os.Stdout, logger.LevelInfo, "ADMIN", func(context.Context) string { return "" })
	ctx := context.Background()

	err := run(ctx, log, os.Args[1:])

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
	case errors.Is(err, errPartial):
		log.Warn(ctx, "admin", "ERROR", err)
	default:
		log.Error(ctx, "admin", "ERROR", err)
	}

	os.Exit(exitCode(err))
}

// exitCode maps the outcome of run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartial):
		return exitPartial
	default:
		return exitFatal
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: admin <command> [flags]

Commands:
  migrate          apply pending schema migrations
  seed             load the development seed data
  genkey           generate an RSA private key for signing sessions
  create-user      register a user
  add-member       add a user to a tenant
  audit-purge      delete audit records outside the retention window
  outbox-redrive   move failed outbox events back to pending
  anonymize        erase a customer's personal data within a tenant`)
}

func run(ctx context.Context, log *logger.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, args := args[0], args[1:]

	if cmd == "genkey" {
		return genKey(args)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: loading .env: %w", errConfig, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("%w: processing config: %w", errConfig, err)
	}

	switch cmd {
	case "migrate", "seed", "create-user", "add-member", "audit-purge", "outbox-redrive", "anonymize":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	db, err := sqldb.Open(sqldb.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	switch cmd {
	case "migrate":
		if err := migrate.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations complete")
		return nil

	case "seed":
		if err := migrate.Seed(ctx, db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		fmt.Println("seed data complete")
		return nil

	case "create-user":
		return createUser(ctx, log, db, args)

	case "add-member":
		return addMember(ctx, log, db, cfg, args)

	case "audit-purge":
		return auditPurge(ctx, log, db, cfg, args)

	case "outbox-redrive":
		return outboxRedrive(ctx, log, db, args)
	}

	return anonymize(ctx, log, db, cfg, args)
}

// =============================================================================

func genKey(args []string) error {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	dir := fs.String("dir", "zarf/keys", "folder the key is written to")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	if err := os.MkdirAll(*dir, 0o700); err != nil {
		return fmt.Errorf("creating key folder: %w", err)
	}

	kid := uuid.NewString()
	path := filepath.Join(*dir, kid+".pem")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating private file: %w", err)
	}
	defer file.Close()

	block := pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}

	if err := pem.Encode(file, &block); err != nil {
		return fmt.Errorf("encoding to private file: %w", err)
	}

	fmt.Printf("private key written: %s\nkid: %s\n", path, kid)
	return nil
}

func createUser(ctx context.Context, log *logger.Logger, db *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "user email (required)")
	pass := fs.String("password", "", "user password (required)")
	fullName := fs.String("name", "", "user full name (required)")
	roleStr := fs.String("role", role.Staff.String(), "user role (ADMIN, STAFF, USER)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if *email == "" || *pass == "" || *fullName == "" {
		return fmt.Errorf("%w: email, password and name are required", errUsage)
	}

	addr, err := mail.ParseAddress(*email)
	if err != nil {
		return fmt.Errorf("%w: email: %w", errUsage, err)
	}

	n, err := name.Parse(*fullName)
	if err != nil {
		return fmt.Errorf("%w: name: %w", errUsage, err)
	}

	r, err := role.Parse(*roleStr)
	if err != nil {
		return fmt.Errorf("%w: role: %w", errUsage, err)
	}

	userBus := userbus.NewCore(userdb.NewStore(log, db))

	usr, err := userBus.Create(ctx, userbus.NewUser{
		Name:     n,
		Email:    *addr,
		Role:     r,
		Password: *pass,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("user created: id[%s] email[%s] role[%s]\n", usr.ID, usr.Email.Address, usr.Role)
	return nil
}

func addMember(ctx context.Context, log *logger.Logger, db *sqlx.DB, cfg Config, args []string) error {
	fs := flag.NewFlagSet("add-member", flag.ContinueOnError)
	tenantStr := fs.String("tenant", "", "tenant id (required)")
	userStr := fs.String("user", "", "user id (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	tenantID, err := uuid.Parse(*tenantStr)
	if err != nil {
		return fmt.Errorf("%w: tenant: %w", errUsage, err)
	}

	userID, err := uuid.Parse(*userStr)
	if err != nil {
		return fmt.Errorf("%w: user: %w", errUsage, err)
	}

	auditBus := auditbus.NewCore(log, auditdb.NewStore(log, db))
	tenantBus := tenantbus.NewCore(log, tenantaudit.NewStore(tenantdb.NewStore(log, db), auditBus))

	err = sqldb.WithinTran(ctx, log, sqldb.NewBeginner(db), cfg.TxRetries, func(tx sqldb.CommitRollbacker) error {
		tb, err := tenantBus.NewWithTx(tx)
		if err != nil {
			return err
		}

		_, err = tb.AddMember(ctx, tenancy.Service(), tenantID, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	fmt.Printf("user %s added to tenant %s\n", userID, tenantID)
	return nil
}

func auditPurge(ctx context.Context, log *logger.Logger, db *sqlx.DB, cfg Config, args []string) error {
	fs := flag.NewFlagSet("audit-purge", flag.ContinueOnError)
	months := fs.Int("months", cfg.Audit.RetentionMonths, "retention window in months")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if *months <= 0 {
		return fmt.Errorf("%w: months must be positive", errUsage)
	}

	auditBus := auditbus.NewCore(log, auditdb.NewStore(log, db))

	now := time.Now()

	n, err := auditBus.Purge(ctx, now, *months)
	if err != nil {
		return fmt.Errorf("audit purge: %w", err)
	}

	fmt.Printf("audit records removed: %d (before %s)\n", n, auditbus.Cutoff(now, *months).Format(time.RFC3339))
	return nil
}

func outboxRedrive(ctx context.Context, log *logger.Logger, db *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("outbox-redrive", flag.ContinueOnError)
	eventStr := fs.String("event", "", "event id; every failed event when empty")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	var eventID *uuid.UUID
	if *eventStr != "" {
		id, err := uuid.Parse(*eventStr)
		if err != nil {
			return fmt.Errorf("%w: event: %w", errUsage, err)
		}
		eventID = &id
	}

	outboxBus := outboxbus.NewCore(log, outboxdb.NewStore(log, db))

	n, err := redrive(ctx, outboxBus, eventID)
	fmt.Printf("outbox events redriven: %d\n", n)

	return err
}

// redrive moves failed events back to pending. It reports errPartial when
// the requested event was not moved or failed events remain afterwards.
func redrive(ctx context.Context, outboxBus *outboxbus.Core, eventID *uuid.UUID) (int, error) {
	ac := tenancy.Service()

	n, err := outboxBus.Redrive(ctx, ac, eventID)
	if err != nil {
		return 0, fmt.Errorf("outbox redrive: %w", err)
	}

	if eventID != nil && n == 0 {
		return 0, fmt.Errorf("%w: event %s is not failed", errPartial, *eventID)
	}

	remaining, err := outboxBus.CountByStatus(ctx, ac, eventstatus.Failed)
	if err != nil {
		return n, fmt.Errorf("outbox redrive: count failed: %w", err)
	}

	if eventID == nil && remaining > 0 {
		return n, fmt.Errorf("%w: %d events still failed", errPartial, remaining)
	}

	return n, nil
}

func anonymize(ctx context.Context, log *logger.Logger, db *sqlx.DB, cfg Config, args []string) error {
	fs := flag.NewFlagSet("anonymize", flag.ContinueOnError)
	tenantStr := fs.String("tenant", "", "tenant id (required)")
	email := fs.String("email", "", "customer email (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	tenantID, err := uuid.Parse(*tenantStr)
	if err != nil {
		return fmt.Errorf("%w: tenant: %w", errUsage, err)
	}

	if *email == "" {
		return fmt.Errorf("%w: email is required", errUsage)
	}

	auditBus := auditbus.NewCore(log, auditdb.NewStore(log, db))
	outboxBus := outboxbus.NewCore(log, outboxdb.NewStore(log, db))
	resourceBus := resourcebus.NewCore(log, resourceaudit.NewStore(resourcedb.NewStore(log, db), auditBus), cfg.DB.LockWait)
	bookingBus := bookingbus.NewCore(log, bookingaudit.NewStore(bookingdb.NewStore(log, db), auditBus), resourceBus, outboxBus)

	ac := tenancy.Job(tenantID)

	var n int
	err = sqldb.WithinTran(ctx, log, sqldb.NewBeginner(db), cfg.TxRetries, func(tx sqldb.CommitRollbacker) error {
		bb, err := bookingBus.NewWithTx(tx)
		if err != nil {
			return err
		}

		n, err = bb.Anonymize(ctx, ac, *email)
		return err
	})
	if err != nil {
		return fmt.Errorf("anonymize: %w", err)
	}

	fmt.Printf("bookings anonymized: %d\n", n)
	return nil
}
