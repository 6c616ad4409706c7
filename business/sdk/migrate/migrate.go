// Package migrate contains the database schema, migrations and seeding data.
package migrate

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jcpaschoal/spi-agenda/business/sdk/sqldb"
	"github.com/jmoiron/sqlx"
)

var (
	//go:embed sql/migrate.sql
	migrateDoc string

	//go:embed sql/seed.sql
	seedDoc string
)

// Migration is one versioned step of the schema.
type Migration struct {
	Version     string
	Description string
	Script      string
}

// migrationLock keys the advisory lock that serialises concurrent migrators.
const migrationLock = 7219044

// Migrate attempts to bring the database up to date with the migrations
// defined in this package.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if err := sqldb.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("status check database: %w", err)
	}

	migrations, err := Parse(migrateDoc)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("lock: %w", err)
	}

	const createVersion = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version     TEXT        NOT NULL PRIMARY KEY,
		description TEXT        NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

	if _, err := tx.ExecContext(ctx, createVersion); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var applied []string
	if err := tx.SelectContext(ctx, &applied, `SELECT version FROM schema_version`); err != nil {
		return fmt.Errorf("select versions: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	for _, m := range migrations {
		if _, exists := done[m.Version]; exists {
			continue
		}

		if _, err := tx.ExecContext(ctx, m.Script); err != nil {
			return fmt.Errorf("apply version %s: %w", m.Version, err)
		}

		const q = `INSERT INTO schema_version (version, description) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, m.Version, m.Description); err != nil {
			return fmt.Errorf("record version %s: %w", m.Version, err)
		}
	}

	return tx.Commit()
}

// Seed runs the seed document defined in this package against db. The
// statements are idempotent.
func Seed(ctx context.Context, db *sqlx.DB) (err error) {
	if err := sqldb.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("status check database: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if errTx := tx.Rollback(); errTx != nil {
			if errors.Is(errTx, sql.ErrTxDone) {
				return
			}

			err = fmt.Errorf("rollback: %w", errTx)
		}
	}()

	if _, err := tx.ExecContext(ctx, seedDoc); err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Parse splits a migration document into its versioned steps. Every step
// starts with a "-- Version:" line optionally followed by "-- Description:".
func Parse(doc string) ([]Migration, error) {
	var (
		migrations []Migration
		current    *Migration
		script     strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Script = strings.TrimSpace(script.String())
		migrations = append(migrations, *current)
		script.Reset()
	}

	seen := make(map[string]struct{})

	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "-- Version:"):
			flush()

			v := strings.TrimSpace(strings.TrimPrefix(trimmed, "-- Version:"))
			if v == "" {
				return nil, errors.New("empty version")
			}
			if _, exists := seen[v]; exists {
				return nil, fmt.Errorf("duplicate version %s", v)
			}
			seen[v] = struct{}{}

			current = &Migration{Version: v}

		case strings.HasPrefix(trimmed, "-- Description:") && current != nil && current.Description == "":
			current.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "-- Description:"))

		default:
			if current == nil {
				if trimmed != "" {
					return nil, fmt.Errorf("statement outside of a version block: %q", trimmed)
				}
				continue
			}
			script.WriteString(line)
			script.WriteString("\n")
		}
	}

	flush()

	return migrations, nil
}
