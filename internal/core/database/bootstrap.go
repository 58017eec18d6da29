package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var schemaFS embed.FS

// schemaVersion is the version row scripts/initdb.sql records once applied.
const schemaVersion = 1

const bootstrapTimeout = 3 * time.Minute

// EnsureBootstrapped brings the vector_records schema up to schemaVersion.
// A database that already reports that version is left alone.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	applied, err := appliedSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if applied >= schemaVersion {
		return nil
	}
	return applySchema(ctx, db)
}

// appliedSchemaVersion returns 0 when docuquery_meta does not exist yet.
func appliedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var hasMeta bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('docuquery_meta') IS NOT NULL`).Scan(&hasMeta); err != nil {
		return 0, fmt.Errorf("look up docuquery_meta: %w", err)
	}
	if !hasMeta {
		return 0, nil
	}

	var version int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM docuquery_meta`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func applySchema(ctx context.Context, db *sql.DB) (err error) {
	script, err := schemaFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("load schema script: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start schema transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("apply schema v%d: %w", schemaVersion, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema v%d: %w", schemaVersion, err)
	}
	return nil
}
