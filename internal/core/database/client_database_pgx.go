package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/docuquery/internal/config"
	"github.com/markdave123-py/docuquery/internal/core"
	"github.com/markdave123-py/docuquery/internal/models"
)

// PgVectorIndex stores records in Postgres with the pgvector extension.
// Several logical indexes can share one table; rows are keyed by
// (index_name, namespace, id).
type PgVectorIndex struct {
	db        *sql.DB
	indexName string
	logger    zerolog.Logger
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)

func NewPgVectorIndex(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*PgVectorIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	idx := &PgVectorIndex{
		db:        db,
		indexName: cfg.IndexName,
		logger:    logger.With().Str("component", "pgvector").Str("index", cfg.IndexName).Logger(),
	}
	idx.logger.Info().Msg("vector index ready")
	return idx, nil
}

// buildDSN adds certificate verification to the URL when a CA cert is given.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *PgVectorIndex) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Upsert writes the batch in one transaction, so either all of it lands
// or none of it does.
func (c *PgVectorIndex) Upsert(ctx context.Context, namespace string, records []models.EmbeddedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}

	const q = `
		INSERT INTO vector_records
			(index_name, namespace, id, embedding, text, page_number, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (index_name, namespace, id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    text = EXCLUDED.text,
		    page_number = EXCLUDED.page_number,
		    updated_at = now()
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		vec := pgvector.NewVector(rec.Values)
		if _, err := stmt.ExecContext(ctx,
			c.indexName, namespace, rec.ID, vec, rec.Metadata.Text, rec.Metadata.PageNumber,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	c.logger.Debug().Str("namespace", namespace).Int("records", len(records)).Msg("records upserted")
	return len(records), nil
}

// Count returns the number of records in a namespace.
func (c *PgVectorIndex) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM vector_records WHERE index_name = $1 AND namespace = $2`,
		c.indexName, namespace,
	).Scan(&n)
	return n, err
}

// Get returns one stored record, or nil if it doesn't exist.
func (c *PgVectorIndex) Get(ctx context.Context, namespace, id string) (*models.EmbeddedRecord, error) {
	const q = `
		SELECT id, embedding, text, page_number
		FROM vector_records
		WHERE index_name = $1 AND namespace = $2 AND id = $3
	`
	var (
		rec models.EmbeddedRecord
		emb pgvector.Vector
	)
	err := c.db.QueryRowContext(ctx, q, c.indexName, namespace, id).
		Scan(&rec.ID, &emb, &rec.Metadata.Text, &rec.Metadata.PageNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Values = emb.Slice()
	return &rec, nil
}
