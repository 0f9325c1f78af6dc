// Package postgres wraps database/sql with the lib/pq driver, connection
// pool settings, a transaction helper, and the artifact schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	_ "github.com/lib/pq"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping verifies the connection is still usable.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Migrate creates the artifact and query statistics tables if they do not
// exist.
func (c *Client) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshot_generations (
		generation    BIGINT PRIMARY KEY,
		built_at      TIMESTAMPTZ NOT NULL,
		documents     INTEGER NOT NULL,
		terms         INTEGER NOT NULL,
		dimensions    INTEGER NOT NULL,
		clusters      INTEGER NOT NULL,
		pairs         INTEGER NOT NULL,
		skipped       INTEGER NOT NULL,
		snapshot_dir  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS document_keywords (
		doc_id  BIGINT NOT NULL,
		rank    SMALLINT NOT NULL,
		term    TEXT NOT NULL,
		score   DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (doc_id, rank)
	)`,
	`CREATE TABLE IF NOT EXISTS entity_keywords (
		kind       TEXT NOT NULL,
		entity_id  TEXT NOT NULL,
		year       INTEGER NOT NULL DEFAULT 0,
		rank       SMALLINT NOT NULL,
		term       TEXT NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (kind, entity_id, year, rank)
	)`,
	`CREATE TABLE IF NOT EXISTS speaker_similarity_pairs (
		speaker_a  TEXT NOT NULL,
		speaker_b  TEXT NOT NULL,
		score      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (speaker_a, speaker_b),
		CHECK (speaker_a < speaker_b)
	)`,
	`CREATE TABLE IF NOT EXISTS document_clusters (
		doc_id      BIGINT PRIMARY KEY,
		cluster_id  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_document_clusters_cluster ON document_clusters (cluster_id)`,
	`CREATE TABLE IF NOT EXISTS query_stats_snapshots (
		id           BIGSERIAL PRIMARY KEY,
		generation   BIGINT NOT NULL,
		data         JSONB NOT NULL,
		captured_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}
