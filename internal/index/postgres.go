// Package index mirrors processed-page records into a Postgres table so
// crawl output can be queried without scanning the JSONL log.
package index

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"siteharvest/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool behind the page index.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PageIndex inserts one row per PageRecord.
//
// Expected schema:
//
//	CREATE TABLE pages (
//	    crawl_id      TEXT NOT NULL,
//	    url           TEXT NOT NULL,
//	    fetched_at    TIMESTAMPTZ NOT NULL,
//	    document_path TEXT NOT NULL,
//	    content_hash  TEXT NOT NULL,
//	    rendered      BOOLEAN NOT NULL,
//	    title         TEXT
//	);
type PageIndex struct {
	pool  execCloser
	table string
}

// New connects a pgx pool using the provided config.
func New(ctx context.Context, cfg Config) (*PageIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("index dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.Table)
}

// NewWithPool constructs an index from an existing pool (used in tests).
func NewWithPool(pool execCloser, table string) (*PageIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "pages"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PageIndex{pool: pool, table: table}, nil
}

// InsertPage implements the crawler RecordIndex interface.
func (i *PageIndex) InsertPage(ctx context.Context, rec crawler.PageRecord) error {
	if i == nil || i.pool == nil {
		return fmt.Errorf("page index is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (crawl_id, url, fetched_at, document_path, content_hash, rendered, title)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, i.table)
	_, err := i.pool.Exec(ctx, query,
		rec.CrawlID,
		rec.URL,
		rec.FetchedAt,
		rec.DocumentPath,
		rec.ContentHash,
		rec.Rendered,
		rec.Metadata["title"],
	)
	if err != nil {
		return fmt.Errorf("insert page row: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (i *PageIndex) Close() {
	if i == nil || i.pool == nil {
		return
	}
	i.pool.Close()
}
