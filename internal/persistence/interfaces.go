// Package persistence provides database abstraction interfaces and a
// PostgreSQL implementation for the Article Store and the source registry.
package persistence

import (
	"context"
	"time"

	"newsradar/internal/core"
)

// ArticleRepository is the Article Store: append-only, indexed by
// publication time and by cluster id.
type ArticleRepository interface {
	// Insert fails with core.ErrDuplicateURL if the URL already exists.
	Insert(ctx context.Context, article *core.Article) error

	Get(ctx context.Context, id string) (*core.Article, error)
	GetByURL(ctx context.Context, url string) (*core.Article, error)

	// Recent returns articles published in [now-window, now], newest first,
	// ties broken by id.
	Recent(ctx context.Context, window time.Duration) ([]core.Article, error)

	// ByCluster returns a cluster's articles, time-ordered ascending.
	ByCluster(ctx context.Context, clusterID string) ([]core.Article, error)

	CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error)

	// AllIDs supports the start-up ANN reconciliation pass: it enumerates
	// every stored article so the pass can find ids not yet represented in
	// the index's ordinal mapping.
	AllIDs(ctx context.Context) ([]string, error)
}

// SourceRepository is the source registry with per-source reputation,
// keyed by name and by numeric id.
type SourceRepository interface {
	// GetOrCreate is idempotent: concurrent creations for the same name
	// collapse to one via a unique constraint; losers re-read.
	GetOrCreate(ctx context.Context, name, baseURL string) (*core.Source, error)

	Get(ctx context.Context, id int64) (*core.Source, error)
	GetByName(ctx context.Context, name string) (*core.Source, error)
	List(ctx context.Context) ([]core.Source, error)
	UpdateReputation(ctx context.Context, id int64, score float64) error
}

// Database aggregates the repositories this service owns.
type Database interface {
	Articles() ArticleRepository
	Sources() SourceRepository

	Close() error
	Ping(ctx context.Context) error
}
