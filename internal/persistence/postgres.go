package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"newsradar/internal/core"
)

// PostgresDB implements Database for PostgreSQL.
type PostgresDB struct {
	db       *sql.DB
	articles ArticleRepository
	sources  SourceRepository
}

// NewPostgresDB opens a connection pool and verifies connectivity.
func NewPostgresDB(connectionString string, maxConns, idleConns int) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	if idleConns <= 0 {
		idleConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(idleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pg := &PostgresDB{db: db}
	pg.articles = &postgresArticleRepo{db: db}
	pg.sources = &postgresSourceRepo{db: db}
	return pg, nil
}

func (p *PostgresDB) Articles() ArticleRepository { return p.articles }
func (p *PostgresDB) Sources() SourceRepository   { return p.sources }
func (p *PostgresDB) Close() error                { return p.db.Close() }
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// postgresArticleRepo implements ArticleRepository.
type postgresArticleRepo struct {
	db *sql.DB
}

func (r *postgresArticleRepo) Insert(ctx context.Context, a *core.Article) error {
	if a.IngestedAt.IsZero() {
		a.IngestedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO articles (id, source_id, url, title, content, published_at, ingested_at, cluster_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.SourceID, a.URL, a.Title, a.Content, a.PublishedAt.UTC(), a.IngestedAt, a.ClusterID,
	)
	if isUniqueViolation(err) {
		return core.ErrDuplicateURL
	}
	return err
}

func (r *postgresArticleRepo) scanRow(row *sql.Row) (*core.Article, error) {
	var a core.Article
	err := row.Scan(&a.ID, &a.SourceID, &a.URL, &a.Title, &a.Content, &a.PublishedAt, &a.IngestedAt, &a.ClusterID)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_id, url, title, content, published_at, ingested_at, cluster_id
		FROM articles WHERE id = $1`, id)
	return r.scanRow(row)
}

func (r *postgresArticleRepo) GetByURL(ctx context.Context, url string) (*core.Article, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_id, url, title, content, published_at, ingested_at, cluster_id
		FROM articles WHERE url = $1`, url)
	return r.scanRow(row)
}

func (r *postgresArticleRepo) Recent(ctx context.Context, window time.Duration) ([]core.Article, error) {
	since := time.Now().UTC().Add(-window)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, url, title, content, published_at, ingested_at, cluster_id
		FROM articles
		WHERE published_at >= $1
		ORDER BY published_at DESC, id ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *postgresArticleRepo) ByCluster(ctx context.Context, clusterID string) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, url, title, content, published_at, ingested_at, cluster_id
		FROM articles
		WHERE cluster_id = $1
		ORDER BY published_at ASC`, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *postgresArticleRepo) CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error) {
	since := time.Now().UTC().Add(-window)
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles WHERE cluster_id = $1 AND published_at >= $2`,
		clusterID, since).Scan(&count)
	return count, err
}

func (r *postgresArticleRepo) AllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM articles ORDER BY ingested_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	var out []core.Article
	for rows.Next() {
		var a core.Article
		if err := rows.Scan(&a.ID, &a.SourceID, &a.URL, &a.Title, &a.Content, &a.PublishedAt, &a.IngestedAt, &a.ClusterID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// postgresSourceRepo implements SourceRepository.
type postgresSourceRepo struct {
	db *sql.DB
}

func (r *postgresSourceRepo) GetOrCreate(ctx context.Context, name, baseURL string) (*core.Source, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (name, base_url, reputation_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`, name, baseURL, core.DefaultReputationScore)
	if err != nil {
		return nil, fmt.Errorf("get_or_create source %q: %w", name, err)
	}
	return r.GetByName(ctx, name)
}

func (r *postgresSourceRepo) scanRow(row *sql.Row) (*core.Source, error) {
	var s core.Source
	err := row.Scan(&s.ID, &s.Name, &s.BaseURL, &s.ReputationScore, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresSourceRepo) Get(ctx context.Context, id int64) (*core.Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, base_url, reputation_score, created_at FROM sources WHERE id = $1`, id)
	return r.scanRow(row)
}

func (r *postgresSourceRepo) GetByName(ctx context.Context, name string) (*core.Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, base_url, reputation_score, created_at FROM sources WHERE name = $1`, name)
	return r.scanRow(row)
}

func (r *postgresSourceRepo) List(ctx context.Context) ([]core.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, base_url, reputation_score, created_at FROM sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Source
	for rows.Next() {
		var s core.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.BaseURL, &s.ReputationScore, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *postgresSourceRepo) UpdateReputation(ctx context.Context, id int64, score float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sources SET reputation_score = $2 WHERE id = $1`, id, score)
	return err
}

// isUniqueViolation matches Postgres's unique_violation SQLSTATE (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
