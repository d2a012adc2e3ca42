// Package worker implements the Ingestion Worker: it consumes queue
// messages with bounded prefetch and, per message, resolves the source,
// embeds the article, queries the ANN Index for a near-duplicate cluster,
// and persists the result to the Article Store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newsradar/internal/annindex"
	"newsradar/internal/core"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/queue"
	"newsradar/internal/relevance"
)

// DefaultSimilarityThreshold is θ: the minimum cosine similarity for an
// article to attach to an existing cluster rather than minting a new one.
const DefaultSimilarityThreshold = 0.85

// DefaultSnapshotEvery is N: the insert count between ANN snapshots.
const DefaultSnapshotEvery = 100

// DefaultPrefetch is the worker's bounded prefetch.
const DefaultPrefetch = 10

// Embedder produces a unit-normalised embedding for an article's text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Worker is the queue-driven ingestion consumer.
type Worker struct {
	consumer   queue.Consumer
	articles   persistence.ArticleRepository
	sources    persistence.SourceRepository
	index      *annindex.Index
	manager    *annindex.Manager
	embedder   Embedder
	prefilter  relevance.Prefilter
	classifier relevance.LearnedClassifier

	similarityThreshold float64
	snapshotEvery       int
	prefetch            int
	confidenceThreshold float64

	log *slog.Logger
}

// Config configures a Worker beyond the package defaults.
type Config struct {
	SimilarityThreshold float64
	SnapshotEvery       int
	Prefetch            int
	ConfidenceThreshold float64
}

// New builds a Worker. Any Config field left zero falls back to the
// package default.
func New(
	consumer queue.Consumer,
	articles persistence.ArticleRepository,
	sources persistence.SourceRepository,
	index *annindex.Index,
	manager *annindex.Manager,
	embedder Embedder,
	prefilter relevance.Prefilter,
	classifier relevance.LearnedClassifier,
	cfg Config,
) *Worker {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.SnapshotEvery <= 0 {
		cfg.SnapshotEvery = DefaultSnapshotEvery
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = DefaultPrefetch
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = relevance.DefaultConfidenceThreshold
	}
	return &Worker{
		consumer:            consumer,
		articles:            articles,
		sources:             sources,
		index:               index,
		manager:             manager,
		embedder:            embedder,
		prefilter:           prefilter,
		classifier:          classifier,
		similarityThreshold: cfg.SimilarityThreshold,
		snapshotEvery:       cfg.SnapshotEvery,
		prefetch:            cfg.Prefetch,
		confidenceThreshold: cfg.ConfidenceThreshold,
		log:                 logger.Component("worker"),
	}
}

// Run blocks, pulling batches from the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := w.consumer.Fetch(ctx, w.prefetch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.log.Error("worker: fetch failed", "error", err)
			continue
		}
		for _, d := range deliveries {
			w.process(ctx, d)
		}
	}
}

// Outcome classifies what ingestOne did with a message, for callers that
// need to distinguish "stored" from "deliberately dropped" without treating
// the latter as a failure.
type Outcome int

const (
	// Stored means the article cleared the relevance gate and was inserted
	// (or attached to an existing cluster) in the Article Store.
	Stored Outcome = iota
	// Filtered means the relevance gate rejected the article; nothing
	// was embedded or stored.
	Filtered
	// Duplicate means the Article Store already held this URL; the message
	// is a no-op repeat.
	Duplicate
)

// process runs ingestOne for one delivery: ack on success, on a deliberate
// drop, or on a duplicate; nack on any other failure.
func (w *Worker) process(ctx context.Context, d queue.Delivery) {
	_, _, err := w.ingestOne(ctx, d.Message)
	if err != nil {
		w.nack(d)
		return
	}
	w.ack(d)
}

// IngestSync runs the same pipeline as the queue-driven path, synchronously,
// for the API's direct-ingest endpoint. It returns the stored article (nil
// if filtered or a duplicate) and the outcome the caller should report.
func (w *Worker) IngestSync(ctx context.Context, msg core.QueueMessage) (*core.Article, Outcome, error) {
	return w.ingestOne(ctx, msg)
}

// ingestOne runs the full per-message pipeline: timestamp parse, relevance
// gate, source resolution, embed, cluster-assign, persist, ANN add.
func (w *Worker) ingestOne(ctx context.Context, msg core.QueueMessage) (*core.Article, Outcome, error) {
	// Parse publication timestamp; substitute current time on failure.
	publishedAt, err := time.Parse(time.RFC3339, msg.PublishedAt)
	if err != nil {
		w.log.Warn("worker: bad published_at, substituting now", "url", msg.URL, "raw", msg.PublishedAt)
		publishedAt = time.Now().UTC()
	}

	// Relevance gate: cheap prefilter, then the learned classifier with a
	// fail-open error policy.
	scorable := relevance.ArticleScorable{Title: msg.Title, Content: msg.Content}
	if w.prefilter != nil && w.prefilter.Check(scorable) == relevance.DefinitelyIrrelevant {
		w.log.Debug("worker: dropped by prefilter", "url", msg.URL)
		return nil, Filtered, nil
	}
	if w.classifier != nil {
		label, err := w.classifier.Classify(ctx, scorable)
		if err != nil {
			w.log.Warn("worker: classifier failed, accepting fail-open", "url", msg.URL, "error", err)
		} else if !relevance.Accept(label, w.confidenceThreshold) {
			w.log.Debug("worker: dropped by learned classifier", "url", msg.URL, "category", label.Category, "confidence", label.Confidence)
			return nil, Filtered, nil
		}
	}

	// Resolve source.
	source, err := w.sources.GetOrCreate(ctx, msg.SourceName, "")
	if err != nil {
		w.log.Error("worker: resolve source failed", "source", msg.SourceName, "error", err)
		return nil, Stored, fmt.Errorf("worker: resolve source: %w", err)
	}

	// Mint the article id.
	article := core.Article{
		ID:          uuid.NewString(),
		SourceID:    source.ID,
		SourceName:  source.Name,
		URL:         msg.URL,
		Title:       msg.Title,
		Content:     msg.Content,
		PublishedAt: publishedAt,
		IngestedAt:  time.Now().UTC(),
		Entities:    relevance.ExtractEntities(msg.Title + " " + msg.Content),
	}

	// Compute the embedding.
	vec, err := w.embedder.Embed(ctx, article.Text())
	if err != nil {
		w.log.Error("worker: embed failed", "url", msg.URL, "error", err)
		return nil, Stored, fmt.Errorf("worker: embed: %w", err)
	}

	// Cluster-assign: attach to the nearest neighbour's cluster if it is
	// similar enough, otherwise mint a new cluster id.
	clusterID := ""
	if match, ok, err := w.index.Query(vec); err != nil {
		w.log.Error("worker: ann query failed", "url", msg.URL, "error", err)
		return nil, Stored, fmt.Errorf("worker: ann query: %w", err)
	} else if ok && match.Similarity >= w.similarityThreshold {
		clusterID = match.ClusterID
	}
	if clusterID == "" {
		clusterID = uuid.NewString()
	}
	article.ClusterID = clusterID

	// Insert into the Article Store.
	if err := w.articles.Insert(ctx, &article); err != nil {
		if errors.Is(err, core.ErrDuplicateURL) {
			w.log.Debug("worker: duplicate url, skipping ann add", "url", msg.URL)
			return nil, Duplicate, nil
		}
		w.log.Error("worker: insert failed", "url", msg.URL, "error", err)
		return nil, Stored, fmt.Errorf("worker: insert: %w", err)
	}

	// Add the embedding to the ANN index.
	_, snapshotDue, err := w.index.Add(vec, article.ID, clusterID, w.snapshotEvery)
	if err != nil {
		w.log.Error("worker: ann add failed", "url", msg.URL, "error", err)
		// The article is already durably stored; a future reconciliation
		// pass will pick up the missing vector.
		return &article, Stored, nil
	}

	// Periodic asynchronous snapshot.
	if snapshotDue {
		go func() {
			if err := w.manager.Snapshot(w.index); err != nil {
				w.log.Error("worker: ann snapshot failed", "error", err)
			}
		}()
	}

	return &article, Stored, nil
}

func (w *Worker) ack(d queue.Delivery) {
	if err := d.Ack(); err != nil {
		w.log.Warn("worker: ack failed", "error", err)
	}
}

func (w *Worker) nack(d queue.Delivery) {
	if err := d.Nack(); err != nil {
		w.log.Warn("worker: nack failed", "error", err)
	}
}

// Reconcile runs the start-up reconciliation pass: any article present in
// the store whose id is not yet represented in the ANN index is re-embedded
// and re-added, closing the gap a crash between insert and ANN add leaves.
func (w *Worker) Reconcile(ctx context.Context) (int, error) {
	return annindex.Reconcile(ctx, w.index, reconcileSource{w.articles}, w.embedder, w.snapshotEvery)
}

// reconcileSource adapts persistence.ArticleRepository to annindex.ArticleSource.
type reconcileSource struct {
	articles persistence.ArticleRepository
}

func (s reconcileSource) AllIDs(ctx context.Context) ([]string, error) {
	return s.articles.AllIDs(ctx)
}

func (s reconcileSource) Get(ctx context.Context, id string) (*core.Article, error) {
	return s.articles.Get(ctx, id)
}
