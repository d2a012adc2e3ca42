package annindex

import (
	"context"
	"fmt"

	"newsradar/internal/core"
)

// Embedder produces a unit-normalised embedding for an article's text,
// matching the vector space the index was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ArticleSource is the subset of persistence.ArticleRepository Reconcile
// needs, kept narrow so this package doesn't import persistence directly.
type ArticleSource interface {
	AllIDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*core.Article, error)
}

// Reconcile replays, on start-up, the embed-and-add step for any article
// present in the store whose id is not yet represented in the index's
// ordinal mapping, restoring the one-vector-per-article invariant after a
// crash between store insert and index add. Returns the number of articles
// replayed.
func Reconcile(ctx context.Context, idx *Index, articles ArticleSource, embedder Embedder, snapshotEveryN int) (int, error) {
	ids, err := articles.AllIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("ann: reconcile: list article ids: %w", err)
	}

	present := make(map[string]bool, idx.Len())
	for _, a := range idx.ArticleIDs() {
		present[a] = true
	}

	replayed := 0
	for _, id := range ids {
		if present[id] {
			continue
		}

		a, err := articles.Get(ctx, id)
		if err != nil {
			return replayed, fmt.Errorf("ann: reconcile: get article %s: %w", id, err)
		}
		if a.ClusterID == "" {
			// Never embedded/clustered in the first place; not an ANN gap.
			continue
		}

		vec, err := embedder.Embed(ctx, a.Text())
		if err != nil {
			return replayed, fmt.Errorf("ann: reconcile: embed article %s: %w", id, err)
		}
		if _, _, err := idx.Add(vec, id, a.ClusterID, snapshotEveryN); err != nil {
			return replayed, fmt.Errorf("ann: reconcile: add article %s: %w", id, err)
		}
		present[id] = true
		replayed++
	}
	return replayed, nil
}
