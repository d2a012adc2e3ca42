// Package ranking implements the Ranking & Enrichment Job: it snapshots
// recent articles, groups them into clusters, scores and ranks the clusters,
// and enriches the top K into publishable Story artefacts via the LLM
// adapter.
package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"newsradar/internal/core"
	"newsradar/internal/logger"
	"newsradar/internal/persistence"
	"newsradar/internal/scoring"
)

// Enricher is the LLM adapter's structured-synthesis call for one selected
// cluster.
type Enricher interface {
	Enrich(ctx context.Context, prompt string) (core.Story, error)
}

// excerptCharLimit and maxExcerptArticles bound the prompt constructed for
// each selected cluster.
const (
	excerptCharLimit   = 1000
	maxExcerptArticles = 5
)

// state is a cluster's position in the per-job state machine:
// selected → prompting → parsed | failed → emitted.
type state int

const (
	selected state = iota
	prompting
	parsed
	failed
	emitted
)

// Job runs the Ranking & Enrichment Job over a configured window and top-K.
type Job struct {
	articles        persistence.ArticleRepository
	sources         persistence.SourceRepository
	enricher        Enricher
	learned         scoring.LearnedScorer
	heuristicWeight float64
	learnedWeight   float64
	log             *slog.Logger
}

// Config configures a Job beyond the package defaults.
type Config struct {
	HeuristicWeight float64
	LearnedWeight   float64
}

// New builds a Job. learned may be nil, in which case the learned blend
// component is treated as 0 for every cluster.
func New(articles persistence.ArticleRepository, sources persistence.SourceRepository, enricher Enricher, learned scoring.LearnedScorer, cfg Config) *Job {
	return &Job{
		articles:        articles,
		sources:         sources,
		enricher:        enricher,
		learned:         learned,
		heuristicWeight: cfg.HeuristicWeight,
		learnedWeight:   cfg.LearnedWeight,
		log:             logger.Component("ranking"),
	}
}

// cluster is the job's working unit: a cluster id and its member articles.
type cluster struct {
	id       string
	articles []core.Article
	final    float64
	heur     core.HotnessComponents
	state    state
}

// Run executes the full job: snapshot, group, score, rank, enrich,
// assemble. concurrent selects between the job's two enrichment modes. It
// also reports the total clusters seen in the window and the total
// articles snapshotted, for the analyse endpoint's response envelope.
func (j *Job) Run(ctx context.Context, window time.Duration, topK int, concurrent bool) (stories []core.Story, totalClusters int, totalArticles int, err error) {
	// Step 1: snapshot articles from the Article Store.
	recent, err := j.articles.Recent(ctx, window)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("ranking: recent articles: %w", err)
	}

	// Step 2: group by cluster id, ignoring articles without one.
	clusters := groupByCluster(recent)
	totalClusters = len(clusters)

	// Step 3: score each cluster.
	for _, c := range clusters {
		c.heur = scoring.Hotness(c.articles, j.reputations(ctx, c.articles))
		heuristicTotal := scoring.Blend(c.heur)
		learnedTotal := j.learnedMean(c.articles)
		c.final = scoring.FinalScore(heuristicTotal, learnedTotal, j.heuristicWeight, j.learnedWeight)
	}

	// Step 4: sort by blended score desc, ties broken by cluster id, take
	// first K.
	sort.Slice(clusters, func(i, k int) bool {
		if clusters[i].final != clusters[k].final {
			return clusters[i].final > clusters[k].final
		}
		return clusters[i].id < clusters[k].id
	})
	if topK > 0 && len(clusters) > topK {
		clusters = clusters[:topK]
	}
	for _, c := range clusters {
		c.state = selected
	}

	// Steps 5-6: enrich each selected cluster, concurrently or sequentially.
	stories = make([]core.Story, len(clusters))
	if concurrent && len(clusters) > 0 {
		p := pool.New().WithMaxGoroutines(len(clusters))
		for i, c := range clusters {
			i, c := i, c
			p.Go(func() {
				stories[i] = j.enrichOne(ctx, c)
			})
		}
		p.Wait()
	} else {
		for i, c := range clusters {
			stories[i] = j.enrichOne(ctx, c)
		}
	}

	return stories, totalClusters, len(recent), nil
}

// RunOne scores a single cluster on demand (used by the API's synchronous
// ingest path) and enriches it only if it clears threshold. It skips the
// snapshot-and-group phase of Run: the caller already knows which cluster to
// score.
func (j *Job) RunOne(ctx context.Context, clusterID string, threshold float64) (core.Story, bool, error) {
	arts, err := j.articles.ByCluster(ctx, clusterID)
	if err != nil {
		return core.Story{}, false, fmt.Errorf("ranking: by cluster: %w", err)
	}
	if len(arts) == 0 {
		return core.Story{}, false, nil
	}

	c := &cluster{id: clusterID, articles: arts, state: selected}
	c.heur = scoring.Hotness(c.articles, j.reputations(ctx, c.articles))
	heuristicTotal := scoring.Blend(c.heur)
	learnedTotal := j.learnedMean(c.articles)
	c.final = scoring.FinalScore(heuristicTotal, learnedTotal, j.heuristicWeight, j.learnedWeight)

	if !scoring.IsHot(c.final, threshold) {
		return core.Story{
			ClusterID:    clusterID,
			Hotness:      core.Hotness{Components: c.heur, Heuristic: heuristicTotal, Final: c.final},
			ArticleCount: len(arts),
			Sources:      distinctSourceNames(arts),
		}, false, nil
	}

	return j.enrichOne(ctx, c), true, nil
}

func groupByCluster(articles []core.Article) []*cluster {
	byID := make(map[string]*cluster)
	var order []*cluster
	for _, a := range articles {
		if a.ClusterID == "" {
			continue
		}
		c, ok := byID[a.ClusterID]
		if !ok {
			c = &cluster{id: a.ClusterID}
			byID[a.ClusterID] = c
			order = append(order, c)
		}
		c.articles = append(c.articles, a)
	}
	return order
}

func (j *Job) reputations(ctx context.Context, articles []core.Article) []float64 {
	seen := make(map[int64]bool)
	var scores []float64
	for _, a := range articles {
		if seen[a.SourceID] {
			continue
		}
		seen[a.SourceID] = true
		src, err := j.sources.Get(ctx, a.SourceID)
		if err != nil || src == nil {
			continue
		}
		scores = append(scores, src.ReputationScore)
	}
	return scores
}

func (j *Job) learnedMean(articles []core.Article) float64 {
	if j.learned == nil {
		return 0
	}
	var sum float64
	var n int
	for _, a := range articles {
		score, err := j.learned.Score(a)
		if err != nil {
			continue
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// enrichOne runs the per-cluster state machine: selected → prompting →
// parsed | failed → emitted. A failure still emits, via a fallback Story.
func (j *Job) enrichOne(ctx context.Context, c *cluster) core.Story {
	c.state = prompting
	prompt := buildPrompt(c.articles)

	story, err := j.enricher.Enrich(ctx, prompt)
	if err != nil {
		c.state = failed
		j.log.Warn("ranking: enrichment failed, falling back", "cluster_id", c.id, "error", err)
		story = fallbackStory(c.articles)
	} else {
		c.state = parsed
	}

	story.ClusterID = c.id
	story.Hotness = core.Hotness{Components: c.heur, Heuristic: scoring.Blend(c.heur), Final: c.final}
	story.ArticleCount = len(c.articles)
	story.Sources = distinctSourceNames(c.articles)
	c.state = emitted
	return story
}

func buildPrompt(articles []core.Article) string {
	var b strings.Builder
	b.WriteString("You are enriching a cluster of related news articles into a structured story.\n\n")
	limit := len(articles)
	if limit > maxExcerptArticles {
		limit = maxExcerptArticles
	}
	for i := 0; i < limit; i++ {
		a := articles[i]
		excerpt := core.Truncate(a.Content, excerptCharLimit)
		fmt.Fprintf(&b, "Article %d (%s, %s):\n%s\n%s\n\n", i+1, a.SourceName, a.PublishedAt.Format(time.RFC3339), a.Title, excerpt)
	}
	return b.String()
}

// fallbackStory is the deterministic enrichment-failure path: the cluster's
// founding article's title, a placeholder rationale, and an empty draft.
// Callers hand over article slices in whichever order their source returned
// (Recent is newest-first, ByCluster oldest-first), so the founding article
// is found by publication timestamp, not position.
func fallbackStory(articles []core.Article) core.Story {
	headline := ""
	if len(articles) > 0 {
		first := articles[0]
		for _, a := range articles[1:] {
			if a.PublishedAt.Before(first.PublishedAt) {
				first = a
			}
		}
		headline = core.Truncate(first.Title, core.MaxTitleTruncate)
	}
	return core.Story{
		Headline: headline,
		WhyNow:   core.FallbackWhyNow,
		Fallback: true,
	}
}

func distinctSourceNames(articles []core.Article) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range articles {
		if seen[a.SourceName] || a.SourceName == "" {
			continue
		}
		seen[a.SourceName] = true
		names = append(names, a.SourceName)
		if len(names) == 5 {
			break
		}
	}
	return names
}
