package worker

import (
	"context"
	"testing"
	"time"

	"newsradar/internal/annindex"
	"newsradar/internal/core"
	"newsradar/internal/queue"
	"newsradar/internal/relevance"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

type fakeArticles struct {
	inserted []core.Article
}

func (r *fakeArticles) Insert(ctx context.Context, a *core.Article) error {
	r.inserted = append(r.inserted, *a)
	return nil
}
func (r *fakeArticles) Get(ctx context.Context, id string) (*core.Article, error) {
	return nil, core.ErrNotFound
}
func (r *fakeArticles) GetByURL(ctx context.Context, url string) (*core.Article, error) {
	return nil, core.ErrNotFound
}
func (r *fakeArticles) Recent(ctx context.Context, window time.Duration) ([]core.Article, error) {
	return nil, nil
}
func (r *fakeArticles) ByCluster(ctx context.Context, clusterID string) ([]core.Article, error) {
	return nil, nil
}
func (r *fakeArticles) CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error) {
	return 0, nil
}
func (r *fakeArticles) AllIDs(ctx context.Context) ([]string, error) { return nil, nil }

type fakeSources struct{}

func (s *fakeSources) GetOrCreate(ctx context.Context, name, baseURL string) (*core.Source, error) {
	return &core.Source{ID: 1, Name: name, ReputationScore: 0.5}, nil
}
func (s *fakeSources) Get(ctx context.Context, id int64) (*core.Source, error) { return nil, nil }
func (s *fakeSources) GetByName(ctx context.Context, name string) (*core.Source, error) {
	return nil, nil
}
func (s *fakeSources) List(ctx context.Context) ([]core.Source, error) { return nil, nil }
func (s *fakeSources) UpdateReputation(ctx context.Context, id int64, score float64) error {
	return nil
}

type fakePrefilter struct{ verdict relevance.Verdict }

func (p fakePrefilter) Check(a relevance.Scorable) relevance.Verdict { return p.verdict }

type fakeClassifier struct {
	label relevance.Label
	err   error
}

func (c fakeClassifier) Classify(ctx context.Context, a relevance.Scorable) (relevance.Label, error) {
	return c.label, c.err
}

func ackableDelivery(msg core.QueueMessage) (queue.Delivery, *bool, *bool) {
	acked, nacked := new(bool), new(bool)
	return queue.Delivery{
		Message: msg,
		Ack:     func() error { *acked = true; return nil },
		Nack:    func() error { *nacked = true; return nil },
	}, acked, nacked
}

func TestProcessInsertsNewClusterWhenNoNearNeighbour(t *testing.T) {
	index := annindex.New(3)
	articles := &fakeArticles{}
	w := New(nil, articles, &fakeSources{}, index, nil, &fakeEmbedder{vec: []float32{1, 0, 0}},
		fakePrefilter{verdict: relevance.Candidate}, fakeClassifier{label: relevance.Label{Category: "economy", Confidence: 0.1}},
		Config{})

	msg := core.QueueMessage{SourceName: "wire", URL: "https://example.com/a", Title: "t", Content: "c", PublishedAt: "2026-07-01T00:00:00Z"}
	d, acked, nacked := ackableDelivery(msg)

	w.process(context.Background(), d)

	if !*acked || *nacked {
		t.Fatalf("expected ack, got acked=%v nacked=%v", *acked, *nacked)
	}
	if len(articles.inserted) != 1 {
		t.Fatalf("expected 1 article inserted, got %d", len(articles.inserted))
	}
	if articles.inserted[0].ClusterID == "" {
		t.Error("expected a minted cluster id")
	}
	if index.Len() != 1 {
		t.Errorf("expected ann index to have 1 vector, got %d", index.Len())
	}
}

func TestProcessAttachesToExistingClusterAboveThreshold(t *testing.T) {
	index := annindex.New(3)
	_, _, _ = index.Add([]float32{1, 0, 0}, "seed-article", "cluster-seed", 0)

	articles := &fakeArticles{}
	w := New(nil, articles, &fakeSources{}, index, nil, &fakeEmbedder{vec: []float32{1, 0, 0}},
		fakePrefilter{verdict: relevance.Candidate}, fakeClassifier{label: relevance.Label{Category: "economy"}}, Config{})

	msg := core.QueueMessage{SourceName: "wire", URL: "https://example.com/b", Title: "t", Content: "c", PublishedAt: "2026-07-01T00:00:00Z"}
	d, acked, _ := ackableDelivery(msg)

	w.process(context.Background(), d)

	if !*acked {
		t.Fatal("expected ack")
	}
	if articles.inserted[0].ClusterID != "cluster-seed" {
		t.Errorf("expected attach to cluster-seed, got %q", articles.inserted[0].ClusterID)
	}
}

func TestProcessDropsDefinitelyIrrelevantWithoutEmbeddingOrInsert(t *testing.T) {
	index := annindex.New(3)
	articles := &fakeArticles{}
	embedder := &fakeEmbedder{vec: []float32{1, 0, 0}}
	w := New(nil, articles, &fakeSources{}, index, nil, embedder,
		fakePrefilter{verdict: relevance.DefinitelyIrrelevant}, fakeClassifier{}, Config{})

	msg := core.QueueMessage{SourceName: "wire", URL: "https://example.com/c", Title: "sports recap", Content: "the local team won", PublishedAt: "2026-07-01T00:00:00Z"}
	d, acked, nacked := ackableDelivery(msg)

	w.process(context.Background(), d)

	if !*acked || *nacked {
		t.Fatalf("expected ack without nack, got acked=%v nacked=%v", *acked, *nacked)
	}
	if len(articles.inserted) != 0 {
		t.Error("expected no article to be inserted for a prefiltered-out message")
	}
	if index.Len() != 0 {
		t.Error("expected no embedding to be added for a prefiltered-out message")
	}
}

func TestProcessFailOpenOnClassifierError(t *testing.T) {
	index := annindex.New(3)
	articles := &fakeArticles{}
	w := New(nil, articles, &fakeSources{}, index, nil, &fakeEmbedder{vec: []float32{1, 0, 0}},
		fakePrefilter{verdict: relevance.Candidate}, fakeClassifier{err: errClassifierDown}, Config{})

	msg := core.QueueMessage{SourceName: "wire", URL: "https://example.com/d", Title: "t", Content: "c", PublishedAt: "2026-07-01T00:00:00Z"}
	d, acked, _ := ackableDelivery(msg)

	w.process(context.Background(), d)

	if !*acked {
		t.Fatal("expected ack")
	}
	if len(articles.inserted) != 1 {
		t.Fatal("expected the article to be accepted fail-open despite classifier error")
	}
}

func TestProcessSubstitutesNowOnBadTimestamp(t *testing.T) {
	index := annindex.New(3)
	articles := &fakeArticles{}
	w := New(nil, articles, &fakeSources{}, index, nil, &fakeEmbedder{vec: []float32{1, 0, 0}},
		fakePrefilter{verdict: relevance.Candidate}, fakeClassifier{label: relevance.Label{Category: "economy"}}, Config{})

	msg := core.QueueMessage{SourceName: "wire", URL: "https://example.com/e", Title: "t", Content: "c", PublishedAt: "not-a-timestamp"}
	d, acked, _ := ackableDelivery(msg)

	w.process(context.Background(), d)

	if !*acked {
		t.Fatal("expected ack")
	}
	if time.Since(articles.inserted[0].PublishedAt) > time.Minute {
		t.Error("expected published_at to be substituted with current time")
	}
}

var errClassifierDown = &staticError{"classifier unavailable"}

type staticError struct{ msg string }

func (e *staticError) Error() string { return e.msg }
