package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsradar/internal/annindex"
	"newsradar/internal/core"
	"newsradar/internal/ranking"
	"newsradar/internal/worker"
)

type fakeArticles struct {
	byURL map[string]core.Article
	all   []core.Article
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{byURL: make(map[string]core.Article)}
}

func (r *fakeArticles) Insert(ctx context.Context, a *core.Article) error {
	if _, ok := r.byURL[a.URL]; ok {
		return core.ErrDuplicateURL
	}
	r.byURL[a.URL] = *a
	r.all = append(r.all, *a)
	return nil
}
func (r *fakeArticles) Get(ctx context.Context, id string) (*core.Article, error) {
	return nil, core.ErrNotFound
}
func (r *fakeArticles) GetByURL(ctx context.Context, url string) (*core.Article, error) {
	if a, ok := r.byURL[url]; ok {
		return &a, nil
	}
	return nil, core.ErrNotFound
}
func (r *fakeArticles) Recent(ctx context.Context, window time.Duration) ([]core.Article, error) {
	return r.all, nil
}
func (r *fakeArticles) ByCluster(ctx context.Context, clusterID string) ([]core.Article, error) {
	var out []core.Article
	for _, a := range r.all {
		if a.ClusterID == clusterID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r *fakeArticles) CountInCluster(ctx context.Context, clusterID string, window time.Duration) (int, error) {
	return 0, nil
}
func (r *fakeArticles) AllIDs(ctx context.Context) ([]string, error) { return nil, nil }

type fakeSources struct{}

func (s *fakeSources) GetOrCreate(ctx context.Context, name, baseURL string) (*core.Source, error) {
	return &core.Source{ID: 1, Name: name, ReputationScore: 0.5}, nil
}
func (s *fakeSources) Get(ctx context.Context, id int64) (*core.Source, error) {
	return &core.Source{ID: id, ReputationScore: 0.5}, nil
}
func (s *fakeSources) GetByName(ctx context.Context, name string) (*core.Source, error) {
	return nil, core.ErrNotFound
}
func (s *fakeSources) List(ctx context.Context) ([]core.Source, error) { return nil, nil }
func (s *fakeSources) UpdateReputation(ctx context.Context, id int64, score float64) error {
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeEnricher struct{}

func (fakeEnricher) Enrich(ctx context.Context, prompt string) (core.Story, error) {
	return core.Story{Headline: "Enriched", WhyNow: "markets moved"}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	articles := newFakeArticles()
	sources := &fakeSources{}
	idx := annindex.New(3)

	w := worker.New(nil, articles, sources, idx, nil, fakeEmbedder{}, nil, nil, worker.Config{})
	job := ranking.New(articles, sources, fakeEnricher{}, nil, ranking.Config{})
	return New(w, job, 0.1, time.Second)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestIngestRejectsMissingFields(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", bytes.NewBufferString(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIngestReturnsHotStory(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	payload := `{"source_name":"wire","url":"https://example.com/a","title":"Bank merger and acquisition","content":"A major bankruptcy and fraud investigation follows a regulatory filing.","published_at":"2026-07-30T12:00:00Z"}`
	resp, err := http.Post(srv.URL+"/ingest", "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Hot {
		t.Fatal("expected the materiality-rich article to be reported hot")
	}
	if body.Story == nil || body.Story.Headline != "Enriched" {
		t.Errorf("expected the enriched story to be returned, got %+v", body.Story)
	}
}

func TestAnalyseRejectsOutOfRangeWindow(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyse", "application/json", bytes.NewBufferString(`{"window_hours":0,"top_k":10}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAnalyseRejectsOutOfRangeTopK(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyse", "application/json", bytes.NewBufferString(`{"window_hours":24,"top_k":51}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAnalyseReturnsEnvelope(t *testing.T) {
	articles := newFakeArticles()
	sources := &fakeSources{}
	base := time.Now().Add(-time.Hour)
	_ = articles.Insert(context.Background(), &core.Article{ID: "1", SourceID: 1, SourceName: "wire", URL: "u1", Title: "t1", Content: "merger acquisition bankruptcy", ClusterID: "c1", PublishedAt: base})
	_ = articles.Insert(context.Background(), &core.Article{ID: "2", SourceID: 1, SourceName: "wire", URL: "u2", Title: "t2", Content: "nothing notable", ClusterID: "c2", PublishedAt: base})

	idx := annindex.New(3)
	w := worker.New(nil, articles, sources, idx, nil, fakeEmbedder{}, nil, nil, worker.Config{})
	job := ranking.New(articles, sources, fakeEnricher{}, nil, ranking.Config{})
	srv := httptest.NewServer(New(w, job, 0.1, time.Second).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyse", "application/json", bytes.NewBufferString(`{"window_hours":24,"top_k":10}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body analyseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalClusters != 2 || body.TotalArticlesAnalyzed != 2 {
		t.Errorf("expected totals (2, 2), got (%d, %d)", body.TotalClusters, body.TotalArticlesAnalyzed)
	}
	if len(body.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(body.Results))
	}
}
