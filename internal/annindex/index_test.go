package annindex

import (
	"context"
	"math"
	"os"
	"testing"

	"newsradar/internal/core"
)

func TestQueryEmptyIndex(t *testing.T) {
	idx := New(4)
	_, ok, err := idx.Query([]float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if ok {
		t.Fatal("Query() on empty index returned ok=true")
	}
}

func TestAddAndQueryNearestNeighbour(t *testing.T) {
	idx := New(2)

	a := Normalize([]float32{1, 0})
	b := Normalize([]float32{0, 1})
	if _, _, err := idx.Add(a, "article-1", "cluster-1", 0); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, _, err := idx.Add(b, "article-2", "cluster-2", 0); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	match, ok, err := idx.Query(Normalize([]float32{0.9, 0.1}))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !ok {
		t.Fatal("Query() ok = false, want true")
	}
	if match.ClusterID != "cluster-1" {
		t.Errorf("ClusterID = %q, want cluster-1", match.ClusterID)
	}
	if match.Similarity < 0.8 {
		t.Errorf("Similarity = %v, want >= 0.8", match.Similarity)
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	idx := New(3)
	if _, _, err := idx.Add([]float32{1, 0}, "a", "c", 0); err == nil {
		t.Fatal("expected error for mismatched dimensionality")
	}
}

func TestAddSnapshotDue(t *testing.T) {
	idx := New(1)
	for i := 0; i < 2; i++ {
		_, due, err := idx.Add([]float32{1}, "a", "c", 2)
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if i == 0 && due {
			t.Error("snapshot due after 1 insert with N=2")
		}
		if i == 1 && !due {
			t.Error("snapshot not due after 2 inserts with N=2")
		}
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-5 {
		t.Errorf("||v||^2 = %v, want ~1.0", sumSq)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for _, x := range v {
		if x != 0 {
			t.Errorf("zero vector normalized to non-zero: %v", v)
		}
	}
}

func TestManagerSnapshotAndOpen(t *testing.T) {
	dir := t.TempDir()

	idx := New(2)
	if _, _, err := idx.Add(Normalize([]float32{1, 0}), "a1", "c1", 0); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, _, err := idx.Add(Normalize([]float32{0, 1}), "a2", "c2", 0); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	mgr, _, err := Open(dir, 2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := mgr.Snapshot(idx); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	_, restored, err := Open(dir, 2)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("restored.Len() = %d, want 2", restored.Len())
	}
	match, ok, err := restored.Query(Normalize([]float32{1, 0.05}))
	if err != nil || !ok {
		t.Fatalf("Query() on restored index failed: ok=%v err=%v", ok, err)
	}
	if match.ClusterID != "c1" {
		t.Errorf("ClusterID = %q, want c1", match.ClusterID)
	}
}

func TestOpenCreatesEmptyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	_, idx, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", idx.Len())
	}
}

func TestOpenRebuildsOnCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/"+vectorFileName, []byte("not a valid snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/"+mappingFileName, []byte("not a valid mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, idx, err := Open(dir, 4)
	if err != nil {
		t.Fatalf("Open() error = %v, want graceful fallback", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after corruption fallback", idx.Len())
	}
}

type fakeArticles struct {
	ids  []string
	byID map[string]*core.Article
}

func (f *fakeArticles) AllIDs(ctx context.Context) ([]string, error) { return f.ids, nil }
func (f *fakeArticles) Get(ctx context.Context, id string) (*core.Article, error) {
	return f.byID[id], nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func TestReconcileReplaysMissingArticles(t *testing.T) {
	idx := New(2)
	store := &fakeArticles{
		ids: []string{"a1", "a2"},
		byID: map[string]*core.Article{
			"a1": {ID: "a1", ClusterID: "c1", Title: "t1"},
			"a2": {ID: "a2", ClusterID: "c2", Title: "t2"},
		},
	}

	// a1 is already represented; a2 is not.
	if _, _, err := idx.Add(Normalize([]float32{1, 0}), "a1", "c1", 0); err != nil {
		t.Fatal(err)
	}

	n, err := Reconcile(context.Background(), idx, store, fakeEmbedder{dim: 2}, 0)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Reconcile() replayed = %d, want 1", n)
	}
	if idx.Len() != 2 {
		t.Fatalf("idx.Len() = %d, want 2", idx.Len())
	}
}

func TestReconcileSkipsArticlesWithoutCluster(t *testing.T) {
	idx := New(2)
	store := &fakeArticles{
		ids: []string{"a1"},
		byID: map[string]*core.Article{
			"a1": {ID: "a1", ClusterID: ""},
		},
	}
	n, err := Reconcile(context.Background(), idx, store, fakeEmbedder{dim: 2}, 0)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Reconcile() replayed = %d, want 0", n)
	}
}
