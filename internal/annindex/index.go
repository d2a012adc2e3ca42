// Package annindex implements the nearest-neighbour index: an in-memory vector
// index over unit-normalised embeddings, queried by cosine similarity (a
// plain dot product once vectors are normalised), with periodic durable
// snapshots to two sidecar files.
package annindex

import (
	"fmt"
	"math"
	"sync"

	"newsradar/internal/core"
)

// Match is a query result: the similarity of the nearest neighbour and the
// cluster id it belongs to.
type Match struct {
	Similarity float64
	ClusterID  string
}

// Index is a flat, append-only inner-product index, equivalent in shape to
// Faiss's IndexFlatIP over normalised vectors. It is safe for concurrent use:
// many readers, one writer at a time.
type Index struct {
	mu   sync.RWMutex
	dim  int
	vecs [][]float32
	// ordinalToCluster and ordinalToArticle map a vector's position in vecs
	// to the cluster id it belongs to and the article id it was built from.
	// The article id is what reconciliation keys on: the index's completeness
	// invariant is "one vector per ingested article", not "one vector per
	// cluster" (a cluster accumulates many vectors over its lifetime).
	// Ordinals are append-only and never reused.
	ordinalToCluster []string
	ordinalToArticle []string
	insertsSinceSave int
}

// New creates an empty index for vectors of the given dimensionality.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Len returns the number of vectors currently held.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vecs)
}

// Query returns the nearest neighbour by cosine similarity, or ok=false if
// the index is empty. Callers are expected to pass a unit-normalised vector;
// Query does not normalise on their behalf.
func (idx *Index) Query(vec []float32) (match Match, ok bool, err error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkDim(vec); err != nil {
		return Match{}, false, err
	}
	if len(idx.vecs) == 0 {
		return Match{}, false, nil
	}

	bestSim := -1.0
	bestOrdinal := -1
	for i, v := range idx.vecs {
		sim := dot(vec, v)
		if sim > bestSim {
			bestSim = sim
			bestOrdinal = i
		}
	}
	if bestOrdinal < 0 {
		return Match{}, false, nil
	}
	return Match{Similarity: bestSim, ClusterID: idx.ordinalToCluster[bestOrdinal]}, true, nil
}

// Add appends vec to the index under clusterID, recording articleID for
// reconciliation. Returns the new ordinal and whether a snapshot is due
// (every snapshotEveryN inserts); callers that want periodic persistence
// should check this and call Snapshot asynchronously.
func (idx *Index) Add(vec []float32, articleID, clusterID string, snapshotEveryN int) (ordinal int, snapshotDue bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkDim(vec); err != nil {
		return 0, false, err
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)
	idx.vecs = append(idx.vecs, cp)
	idx.ordinalToCluster = append(idx.ordinalToCluster, clusterID)
	idx.ordinalToArticle = append(idx.ordinalToArticle, articleID)
	idx.insertsSinceSave++

	ordinal = len(idx.vecs) - 1
	if snapshotEveryN > 0 && idx.insertsSinceSave >= snapshotEveryN {
		idx.insertsSinceSave = 0
		snapshotDue = true
	}
	return ordinal, snapshotDue, nil
}

// ClusterIDs returns the ordinal-ordered list of cluster ids represented in
// the index, used by Manager when writing the mapping sidecar file.
func (idx *Index) ClusterIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.ordinalToCluster))
	copy(out, idx.ordinalToCluster)
	return out
}

// ArticleIDs returns the ordinal-ordered list of article ids represented in
// the index, used by Manager when writing the mapping sidecar file and by
// Reconcile to determine which articles are already covered.
func (idx *Index) ArticleIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, len(idx.ordinalToArticle))
	copy(out, idx.ordinalToArticle)
	return out
}

// Vectors returns a copy of the ordinal-ordered vector list, used by Manager
// when writing the vector sidecar file.
func (idx *Index) Vectors() [][]float32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([][]float32, len(idx.vecs))
	for i, v := range idx.vecs {
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}

// restore replaces the index's contents wholesale, used when loading a
// snapshot. Not safe to call concurrently with Add/Query on the same index;
// Manager only calls it before the index is shared.
func (idx *Index) restore(vecs [][]float32, clusterIDs, articleIDs []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vecs = vecs
	idx.ordinalToCluster = clusterIDs
	idx.ordinalToArticle = articleIDs
	idx.insertsSinceSave = 0
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize scales vec to unit length in place and returns it. A zero vector
// is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}

// checkDim reports core.ErrValidation if vec's length doesn't match the
// index's configured dimensionality.
func (idx *Index) checkDim(vec []float32) error {
	if idx.dim > 0 && len(vec) != idx.dim {
		return fmt.Errorf("%w: vector has %d dims, index expects %d", core.ErrValidation, len(vec), idx.dim)
	}
	return nil
}
