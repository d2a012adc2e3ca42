package annindex

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"newsradar/internal/logger"
)

const (
	vectorFileName  = "vectors.bin"
	mappingFileName = "mapping.gob"
)

// Manager owns an Index's on-disk lifecycle: loading a snapshot at start-up
// (or creating an empty index), and periodically persisting it via
// write-temp-then-rename so a crash mid-write never corrupts the previous
// good snapshot.
type Manager struct {
	Dir string
	log *slog.Logger
}

// Open loads an existing snapshot from dir, or creates a new empty index of
// dimensionality dim if no snapshot is present. A snapshot that fails to
// parse is treated as corruption (core.ErrCorruption territory): the manager
// logs a warning and falls back to an empty index rather than failing
// start-up, per the "ANN corruption on start-up -> rebuild from A" policy;
// the caller is expected to follow up with Reconcile.
func Open(dir string, dim int) (*Manager, *Index, error) {
	log := logger.Component("ann")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ann: create snapshot dir: %w", err)
	}

	m := &Manager{Dir: dir, log: log}

	vecPath := filepath.Join(dir, vectorFileName)
	mapPath := filepath.Join(dir, mappingFileName)

	_, vecErr := os.Stat(vecPath)
	_, mapErr := os.Stat(mapPath)
	if vecErr != nil || mapErr != nil {
		log.Info("no existing ANN snapshot, starting empty", "dir", dir)
		return m, New(dim), nil
	}

	vecs, err := readVectors(vecPath)
	if err != nil {
		log.Warn("failed to load ANN vector snapshot, rebuilding empty index", "error", err.Error())
		return m, New(dim), nil
	}
	mapping, err := readMapping(mapPath)
	if err != nil {
		log.Warn("failed to load ANN mapping snapshot, rebuilding empty index", "error", err.Error())
		return m, New(dim), nil
	}
	if len(vecs) != len(mapping.ClusterIDs) || len(vecs) != len(mapping.ArticleIDs) {
		log.Warn("ANN snapshot vector/mapping length mismatch, rebuilding empty index",
			"vectors", len(vecs), "mappings", len(mapping.ClusterIDs))
		return m, New(dim), nil
	}

	idx := New(dim)
	idx.restore(vecs, mapping.ClusterIDs, mapping.ArticleIDs)
	log.Info("loaded ANN snapshot", "vectors", len(vecs), "dir", dir)
	return m, idx, nil
}

// Snapshot persists idx's current contents to m.Dir, writing each sidecar
// file to a temporary path and renaming into place so a reader (or a crash)
// never observes a partially-written file.
func (m *Manager) Snapshot(idx *Index) error {
	vecs := idx.Vectors()
	mapping := ordinalMapping{ClusterIDs: idx.ClusterIDs(), ArticleIDs: idx.ArticleIDs()}

	if err := writeAtomic(filepath.Join(m.Dir, vectorFileName), vecs, writeVectors); err != nil {
		return fmt.Errorf("ann: snapshot vectors: %w", err)
	}
	if err := writeAtomic(filepath.Join(m.Dir, mappingFileName), mapping, writeMapping); err != nil {
		return fmt.Errorf("ann: snapshot mapping: %w", err)
	}
	m.log.Info("wrote ANN snapshot", "vectors", len(vecs))
	return nil
}

func writeAtomic[T any](finalPath string, data T, encode func(*bytes.Buffer, T) error) error {
	var buf bytes.Buffer
	if err := encode(&buf, data); err != nil {
		return err
	}
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, finalPath)
}

// writeVectors encodes a [][]float32 as: uint32 count, then per vector a
// uint32 length followed by that many float32s (little-endian).
func writeVectors(buf *bytes.Buffer, vecs [][]float32) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(vecs))); err != nil {
		return err
	}
	for _, v := range vecs {
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(v))); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readVectors(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	// Each vector needs at least its 4-byte length prefix, and each element 4
	// bytes; a header claiming more than the file holds is corruption.
	if uint64(count)*4 > uint64(r.Len()) {
		return nil, fmt.Errorf("vector snapshot: count %d exceeds file size", count)
	}
	vecs := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		if uint64(n)*4 > uint64(r.Len()) {
			return nil, fmt.Errorf("vector snapshot: vector length %d exceeds file size", n)
		}
		v := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

// ordinalMapping is the sidecar gob payload: parallel arrays keyed by vector
// ordinal, matching the layout of the vectors sidecar file.
type ordinalMapping struct {
	ClusterIDs []string
	ArticleIDs []string
}

func writeMapping(buf *bytes.Buffer, mapping ordinalMapping) error {
	return gob.NewEncoder(buf).Encode(mapping)
}

func readMapping(path string) (ordinalMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ordinalMapping{}, err
	}
	var mapping ordinalMapping
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&mapping); err != nil {
		return ordinalMapping{}, err
	}
	return mapping, nil
}
