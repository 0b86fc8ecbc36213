package vectorstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/models"
)

const (
	flatMagic   = "CWIX"
	flatVersion = uint32(1)
	metaSuffix  = ".meta.json"
)

// FlatStore is an exact inner-product index over float32 vectors, persisted as
// a binary blob at path and a JSON metadata array at path+".meta.json".
// vectors row i always pairs with meta[i]. Save renames the two files one
// after the other, so Load trims a partially written pair to the rows both cover.
type FlatStore struct {
	mu      sync.RWMutex
	dim     int
	path    string
	vectors []float32
	meta    []models.DocumentChunk
}

func NewFlatStore(dim int, path string) *FlatStore {
	return &FlatStore{dim: dim, path: path}
}

// OpenFlatStore creates a store and loads whatever is persisted at path.
func OpenFlatStore(dim int, path string) (*FlatStore, error) {
	s := NewFlatStore(dim, path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta)
}

func (s *FlatStore) rows() int {
	return len(s.vectors) / s.dim
}

func (s *FlatStore) Add(_ context.Context, vectors [][]float32, chunks []models.DocumentChunk) error {
	if err := checkBatch(s.dim, vectors, chunks); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		s.vectors = append(s.vectors, v...)
	}
	s.meta = append(s.meta, chunks...)
	return nil
}

func (s *FlatStore) Search(_ context.Context, query []float32, k int) ([]models.RetrievalResult, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return []models.RetrievalResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.rows()
	if n > len(s.meta) {
		n = len(s.meta)
	}
	if n == 0 {
		return []models.RetrievalResult{}, nil
	}

	idx := make([]int, n)
	scores := make([]float32, n)
	for i := 0; i < n; i++ {
		idx[i] = i
		scores[i] = dot(s.vectors[i*s.dim:(i+1)*s.dim], query)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	if k > n {
		k = n
	}
	results := make([]models.RetrievalResult, 0, k)
	for _, i := range idx[:k] {
		results = append(results, models.RetrievalResult{Chunk: s.meta[i], Score: scores[i]})
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Save writes the blob and the metadata file, each through a temp file and rename.
// A store without a path is memory-only and Save does nothing.
func (s *FlatStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}

	if err := writeAtomic(s.path, s.writeBlob); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if err := writeAtomic(s.path+metaSuffix, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(s.meta)
	}); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

func (s *FlatStore) writeBlob(w io.Writer) error {
	if _, err := io.WriteString(w, flatMagic); err != nil {
		return err
	}
	header := []any{flatVersion, uint32(s.dim), uint64(s.rows())}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, s.vectors)
}

// Load replaces the in-memory state with the persisted pair. A missing blob
// yields an empty index.
func (s *FlatStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}

	vectors, err := s.readBlob()
	if errors.Is(err, os.ErrNotExist) {
		s.vectors, s.meta = nil, nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index %s: %w", s.path, err)
	}

	var meta []models.DocumentChunk
	raw, err := os.ReadFile(s.path + metaSuffix)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading index metadata: %w", err)
	default:
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("decoding index metadata: %w", err)
		}
	}

	rows := len(vectors) / s.dim
	if rows != len(meta) {
		logger.Warn("Index blob and metadata disagree, trimming to the shorter",
			"path", s.path,
			"vectors", rows,
			"metadata", len(meta),
		)
		if rows > len(meta) {
			vectors = vectors[:len(meta)*s.dim]
		} else {
			meta = meta[:rows]
		}
	}

	s.vectors, s.meta = vectors, meta
	return nil
}

func (s *FlatStore) readBlob() ([]float32, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != flatMagic {
		return nil, fmt.Errorf("not an index file")
	}

	var version, dim uint32
	var count uint64
	for _, h := range []any{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, h); err != nil {
			return nil, err
		}
	}
	if version != flatVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}
	if int(dim) != s.dim {
		return nil, fmt.Errorf("%w: file has %d dims, embedder has %d", ErrDimensionMismatch, dim, s.dim)
	}
	if count > math.MaxInt32 {
		return nil, fmt.Errorf("implausible vector count %d", count)
	}

	vectors := make([]float32, int(count)*int(dim))
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
