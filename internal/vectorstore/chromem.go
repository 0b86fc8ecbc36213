package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"construction-safety-assistant/models"

	"github.com/philippgille/chromem-go"
)

const chromemCollection = "construction_manuals"

var errExternalEmbeddings = errors.New("chromem store expects precomputed embeddings")

// ChromemStore keeps chunks in a persistent chromem-go collection. chromem
// writes each document to disk on insert, so Save has nothing left to do.
type ChromemStore struct {
	mu  sync.Mutex
	dim int
	db  *chromem.DB
	col *chromem.Collection
}

func NewChromemStore(path string, dim int) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db at %s: %w", path, err)
	}

	refuse := func(context.Context, string) ([]float32, error) {
		return nil, errExternalEmbeddings
	}
	col, err := db.GetOrCreateCollection(chromemCollection, nil, refuse)
	if err != nil {
		return nil, fmt.Errorf("opening chromem collection: %w", err)
	}

	return &ChromemStore{dim: dim, db: db, col: col}, nil
}

func (s *ChromemStore) Len() int {
	return s.col.Count()
}

func (s *ChromemStore) Add(ctx context.Context, vectors [][]float32, chunks []models.DocumentChunk) error {
	if err := checkBatch(s.dim, vectors, chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	// Serialize id assignment so concurrent batches never collide.
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.col.Count()
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{"document": c.Document}
		if c.Section != nil {
			meta["section"] = *c.Section
		}
		if c.Page != nil {
			meta["page"] = strconv.Itoa(*c.Page)
		}
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("chunk-%09d", base+i),
			Metadata:  meta,
			Embedding: vectors[i],
			Content:   c.Text,
		}
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to chromem: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query []float32, k int) ([]models.RetrievalResult, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), s.dim)
	}

	n := s.col.Count()
	if k < n {
		n = k
	}
	if n <= 0 {
		return []models.RetrievalResult{}, nil
	}

	hits, err := s.col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	results := make([]models.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.RetrievalResult{
			Chunk: chunkFromMetadata(h.Content, h.Metadata),
			Score: h.Similarity,
		})
	}
	return results, nil
}

func (s *ChromemStore) Save() error { return nil }

func chunkFromMetadata(text string, meta map[string]string) models.DocumentChunk {
	chunk := models.DocumentChunk{Text: text, Document: meta["document"]}
	if section, ok := meta["section"]; ok {
		chunk.Section = &section
	}
	if raw, ok := meta["page"]; ok {
		if page, err := strconv.Atoi(raw); err == nil {
			chunk.Page = &page
		}
	}
	return chunk
}
