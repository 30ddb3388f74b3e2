// Package store provides the persistence layer for the retrieval pipeline:
// a BM25 keyword index (Bleve), an HNSW vector index, and a SQLite metadata
// store holding chunk content. The keyword and vector indexes only return
// IDs and scores; callers enrich results from the metadata store.
package store

import (
	"context"
	"fmt"
	"time"
)

// Chunk is the unit of indexing and retrieval. Child chunks carry a
// reference to their parent window so responders can expand context.
type Chunk struct {
	ID        string            `json:"id"`
	DocID     string            `json:"doc_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Seq       int               `json:"seq"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Document is the flat form handed to the sparse index.
type Document struct {
	ID        string
	Content   string
	Namespace string
}

// SparseResult is a BM25 hit. Score is max-normalized to [0, 1]
// within the result set of a single search.
type SparseResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// DenseResult is a vector similarity hit. Score is 1/(1+distance),
// bounded to (0, 1].
type DenseResult struct {
	ChunkID  string
	Distance float32
	Score    float64
}

// VectorItem pairs a chunk ID with its embedding for dense indexing.
type VectorItem struct {
	ID        string
	Vector    []float32
	Namespace string
}

// SparseIndex is the keyword search surface.
type SparseIndex interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int, namespace string) ([]*SparseResult, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (uint64, error)
	Close() error
}

// DenseIndex is the vector search surface.
type DenseIndex interface {
	Add(ctx context.Context, items []*VectorItem) error
	Search(ctx context.Context, query []float32, limit int, namespace string) ([]*DenseResult, error)
	Delete(ctx context.Context, ids []string) error
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// MetadataStore persists chunk content and key/value index state.
type MetadataStore interface {
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	CountChunks(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	Close() error
}

// BM25Config configures the Bleve keyword index.
type BM25Config struct {
	// MinTokenLength drops tokens at or below this length during analysis.
	// Zero means the default of 2 (tokens of 1-2 chars are dropped).
	MinTokenLength int
}

// HNSWConfig configures the vector index.
type HNSWConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// ErrDimensionMismatch is returned when a vector's dimensionality does not
// match the index's configured dimensions.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrNotFound is returned by metadata lookups for unknown chunk IDs.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("chunk not found: %s", e.ID)
}
