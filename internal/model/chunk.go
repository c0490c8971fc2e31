// Package model defines the shared domain types for the handbook QA pipeline.
package model

// EmbeddingDim is the dimensionality of all embedding vectors in the system,
// matching the text-embedding-3-small output size.
const EmbeddingDim = 1536

// Chunk is the persisted retrieval unit: a bounded span of handbook text with
// its embedding and provenance metadata. Chunks are fully regenerated on each
// ingestion run and read-only afterward.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Page      *int      `json:"page"`
	Section   *string   `json:"section"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	SHA256    string    `json:"sha256"`
}

// ChunkMatch is a chunk returned by a nearest-neighbor query, ranked by
// similarity to the query vector.
type ChunkMatch struct {
	Content    string
	Source     string
	Page       *int
	Section    *string
	Similarity float64
}
