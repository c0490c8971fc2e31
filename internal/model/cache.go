package model

// CachedQA is a semantic cache entry: a previously answered question keyed by
// its embedding. Near-duplicate questions (cosine similarity >= the admission
// threshold) reuse the existing entry instead of creating a new row.
type CachedQA struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Embedding  []float32  `json:"-"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	DocVersion string     `json:"doc_version"`
	Hits       int        `json:"hits"`
}

// QuestionMatch is a cached question returned by a nearest-neighbor query,
// ranked descending by similarity.
type QuestionMatch struct {
	ID         string
	Answer     string
	Citations  []Citation
	Similarity float64
}
