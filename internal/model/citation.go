package model

// Citation is a display-ready provenance marker attached to an answer.
// After deduplication the Section field carries the merged page label
// ("Page 4" or "Pages 4, 7, 12") rather than a document section name.
type Citation struct {
	Source  string  `json:"source"`
	Page    *int    `json:"page"`
	Section *string `json:"section"`
}
