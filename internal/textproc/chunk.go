package textproc

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rotisserie/eris"
)

const (
	// DefaultMaxTokens is the per-chunk token budget.
	DefaultMaxTokens = 800
	// DefaultOverlap is the number of tokens shared by consecutive chunks.
	DefaultOverlap = 120

	// chunkEncoding must match the embedding model's tokenizer so that token
	// counts, not character counts, bound chunk size.
	chunkEncoding = "cl100k_base"
)

// Chunker splits document text into overlapping fixed-size token windows.
type Chunker struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
	overlap   int
}

// NewChunker creates a Chunker. Non-positive maxTokens and negative overlap
// fall back to the defaults.
func NewChunker(maxTokens, overlap int) (*Chunker, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	enc, err := tiktoken.GetEncoding(chunkEncoding)
	if err != nil {
		return nil, eris.Wrap(err, "textproc: load encoding")
	}
	return &Chunker{enc: enc, maxTokens: maxTokens, overlap: overlap}, nil
}

// Split produces overlapping substrings of text such that each chunk holds at
// most maxTokens tokens and consecutive chunks share the overlap region. The
// final chunk may be shorter.
func (c *Chunker) Split(text string) []string {
	toks := c.enc.Encode(text, nil, nil)
	if len(toks) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(toks); i += step {
		end := i + c.maxTokens
		if end > len(toks) {
			end = len(toks)
		}
		chunks = append(chunks, c.enc.Decode(toks[i:end]))
	}
	return chunks
}

// CountTokens returns the number of tokens in text under the chunker's
// encoding.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
