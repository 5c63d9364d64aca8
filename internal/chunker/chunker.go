// Package chunker splits extracted document text into overlapping chunks
// that are small enough to embed and to quote back to the model.
package chunker

import (
	"fmt"
	"strings"

	"pdfchat/internal/domain"
)

const (
	DefaultChunkSize     = 800
	DefaultChunkOverlap  = 100
	DefaultTruncationCap = 200
)

// separators are tried in order; earlier entries are stronger boundaries.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	TruncationCap int // <= 0 keeps every chunk
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		ChunkOverlap:  DefaultChunkOverlap,
		TruncationCap: DefaultTruncationCap,
	}
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidInput)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", domain.ErrInvalidInput)
	}
	return nil
}

// Result holds the kept chunks and how many were dropped by the cap.
type Result struct {
	Chunks    []domain.Chunk
	Total     int
	Truncated int
}

type Chunker struct {
	cfg Config
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split cuts text into chunks of at most ChunkSize characters. Each chunk
// after the first starts ChunkOverlap characters before the end of the
// previous one. Whitespace-only chunks are discarded and the cap is applied
// last.
func (c *Chunker) Split(text string) Result {
	runes := []rune(text)
	size, overlap := c.cfg.ChunkSize, c.cfg.ChunkOverlap

	var chunks []domain.Chunk
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end, overlap)
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, domain.Chunk{Order: len(chunks), Text: piece})
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}

	res := Result{Chunks: chunks, Total: len(chunks)}
	if limit := c.cfg.TruncationCap; limit > 0 && len(chunks) > limit {
		res.Chunks = chunks[:limit]
		res.Truncated = len(chunks) - limit
	}
	return res
}

// cutPoint picks where the chunk starting at start should end, no later than
// limit. A boundary is only accepted past the middle of the window and past
// the overlap, so every step moves forward.
func cutPoint(runes []rune, start, limit, overlap int) int {
	lo := start + max(overlap, (limit-start)/2) + 1
	for _, sep := range separators {
		for cut := limit; cut >= lo; cut-- {
			if hasSuffixAt(runes, cut, sep) {
				return cut
			}
		}
	}
	return limit
}

// hasSuffixAt reports whether runes[:cut] ends with sep.
func hasSuffixAt(runes []rune, cut int, sep []rune) bool {
	if cut < len(sep) {
		return false
	}
	for i := range sep {
		if runes[cut-len(sep)+i] != sep[i] {
			return false
		}
	}
	return true
}
