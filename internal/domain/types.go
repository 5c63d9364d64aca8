package domain

import "time"

// Document is one uploaded PDF. It only lives for the duration of an ingest.
type Document struct {
	Name string
	Data []byte
}

// Chunk is a contiguous span of the extracted text. Order is its position
// in the chunk sequence produced for one build.
type Chunk struct {
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// ScoredChunk is a chunk returned by a similarity search. Higher scores are
// closer matches regardless of the metric.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

type IndexState int

const (
	StateNotBuilt IndexState = iota
	StateBuilt
)

func (s IndexState) String() string {
	if s == StateBuilt {
		return "built"
	}
	return "not_built"
}

// IndexInfo describes a persisted index artifact.
type IndexInfo struct {
	BuildID    string    `json:"build_id"`
	Metric     string    `json:"metric"`
	Dimension  int       `json:"dimension"`
	Model      string    `json:"model"`
	ChunkCount int       `json:"chunk_count"`
	Truncated  int       `json:"truncated"`
	CreatedAt  time.Time `json:"created_at"`
}

type AnswerStatus string

const (
	StatusAnswered AnswerStatus = "answered"
	StatusNoMatch  AnswerStatus = "no_match"
)

// Answer is the outcome of a question. Text is empty when Status is
// StatusNoMatch.
type Answer struct {
	Status  AnswerStatus  `json:"status"`
	Text    string        `json:"text,omitempty"`
	Sources []ScoredChunk `json:"sources,omitempty"`
	Cached  bool          `json:"cached,omitempty"`
}
