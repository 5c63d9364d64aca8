package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"pdfchat/internal/domain"
)

type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
	MetricL2     Metric = "l2"
)

func (m Metric) Validate() error {
	switch m {
	case MetricCosine, MetricDot, MetricL2:
		return nil
	}
	return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, string(m))
}

// Handle is an immutable in-memory view of one built index.
type Handle struct {
	info    domain.IndexInfo
	metric  Metric
	chunks  []domain.Chunk
	vectors [][]float32
	norms   []float64
}

func newHandle(s *snapshot) *Handle {
	h := &Handle{
		info: domain.IndexInfo{
			BuildID:    s.BuildID,
			Metric:     s.Metric,
			Dimension:  s.Dimension,
			Model:      s.Model,
			ChunkCount: len(s.Chunks),
			Truncated:  s.Truncated,
			CreatedAt:  s.CreatedAt,
		},
		metric:  Metric(s.Metric),
		chunks:  s.Chunks,
		vectors: s.Vectors,
	}
	if h.metric == MetricCosine {
		h.norms = make([]float64, len(s.Vectors))
		for i, v := range s.Vectors {
			h.norms[i] = norm(v)
		}
	}
	return h
}

func (h *Handle) Info() domain.IndexInfo { return h.info }

func (h *Handle) Len() int { return len(h.chunks) }

// Search returns up to k chunks ordered by decreasing similarity. Equal
// scores keep chunk order.
func (h *Handle) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(h.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != h.info.Dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), h.info.Dimension)
	}

	qNorm := norm(query)
	results := make([]domain.ScoredChunk, len(h.chunks))
	for i, v := range h.vectors {
		results[i] = domain.ScoredChunk{Chunk: h.chunks[i], Score: h.score(query, qNorm, i, v)}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (h *Handle) score(q []float32, qNorm float64, i int, v []float32) float32 {
	switch h.metric {
	case MetricDot:
		return float32(dot(q, v))
	case MetricL2:
		var sum float64
		for j := range q {
			d := float64(q[j]) - float64(v[j])
			sum += d * d
		}
		return float32(1 / (1 + math.Sqrt(sum)))
	default:
		if qNorm == 0 || h.norms[i] == 0 {
			return 0
		}
		return float32(dot(q, v) / (qNorm * h.norms[i]))
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
