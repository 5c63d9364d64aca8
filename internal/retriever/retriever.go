package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
	"pdfchat/internal/vectorindex"
)

const DefaultTopK = 4

// Index is the part of the vector index the retriever reads from.
type Index interface {
	Load(ctx context.Context, compat vectorindex.Compat) (*vectorindex.Handle, error)
}

type Config struct {
	TopK     int
	MinScore float32
}

type Retriever struct {
	index    Index
	embedder embedding.Embedder
	cfg      Config
	logger   *zap.Logger
}

func New(index Index, embedder embedding.Embedder, cfg Config, logger *zap.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, embedder: embedder, cfg: cfg, logger: logger}
}

// Result is a retrieval outcome. Chunks is empty when nothing in the index is
// related closely enough to the query.
type Result struct {
	Chunks  []domain.ScoredChunk
	BuildID string
}

func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// Retrieve embeds query and returns up to k chunks scoring at least MinScore.
// k <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = r.cfg.TopK
	}

	h, err := r.index.Load(ctx, vectorindex.Compat{Model: r.embedder.Model()})
	if err != nil {
		return Result{}, err
	}
	res := Result{BuildID: h.Info().BuildID}
	if h.Len() == 0 {
		return res, nil
	}

	qv, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query failed: %w", err)
	}
	hits, err := h.Search(qv, k)
	if err != nil {
		return Result{}, err
	}

	for _, hit := range hits {
		if hit.Score < r.cfg.MinScore {
			// hits are sorted, nothing after this can pass
			break
		}
		res.Chunks = append(res.Chunks, hit)
	}
	r.logger.Debug("retrieved chunks",
		zap.Int("hits", len(hits)),
		zap.Int("kept", len(res.Chunks)),
		zap.Float32("min_score", r.cfg.MinScore),
	)
	return res, nil
}
