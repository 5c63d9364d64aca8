package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
	"pdfchat/internal/metrics"
	"pdfchat/internal/model"
	"pdfchat/internal/pkg/pdfextract"
	"pdfchat/internal/prompt"
	"pdfchat/internal/retriever"
	"pdfchat/internal/vectorindex"
)

type Extractor interface {
	Extract(docs []domain.Document) (string, []pdfextract.DocumentStats, error)
}

type Index interface {
	Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32, meta vectorindex.BuildMeta) (*vectorindex.Handle, error)
	Load(ctx context.Context, compat vectorindex.Compat) (*vectorindex.Handle, error)
	Exists(ctx context.Context) (bool, error)
	Remove(ctx context.Context) error
	Name() string
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (retriever.Result, error)
}

// Generator turns a prompt into an answer. Failures should be
// *domain.GenerationError; anything else is treated as FailureOther.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type AnswerCache interface {
	Get(ctx context.Context, buildID, question string) (*domain.Answer, bool, error)
	Set(ctx context.Context, buildID, question string, ans domain.Answer) error
}

type QARecorder interface {
	Publish(ctx context.Context, record model.QARecord) error
}

type BuildLedger interface {
	Create(build *model.IndexBuild) error
}

// Deps are the collaborators of RAGService. Cache, Recorder and Ledger are
// optional.
type Deps struct {
	Extractor Extractor
	Chunker   *chunker.Chunker
	Embedder  embedding.Embedder
	Index     Index
	Retriever Retriever
	Generator Generator

	Cache    AnswerCache
	Recorder QARecorder
	Ledger   BuildLedger

	Logger *zap.Logger
}

// RAGService runs the ingest and question pipelines. Calls are serialized.
type RAGService struct {
	mu    sync.Mutex
	state domain.IndexState

	extractor Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     Index
	retriever Retriever
	generator Generator

	cache    AnswerCache
	recorder QARecorder
	ledger   BuildLedger

	logger *zap.Logger
}

// NewRAGService derives the initial state from whether an index artifact
// already exists.
func NewRAGService(ctx context.Context, deps Deps) (*RAGService, error) {
	if deps.Extractor == nil || deps.Chunker == nil || deps.Embedder == nil ||
		deps.Index == nil || deps.Retriever == nil || deps.Generator == nil {
		return nil, errors.New("rag service: missing pipeline dependency")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RAGService{
		state:     domain.StateNotBuilt,
		extractor: deps.Extractor,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		index:     deps.Index,
		retriever: deps.Retriever,
		generator: deps.Generator,
		cache:     deps.Cache,
		recorder:  deps.Recorder,
		ledger:    deps.Ledger,
		logger:    logger,
	}

	exists, err := deps.Index.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		s.state = domain.StateBuilt
	}
	logger.Info("rag service ready", zap.String("index", deps.Index.Name()), zap.Stringer("state", s.state))
	return s, nil
}

func (s *RAGService) State() domain.IndexState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IngestResult describes a successful build.
type IngestResult struct {
	BuildID   string                     `json:"build_id"`
	Documents []pdfextract.DocumentStats `json:"documents"`
	Chunks    int                        `json:"chunks"`
	Truncated int                        `json:"truncated"`
	Dimension int                        `json:"dimension"`
}

// ProcessDocuments rebuilds the index from docs. If no text can be extracted
// the stored index is removed, the service becomes not ready and
// domain.ErrEmptyDocument is returned. Any other failure leaves the previous
// index and state untouched.
func (s *RAGService) ProcessDocuments(ctx context.Context, docs []domain.Document) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.process(ctx, docs)
	switch {
	case err == nil:
		metrics.IngestTotal.WithLabelValues("built").Inc()
		s.logger.Info("documents processed",
			zap.String("build_id", res.BuildID),
			zap.Int("documents", len(docs)),
			zap.Int("chunks", res.Chunks),
			zap.Int("truncated", res.Truncated),
			zap.Duration("took", time.Since(start)),
		)
	case errors.Is(err, domain.ErrEmptyDocument):
		s.state = domain.StateNotBuilt
		// drop the artifact too, otherwise a restart would come back Built
		if rmErr := s.index.Remove(ctx); rmErr != nil {
			s.logger.Error("remove stale index failed", zap.String("index", s.index.Name()), zap.Error(rmErr))
		}
		metrics.IngestTotal.WithLabelValues("empty").Inc()
		s.logger.Warn("no extractable text in documents", zap.Int("documents", len(docs)))
	default:
		metrics.IngestTotal.WithLabelValues("failed").Inc()
		s.logger.Error("process documents failed", zap.Error(err))
	}
	return res, err
}

func (s *RAGService) process(ctx context.Context, docs []domain.Document) (*IngestResult, error) {
	if len(docs) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	start := time.Now()

	t := time.Now()
	text, stats, err := s.extractor.Extract(docs)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(t).Seconds())
	if err != nil {
		return nil, err
	}

	split := s.chunker.Split(text)
	if len(split.Chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	if split.Truncated > 0 {
		s.logger.Warn("chunk cap reached, dropping tail of the documents",
			zap.Int("kept", len(split.Chunks)), zap.Int("dropped", split.Truncated))
	}

	texts := make([]string, len(split.Chunks))
	for i, c := range split.Chunks {
		texts[i] = c.Text
	}
	t = time.Now()
	vectors, err := s.embedder.EmbedMany(ctx, texts)
	metrics.StageDuration.WithLabelValues("embed").Observe(time.Since(t).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed chunks failed: %w", err)
	}

	t = time.Now()
	h, err := s.index.Build(ctx, split.Chunks, vectors, vectorindex.BuildMeta{
		Model:     s.embedder.Model(),
		Truncated: split.Truncated,
	})
	metrics.StageDuration.WithLabelValues("index").Observe(time.Since(t).Seconds())
	if err != nil {
		return nil, err
	}
	s.state = domain.StateBuilt

	info := h.Info()
	metrics.IndexedChunks.Set(float64(info.ChunkCount))
	s.recordBuild(info, len(docs), time.Since(start))

	return &IngestResult{
		BuildID:   info.BuildID,
		Documents: stats,
		Chunks:    info.ChunkCount,
		Truncated: info.Truncated,
		Dimension: info.Dimension,
	}, nil
}

func (s *RAGService) recordBuild(info domain.IndexInfo, documents int, took time.Duration) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.Create(&model.IndexBuild{
		BuildID:    info.BuildID,
		IndexName:  s.index.Name(),
		Model:      info.Model,
		Metric:     info.Metric,
		Dimension:  info.Dimension,
		Documents:  documents,
		ChunkCount: info.ChunkCount,
		Truncated:  info.Truncated,
		DurationMS: took.Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("record index build failed", zap.Error(err))
	}
}

// AnswerQuestion answers from the built index. It returns domain.ErrNotReady
// before any successful ProcessDocuments, whatever the question. A blank
// question to a ready service is domain.ErrInvalidInput. An answer with
// StatusNoMatch means nothing in the index relates to the question.
func (s *RAGService) AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ans, buildID, err := s.answer(ctx, question)
	outcome := outcomeOf(ans, err)
	metrics.QuestionsTotal.WithLabelValues(outcome).Inc()
	metrics.StageDuration.WithLabelValues("answer").Observe(time.Since(start).Seconds())
	s.journal(ctx, question, buildID, ans, outcome, time.Since(start))

	if err != nil {
		s.logger.Warn("answer question failed", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}
	return ans, nil
}

func (s *RAGService) answer(ctx context.Context, question string) (*domain.Answer, string, error) {
	if s.state != domain.StateBuilt {
		return nil, "", domain.ErrNotReady
	}
	if question == "" {
		return nil, "", fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	t := time.Now()
	res, err := s.retriever.Retrieve(ctx, question, 0)
	metrics.StageDuration.WithLabelValues("retrieve").Observe(time.Since(t).Seconds())
	if errors.Is(err, domain.ErrNoIndex) {
		// the artifact disappeared underneath us
		s.state = domain.StateNotBuilt
		return nil, "", fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	if err != nil {
		return nil, "", err
	}
	if res.Empty() {
		return &domain.Answer{Status: domain.StatusNoMatch}, res.BuildID, nil
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, res.BuildID, question)
		if err != nil {
			s.logger.Warn("answer cache lookup failed", zap.Error(err))
		} else if ok {
			cached.Cached = true
			return cached, res.BuildID, nil
		}
	}

	t = time.Now()
	text, err := s.generator.Generate(ctx, prompt.Assemble(res.Chunks, question))
	metrics.StageDuration.WithLabelValues("generate").Observe(time.Since(t).Seconds())
	if err != nil {
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			err = &domain.GenerationError{Kind: domain.FailureOther, Err: err}
		}
		return nil, res.BuildID, err
	}

	ans := &domain.Answer{Status: domain.StatusAnswered, Text: text, Sources: res.Chunks}
	if s.cache != nil {
		if err := s.cache.Set(ctx, res.BuildID, question, *ans); err != nil {
			s.logger.Warn("answer cache store failed", zap.Error(err))
		}
	}
	return ans, res.BuildID, nil
}

func (s *RAGService) journal(ctx context.Context, question, buildID string, ans *domain.Answer, outcome string, took time.Duration) {
	if s.recorder == nil {
		return
	}
	rec := model.QARecord{
		BuildID:   buildID,
		Question:  question,
		Outcome:   outcome,
		LatencyMS: took.Milliseconds(),
		CreatedAt: time.Now(),
	}
	if ans != nil {
		rec.Answer = ans.Text
		rec.Sources = len(ans.Sources)
		rec.Cached = ans.Cached
	}
	if err := s.recorder.Publish(ctx, rec); err != nil {
		s.logger.Warn("publish qa record failed", zap.Error(err))
	}
}

func outcomeOf(ans *domain.Answer, err error) string {
	switch {
	case err == nil && ans != nil:
		return string(ans.Status)
	case errors.Is(err, domain.ErrNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrGeneration):
		return "generation_failed"
	default:
		return "failed"
	}
}

// IndexInfo describes the current index. ok is false when nothing is built.
func (s *RAGService) IndexInfo(ctx context.Context) (info domain.IndexInfo, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateBuilt {
		return domain.IndexInfo{}, false, nil
	}
	h, err := s.index.Load(ctx, vectorindex.Compat{Model: s.embedder.Model()})
	if errors.Is(err, domain.ErrNoIndex) {
		return domain.IndexInfo{}, false, nil
	}
	if err != nil {
		return domain.IndexInfo{}, false, err
	}
	return h.Info(), true, nil
}
