// Package vectorindex stores chunk embeddings as a single versioned artifact
// and answers top-k similarity queries over it. Every build replaces the
// whole artifact in one write.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfchat/internal/domain"
)

const DefaultName = "faiss_index"

// BuildMeta is recorded alongside the vectors.
type BuildMeta struct {
	Model     string
	Truncated int
}

// Compat is what a reader expects of the stored index. Empty fields are not
// checked.
type Compat struct {
	Model     string
	Dimension int
}

type Options struct {
	Name   string
	Metric Metric
}

type Index struct {
	store  Store
	name   string
	metric Metric
	logger *zap.Logger

	mu      sync.Mutex
	current *Handle
	version string
}

func New(store Store, opts Options, logger *zap.Logger) (*Index, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Metric == "" {
		opts.Metric = MetricCosine
	}
	if err := opts.Metric.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{store: store, name: opts.Name, metric: opts.Metric, logger: logger}, nil
}

func (ix *Index) Name() string { return ix.name }

// Build replaces the stored index with chunks and their vectors. Nothing is
// written unless all vectors share one dimension.
func (ix *Index) Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32, meta BuildMeta) (*Handle, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return nil, fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	snap := &snapshot{
		Version:   snapshotVersion,
		BuildID:   uuid.NewString(),
		Metric:    string(ix.metric),
		Dimension: dim,
		Model:     meta.Model,
		Truncated: meta.Truncated,
		CreatedAt: time.Now().UTC(),
		Chunks:    chunks,
		Vectors:   vectors,
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if err := ix.store.Put(ctx, ix.name, data); err != nil {
		return nil, fmt.Errorf("%w: write index %q: %v", domain.ErrPersistence, ix.name, err)
	}

	// an unknown version forces the next Load to reread the store
	version, err := ix.store.Version(ctx, ix.name)
	if err != nil {
		version = ""
	}
	h := newHandle(snap)
	ix.setCurrent(h, version)

	ix.logger.Info("vector index built",
		zap.String("index", ix.name),
		zap.String("build_id", snap.BuildID),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", dim),
		zap.Int("bytes", len(data)),
	)
	return h, nil
}

// Load returns the stored index. The cached copy is reused only while the
// store still holds the same artifact, so rebuilds and removals made through
// another Index on the same store are picked up. domain.ErrNoIndex means
// nothing is stored.
func (ix *Index) Load(ctx context.Context, compat Compat) (*Handle, error) {
	version, err := ix.store.Version(ctx, ix.name)
	if errors.Is(err, ErrNotFound) {
		ix.setCurrent(nil, "")
		return nil, domain.ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat index %q: %v", domain.ErrPersistence, ix.name, err)
	}

	ix.mu.Lock()
	h := ix.current
	if ix.version != version {
		h = nil
	}
	ix.mu.Unlock()

	if h == nil {
		data, err := ix.store.Get(ctx, ix.name)
		if errors.Is(err, ErrNotFound) {
			ix.setCurrent(nil, "")
			return nil, domain.ErrNoIndex
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read index %q: %v", domain.ErrPersistence, ix.name, err)
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("%w: index %q: %v", domain.ErrPersistence, ix.name, err)
		}
		if Metric(snap.Metric) != ix.metric {
			ix.logger.Warn("stored index uses a different metric than configured, keeping stored",
				zap.String("stored", snap.Metric), zap.String("configured", string(ix.metric)))
		}
		h = newHandle(snap)
		ix.setCurrent(h, version)
		ix.logger.Debug("vector index loaded",
			zap.String("index", ix.name),
			zap.String("build_id", snap.BuildID),
			zap.String("version", version),
		)
	}

	info := h.Info()
	if compat.Model != "" && info.Model != compat.Model {
		return nil, fmt.Errorf("%w: index has %q, embedder is %q", domain.ErrIncompatibleIndex, info.Model, compat.Model)
	}
	if compat.Dimension > 0 && info.ChunkCount > 0 && info.Dimension != compat.Dimension {
		return nil, fmt.Errorf("%w: index has %d, embedder has %d", domain.ErrDimensionMismatch, info.Dimension, compat.Dimension)
	}
	return h, nil
}

// Exists reports whether an artifact is present in the store.
func (ix *Index) Exists(ctx context.Context) (bool, error) {
	ok, err := ix.store.Exists(ctx, ix.name)
	if err != nil {
		return false, fmt.Errorf("%w: stat index %q: %v", domain.ErrPersistence, ix.name, err)
	}
	return ok, nil
}

// Remove deletes the stored artifact. Later Loads return domain.ErrNoIndex.
func (ix *Index) Remove(ctx context.Context) error {
	if err := ix.store.Delete(ctx, ix.name); err != nil {
		return fmt.Errorf("%w: remove index %q: %v", domain.ErrPersistence, ix.name, err)
	}
	ix.setCurrent(nil, "")
	ix.logger.Info("vector index removed", zap.String("index", ix.name))
	return nil
}

func (ix *Index) setCurrent(h *Handle, version string) {
	ix.mu.Lock()
	ix.current = h
	ix.version = version
	ix.mu.Unlock()
}
