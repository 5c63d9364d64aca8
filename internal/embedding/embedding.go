// Package embedding defines the capability that maps text to vectors and the
// helpers shared by its providers.
package embedding

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Embedder maps text to fixed-dimension vectors. EmbedMany returns one vector
// per input in the same order. Model identifies the underlying model so that
// an index built with one embedder is never queried with another.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Batched splits EmbedMany calls into provider-sized batches and runs up to
// parallelism of them at once.
type Batched struct {
	inner       Embedder
	batchSize   int
	parallelism int
}

func NewBatched(inner Embedder, batchSize, parallelism int) *Batched {
	if batchSize <= 0 {
		batchSize = 10
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Batched{inner: inner, batchSize: batchSize, parallelism: parallelism}
}

func (b *Batched) Model() string { return b.inner.Model() }

func (b *Batched) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return b.inner.EmbedOne(ctx, text)
}

func (b *Batched) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for start := 0; start < len(texts); start += b.batchSize {
		start := start
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.inner.EmbedMany(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
