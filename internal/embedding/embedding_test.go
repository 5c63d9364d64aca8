package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	fail    bool
}

func (r *recordingEmbedder) Model() string { return "recording" }

func (r *recordingEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (r *recordingEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, texts)
	r.mu.Unlock()
	if r.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n int
		_, _ = fmt.Sscanf(t, "t%d", &n)
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func TestBatchedPreservesOrder(t *testing.T) {
	inner := &recordingEmbedder{}
	b := NewBatched(inner, 3, 4)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}
	vecs, err := b.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 10)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	assert.Len(t, inner.batches, 4)
	for _, batch := range inner.batches {
		assert.LessOrEqual(t, len(batch), 3)
	}
}

func TestBatchedPropagatesErrors(t *testing.T) {
	b := NewBatched(&recordingEmbedder{fail: true}, 2, 2)
	_, err := b.EmbedMany(context.Background(), []string{"t1", "t2", "t3"})
	assert.Error(t, err)
}

func TestBatchedEmpty(t *testing.T) {
	vecs, err := NewBatched(&recordingEmbedder{}, 2, 2).EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestHashingDeterministicAndNormalized(t *testing.T) {
	h := NewHashing(128)
	a, err := h.EmbedOne(context.Background(), "The quick brown fox")
	require.NoError(t, err)
	b, err := h.EmbedOne(context.Background(), "the QUICK brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128)

	var sum float64
	for _, x := range a {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	assert.Equal(t, "hashing-128", h.Model())
}

func TestHashingEmptyTextIsZeroVector(t *testing.T) {
	v, err := NewHashing(16).EmbedOne(context.Background(), "  ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
