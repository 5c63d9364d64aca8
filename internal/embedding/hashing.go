package embedding

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const DefaultHashingDimension = 512

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Hashing is a deterministic bag-of-words embedder using the hashing trick.
// It needs no model files or network and is meant for offline use and tests.
type Hashing struct {
	dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Model() string { return fmt.Sprintf("hashing-%d", h.dim) }

func (h *Hashing) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *Hashing) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dim)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		sum := xxhash.Sum64String(tok)
		idx := int(sum % uint64(h.dim))
		// top bit picks the sign so colliding tokens tend to cancel
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	Normalize(v)
	return v
}
