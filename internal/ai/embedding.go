package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder calls the /embeddings endpoint of an OpenAI-compatible API.
type Embedder struct {
	client *OpenAICompatibleClient
	model  string
}

func NewEmbedder(client *OpenAICompatibleClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Model() string { return "openai-" + e.model }

// EmbedOne returns the embedding vector for the given text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany sends all texts in one request. Callers that need to respect
// provider batch limits wrap the embedder in embedding.Batched.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		// blank input is rejected by most providers
		if input[i] = strings.TrimSpace(t); input[i] == "" {
			input[i] = " "
		}
	}

	resp, err := e.client.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i := range data {
		if len(data[i].Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding in response")
		}
		out[i] = data[i].Embedding
	}
	return out, nil
}
