package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pdfchat/internal/domain"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	Model       string
	Temperature float32
}

// ClientConfig points the client at any OpenAI-compatible endpoint.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type OpenAICompatibleClient struct {
	client *openai.Client
}

func NewOpenAICompatibleClient(cfg ClientConfig) *OpenAICompatibleClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: statusRecorder{base: http.DefaultTransport},
	}
	return &OpenAICompatibleClient{client: openai.NewClientWithConfig(oc)}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	ctx, status := withStatusSlot(ctx)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if *status >= http.StatusBadRequest {
			err = &HTTPStatusError{StatusCode: *status, Err: err}
		}
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generator turns a prompt into an answer. Failures are always
// *domain.GenerationError, classified from the HTTP status of the response.
type Generator struct {
	client *OpenAICompatibleClient
	cfg    ChatConfig
}

func NewGenerator(client *OpenAICompatibleClient, cfg ChatConfig) *Generator {
	return &Generator{client: client, cfg: cfg}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	answer, err := g.client.Complete(ctx, g.cfg, []ChatMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return "", Classify(err)
	}
	return strings.TrimSpace(answer), nil
}

// Classify wraps err in a domain.GenerationError whose kind depends on the
// HTTP status carried by the client error, if any.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := domain.FailureOther
	switch status {
	case http.StatusTooManyRequests:
		kind = domain.FailureRateLimited
	case http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable:
		kind = domain.FailureModelUnavailable
	}
	return &domain.GenerationError{Kind: kind, Err: err}
}

// HTTPStatusError attaches the HTTP status of a failed call to the client
// error, whatever the body looked like.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm endpoint status %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPStatusError) Unwrap() error { return e.Err }

type statusKey struct{}

// withStatusSlot returns a context under which statusRecorder stores the
// status code of the response.
func withStatusSlot(ctx context.Context) (context.Context, *int) {
	status := new(int)
	return context.WithValue(ctx, statusKey{}, status), status
}

// statusRecorder passes requests and responses through untouched and notes
// the response status in the slot carried by the request context.
type statusRecorder struct {
	base http.RoundTripper
}

func (t statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		if slot, ok := req.Context().Value(statusKey{}).(*int); ok {
			*slot = resp.StatusCode
		}
	}
	return resp, err
}
