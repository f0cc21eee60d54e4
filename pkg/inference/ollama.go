package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	providerOllama = "ollama"

	// DefaultOllamaHost is the local Ollama server.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a small local vision model.
	DefaultOllamaModel = "llava"
)

// Ollama runs vision requests against a local Ollama server.
type Ollama struct {
	client *api.Client
	config *Config
	logger *slog.Logger
}

// NewOllama creates an Ollama provider. BaseURL is the server root; any path
// such as /api/chat is ignored.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = DefaultOllamaHost
	cfg.Model = DefaultOllamaModel
	cfg.Apply(opts...)

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("invalid URL: %w", err))
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, WrapError(providerOllama, fmt.Errorf("invalid URL: %q", cfg.BaseURL))
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}

	return &Ollama{
		client: api.NewClient(base, cfg.httpClient()),
		config: cfg,
		logger: cfg.Logger.With("component", "inference.ollama"),
	}, nil
}

// Name returns "ollama".
func (o *Ollama) Name() string { return providerOllama }

// Vision sends a single non-streaming chat turn with the image attached.
func (o *Ollama) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	model, err := req.validate(providerOllama, o.config.Model)
	if err != nil {
		return nil, err
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Prompt,
				Images:  []api.ImageData{api.ImageData(req.ImageData)},
			},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": o.config.temperature(req),
			"num_predict": o.config.maxTokens(req),
		},
	}

	var final api.ChatResponse
	err = o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, o.convertError(err)
	}

	if final.Message.Content == "" {
		return nil, WrapError(providerOllama, ErrEmptyResponse)
	}

	return &VisionResponse{
		Content: final.Message.Content,
		Usage: Usage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
			TotalTokens:      final.PromptEvalCount + final.EvalCount,
		},
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Health pings the Ollama server.
func (o *Ollama) Health(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return WrapError(providerOllama, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close is a no-op; the api client holds no resources of its own.
func (o *Ollama) Close() error {
	return nil
}

// convertError maps Ollama status errors onto APIError.
func (o *Ollama) convertError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = statusErr.Status
		}
		return &APIError{
			StatusCode: statusErr.StatusCode,
			Message:    msg,
			Provider:   providerOllama,
		}
	}
	return WrapError(providerOllama, err)
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
