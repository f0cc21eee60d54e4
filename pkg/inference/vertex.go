package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerVertex = "vertex"

	// DefaultVertexLocation is the region used when none is configured.
	DefaultVertexLocation = "us-central1"

	// DefaultVertexModel is used when no model is configured.
	DefaultVertexModel = "gemini-2.5-flash"
)

// Vertex runs Gemini models through Vertex AI using Application Default
// Credentials.
type Vertex struct {
	config *Config
	svc    *aiplatform.Service
	ts     oauth2.TokenSource
	logger *slog.Logger
}

// NewVertex creates a Vertex AI provider. WithProject is required. When
// WithHTTPClient is given the client is used as-is and no credentials are
// looked up; BaseURL then overrides the regional endpoint.
func NewVertex(ctx context.Context, opts ...Option) (*Vertex, error) {
	cfg := DefaultConfig()
	cfg.Location = DefaultVertexLocation
	cfg.Model = DefaultVertexModel
	cfg.Apply(opts...)

	if cfg.Project == "" {
		return nil, WrapError(providerVertex, ErrNoProject)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Location)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	clientOpts := []option.ClientOption{option.WithEndpoint(endpoint)}

	var ts oauth2.TokenSource
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		var err error
		ts, err = google.DefaultTokenSource(ctx, aiplatform.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerVertex, fmt.Errorf("default credentials: %w", err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}

	svc, err := aiplatform.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerVertex, fmt.Errorf("create service: %w", err))
	}

	return &Vertex{
		config: cfg,
		svc:    svc,
		ts:     ts,
		logger: cfg.Logger.With("component", "inference.vertex"),
	}, nil
}

// Name returns "vertex".
func (v *Vertex) Name() string { return providerVertex }

// Vision calls generateContent on the publisher model with the image as
// inline data.
func (v *Vertex) Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	start := time.Now()

	model, err := req.validate(providerVertex, v.config.Model)
	if err != nil {
		return nil, err
	}

	genReq := &aiplatform.GoogleCloudAiplatformV1GenerateContentRequest{
		Contents: []*aiplatform.GoogleCloudAiplatformV1Content{
			{
				Role: "user",
				Parts: []*aiplatform.GoogleCloudAiplatformV1Part{
					{Text: req.Prompt},
					{
						InlineData: &aiplatform.GoogleCloudAiplatformV1Blob{
							MimeType: req.MIMEType,
							Data:     EncodeBase64(req.ImageData),
						},
					},
				},
			},
		},
		GenerationConfig: &aiplatform.GoogleCloudAiplatformV1GenerationConfig{
			MaxOutputTokens: int64(v.config.maxTokens(req)),
			Temperature:     v.config.temperature(req),
		},
	}

	resp, err := v.svc.Projects.Locations.Publishers.Models.
		GenerateContent(v.modelPath(model), genReq).
		Context(ctx).
		Do()
	if err != nil {
		return nil, v.convertError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, WrapError(providerVertex, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}

	text := vertexText(resp)
	if text == "" {
		return nil, WrapError(providerVertex, ErrEmptyResponse)
	}

	out := &VisionResponse{
		Content:   text,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Health checks that credentials can mint a token.
func (v *Vertex) Health(ctx context.Context) error {
	if v.ts == nil {
		return nil
	}
	if _, err := v.ts.Token(); err != nil {
		return WrapError(providerVertex, fmt.Errorf("health check: %w", err))
	}
	return nil
}

// Close releases resources.
func (v *Vertex) Close() error {
	return nil
}

func (v *Vertex) modelPath(model string) string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
		v.config.Project, v.config.Location, model)
}

// convertError maps googleapi errors onto APIError.
func (v *Vertex) convertError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerVertex,
		}
	}
	return WrapError(providerVertex, err)
}

func vertexText(resp *aiplatform.GoogleCloudAiplatformV1GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Verify Vertex implements Provider at compile time.
var _ Provider = (*Vertex)(nil)
