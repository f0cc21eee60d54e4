// Package inference provides a unified interface for vision model backends.
//
// Every backend answers the same question: given a prompt and one encoded
// image, what text does the model return. Providers cover the Gemini REST
// API, Gemini on Vertex AI, any OpenAI-compatible endpoint and local Ollama
// models.
//
// Example usage:
//
//	p, _ := inference.NewGemini(
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	defer p.Close()
//
//	resp, _ := p.Vision(ctx, &inference.VisionRequest{
//	    Prompt:    "What is this?",
//	    ImageData: jpegBytes,
//	    MIMEType:  "image/jpeg",
//	    Model:     "gemini-2.5-flash",
//	})
package inference

import "context"

// Provider is the unified vision inference interface.
// All implementations must satisfy this interface.
type Provider interface {
	// Vision sends the prompt and image to the model and returns its text.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Name identifies the backend ("gemini", "vertex", "openai", "ollama").
	Name() string

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// VisionRequest for image analysis.
type VisionRequest struct {
	// Prompt describing what to analyze or ask about the image.
	Prompt string

	// ImageData is the encoded image (JPEG, PNG, WebP or GIF).
	ImageData []byte

	// MIMEType of ImageData. Defaults to image/jpeg.
	MIMEType string

	// Model overrides the provider's default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness. Zero uses the provider default.
	Temperature float64
}

// VisionResponse from image analysis.
type VisionResponse struct {
	// Content is the raw text returned by the model.
	Content string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for analysis.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// validate checks the fields every provider needs and fills the MIME type.
func (r *VisionRequest) validate(provider, defaultModel string) (string, error) {
	if len(r.ImageData) == 0 {
		return "", WrapError(provider, ErrNoImage)
	}
	if r.MIMEType == "" {
		r.MIMEType = DefaultMIMEType
	}
	model := r.Model
	if model == "" {
		model = defaultModel
	}
	if model == "" {
		return "", WrapError(provider, ErrNoModel)
	}
	return model, nil
}
