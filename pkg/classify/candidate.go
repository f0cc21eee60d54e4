package classify

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-wasteid/internal/config"
	"github.com/teslashibe/go-wasteid/pkg/capture"
	"github.com/teslashibe/go-wasteid/pkg/inference"
)

// AttemptFunc sends one request for img and returns the model's raw text.
type AttemptFunc func(ctx context.Context, img capture.Image) (string, error)

// Candidate is one backend model variant in the fallback list.
type Candidate struct {
	// ID names the candidate in logs, metrics and results, e.g.
	// "gemini:gemini-2.5-flash".
	ID      string
	Attempt AttemptFunc
}

// NewCandidate builds a candidate that asks provider's model to name the
// item in the image using Prompt.
func NewCandidate(provider inference.Provider, model string) Candidate {
	return Candidate{
		ID: provider.Name() + ":" + model,
		Attempt: func(ctx context.Context, img capture.Image) (string, error) {
			resp, err := provider.Vision(ctx, &inference.VisionRequest{
				Prompt:    Prompt,
				ImageData: img.Data,
				MIMEType:  img.MIMEType,
				Model:     model,
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		},
	}
}

// Registry maps provider names to configured providers.
type Registry map[string]inference.Provider

// FromSpecs resolves model specs against reg, keeping their order.
func FromSpecs(specs []config.ModelSpec, reg Registry) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(specs))
	for _, spec := range specs {
		p, ok := reg[spec.Provider]
		if !ok || p == nil {
			return nil, fmt.Errorf("classify: provider %q not configured for %s", spec.Provider, spec)
		}
		candidates = append(candidates, NewCandidate(p, spec.Model))
	}
	return candidates, nil
}

// ParseCandidates parses a comma-separated "provider:model" list and
// resolves it against reg.
func ParseCandidates(s string, reg Registry) ([]Candidate, error) {
	specs, err := config.ParseModels(s)
	if err != nil {
		return nil, err
	}
	return FromSpecs(specs, reg)
}
