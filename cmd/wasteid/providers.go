package main

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-wasteid/internal/config"
	"github.com/teslashibe/go-wasteid/internal/log"
	"github.com/teslashibe/go-wasteid/pkg/classify"
	"github.com/teslashibe/go-wasteid/pkg/inference"
)

type namedProvider struct {
	name     string
	provider inference.Provider
}

// buildProviders creates one provider per backend named in cfg.Models, in
// the order they first appear.
func buildProviders(ctx context.Context, cfg *config.Config) ([]namedProvider, error) {
	var out []namedProvider
	seen := map[string]bool{}

	for _, spec := range cfg.Models {
		if seen[spec.Provider] {
			continue
		}
		seen[spec.Provider] = true

		p, err := newProvider(ctx, cfg, spec.Provider)
		if err != nil {
			closeProviders(out)
			return nil, fmt.Errorf("%s provider: %w", spec.Provider, err)
		}
		out = append(out, namedProvider{name: spec.Provider, provider: p})
	}
	return out, nil
}

func newProvider(ctx context.Context, cfg *config.Config, name string) (inference.Provider, error) {
	logger := log.L()

	switch name {
	case config.ProviderGemini:
		return inference.NewGemini(
			inference.WithAPIKey(cfg.GeminiAPIKey),
			inference.WithTimeout(cfg.RequestTimeout),
			inference.WithLogger(logger),
		)
	case config.ProviderOpenAI:
		return inference.NewOpenAI(
			inference.WithAPIKey(cfg.OpenAIAPIKey),
			inference.WithBaseURL(cfg.OpenAIBaseURL),
			inference.WithTimeout(cfg.RequestTimeout),
			inference.WithLogger(logger),
		)
	case config.ProviderOllama:
		return inference.NewOllama(
			inference.WithBaseURL(cfg.OllamaHost),
			inference.WithTimeout(cfg.RequestTimeout),
			inference.WithLogger(logger),
		)
	case config.ProviderVertex:
		return inference.NewVertex(ctx,
			inference.WithProject(cfg.VertexProject),
			inference.WithLocation(cfg.VertexLocation),
			inference.WithTimeout(cfg.RequestTimeout),
			inference.WithLogger(logger),
		)
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func registry(providers []namedProvider) classify.Registry {
	reg := classify.Registry{}
	for _, p := range providers {
		reg[p.name] = p.provider
	}
	return reg
}

func providerList(providers []namedProvider) []inference.Provider {
	out := make([]inference.Provider, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.provider)
	}
	return out
}

func closeProviders(providers []namedProvider) {
	for _, p := range providers {
		if err := p.provider.Close(); err != nil {
			log.Warn("closing provider", "provider", p.name, "error", err)
		}
	}
}
