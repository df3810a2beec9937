// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract asks an LLM for the mechanical properties reported in a
// prepared text excerpt and parses the answer into candidate records.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/pkg/types"
)

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.1
)

// Default models per provider.
var defaultModels = map[types.LLMProvider]string{
	types.ProviderAnthropic: "claude-3-5-sonnet-latest",
	types.ProviderOpenAI:    "gpt-4.1",
	types.ProviderVertex:    "gemini-1.5-pro",
}

// ErrServiceUnavailable means the LLM service kept failing transiently
// until the retry policy gave up.
var ErrServiceUnavailable = errors.New("extraction service unavailable")

// Extractor turns PreparedText into candidate records through a Backend.
type Extractor struct {
	backend     Backend
	policy      retry.Policy
	maxTokens   int
	temperature float64
	logger      zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxTokens sets the output-token budget per request.
func WithMaxTokens(n int) Option { return func(e *Extractor) { e.maxTokens = n } }

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option { return func(e *Extractor) { e.temperature = t } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// New creates an Extractor. The policy's classifier is replaced with one
// that understands provider errors.
func New(backend Backend, policy retry.Policy, opts ...Option) *Extractor {
	policy.IsTransient = classify
	e := &Extractor{
		backend:     backend,
		policy:      policy,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.maxTokens <= 0 {
		e.maxTokens = defaultMaxTokens
	}
	return e
}

// Extract submits the excerpt and returns the parsed candidates, possibly
// none. The title, when known, is included in the prompt. Every candidate's
// SourceIdentifier is the excerpt's identifier, whatever the model said.
func (e *Extractor) Extract(ctx context.Context, pt types.PreparedText, title string) ([]types.CandidateRecord, error) {
	prompt, err := renderPrompt(promptData{
		Title:     title,
		Excerpt:   pt.Excerpt,
		Truncated: pt.Truncated,
		Chars:     pt.SourceCharRange.End - pt.SourceCharRange.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	req := Request{System: systemPrompt, User: prompt, MaxTokens: e.maxTokens, Temperature: e.temperature}

	raw, err := retry.Do(ctx, e.policy, func(ctx context.Context) (string, error) {
		return e.backend.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return nil, fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, e.backend.Name(), err)
		}
		return nil, fmt.Errorf("%s extraction for %s: %w", e.backend.Name(), pt.Identifier, err)
	}

	candidates, err := ParseCandidates(raw, pt.Identifier)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().
		Str("identifier", string(pt.Identifier)).
		Str("backend", e.backend.Name()).
		Int("candidates", len(candidates)).
		Msg("extraction response parsed")
	return candidates, nil
}

// NewBackend builds the Backend selected by cfg.Provider. client may be nil.
// The Vertex backend holds a connection; callers should Close it via
// io.Closer when done.
func NewBackend(ctx context.Context, cfg types.AIConfig, client *http.Client) (Backend, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = types.ProviderAnthropic
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[provider]
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	switch provider {
	case types.ProviderAnthropic:
		return &AnthropicBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, URL: cfg.BaseURL}, nil
	case types.ProviderOpenAI:
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, Client: client, URL: cfg.BaseURL}, nil
	case types.ProviderVertex:
		return NewVertexBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
