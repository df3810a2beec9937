// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/propextract/internal/acquire"
	"github.com/pdiddy/propextract/internal/config"
	"github.com/pdiddy/propextract/internal/extract"
	"github.com/pdiddy/propextract/internal/metadata"
	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/prepare"
	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/internal/validate"
	"github.com/pdiddy/propextract/pkg/types"
)

// retryPolicy returns the configured policy with a hook that logs each
// retry and counts it under operation.
func retryPolicy(cfg types.RetryConfig, operation string, logger zerolog.Logger, m *observability.Metrics) retry.Policy {
	p := config.Policy(cfg)
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.RecordRetry(operation)
		logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("transient failure, retrying")
	}
	return p
}

// NewFetcher returns the CrossRef metadata client for cfg.
func NewFetcher(cfg types.PipelineConfig, logger zerolog.Logger, m *observability.Metrics) *metadata.Fetcher {
	return metadata.NewFetcher(&http.Client{Timeout: cfg.Metadata.Timeout}, cfg.Metadata,
		retryPolicy(cfg.Retry, StageMetadata, logger, m))
}

// NewDownloader returns a downloader backed by a lazily started Chrome
// session. The caller closes it.
func NewDownloader(cfg types.PipelineConfig, logger zerolog.Logger, m *observability.Metrics) *acquire.Downloader {
	acq := cfg.Acquisition
	if acq.UserAgent == "" {
		acq.UserAgent = cfg.Metadata.UserAgent
	}
	return acquire.NewDownloader(acq,
		acquire.ChromeFactory(acq.Browser, acq.UserAgent),
		retryPolicy(cfg.Retry, StageAcquire, logger, m),
		cfg.Metadata.Mailto,
		acquire.WithLogger(logger),
		acquire.WithHTTPClient(&http.Client{Timeout: acq.Timeout}),
	)
}

// NewTextStages returns the preparer and extractor for cfg. The close
// function releases the extraction backend.
func NewTextStages(ctx context.Context, cfg types.PipelineConfig, logger zerolog.Logger, m *observability.Metrics) (*prepare.Preparer, *extract.Extractor, func() error, error) {
	textExtractor, err := prepare.NewExtractor(ctx, cfg.Extraction.TextBackend, cfg.Extraction.MarkitdownImage)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("text extractor: %w", err)
	}
	preparer := prepare.New(textExtractor, cfg.Extraction.CharBudget,
		prepare.WithTextCache(cfg.Acquisition.PapersDir),
		prepare.WithLogger(logger))

	backend, err := extract.NewBackend(ctx, cfg.Extraction.AIConfig,
		&http.Client{Timeout: cfg.Extraction.Timeout})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extraction backend: %w", err)
	}
	extractor := extract.New(backend, retryPolicy(cfg.Retry, StageExtract, logger, m),
		extract.WithMaxTokens(cfg.Extraction.MaxTokens),
		extract.WithTemperature(cfg.Extraction.Temperature),
		extract.WithLogger(logger),
	)

	closeFn := func() error { return nil }
	if c, ok := backend.(io.Closer); ok {
		closeFn = c.Close
	}
	return preparer, extractor, closeFn, nil
}

// BuildStages wires the production components from cfg. The returned
// close function releases the extraction backend; the downloader is
// closed by Run.
func BuildStages(ctx context.Context, cfg types.PipelineConfig, logger zerolog.Logger, m *observability.Metrics) (Stages, func() error, error) {
	preparer, extractor, closeFn, err := NewTextStages(ctx, cfg, logger, m)
	if err != nil {
		return Stages{}, nil, err
	}
	return Stages{
		Metadata: NewFetcher(cfg, logger, m),
		Download: NewDownloader(cfg, logger, m),
		Prepare:  preparer,
		Extract:  extractor,
		Validate: validate.New(cfg.Validation),
	}, closeFn, nil
}

// Build returns a Pipeline over the production stages.
func Build(ctx context.Context, cfg types.PipelineConfig, logger zerolog.Logger) (*Pipeline, func() error, error) {
	m := observability.NewMetrics()
	stages, closeFn, err := BuildStages(ctx, cfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	p := New(stages,
		WithLogger(logger),
		WithMetrics(m),
		WithKeepArtifacts(cfg.Acquisition.KeepArtifacts),
		WithPaperDelay(cfg.PaperDelay),
	)
	return p, closeFn, nil
}
