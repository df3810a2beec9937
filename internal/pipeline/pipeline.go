// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs papers through metadata, download, text
// preparation, extraction and validation, one paper at a time, and merges
// the accepted records into a unified dataset. A paper that fails at any
// stage is recorded and skipped; the batch continues.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/propextract/internal/acquire"
	"github.com/pdiddy/propextract/internal/ident"
	"github.com/pdiddy/propextract/internal/observability"
	"github.com/pdiddy/propextract/internal/unify"
	"github.com/pdiddy/propextract/pkg/types"
)

// Stage names used in failures, logs and metrics.
const (
	StageMetadata = "metadata"
	StageAcquire  = "acquire"
	StagePrepare  = "prepare"
	StageExtract  = "extract"
	StageValidate = "validate"
)

// MetadataFetcher resolves a DOI to bibliographic metadata.
type MetadataFetcher interface {
	Fetch(ctx context.Context, id types.PaperIdentifier) (types.PaperMetadata, error)
}

// Downloader obtains a verified PDF for a paper. Close releases the
// browser session; the pipeline calls it when a run ends.
type Downloader interface {
	Download(ctx context.Context, meta types.PaperMetadata) (types.ArtifactHandle, error)
	Close() error
}

// TextPreparer cuts a bounded excerpt from a downloaded PDF.
type TextPreparer interface {
	Prepare(ctx context.Context, h types.ArtifactHandle) (types.PreparedText, error)
}

// PropertyExtractor asks the extraction service for candidate records.
type PropertyExtractor interface {
	Extract(ctx context.Context, pt types.PreparedText, title string) ([]types.CandidateRecord, error)
}

// RecordValidator turns candidates into canonical records and rejections.
type RecordValidator interface {
	ValidateAll(cands []types.CandidateRecord) ([]types.MechanicalPropertyRecord, []types.Rejection)
}

// Stages bundles the components a run drives.
type Stages struct {
	Metadata MetadataFetcher
	Download Downloader
	Prepare  TextPreparer
	Extract  PropertyExtractor
	Validate RecordValidator
}

// Pipeline runs batches of papers. It is not safe for concurrent use: the
// downloader's browser session is a single shared resource.
type Pipeline struct {
	stages         Stages
	logger         zerolog.Logger
	metrics        *observability.Metrics
	keepArtifacts  bool
	paperDelay     time.Duration
	removeArtifact func(types.ArtifactHandle) error
	now            func() time.Time
	newRunID       func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithMetrics records run metrics into m.
func WithMetrics(m *observability.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithKeepArtifacts controls whether PDFs are kept after extraction.
func WithKeepArtifacts(keep bool) Option { return func(p *Pipeline) { p.keepArtifacts = keep } }

// WithPaperDelay pauses between consecutive papers.
func WithPaperDelay(d time.Duration) Option { return func(p *Pipeline) { p.paperDelay = d } }

// WithClock sets the time source used for the run timestamp.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithRunID fixes the run identifier instead of generating a UUID.
func WithRunID(id string) Option { return func(p *Pipeline) { p.newRunID = func() string { return id } } }

// New creates a Pipeline over stages.
func New(stages Stages, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:         stages,
		logger:         zerolog.Nop(),
		metrics:        observability.NewMetrics(),
		keepArtifacts:  true,
		removeArtifact: acquire.Remove,
		now:            time.Now,
		newRunID:       uuid.NewString,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Metrics returns the metrics the pipeline records into.
func (p *Pipeline) Metrics() *observability.Metrics { return p.metrics }

// Result is the outcome of a run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	Dataset    *unify.Dataset
	Rejections []types.Rejection
	Failures   []types.PaperFailure
	Papers     []types.PaperReport
}

// Succeeded returns the number of papers that completed every stage.
func (r *Result) Succeeded() int {
	n := 0
	for _, p := range r.Papers {
		if p.Outcome == types.OutcomeSucceeded {
			n++
		}
	}
	return n
}

// AllFailed reports whether at least one paper ran and none succeeded.
func (r *Result) AllFailed() bool {
	return len(r.Papers) > 0 && r.Succeeded() == 0
}

// Document returns the serializable form of the result.
func (r *Result) Document() types.DatasetDocument {
	return r.Dataset.Document(r.RunID, r.StartedAt, r.Rejections, r.Failures, r.Papers)
}

// Run processes ids in order. Per-paper failures never abort the batch.
// Run returns early only when ctx is cancelled, in which case the result
// covers the papers finished so far and the error is ctx.Err(). The
// downloader is closed before Run returns.
func (p *Pipeline) Run(ctx context.Context, ids []types.PaperIdentifier) (*Result, error) {
	res := &Result{
		RunID:     p.newRunID(),
		StartedAt: p.now().UTC(),
		Dataset:   unify.NewDataset(),
	}
	log := observability.WithRunContext(p.logger, res.RunID)

	defer func() {
		if err := p.stages.Download.Close(); err != nil {
			log.Warn().Err(err).Msg("closing browser session")
		}
	}()

	log.Info().Int("papers", len(ids)).Msg("run started")
	for i, id := range ids {
		if i > 0 && p.paperDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.paperDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			log.Warn().Int("remaining", len(ids)-i).Msg("run cancelled")
			return res, err
		}

		out := p.processPaper(ctx, id, observability.WithPaperContext(log, id))
		res.Papers = append(res.Papers, out.report)
		res.Rejections = append(res.Rejections, out.rejections...)
		if out.failure != nil {
			res.Failures = append(res.Failures, *out.failure)
			p.metrics.RecordPaper(string(types.OutcomeFailed))
			continue
		}
		res.Dataset.Add(out.records...)
		p.metrics.RecordPaper(string(types.OutcomeSucceeded))
	}

	log.Info().
		Int("succeeded", res.Succeeded()).
		Int("failed", len(res.Failures)).
		Int("records", res.Dataset.Len()).
		Int("rejections", len(res.Rejections)).
		Msg("run finished")
	return res, nil
}

type paperOutcome struct {
	report     types.PaperReport
	records    []types.MechanicalPropertyRecord
	rejections []types.Rejection
	failure    *types.PaperFailure
}

func (p *Pipeline) processPaper(ctx context.Context, id types.PaperIdentifier, log zerolog.Logger) (out paperOutcome) {
	out.report = types.PaperReport{Identifier: id, Outcome: types.OutcomeSucceeded}
	fail := func(stage string, err error) paperOutcome {
		out.report.Outcome = types.OutcomeFailed
		out.report.Stage = stage
		out.records = nil
		out.failure = &types.PaperFailure{Identifier: id, Stage: stage, Reason: err.Error()}
		log.Error().Str("stage", stage).Str("reason", err.Error()).Msg("paper failed")
		return out
	}

	log.Info().Msg("paper started")

	meta, err := timed(p, StageMetadata, func() (types.PaperMetadata, error) {
		return p.metadata(ctx, id)
	})
	if err != nil {
		return fail(StageMetadata, err)
	}
	out.report.Title = meta.Title

	h, err := timed(p, StageAcquire, func() (types.ArtifactHandle, error) {
		return p.stages.Download.Download(ctx, meta)
	})
	if err != nil {
		return fail(StageAcquire, err)
	}
	out.report.ArtifactSource = h.Source
	log.Debug().Str("path", h.Path).Str("source", h.Source).Msg("artifact ready")
	defer p.releaseArtifact(h, log)

	pt, err := timed(p, StagePrepare, func() (types.PreparedText, error) {
		return p.stages.Prepare.Prepare(ctx, h)
	})
	if err != nil {
		return fail(StagePrepare, err)
	}
	out.report.Truncated = pt.Truncated

	cands, err := timed(p, StageExtract, func() ([]types.CandidateRecord, error) {
		return p.stages.Extract.Extract(ctx, pt, meta.Title)
	})
	if err != nil {
		return fail(StageExtract, err)
	}
	out.report.Candidates = len(cands)

	start := time.Now()
	out.records, out.rejections = p.stages.Validate.ValidateAll(cands)
	p.metrics.ObserveStage(StageValidate, time.Since(start))

	codes := make([]string, len(out.rejections))
	for i, r := range out.rejections {
		codes[i] = r.Code
		log.Debug().Str("code", r.Code).Str("reason", r.Reason).Str("property", r.Candidate.PropertyName).Msg("candidate rejected")
	}
	p.metrics.RecordValidation(len(out.records), codes)
	out.report.Accepted = len(out.records)
	out.report.Rejected = len(out.rejections)

	log.Info().
		Int("candidates", len(cands)).
		Int("accepted", out.report.Accepted).
		Int("rejected", out.report.Rejected).
		Bool("truncated", pt.Truncated).
		Msg("paper done")
	return out
}

func (p *Pipeline) metadata(ctx context.Context, id types.PaperIdentifier) (types.PaperMetadata, error) {
	return ResolveMetadata(ctx, p.stages.Metadata, id)
}

// ResolveMetadata resolves DOIs through f. Direct URLs carry no
// bibliographic record; the URL itself is the landing page.
func ResolveMetadata(ctx context.Context, f MetadataFetcher, id types.PaperIdentifier) (types.PaperMetadata, error) {
	idType, norm := ident.Classify(string(id))
	switch idType {
	case ident.TypeDOI:
		return f.Fetch(ctx, norm)
	case ident.TypeURL:
		return types.PaperMetadata{Identifier: norm, SourceURL: ident.LandingURL(idType, norm)}, nil
	}
	return types.PaperMetadata{}, fmt.Errorf("unrecognized identifier format: %q", id)
}

func (p *Pipeline) releaseArtifact(h types.ArtifactHandle, log zerolog.Logger) {
	if p.keepArtifacts || h.Status != types.DownloadSucceeded {
		return
	}
	if err := p.removeArtifact(h); err != nil {
		log.Warn().Err(err).Str("path", h.Path).Msg("removing artifact")
	}
}

func timed[T any](p *Pipeline, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	p.metrics.ObserveStage(stage, time.Since(start))
	return v, err
}
