// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire obtains paper PDFs by driving a browser through the
// publisher landing page, with an optional direct HTTP fallback.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/propextract/internal/ident"
	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"

	defaultLocatorTimeout  = 10 * time.Second
	defaultDownloadTimeout = 60 * time.Second
)

// ErrDownloadFailed is matched by every DownloadError.
var ErrDownloadFailed = errors.New("download failed")

// State is a step of the per-paper download state machine.
type State int

const (
	StateStart State = iota
	StatePageLoaded
	StateButtonLocated
	StateDownloadTriggered
	StateFileVerified
	StateFailed
)

var stateNames = [...]string{"START", "PAGE_LOADED", "BUTTON_LOCATED", "DOWNLOAD_TRIGGERED", "FILE_VERIFIED", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// DownloadError reports where in the state machine an acquisition stopped.
type DownloadError struct {
	Identifier types.PaperIdentifier
	State      State
	Reason     string
	Err        error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("download failed for %s in state %s: %s", e.Identifier, e.State, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Is(target error) bool { return target == ErrDownloadFailed }

func (e *DownloadError) Unwrap() error { return e.Err }

// Downloader acquires one PDF per paper. It owns a single browser session,
// opened on first use and released by Close; calls must not overlap.
type Downloader struct {
	cfg        types.AcquisitionConfig
	factory    DriverFactory
	strategies []Strategy
	rules      []PublisherRule
	fallback   *httpFallback
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	driver Driver
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithStrategies replaces DefaultStrategies.
func WithStrategies(s []Strategy) Option { return func(d *Downloader) { d.strategies = s } }

// WithPublisherRules replaces DefaultPublisherRules.
func WithPublisherRules(r []PublisherRule) Option { return func(d *Downloader) { d.rules = r } }

// WithLogger sets the logger used for state transitions.
func WithLogger(l zerolog.Logger) Option { return func(d *Downloader) { d.logger = l } }

// WithHTTPClient sets the client used by the HTTP fallback.
func WithHTTPClient(c *http.Client) Option { return func(d *Downloader) { d.fallback.client = c } }

// NewDownloader builds a Downloader. factory may be nil when only the HTTP
// fallback should be used.
func NewDownloader(cfg types.AcquisitionConfig, factory DriverFactory, policy retry.Policy, mailto string, opts ...Option) *Downloader {
	d := &Downloader{
		cfg:        cfg,
		factory:    factory,
		strategies: DefaultStrategies,
		rules:      DefaultPublisherRules,
		logger:     zerolog.Nop(),
		now:        time.Now,
		fallback: &httpFallback{
			client:    &http.Client{Timeout: cfg.Timeout},
			userAgent: cfg.UserAgent,
			mailto:    mailto,
			policy:    policy,
		},
	}
	for _, o := range opts {
		o(d)
	}
	d.fallback.rules = d.rules
	if d.cfg.Browser.LocatorTimeout <= 0 {
		d.cfg.Browser.LocatorTimeout = defaultLocatorTimeout
	}
	if d.cfg.Browser.DownloadTimeout <= 0 {
		d.cfg.Browser.DownloadTimeout = defaultDownloadTimeout
	}
	return d
}

// ArtifactPath returns where the PDF for id is stored.
func (d *Downloader) ArtifactPath(id types.PaperIdentifier) (string, error) {
	idType, norm := ident.Classify(string(id))
	if idType == ident.TypeUnknown {
		return "", fmt.Errorf("unrecognized identifier format: %q", id)
	}
	return filepath.Join(d.cfg.PapersDir, rawDir, ident.Slug(idType, norm)+".pdf"), nil
}

// Download acquires the PDF for meta. It fails with a *DownloadError when
// every strategy and fallback is exhausted.
func (d *Downloader) Download(ctx context.Context, meta types.PaperMetadata) (types.ArtifactHandle, error) {
	id := meta.Identifier
	idType, norm := ident.Classify(string(id))
	if idType == ident.TypeUnknown {
		return failedHandle(id), &DownloadError{Identifier: id, State: StateStart, Reason: "unrecognized identifier"}
	}
	slug := ident.Slug(idType, norm)
	destPath := filepath.Join(d.cfg.PapersDir, rawDir, slug+".pdf")
	log := d.logger.With().Str("identifier", string(id)).Logger()

	for _, dir := range []string{
		filepath.Join(d.cfg.PapersDir, rawDir),
		filepath.Join(d.cfg.PapersDir, metadataDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failedHandle(id), &DownloadError{Identifier: id, State: StateStart, Reason: "creating papers directory", Err: err}
		}
	}

	if h, ok := d.cached(destPath, id); ok {
		log.Debug().Str("path", destPath).Msg("artifact already on disk")
		d.writeMetadata(meta, slug, log)
		return h, nil
	}

	var browserErr *DownloadError
	if d.factory != nil {
		landing := ident.LandingURL(idType, norm)
		if landing == "" {
			landing = meta.SourceURL
		}
		err := d.viaBrowser(ctx, id, landing, destPath, log)
		if err == nil {
			d.writeMetadata(meta, slug, log)
			return d.handle(id, destPath, "browser"), nil
		}
		if ctx.Err() != nil {
			return failedHandle(id), err
		}
		errors.As(err, &browserErr)
		log.Warn().Err(err).Msg("browser acquisition failed")
	}

	if d.cfg.HTTPFallback {
		src, err := d.fallback.fetch(ctx, meta, destPath)
		if err == nil {
			if verr := d.verifyFile(destPath); verr != nil {
				os.Remove(destPath)
				err = verr
			}
		}
		if err == nil {
			log.Info().Str("source", src).Msg("acquired via direct download")
			d.writeMetadata(meta, slug, log)
			return d.handle(id, destPath, src), nil
		}
		log.Warn().Err(err).Msg("direct download failed")
		if browserErr == nil {
			return failedHandle(id), &DownloadError{Identifier: id, State: StateFailed, Reason: "direct download failed", Err: err}
		}
		browserErr.Err = errors.Join(browserErr.Err, err)
	}

	if browserErr == nil {
		browserErr = &DownloadError{Identifier: id, State: StateStart, Reason: "no acquisition route configured"}
	}
	return failedHandle(id), browserErr
}

// viaBrowser walks START → PAGE_LOADED → BUTTON_LOCATED →
// DOWNLOAD_TRIGGERED → FILE_VERIFIED. Any failure ends in FAILED, carrying
// the state it was reached from.
func (d *Downloader) viaBrowser(ctx context.Context, id types.PaperIdentifier, landing, destPath string, log zerolog.Logger) error {
	state := StateStart
	fail := func(reason string, err error) error {
		log.Debug().Str("state", state.String()).Str("reason", reason).Err(err).Msg("download state machine failed")
		return &DownloadError{Identifier: id, State: state, Reason: reason, Err: err}
	}
	advance := func(next State) {
		log.Debug().Str("from", state.String()).Str("to", next.String()).Msg("download state")
		state = next
	}

	drv, err := d.session(ctx)
	if err != nil {
		return fail("starting browser session", err)
	}
	if landing == "" {
		return fail("no landing page", nil)
	}
	if err := drv.Navigate(ctx, landing); err != nil {
		return fail("loading landing page", err)
	}
	advance(StatePageLoaded)

	since := d.now()
	triggered, err := d.runStrategies(ctx, drv, log, advance)
	if err != nil {
		return fail("clicking download control", err)
	}
	if !triggered {
		current, err := drv.CurrentURL(ctx)
		if err != nil {
			current = landing
		}
		direct := publisherPDFURL(current, d.rules)
		if direct == "" {
			return fail("no download control located", nil)
		}
		log.Debug().Str("url", direct).Msg("no control located, navigating to publisher PDF URL")
		since = d.now()
		if err := drv.Navigate(ctx, direct); err != nil {
			return fail("navigating to publisher PDF URL", err)
		}
		advance(StateButtonLocated)
	}
	advance(StateDownloadTriggered)

	path, err := drv.WaitForDownload(ctx, since, d.cfg.Browser.DownloadTimeout)
	if err != nil {
		return fail("waiting for download", err)
	}
	data, err := drv.ReadDownloadedFile(path)
	if err != nil {
		return fail("reading downloaded file", err)
	}
	if err := checkPDF(data); err != nil {
		os.Remove(path)
		return fail("verifying downloaded file", err)
	}
	if err := writeAtomic(destPath, data); err != nil {
		return fail("storing artifact", err)
	}
	os.Remove(path)
	if err := d.verifyFile(destPath); err != nil {
		os.Remove(destPath)
		return fail("verifying downloaded file", err)
	}
	advance(StateFileVerified)
	return nil
}

// runStrategies tries each strategy in order. A strategy only counts once
// every step was located and clicked; a missing later step moves on to the
// next strategy.
func (d *Downloader) runStrategies(ctx context.Context, drv Driver, log zerolog.Logger, advance func(State)) (bool, error) {
	timeout := d.cfg.Browser.LocatorTimeout
	located := false
	for _, s := range d.strategies {
		ok := true
		for i, loc := range s.Steps {
			el, err := drv.WaitForElement(ctx, loc, timeout)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				log.Debug().Str("strategy", s.Name).Str("locator", loc.Name).Msg("locator not found")
				ok = false
				break
			}
			if i == 0 && !located {
				located = true
				advance(StateButtonLocated)
			}
			if err := drv.Click(ctx, el); err != nil {
				log.Debug().Err(err).Str("strategy", s.Name).Str("locator", loc.Name).Msg("click failed")
				ok = false
				break
			}
		}
		if ok && len(s.Steps) > 0 {
			log.Debug().Str("strategy", s.Name).Msg("download control clicked")
			return true, nil
		}
	}
	return false, nil
}

func (d *Downloader) session(ctx context.Context) (Driver, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.driver != nil {
		return d.driver, nil
	}
	drv, err := d.factory(ctx)
	if err != nil {
		return nil, err
	}
	d.driver = drv
	return drv, nil
}

// Close releases the browser session if one was opened.
func (d *Downloader) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.driver == nil {
		return nil
	}
	err := d.driver.Close()
	d.driver = nil
	return err
}

// cached returns a handle for an artifact already on disk that verifies.
func (d *Downloader) cached(path string, id types.PaperIdentifier) (types.ArtifactHandle, bool) {
	if _, err := os.Stat(path); err != nil {
		return types.ArtifactHandle{}, false
	}
	if err := d.verifyFile(path); err != nil {
		return types.ArtifactHandle{}, false
	}
	return d.handle(id, path, "cache"), true
}

func (d *Downloader) verifyFile(path string) error {
	head, err := readHead(path, 1024)
	if err != nil {
		return err
	}
	if err := checkPDF(head); err != nil {
		return err
	}
	if d.cfg.StrictPDF {
		if _, err := validatePDFFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) handle(id types.PaperIdentifier, path, source string) types.ArtifactHandle {
	h := types.ArtifactHandle{Identifier: id, Path: path, Status: types.DownloadSucceeded, Source: source}
	if info, err := os.Stat(path); err == nil {
		h.SizeBytes = info.Size()
	}
	return h
}

func failedHandle(id types.PaperIdentifier) types.ArtifactHandle {
	return types.ArtifactHandle{Identifier: id, Status: types.DownloadFailed}
}

// writeMetadata stores meta next to the artifact as YAML. Failures are
// logged only; the PDF is what downstream stages need.
func (d *Downloader) writeMetadata(meta types.PaperMetadata, slug string, log zerolog.Logger) {
	data, err := yaml.Marshal(meta)
	if err == nil {
		err = os.WriteFile(filepath.Join(d.cfg.PapersDir, metadataDir, slug+".yaml"), data, 0o644)
	}
	if err != nil {
		log.Warn().Err(err).Msg("writing metadata sidecar")
	}
}

// ReadMetadata loads a sidecar written by a previous download.
func ReadMetadata(papersDir string, id types.PaperIdentifier) (types.PaperMetadata, error) {
	idType, norm := ident.Classify(string(id))
	if idType == ident.TypeUnknown {
		return types.PaperMetadata{}, fmt.Errorf("unrecognized identifier format: %q", id)
	}
	data, err := os.ReadFile(filepath.Join(papersDir, metadataDir, ident.Slug(idType, norm)+".yaml"))
	if err != nil {
		return types.PaperMetadata{}, err
	}
	var meta types.PaperMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return types.PaperMetadata{}, err
	}
	return meta, nil
}

// Remove deletes a stored artifact. Missing files are not an error.
func Remove(h types.ArtifactHandle) error {
	if h.Path == "" || !strings.HasSuffix(h.Path, ".pdf") {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func writeAtomic(destPath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing artifact: %w", errors.Join(werr, cerr))
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
