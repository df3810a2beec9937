// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prepare turns a downloaded PDF into a bounded text excerpt for
// property extraction.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/propextract/pkg/types"
)

// DefaultCharBudget is the excerpt length used when none is configured.
const DefaultCharBudget = 8000

const textDir = "text"

// ErrNoExtractableText means the artifact yielded no usable text, e.g. a
// scanned PDF without a text layer.
var ErrNoExtractableText = errors.New("no extractable text")

// TextExtractor pulls plain text out of a PDF. Different backends (the
// native parser, markitdown in a container) implement this interface.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Preparer extracts text and cuts it to the character budget.
type Preparer struct {
	extractor TextExtractor
	budget    int
	cacheDir  string
	logger    zerolog.Logger
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithTextCache stores extracted text under papersDir/text and reuses it on
// later runs.
func WithTextCache(papersDir string) Option {
	return func(p *Preparer) {
		if papersDir != "" {
			p.cacheDir = filepath.Join(papersDir, textDir)
		}
	}
}

// WithLogger sets the logger used for text cache failures.
func WithLogger(l zerolog.Logger) Option { return func(p *Preparer) { p.logger = l } }

// New creates a Preparer. A budget of zero or less uses DefaultCharBudget.
func New(extractor TextExtractor, budget int, opts ...Option) *Preparer {
	if budget <= 0 {
		budget = DefaultCharBudget
	}
	p := &Preparer{extractor: extractor, budget: budget, logger: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Budget returns the configured character budget.
func (p *Preparer) Budget() int { return p.budget }

// Prepare extracts text from the artifact and returns at most budget
// characters of it, counted in runes. The excerpt is the leading prefix of
// the normalized text.
func (p *Preparer) Prepare(ctx context.Context, h types.ArtifactHandle) (types.PreparedText, error) {
	if h.Status != types.DownloadSucceeded || h.Path == "" {
		return types.PreparedText{}, fmt.Errorf("artifact for %s is not available", h.Identifier)
	}

	text, err := p.text(ctx, h.Path)
	if err != nil {
		return types.PreparedText{}, err
	}
	text = Normalize(text)
	if text == "" {
		return types.PreparedText{}, fmt.Errorf("%w in %s", ErrNoExtractableText, filepath.Base(h.Path))
	}

	excerpt, total, truncated := Truncate(text, p.budget)
	return types.PreparedText{
		Identifier:      h.Identifier,
		Excerpt:         excerpt,
		Truncated:       truncated,
		SourceCharRange: types.CharRange{Start: 0, End: len([]rune(excerpt))},
		TotalChars:      total,
	}, nil
}

func (p *Preparer) text(ctx context.Context, pdfPath string) (string, error) {
	var cachePath string
	if p.cacheDir != "" {
		base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
		cachePath = filepath.Join(p.cacheDir, base+".txt")
		if data, err := os.ReadFile(cachePath); err == nil && len(data) > 0 {
			return string(data), nil
		}
	}

	text, err := p.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", filepath.Base(pdfPath), err)
	}

	if cachePath != "" && strings.TrimSpace(text) != "" {
		err := os.MkdirAll(p.cacheDir, 0o755)
		if err == nil {
			err = os.WriteFile(cachePath, []byte(text), 0o644)
		}
		if err != nil {
			p.logger.Warn().Err(err).Str("path", cachePath).Msg("writing text cache")
		}
	}
	return text, nil
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Normalize unifies line endings, collapses runs of horizontal whitespace
// and blank lines, and trims the result.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = horizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate returns the first budget runes of s, the total rune count, and
// whether anything was cut.
func Truncate(s string, budget int) (excerpt string, total int, truncated bool) {
	runes := []rune(s)
	total = len(runes)
	if total <= budget {
		return s, total, false
	}
	return string(runes[:budget]), total, true
}
