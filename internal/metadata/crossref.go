// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metadata resolves paper identifiers to bibliographic records
// through the CrossRef works API.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/propextract/internal/httputil"
	"github.com/pdiddy/propextract/internal/ident"
	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/pkg/types"
)

// DefaultBaseURL is the CrossRef works endpoint.
const DefaultBaseURL = "https://api.crossref.org/works/"

const (
	defaultUserAgent         = "propextract/0.1"
	defaultRequestsPerSecond = 2
)

var (
	// ErrNotFound means the identifier resolves to no record. It is permanent.
	ErrNotFound = errors.New("metadata not found")

	// ErrServiceUnavailable means the service kept failing transiently
	// until the retry policy gave up.
	ErrServiceUnavailable = errors.New("metadata service unavailable")
)

// Fetcher resolves identifiers against CrossRef. Requests are rate limited
// and retried under the configured policy.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	policy    retry.Policy
}

// NewFetcher builds a Fetcher from cfg. A nil client uses one with
// cfg.Timeout.
func NewFetcher(client *http.Client, cfg types.MetadataConfig, policy retry.Policy) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	limited := *client
	limited.Transport = &limitedTransport{
		next:    client.Transport,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
	return &Fetcher{
		client:    &limited,
		baseURL:   baseURL,
		userAgent: userAgent(cfg),
		policy:    policy,
	}
}

// userAgent builds the polite-pool User-Agent.
func userAgent(cfg types.MetadataConfig) string {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	if cfg.Mailto != "" && !strings.Contains(ua, "mailto:") {
		ua = fmt.Sprintf("%s (mailto:%s)", ua, cfg.Mailto)
	}
	return ua
}

// Fetch resolves id to its metadata. Unrecognised or non-DOI identifiers
// and 404 responses yield ErrNotFound; exhausted transient failures yield
// ErrServiceUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, id types.PaperIdentifier) (types.PaperMetadata, error) {
	idType, doi := ident.Classify(string(id))
	if idType != ident.TypeDOI {
		return types.PaperMetadata{}, fmt.Errorf("%w: %q is not a DOI", ErrNotFound, id)
	}

	req, err := http.NewRequest(http.MethodGet, f.baseURL+string(doi), nil)
	if err != nil {
		return types.PaperMetadata{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.policy)
	if err != nil {
		var se *httputil.StatusError
		switch {
		case errors.Is(err, retry.ErrExhausted):
			return types.PaperMetadata{}, fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, doi, err)
		case errors.As(err, &se) && se.Code == http.StatusNotFound:
			return types.PaperMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, doi)
		default:
			return types.PaperMetadata{}, fmt.Errorf("CrossRef request for %s: %w", doi, err)
		}
	}
	defer resp.Body.Close()

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return types.PaperMetadata{}, fmt.Errorf("parsing CrossRef response: %w", err)
	}
	return cr.Message.toMetadata(doi), nil
}

// limitedTransport waits on the rate limiter before every round trip, so
// retries are throttled along with first attempts.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (l *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := l.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	next := l.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	DOI             string           `json:"DOI"`
	Title           []string         `json:"title"`
	Abstract        string           `json:"abstract"`
	Author          []crossrefAuthor `json:"author"`
	Publisher       string           `json:"publisher"`
	ContainerTitle  []string         `json:"container-title"`
	URL             string           `json:"URL"`
	PublishedPrint  crossrefDate     `json:"published-print"`
	PublishedOnline crossrefDate     `json:"published-online"`
	Issued          crossrefDate     `json:"issued"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

// time converts CrossRef date-parts, which may carry year only, year and
// month, or a full date.
func (d crossrefDate) time() (time.Time, bool) {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == 0 {
		return time.Time{}, false
	}
	parts := d.DateParts[0]
	month, day := 1, 1
	if len(parts) >= 2 && parts[1] > 0 {
		month = parts[1]
	}
	if len(parts) >= 3 && parts[2] > 0 {
		day = parts[2]
	}
	return time.Date(parts[0], time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func (w crossrefWork) toMetadata(doi types.PaperIdentifier) types.PaperMetadata {
	m := types.PaperMetadata{
		Identifier: doi,
		Publisher:  w.Publisher,
		SourceURL:  w.URL,
		Abstract:   strings.TrimSpace(w.Abstract),
	}
	if len(w.Title) > 0 {
		m.Title = strings.TrimSpace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		m.Journal = w.ContainerTitle[0]
	}
	for _, a := range w.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			m.Authors = append(m.Authors, name)
		}
	}
	for _, d := range []crossrefDate{w.PublishedPrint, w.PublishedOnline, w.Issued} {
		if t, ok := d.time(); ok {
			m.PublicationDate = t
			break
		}
	}
	if m.SourceURL == "" {
		m.SourceURL = ident.DOIResolverBase + string(doi)
	}
	return m
}
