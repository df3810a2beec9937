// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/propextract/internal/httputil"
	"github.com/pdiddy/propextract/internal/ident"
	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/pkg/types"
)

// httpFallback fetches a PDF over plain HTTP when the browser route fails,
// trying the OpenAlex open-access copy and then any publisher rule.
type httpFallback struct {
	client    *http.Client
	userAgent string
	mailto    string
	policy    retry.Policy
	rules     []PublisherRule
}

type pdfSource struct {
	name string
	url  string
}

func (f *httpFallback) sources(ctx context.Context, meta types.PaperMetadata) []pdfSource {
	var out []pdfSource
	idType, id := ident.Classify(string(meta.Identifier))
	if idType == ident.TypeDOI {
		if oa, err := f.resolveOpenAlex(ctx, id); err == nil && oa != "" {
			out = append(out, pdfSource{name: "openalex", url: oa})
		}
	}
	if u := publisherPDFURL(meta.SourceURL, f.rules); u != "" {
		out = append(out, pdfSource{name: "publisher", url: u})
	}
	if idType == ident.TypeURL && strings.HasSuffix(strings.ToLower(string(id)), ".pdf") {
		out = append(out, pdfSource{name: "url", url: string(id)})
	}
	return out
}

// fetch tries each source in turn, leaving a verified PDF at destPath.
func (f *httpFallback) fetch(ctx context.Context, meta types.PaperMetadata, destPath string) (string, error) {
	srcs := f.sources(ctx, meta)
	if len(srcs) == 0 {
		return "", errors.New("no direct PDF source")
	}
	var errs []error
	for _, src := range srcs {
		if err := f.downloadFile(ctx, src.url, destPath); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
			continue
		}
		return src.name, nil
	}
	return "", errors.Join(errs...)
}

// downloadFile fetches url to destPath through a temporary file that is
// renamed only once the content passes the PDF check.
func (f *httpFallback) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.policy)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	head, err := readHead(tmpPath, 1024)
	if err == nil {
		err = checkPDF(head)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// publisherPDFURL applies the first rule whose host matches landing.
func publisherPDFURL(landing string, rules []PublisherRule) string {
	if landing == "" {
		return ""
	}
	u, err := url.Parse(landing)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, r := range rules {
		if host == r.Host || strings.HasSuffix(host, "."+r.Host) {
			if strings.HasSuffix(u.Path, r.Suffix) {
				return landing
			}
			return strings.TrimRight(landing, "/") + r.Suffix
		}
	}
	return ""
}
