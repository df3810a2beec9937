// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const downloadPollInterval = 250 * time.Millisecond

var (
	// ErrNotPDF means a downloaded file is empty or lacks the PDF header.
	ErrNotPDF = errors.New("downloaded file is not a PDF")

	// ErrDownloadTimeout means no completed download appeared in time.
	ErrDownloadTimeout = errors.New("timed out waiting for download")
)

var pdfMagic = []byte("%PDF-")

// partialSuffixes mark files the browser is still writing.
var partialSuffixes = []string{".crdownload", ".tmp", ".part"}

// checkPDF reports whether data looks like a PDF document.
func checkPDF(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrNotPDF)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), pdfMagic) {
		return fmt.Errorf("%w: missing %%PDF- header", ErrNotPDF)
	}
	return nil
}

// validatePDFFile runs the pdfcpu validator over path in relaxed mode and
// returns the page count.
func validatePDFFile(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: counting pages: %v", ErrNotPDF, err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return pages, nil
}

func isPartial(name string) bool {
	for _, s := range partialSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// awaitDownload polls dir until a completed file modified at or after since
// appears and no partial downloads remain. The newest such file wins.
func awaitDownload(ctx context.Context, dir string, since time.Time, timeout, interval time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	// Filesystem mtimes can be coarser than the wall clock.
	since = since.Add(-time.Second)

	for {
		path, pending, err := scanDownloads(dir, since)
		if err != nil {
			return "", err
		}
		if path != "" && !pending {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w after %s in %s", ErrDownloadTimeout, timeout, dir)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

func scanDownloads(dir string, since time.Time) (newest string, pending bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("reading download directory: %w", err)
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if isPartial(e.Name()) {
			pending = true
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 || info.ModTime().Before(since) {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(found) == 0 {
		return "", pending, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	return found[0].path, pending, nil
}
