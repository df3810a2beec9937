// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prepare

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/propextract/pkg/types"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func handleFor(t *testing.T) types.ArtifactHandle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw", "10.3390_cryst9110586.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return types.ArtifactHandle{Identifier: "10.3390/cryst9110586", Path: path, Status: types.DownloadSucceeded}
}

func TestPrepare_ShortTextNotTruncated(t *testing.T) {
	p := New(&fakeExtractor{text: "Yield strength was 250 MPa."}, 100)
	pt, err := p.Prepare(context.Background(), handleFor(t))
	require.NoError(t, err)

	assert.Equal(t, "Yield strength was 250 MPa.", pt.Excerpt)
	assert.False(t, pt.Truncated)
	assert.Equal(t, types.CharRange{Start: 0, End: 27}, pt.SourceCharRange)
	assert.Equal(t, 27, pt.TotalChars)
	assert.Equal(t, types.PaperIdentifier("10.3390/cryst9110586"), pt.Identifier)
}

func TestPrepare_TruncatesToBudgetInRunes(t *testing.T) {
	text := strings.Repeat("σ", 50) + strings.Repeat("a", 50)
	p := New(&fakeExtractor{text: text}, 60)
	pt, err := p.Prepare(context.Background(), handleFor(t))
	require.NoError(t, err)

	assert.True(t, pt.Truncated)
	assert.Len(t, []rune(pt.Excerpt), 60)
	assert.True(t, strings.HasPrefix(text, pt.Excerpt))
	assert.Equal(t, 100, pt.TotalChars)
	assert.Equal(t, types.CharRange{Start: 0, End: 60}, pt.SourceCharRange)
}

func TestPrepare_DefaultBudget(t *testing.T) {
	p := New(&fakeExtractor{text: strings.Repeat("x", 9000)}, 0)
	assert.Equal(t, DefaultCharBudget, p.Budget())

	pt, err := p.Prepare(context.Background(), handleFor(t))
	require.NoError(t, err)
	assert.Len(t, pt.Excerpt, 8000)
}

func TestPrepare_NoExtractableText(t *testing.T) {
	for _, text := range []string{"", "   \n\t\n  "} {
		p := New(&fakeExtractor{text: text}, 100)
		_, err := p.Prepare(context.Background(), handleFor(t))
		assert.ErrorIs(t, err, ErrNoExtractableText)
	}
}

func TestPrepare_ExtractorError(t *testing.T) {
	p := New(&fakeExtractor{err: errors.New("bad xref")}, 100)
	_, err := p.Prepare(context.Background(), handleFor(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad xref")
	assert.NotErrorIs(t, err, ErrNoExtractableText)
}

func TestPrepare_FailedArtifact(t *testing.T) {
	p := New(&fakeExtractor{text: "x"}, 100)
	_, err := p.Prepare(context.Background(), types.ArtifactHandle{Identifier: "10.1/x", Status: types.DownloadFailed})
	assert.Error(t, err)
}

func TestPrepare_TextCache(t *testing.T) {
	h := handleFor(t)
	papersDir := filepath.Dir(filepath.Dir(h.Path))
	ext := &fakeExtractor{text: "Hardness 95 HV"}
	p := New(ext, 100, WithTextCache(papersDir))

	_, err := p.Prepare(context.Background(), h)
	require.NoError(t, err)
	pt, err := p.Prepare(context.Background(), h)
	require.NoError(t, err)

	assert.Equal(t, 1, ext.calls)
	assert.Equal(t, "Hardness 95 HV", pt.Excerpt)
	_, err = os.Stat(filepath.Join(papersDir, "text", "10.3390_cryst9110586.txt"))
	assert.NoError(t, err)
}

func TestPrepare_TextCacheWriteFailureLogged(t *testing.T) {
	h := handleFor(t)
	papersDir := filepath.Dir(filepath.Dir(h.Path))
	// A file where the cache directory should be makes the write fail.
	require.NoError(t, os.WriteFile(filepath.Join(papersDir, "text"), nil, 0o644))

	var buf strings.Builder
	p := New(&fakeExtractor{text: "Hardness 95 HV"}, 100,
		WithTextCache(papersDir), WithLogger(zerolog.New(&buf)))

	pt, err := p.Prepare(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "Hardness 95 HV", pt.Excerpt)
	assert.Contains(t, buf.String(), "writing text cache")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a  b\t\tc", "a b c"},
		{"line1\r\nline2", "line1\nline2"},
		{"p1\n\n\n\n\np2", "p1\n\np2"},
		{"  padded  \n", "padded"},
		{"a b", "a b"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pdf")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	_, err := PDFExtractor{}.ExtractText(context.Background(), path)
	assert.Error(t, err)
}

type fakeRuntime struct {
	hasImage bool
	output   string
}

func (f *fakeRuntime) Name() string                   { return "docker" }
func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if !f.hasImage {
		return errors.New("image " + image + " not found")
	}
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, _ string, stdin io.Reader, stdout io.Writer) error {
	if _, err := io.ReadAll(stdin); err != nil {
		return err
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

func TestMarkitdownExtractor(t *testing.T) {
	h := handleFor(t)

	_, err := NewMarkitdownExtractor(context.Background(), &fakeRuntime{}, "")
	require.Error(t, err)

	m, err := NewMarkitdownExtractor(context.Background(), &fakeRuntime{hasImage: true, output: "| Alloy | YS |\n| AZ31 | 250 MPa |"}, "")
	require.NoError(t, err)
	text, err := m.ExtractText(context.Background(), h.Path)
	require.NoError(t, err)
	assert.Contains(t, text, "250 MPa")
}

func TestNewExtractor_UnknownBackend(t *testing.T) {
	_, err := NewExtractor(context.Background(), "ocr", "")
	assert.Error(t, err)

	e, err := NewExtractor(context.Background(), "native", "")
	require.NoError(t, err)
	assert.IsType(t, PDFExtractor{}, e)
}
