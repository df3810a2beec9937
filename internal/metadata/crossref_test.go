// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/propextract/internal/retry"
	"github.com/pdiddy/propextract/pkg/types"
)

const sampleCrossRefJSON = `{
  "status": "ok",
  "message": {
    "DOI": "10.3390/cryst9110586",
    "title": ["Effect of ECAP on the Microstructure and Mechanical Properties of a Rolled Mg-2Y-0.6Nd-0.6Zr Magnesium Alloy"],
    "author": [
      {"given": "Jane", "family": "Doe"},
      {"given": "Wei", "family": "Zhang"},
      {"name": "Materials Consortium"}
    ],
    "publisher": "MDPI AG",
    "container-title": ["Crystals"],
    "URL": "https://www.mdpi.com/2073-4352/9/11/586",
    "published-online": {"date-parts": [[2019, 11, 8]]},
    "issued": {"date-parts": [[2019, 11]]}
  }
}`

var fastPolicy = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func newTestFetcher(ts *httptest.Server) *Fetcher {
	return NewFetcher(ts.Client(), types.MetadataConfig{
		BaseURL:           ts.URL + "/works",
		Mailto:            "lab@example.org",
		RequestsPerSecond: 1000,
	}, fastPolicy)
}

func TestFetch_Success(t *testing.T) {
	var gotPath, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleCrossRefJSON)
	}))
	defer ts.Close()

	m, err := newTestFetcher(ts).Fetch(context.Background(), "https://doi.org/10.3390/cryst9110586")
	require.NoError(t, err)

	assert.Equal(t, "/works/10.3390/cryst9110586", gotPath)
	assert.Equal(t, "propextract/0.1 (mailto:lab@example.org)", gotUA)

	assert.Equal(t, types.PaperIdentifier("10.3390/cryst9110586"), m.Identifier)
	assert.Contains(t, m.Title, "Effect of ECAP")
	assert.Equal(t, []string{"Jane Doe", "Wei Zhang", "Materials Consortium"}, m.Authors)
	assert.Equal(t, "MDPI AG", m.Publisher)
	assert.Equal(t, "Crystals", m.Journal)
	assert.Equal(t, "https://www.mdpi.com/2073-4352/9/11/586", m.SourceURL)
	assert.Equal(t, time.Date(2019, 11, 8, 0, 0, 0, 0, time.UTC), m.PublicationDate)
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, nil)
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), "10.9999/missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_RateLimitedExhausts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), "10.3390/cryst9110586")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_RecoversAfterServerError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sampleCrossRefJSON)
	}))
	defer ts.Close()

	m, err := newTestFetcher(ts).Fetch(context.Background(), "10.3390/cryst9110586")
	require.NoError(t, err)
	assert.Equal(t, "MDPI AG", m.Publisher)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_NonDOIIdentifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("server must not be called for non-DOI identifiers")
	}))
	defer ts.Close()

	_, err := newTestFetcher(ts).Fetch(context.Background(), "not-a-doi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCrossrefDate(t *testing.T) {
	tests := []struct {
		name  string
		parts [][]int
		want  time.Time
		ok    bool
	}{
		{"full", [][]int{{2020, 5, 17}}, time.Date(2020, 5, 17, 0, 0, 0, 0, time.UTC), true},
		{"year month", [][]int{{2020, 5}}, time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"year only", [][]int{{2020}}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"empty", nil, time.Time{}, false},
		{"null year", [][]int{{0}}, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := crossrefDate{DateParts: tt.parts}.time()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMetadata_FallbackSourceURL(t *testing.T) {
	m := crossrefWork{Title: []string{" Study X "}}.toMetadata("10.1/x")
	assert.Equal(t, "Study X", m.Title)
	assert.Equal(t, "https://doi.org/10.1/x", m.SourceURL)
}
