// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/propextract/pkg/types"
)

func TestNewLoggerTo_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, types.LoggingConfig{Level: "info", Format: "json"})
	logger = WithRunContext(logger, "run-1")
	WithPaperContext(logger, "10.1/x").Info().Str("stage", "acquire").Msg("download failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "10.1/x", entry["paper_id"])
	assert.Equal(t, "acquire", entry["stage"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerTo_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, types.LoggingConfig{Level: "warn", Format: "json"})
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLoggerTo_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, types.LoggingConfig{Format: "console"})
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()
	m.RecordPaper("succeeded")
	m.RecordPaper("succeeded")
	m.RecordPaper("failed")
	m.RecordValidation(3, []string{"missing_unit", "missing_unit", "unknown_unit"})
	m.RecordRetry("metadata")
	m.ObserveStage("extract", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Papers.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Papers.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsAccepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsRejected.WithLabelValues("missing_unit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("metadata")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordPaper("failed")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Papers.WithLabelValues("failed")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordPaper("succeeded")

	path := filepath.Join(t.TempDir(), "metrics", "propextract.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `propextract_papers_total{outcome="succeeded"} 1`)
}
