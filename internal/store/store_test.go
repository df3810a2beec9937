// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/propextract/pkg/types"
)

// --- test helpers ---

var extractedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tmpDir, "papers", "metadata"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := types.StoreConfig{
		Dir:        filepath.Join(tmpDir, "index"),
		MaxResults: 20,
	}
	store, err := NewStore(cfg, filepath.Join(tmpDir, "papers"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func writePaperMeta(t *testing.T, tmpDir, slug string, meta types.PaperMetadata) {
	t.Helper()
	data, err := yaml.Marshal(&meta)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, "papers", "metadata", slug+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func record(paper, material string, pt types.PropertyType, value float64, unit string) types.MechanicalPropertyRecord {
	return types.MechanicalPropertyRecord{
		Material:         material,
		PropertyType:     pt,
		PropertyName:     string(pt),
		Value:            value,
		Unit:             unit,
		Temperature:      25,
		SourceIdentifier: types.PaperIdentifier(paper),
		ExtractedAt:      extractedAt,
	}
}

func sampleDocument(runID string) types.DatasetDocument {
	return types.DatasetDocument{
		RunID:          runID,
		ExtractionDate: extractedAt,
		Records: []types.MechanicalPropertyRecord{
			record("10.1234/paper1", "AZ31", types.PropertyYieldStrength, 180, "MPa"),
			record("10.1234/paper1", "AZ31", types.PropertyTensileStrength, 260, "MPa"),
			record("10.1234/paper1", "AZ31", types.PropertyElongation, 15, "%"),
			record("10.1234/paper2", "Ti-6Al-4V", types.PropertyHardness, 340, "HV"),
			record("10.1234/paper2", "Ti-6Al-4V ELI", types.PropertyYieldStrength, 830, "MPa"),
		},
		Rejections: []types.Rejection{
			{Candidate: types.CandidateRecord{PropertyName: "YS", Value: "250", SourceIdentifier: "10.1234/paper1"}, Code: "missing_unit", Reason: "no unit"},
		},
		Failures: []types.PaperFailure{
			{Identifier: "10.1234/paper3", Stage: "acquire", Reason: "download failed"},
		},
		Papers: []types.PaperReport{
			{Identifier: "10.1234/paper1", Title: "Study X", Outcome: types.OutcomeSucceeded, Accepted: 3, Rejected: 1},
			{Identifier: "10.1234/paper2", Title: "Study Y", Outcome: types.OutcomeSucceeded, Accepted: 2},
			{Identifier: "10.1234/paper3", Outcome: types.OutcomeFailed, Stage: "acquire"},
		},
		PapersProcessed:          3,
		TotalPropertiesExtracted: 5,
	}
}

func ingestHelper(t *testing.T, store *Store, doc types.DatasetDocument) IngestSummary {
	t.Helper()
	var buf bytes.Buffer
	summary, err := store.Ingest(context.Background(), doc, &buf)
	if err != nil {
		t.Fatal(err)
	}
	return summary
}

// --- tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	for _, table := range []string{"papers", "records", "rejections", "runs"} {
		var name string
		err := store.db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNewStoreCreatesDBFile(t *testing.T) {
	_, tmpDir := testSetup(t)

	if _, err := os.Stat(filepath.Join(tmpDir, "index", dbFile)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestIngest(t *testing.T) {
	store, _ := testSetup(t)

	summary := ingestHelper(t, store, sampleDocument("run-1"))
	if summary.Indexed != 3 {
		t.Errorf("Indexed = %d, want 3", summary.Indexed)
	}
	if summary.Total() != 3 {
		t.Errorf("Total = %d, want 3", summary.Total())
	}

	var count int
	store.db.QueryRow(`SELECT count(*) FROM records`).Scan(&count)
	if count != 5 {
		t.Errorf("records = %d, want 5", count)
	}
	store.db.QueryRow(`SELECT count(*) FROM rejections`).Scan(&count)
	if count != 1 {
		t.Errorf("rejections = %d, want 1", count)
	}
}

func TestIngestUsesMetadataSidecar(t *testing.T) {
	store, tmpDir := testSetup(t)
	writePaperMeta(t, tmpDir, "10.1234_paper1", types.PaperMetadata{
		Identifier: "10.1234/paper1",
		Title:      "Effect of ECAP on AZ31",
		Authors:    []string{"Jane Doe", "Wei Zhang"},
		Journal:    "Crystals",
	})

	ingestHelper(t, store, sampleDocument("run-1"))

	results, err := store.Retrieve(context.Background(), QueryOptions{PaperID: "10.1234/paper1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].PaperTitle != "Effect of ECAP on AZ31" {
		t.Errorf("PaperTitle = %q", results[0].PaperTitle)
	}
	if len(results[0].PaperAuthors) != 2 {
		t.Errorf("PaperAuthors = %v", results[0].PaperAuthors)
	}

	// Without a sidecar the report title is used.
	results, _ = store.Retrieve(context.Background(), QueryOptions{PaperID: "10.1234/paper2"})
	if len(results) == 0 || results[0].PaperTitle != "Study Y" {
		t.Errorf("paper2 results = %+v", results)
	}
}

func TestIngestStoresAllFields(t *testing.T) {
	store, _ := testSetup(t)
	doc := sampleDocument("run-1")
	doc.Records[0].Condition = "as-rolled"
	ingestHelper(t, store, doc)

	results, err := store.Retrieve(context.Background(), QueryOptions{
		PaperID: "10.1234/paper1",
		Type:    types.PropertyYieldStrength,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if got.Value != 180 || got.Unit != "MPa" || got.Temperature != 25 {
		t.Errorf("value/unit/temperature = %v %s %v", got.Value, got.Unit, got.Temperature)
	}
	if got.Condition != "as-rolled" {
		t.Errorf("Condition = %q", got.Condition)
	}
	if !got.ExtractedAt.Equal(extractedAt) {
		t.Errorf("ExtractedAt = %v", got.ExtractedAt)
	}
	if got.RunID != "run-1" {
		t.Errorf("RunID = %q", got.RunID)
	}
}

func TestIngestSkipsKnownRun(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	summary := ingestHelper(t, store, sampleDocument("run-1"))
	if summary.Skipped != 3 || summary.Indexed != 0 {
		t.Errorf("summary = %+v, want all skipped", summary)
	}
}

func TestIngestReplacesPaperRows(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	doc := types.DatasetDocument{
		RunID:          "run-2",
		ExtractionDate: extractedAt,
		Records: []types.MechanicalPropertyRecord{
			record("10.1234/paper1", "AZ31", types.PropertyYieldStrength, 190, "MPa"),
		},
		Papers: []types.PaperReport{
			{Identifier: "10.1234/paper1", Outcome: types.OutcomeSucceeded, Accepted: 1},
		},
	}
	summary := ingestHelper(t, store, doc)
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}

	results, _ := store.Retrieve(context.Background(), QueryOptions{PaperID: "10.1234/paper1"})
	if len(results) != 1 || results[0].Value != 190 {
		t.Errorf("results = %+v, want the single re-extracted record", results)
	}
	rejs, err := store.Rejections(context.Background(), "10.1234/paper1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rejs) != 0 {
		t.Errorf("stale rejections remain: %+v", rejs)
	}
}

func TestIngestSummaryOutput(t *testing.T) {
	store, _ := testSetup(t)
	var buf bytes.Buffer
	if _, err := store.Ingest(context.Background(), sampleDocument("run-1"), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "indexing 10.1234/paper1 (3 records)") {
		t.Errorf("output missing per-paper line:\n%s", out)
	}
	if !strings.Contains(out, "indexed: 3, updated: 0, skipped: 0, failed: 0") {
		t.Errorf("output missing summary line:\n%s", out)
	}
}

func TestIngestWritesExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	if _, err := os.Stat(filepath.Join(tmpDir, "index", "export.yaml")); err != nil {
		t.Errorf("export.yaml not written: %v", err)
	}
}

func TestRetrieveByType(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	results, err := store.Retrieve(context.Background(), QueryOptions{Type: types.PropertyYieldStrength})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.PropertyType != types.PropertyYieldStrength {
			t.Errorf("unexpected type %s", r.PropertyType)
		}
	}
}

func TestRetrieveByMaterialSubstring(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	results, err := store.Retrieve(context.Background(), QueryOptions{Material: "ti-6al"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}

	results, _ = store.Retrieve(context.Background(), QueryOptions{Material: "%"})
	if len(results) != 0 {
		t.Errorf("wildcard must be matched literally, got %d results", len(results))
	}
}

func TestRetrieveSortOrder(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	results, err := store.Retrieve(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.SourceIdentifier > cur.SourceIdentifier {
			t.Errorf("results not sorted by paper at %d", i)
		}
		if prev.SourceIdentifier == cur.SourceIdentifier && prev.PropertyType > cur.PropertyType {
			t.Errorf("results not sorted by property type at %d", i)
		}
	}
}

func TestRetrieveRespectsMaxResults(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	results, _ := store.Retrieve(context.Background(), QueryOptions{MaxResults: 2})
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestCounts(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	counts, err := store.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[types.PropertyYieldStrength] != 2 || counts[types.PropertyHardness] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestExportJSON(t *testing.T) {
	store, _ := testSetup(t)
	ingestHelper(t, store, sampleDocument("run-1"))

	path, err := store.ExportJSON(context.Background(), QueryOptions{Type: types.PropertyHardness})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Unit != "HV" || entries[0].Material != "Ti-6Al-4V" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestIngestFile(t *testing.T) {
	store, tmpDir := testSetup(t)
	doc := sampleDocument("run-file")
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, "results.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	summary, err := store.IngestFile(context.Background(), path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Indexed != 3 {
		t.Errorf("Indexed = %d, want 3", summary.Indexed)
	}
}

func TestQueryOptionsIsEmpty(t *testing.T) {
	if !(QueryOptions{MaxResults: 5}).IsEmpty() {
		t.Error("MaxResults alone is not a filter")
	}
	if (QueryOptions{Material: "AZ31"}).IsEmpty() {
		t.Error("Material is a filter")
	}
}
