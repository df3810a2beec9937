// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/propextract/internal/validate"
	"github.com/pdiddy/propextract/pkg/types"
)

var extractedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(paper, material string, pt types.PropertyType, value float64) types.MechanicalPropertyRecord {
	return types.MechanicalPropertyRecord{
		Material:         material,
		PropertyType:     pt,
		Value:            value,
		Unit:             "MPa",
		Temperature:      25,
		SourceIdentifier: types.PaperIdentifier(paper),
		ExtractedAt:      extractedAt,
	}
}

func TestDataset_LastWriteWins(t *testing.T) {
	d := NewDataset()
	d.Add(rec("10.x/paper1", "Steel A", types.PropertyYieldStrength, 250))
	added, replaced := d.Add(rec("10.x/paper1", "Steel A", types.PropertyYieldStrength, 275))

	assert.Equal(t, 0, added)
	assert.Equal(t, 1, replaced)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, 275.0, d.Records()[0].Value)
}

func TestDataset_OverwriteKeepsPosition(t *testing.T) {
	d := Merge(
		[]types.MechanicalPropertyRecord{
			rec("p1", "A", types.PropertyYieldStrength, 1),
			rec("p1", "A", types.PropertyTensileStrength, 2),
		},
		[]types.MechanicalPropertyRecord{
			rec("p2", "B", types.PropertyYieldStrength, 3),
			rec("p1", "A", types.PropertyYieldStrength, 4),
		},
	)
	got := d.Records()
	require.Len(t, got, 3)
	assert.Equal(t, []float64{4, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value})
}

func TestDataset_KeyComponentsDistinguish(t *testing.T) {
	d := NewDataset()
	added, _ := d.Add(
		rec("p1", "A", types.PropertyYieldStrength, 1),
		rec("p2", "A", types.PropertyYieldStrength, 1),
		rec("p1", "B", types.PropertyYieldStrength, 1),
		rec("p1", "A", types.PropertyHardness, 1),
	)
	assert.Equal(t, 4, added)
}

func TestDataset_ModulusDoesNotReplaceStrength(t *testing.T) {
	cand := func(name, value, unit string) types.CandidateRecord {
		return types.CandidateRecord{
			PropertyName:     name,
			Value:            value,
			Unit:             unit,
			Material:         "AZ31",
			SourceIdentifier: "10.x/paper1",
		}
	}
	recs, rejs := validate.New(types.ValidationConfig{}).ValidateAll([]types.CandidateRecord{
		cand("UTS", "265", "MPa"),
		cand("Tensile modulus", "45", "GPa"),
		cand("Tensile elongation", "14.5", "%"),
	})
	require.Empty(t, rejs)

	d := NewDataset()
	added, replaced := d.Add(recs...)
	assert.Equal(t, 3, added)
	assert.Equal(t, 0, replaced)

	byType := map[types.PropertyType]float64{}
	for _, r := range d.Records() {
		byType[r.PropertyType] = r.Value
	}
	assert.Equal(t, 265.0, byType[types.PropertyTensileStrength])
	assert.Equal(t, 45000.0, byType[types.PropertyOther])
	assert.Equal(t, 14.5, byType[types.PropertyElongation])
}

func TestDataset_RecordsIsACopy(t *testing.T) {
	d := NewDataset()
	d.Add(rec("p1", "A", types.PropertyYieldStrength, 1))
	d.Records()[0].Value = 99
	assert.Equal(t, 1.0, d.Records()[0].Value)
}

func TestDocument_Counts(t *testing.T) {
	d := Merge([]types.MechanicalPropertyRecord{rec("p1", "A", types.PropertyYieldStrength, 1)})
	papers := []types.PaperReport{
		{Identifier: "p1", Outcome: types.OutcomeSucceeded, Accepted: 1},
		{Identifier: "p2", Outcome: types.OutcomeFailed, Stage: "acquire"},
	}
	doc := d.Document("run-1", extractedAt, nil, nil, papers)

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 2, doc.PapersProcessed)
	assert.Equal(t, 1, doc.TotalPropertiesExtracted)
	assert.NotNil(t, doc.Rejections)
	assert.NotNil(t, doc.Failures)
}

func TestWriteFile_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	d := Merge([]types.MechanicalPropertyRecord{rec("10.x/paper1", "Steel A", types.PropertyYieldStrength, 250)})
	doc := d.Document("run-1", extractedAt,
		[]types.Rejection{{Candidate: types.CandidateRecord{PropertyName: "YS"}, Code: "missing_unit", Reason: "no unit"}},
		[]types.PaperFailure{{Identifier: "p2", Stage: "acquire", Reason: "download failed"}},
		[]types.PaperReport{{Identifier: "10.x/paper1", Outcome: types.OutcomeSucceeded, Accepted: 1}},
	)

	for _, name := range []string{"out/results.json", "out/results.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, doc))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "total_properties_extracted")
			if strings.HasSuffix(name, ".json") {
				assert.True(t, strings.HasPrefix(string(data), "{"))
			}

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, doc.RunID, got.RunID)
			assert.True(t, doc.ExtractionDate.Equal(got.ExtractionDate))
			require.Len(t, got.Records, 1)
			assert.Equal(t, 250.0, got.Records[0].Value)
			assert.Equal(t, types.PropertyYieldStrength, got.Records[0].PropertyType)
			assert.Equal(t, "missing_unit", got.Rejections[0].Code)
			assert.Equal(t, "acquire", got.Failures[0].Stage)
		})
	}

	matches, err := filepath.Glob(filepath.Join(dir, "out", ".dataset-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
