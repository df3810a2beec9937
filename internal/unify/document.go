// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/propextract/pkg/types"
)

// Document builds the output document for a run. Nil slices are written
// as empty lists.
func (d *Dataset) Document(runID string, date time.Time, rejections []types.Rejection, failures []types.PaperFailure, papers []types.PaperReport) types.DatasetDocument {
	doc := types.DatasetDocument{
		RunID:                    runID,
		ExtractionDate:           date.UTC(),
		PapersProcessed:          len(papers),
		TotalPropertiesExtracted: d.Len(),
		Records:                  d.Records(),
		Rejections:               rejections,
		Failures:                 failures,
		Papers:                   papers,
	}
	if doc.Rejections == nil {
		doc.Rejections = []types.Rejection{}
	}
	if doc.Failures == nil {
		doc.Failures = []types.PaperFailure{}
	}
	if doc.Papers == nil {
		doc.Papers = []types.PaperReport{}
	}
	return doc
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Marshal encodes doc as YAML when path ends in .yaml or .yml and as
// indented JSON otherwise.
func Marshal(path string, doc types.DatasetDocument) ([]byte, error) {
	if isYAML(path) {
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes doc to path, creating parent directories. The file is
// replaced atomically so a reader never sees a partial document.
func WriteFile(path string, doc types.DatasetDocument) error {
	data, err := Marshal(path, doc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a document written by WriteFile.
func ReadFile(path string) (types.DatasetDocument, error) {
	var doc types.DatasetDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading %s: %w", path, err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return doc, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
