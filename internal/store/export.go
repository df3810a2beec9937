// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportEntry is one record in an export file.
type ExportEntry struct {
	PaperID      string       `json:"paper_id" yaml:"paper_id"`
	PropertyType string       `json:"property_type" yaml:"property_type"`
	PropertyName string       `json:"property_name,omitempty" yaml:"property_name,omitempty"`
	Material     string       `json:"material" yaml:"material"`
	Value        float64      `json:"value" yaml:"value"`
	Unit         string       `json:"unit" yaml:"unit"`
	Temperature  float64      `json:"temperature" yaml:"temperature"`
	Condition    string       `json:"condition,omitempty" yaml:"condition,omitempty"`
	Paper        *ExportPaper `json:"paper,omitempty" yaml:"paper,omitempty"`
}

// ExportPaper holds the paper-level fields included in each export entry.
type ExportPaper struct {
	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
}

const exportLimit = 100000

// ExportYAML writes the index to dir/export.yaml, applying the same
// filters as Retrieve. It returns the path written.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the index to dir/export.json, applying the same
// filters as Retrieve. It returns the path written.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	opts.MaxResults = exportLimit
	results, err := s.Retrieve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(results))
	for i, r := range results {
		entries[i] = ExportEntry{
			PaperID:      string(r.SourceIdentifier),
			PropertyType: string(r.PropertyType),
			PropertyName: r.PropertyName,
			Material:     r.Material,
			Value:        r.Value,
			Unit:         r.Unit,
			Temperature:  r.Temperature,
			Condition:    r.Condition,
		}
		if r.PaperTitle != "" || len(r.PaperAuthors) > 0 {
			entries[i].Paper = &ExportPaper{
				Title:   r.PaperTitle,
				Authors: r.PaperAuthors,
			}
		}
	}
	return entries, nil
}
