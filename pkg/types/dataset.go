// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PaperOutcome is the final state of one paper in a run.
type PaperOutcome string

const (
	OutcomeSucceeded PaperOutcome = "succeeded"
	OutcomeFailed    PaperOutcome = "failed"
)

// PaperReport summarises what a run did with one paper.
type PaperReport struct {
	Identifier PaperIdentifier `json:"identifier" yaml:"identifier"`
	Title      string          `json:"title,omitempty" yaml:"title,omitempty"`
	Outcome    PaperOutcome    `json:"outcome" yaml:"outcome"`

	// Stage is the stage that failed; empty on success.
	Stage string `json:"stage,omitempty" yaml:"stage,omitempty"`

	// ArtifactSource is the route the PDF came through (see ArtifactHandle.Source).
	ArtifactSource string `json:"artifact_source,omitempty" yaml:"artifact_source,omitempty"`

	Candidates int `json:"candidates" yaml:"candidates"`
	Accepted   int `json:"accepted" yaml:"accepted"`
	Rejected   int `json:"rejected" yaml:"rejected"`

	// Truncated reports whether the excerpt hit the character budget.
	Truncated bool `json:"truncated" yaml:"truncated"`
}

// DatasetDocument is the serialized form of a run's unified dataset.
type DatasetDocument struct {
	RunID                    string                     `json:"run_id" yaml:"run_id"`
	ExtractionDate           time.Time                  `json:"extraction_date" yaml:"extraction_date"`
	PapersProcessed          int                        `json:"papers_processed" yaml:"papers_processed"`
	TotalPropertiesExtracted int                        `json:"total_properties_extracted" yaml:"total_properties_extracted"`
	Records                  []MechanicalPropertyRecord `json:"records" yaml:"records"`
	Rejections               []Rejection                `json:"rejections" yaml:"rejections"`
	Failures                 []PaperFailure             `json:"failures" yaml:"failures"`
	Papers                   []PaperReport              `json:"papers" yaml:"papers"`
}
