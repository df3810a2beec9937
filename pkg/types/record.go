// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// PropertyType is the closed set of mechanical properties the canonical
// schema recognises. Anything else maps to PropertyOther.
type PropertyType string

const (
	PropertyYieldStrength   PropertyType = "yield_strength"
	PropertyTensileStrength PropertyType = "tensile_strength"
	PropertyHardness        PropertyType = "hardness"
	PropertyElongation      PropertyType = "elongation"
	PropertyOther           PropertyType = "other"
)

// PropertyTypes lists every member of the enumeration in declaration order.
var PropertyTypes = []PropertyType{
	PropertyYieldStrength,
	PropertyTensileStrength,
	PropertyHardness,
	PropertyElongation,
	PropertyOther,
}

// Valid reports whether t is a member of the enumeration.
func (t PropertyType) Valid() bool {
	for _, p := range PropertyTypes {
		if p == t {
			return true
		}
	}
	return false
}

// CandidateRecord is one property entry as returned by the extraction
// service. Every field is a raw string; nothing here is trusted until it
// has passed validation.
type CandidateRecord struct {
	PropertyName     string            `json:"property_name" yaml:"property_name"`
	Value            string            `json:"value" yaml:"value"`
	Unit             string            `json:"unit" yaml:"unit"`
	Material         string            `json:"material" yaml:"material"`
	Temperature      string            `json:"temperature" yaml:"temperature"`
	TemperatureUnit  string            `json:"temperature_unit,omitempty" yaml:"temperature_unit,omitempty"`
	Condition        string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	StrainRate       string            `json:"strain_rate,omitempty" yaml:"strain_rate,omitempty"`
	SourceIdentifier PaperIdentifier   `json:"source_identifier" yaml:"source_identifier"`
	ConfidenceNotes  string            `json:"confidence_notes,omitempty" yaml:"confidence_notes,omitempty"`
	AdditionalInfo   map[string]string `json:"additional_info,omitempty" yaml:"additional_info,omitempty"`
}

// MechanicalPropertyRecord is the canonical, validated record shape.
type MechanicalPropertyRecord struct {
	Material         string          `json:"material" yaml:"material" validate:"required"`
	PropertyType     PropertyType    `json:"property_type" yaml:"property_type" validate:"required,oneof=yield_strength tensile_strength hardness elongation other"`
	PropertyName     string          `json:"property_name,omitempty" yaml:"property_name,omitempty"`
	Value            float64         `json:"value" yaml:"value"`
	Unit             string          `json:"unit" yaml:"unit" validate:"required"`
	Temperature      float64         `json:"temperature" yaml:"temperature"`
	Condition        string          `json:"condition,omitempty" yaml:"condition,omitempty"`
	SourceIdentifier PaperIdentifier `json:"source_identifier" yaml:"source_identifier" validate:"required"`
	ExtractedAt      time.Time       `json:"extracted_at" yaml:"extracted_at" validate:"required"`
}

// RecordKey is the deduplication key of a canonical record.
type RecordKey struct {
	SourceIdentifier PaperIdentifier
	PropertyType     PropertyType
	Material         string
}

// Key returns the record's deduplication key.
func (r MechanicalPropertyRecord) Key() RecordKey {
	return RecordKey{
		SourceIdentifier: r.SourceIdentifier,
		PropertyType:     r.PropertyType,
		Material:         r.Material,
	}
}

// Rejection records a candidate that failed validation and why.
type Rejection struct {
	Candidate CandidateRecord `json:"candidate" yaml:"candidate"`

	// Code is a short machine-readable category, e.g. "missing_unit".
	Code string `json:"code" yaml:"code"`

	// Reason is the human-readable explanation.
	Reason string `json:"reason" yaml:"reason"`
}

// PaperFailure records a paper abandoned by the pipeline.
type PaperFailure struct {
	Identifier PaperIdentifier `json:"identifier" yaml:"identifier"`
	Stage      string          `json:"stage" yaml:"stage"`
	Reason     string          `json:"reason" yaml:"reason"`
}
