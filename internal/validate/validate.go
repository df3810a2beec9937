// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate turns untrusted candidate records into canonical
// mechanical property records. Candidates that cannot be normalized are
// returned as rejections with a reason; a rejection never stops the
// remaining candidates from being checked.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/propextract/pkg/types"
)

// DefaultMaterial is recorded when a candidate names no material.
const DefaultMaterial = "unspecified"

// Rejection codes. They label metrics, so the set stays small.
const (
	CodeEmptyProperty      = "empty_property"
	CodeMissingValue       = "missing_value"
	CodeInvalidValue       = "invalid_value"
	CodeBoundedValue       = "bounded_value"
	CodeMissingUnit        = "missing_unit"
	CodeUnknownUnit        = "unknown_unit"
	CodeUnitMismatch       = "unit_mismatch"
	CodeInvalidTemperature = "invalid_temperature"
	CodeSchema             = "schema"
)

// Rejection is a candidate that failed validation.
type Rejection = types.Rejection

// Validator applies the normalization tables and the canonical schema.
type Validator struct {
	defaultTemperature float64
	defaultMaterial    string
	now                func() time.Time
	schema             *validator.Validate
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the time source for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator. A zero DefaultTemperature means room
// temperature and an empty DefaultMaterial means DefaultMaterial.
func New(cfg types.ValidationConfig, opts ...Option) *Validator {
	v := &Validator{
		defaultTemperature: cfg.DefaultTemperature,
		defaultMaterial:    strings.TrimSpace(cfg.DefaultMaterial),
		now:                time.Now,
		schema:             validator.New(validator.WithRequiredStructEnabled()),
	}
	if v.defaultTemperature == 0 {
		v.defaultTemperature = RoomTemperature
	}
	if v.defaultMaterial == "" {
		v.defaultMaterial = DefaultMaterial
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// ValidateAll checks every candidate in order. Accepted records keep the
// candidates' relative order, as do rejections.
func (v *Validator) ValidateAll(cands []types.CandidateRecord) ([]types.MechanicalPropertyRecord, []Rejection) {
	var (
		accepted []types.MechanicalPropertyRecord
		rejected []Rejection
	)
	for _, c := range cands {
		rec, rej := v.Validate(c)
		if rej != nil {
			rejected = append(rejected, *rej)
			continue
		}
		accepted = append(accepted, rec)
	}
	return accepted, rejected
}

// Validate normalizes one candidate. The rules run in order: property name,
// numeric value, unit, temperature. Exactly one of the results is set.
func (v *Validator) Validate(c types.CandidateRecord) (types.MechanicalPropertyRecord, *Rejection) {
	reject := func(code, format string, args ...any) (types.MechanicalPropertyRecord, *Rejection) {
		return types.MechanicalPropertyRecord{}, &Rejection{
			Candidate: c,
			Code:      code,
			Reason:    fmt.Sprintf(format, args...),
		}
	}

	pt, ok := NormalizePropertyType(c.PropertyName)
	if !ok {
		return reject(CodeEmptyProperty, "property name %q is empty or unintelligible", c.PropertyName)
	}

	rawValue := strings.TrimSpace(c.Value)
	if isBlank(rawValue) {
		return reject(CodeMissingValue, "%s has no value", pt)
	}
	value, suffix, err := parseNumber(rawValue)
	switch {
	case errors.Is(err, errBounded):
		return reject(CodeBoundedValue, "value %q is a bound or range", rawValue)
	case err != nil:
		return reject(CodeInvalidValue, "value %q is not numeric", rawValue)
	}

	unitText := strings.TrimSpace(c.Unit)
	if isBlank(unitText) {
		unitText = suffix
	}
	if isBlank(unitText) {
		inferred, ok := inferUnit(pt)
		if !ok {
			return reject(CodeMissingUnit, "%s value %s has no unit", pt, rawValue)
		}
		unitText = inferred
	}
	rule, ok := lookupUnit(unitText)
	if !ok {
		return reject(CodeUnknownUnit, "unit %q is not recognised", unitText)
	}
	if want := expectedFamily(pt); want != familyUnknown && rule.family != want {
		return reject(CodeUnitMismatch, "unit %q does not measure %s", unitText, pt)
	}

	temp, present, err := parseTemperature(c.Temperature, c.TemperatureUnit)
	if err != nil {
		return reject(CodeInvalidTemperature, "%v", err)
	}
	if !present {
		temp = v.defaultTemperature
	}

	material := strings.TrimSpace(c.Material)
	if isBlank(material) {
		material = v.defaultMaterial
	}

	rec := types.MechanicalPropertyRecord{
		Material:         material,
		PropertyType:     pt,
		PropertyName:     strings.TrimSpace(c.PropertyName),
		Value:            roundTo(value*rule.factor, 6),
		Unit:             rule.canonical,
		Temperature:      temp,
		Condition:        strings.TrimSpace(c.Condition),
		SourceIdentifier: c.SourceIdentifier,
		ExtractedAt:      v.now().UTC(),
	}
	if err := v.schema.Struct(rec); err != nil {
		return reject(CodeSchema, "canonical record invalid: %v", err)
	}
	return rec, nil
}

// isBlank reports whether s is empty or one of the placeholder spellings
// the extraction service uses for "no data".
func isBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "n/a", "na", "-", "unknown":
		return true
	}
	return false
}
