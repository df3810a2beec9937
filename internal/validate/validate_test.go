// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/propextract/pkg/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return New(types.ValidationConfig{}, WithClock(func() time.Time { return fixedNow }))
}

func candidate(name, value, unit string) types.CandidateRecord {
	return types.CandidateRecord{
		PropertyName:     name,
		Value:            value,
		Unit:             unit,
		Material:         "AZ31",
		SourceIdentifier: "10.1/paper1",
	}
}

func TestNormalizePropertyType_SynonymsAgree(t *testing.T) {
	tests := []struct {
		want  types.PropertyType
		names []string
	}{
		{types.PropertyYieldStrength, []string{"YS", "σy", "Yield Stress", "yield strength", "YIELD_STRENGTH", "0.2% proof stress", "Rp0.2", "Tensile yield strength"}},
		{types.PropertyTensileStrength, []string{"UTS", "Ultimate Tensile Strength", "tensile strength", "σb", "Rm"}},
		{types.PropertyHardness, []string{"HV", "Vickers hardness", "micro-hardness", "Brinell Hardness"}},
		{types.PropertyElongation, []string{"El", "Elongation", "elongation to failure", "δ", "Total elongation (%)",
			"Tensile elongation", "Elongation to failure (tensile)", "Ultimate elongation", "Elongation at yield"}},
		{types.PropertyOther, []string{"Fracture toughness", "Impact energy", "Young's modulus",
			"Tensile modulus", "Tensile toughness", "Yield strain", "Yield ratio", "Ultimate strain", "Strain hardening exponent"}},
	}
	for _, tt := range tests {
		for _, name := range tt.names {
			t.Run(name, func(t *testing.T) {
				got, ok := NormalizePropertyType(name)
				require.True(t, ok)
				assert.Equal(t, tt.want, got)
			})
		}
	}
}

func TestNormalizePropertyType_Unintelligible(t *testing.T) {
	for _, name := range []string{"", "   ", "--", "42", "%"} {
		_, ok := NormalizePropertyType(name)
		assert.False(t, ok, "name %q", name)
	}
}

func TestValidate_Accepts(t *testing.T) {
	rec, rej := newTestValidator().Validate(types.CandidateRecord{
		PropertyName:     "Yield Strength",
		Value:            "250",
		Unit:             "MPa",
		Material:         " Steel A ",
		Temperature:      "room temperature",
		Condition:        "as-rolled",
		SourceIdentifier: "10.1/paper1",
	})
	require.Nil(t, rej)
	assert.Equal(t, types.MechanicalPropertyRecord{
		Material:         "Steel A",
		PropertyType:     types.PropertyYieldStrength,
		PropertyName:     "Yield Strength",
		Value:            250,
		Unit:             "MPa",
		Temperature:      25,
		Condition:        "as-rolled",
		SourceIdentifier: "10.1/paper1",
		ExtractedAt:      fixedNow,
	}, rec)
}

func TestValidate_TemperatureDefault(t *testing.T) {
	rec, rej := newTestValidator().Validate(candidate("UTS", "310", "MPa"))
	require.Nil(t, rej)
	assert.Equal(t, 25.0, rec.Temperature)

	v := New(types.ValidationConfig{DefaultTemperature: 20})
	rec, rej = v.Validate(candidate("UTS", "310", "MPa"))
	require.Nil(t, rej)
	assert.Equal(t, 20.0, rec.Temperature)

	// An explicit value wins over the default.
	c := candidate("UTS", "310", "MPa")
	c.Temperature = "25"
	rec, rej = v.Validate(c)
	require.Nil(t, rej)
	assert.Equal(t, 25.0, rec.Temperature)
}

func TestValidate_Temperatures(t *testing.T) {
	tests := []struct {
		temp, hint string
		want       float64
	}{
		{"400", "°C", 400},
		{"400 °C", "", 400},
		{"400°C", "", 400},
		{"673.15 K", "", 400},
		{"673.15", "K", 400},
		{"212 °F", "", 100},
		{"RT", "", 25},
		{"ambient", "", 25},
		{"-196", "C", -196},
		{"null", "", 25},
	}
	for _, tt := range tests {
		t.Run(tt.temp+tt.hint, func(t *testing.T) {
			c := candidate("YS", "200", "MPa")
			c.Temperature, c.TemperatureUnit = tt.temp, tt.hint
			rec, rej := newTestValidator().Validate(c)
			require.Nil(t, rej)
			assert.InDelta(t, tt.want, rec.Temperature, 1e-9)
		})
	}
}

func TestValidate_UnitConversion(t *testing.T) {
	tests := []struct {
		name, value, unit string
		wantValue         float64
		wantUnit          string
	}{
		{"YS", "1.2", "GPa", 1200, "MPa"},
		{"YS", "50", "ksi", 344.73785, "MPa"},
		{"UTS", "400", "N/mm²", 400, "MPa"},
		{"UTS", "1,250", "MPa", 1250, "MPa"},
		{"UTS", "250 ± 5 MPa", "", 250, "MPa"},
		{"UTS", "~300", "MPa", 300, "MPa"},
		{"Hardness", "340", "HV", 340, "HV"},
		{"Hardness", "45", "hrc", 45, "HRC"},
		{"Elongation", "12,5", "pct", 12.5, "%"},
		{"Elongation", "18", "", 18, "%"},
		{"Elongation", "18%", "", 18, "%"},
		{"Impact energy", "32", "J", 32, "J"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" "+tt.value+" "+tt.unit, func(t *testing.T) {
			rec, rej := newTestValidator().Validate(candidate(tt.name, tt.value, tt.unit))
			require.Nil(t, rej)
			assert.InDelta(t, tt.wantValue, rec.Value, 1e-6)
			assert.Equal(t, tt.wantUnit, rec.Unit)
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		desc string
		c    types.CandidateRecord
		code string
	}{
		{"empty name", candidate("", "250", "MPa"), CodeEmptyProperty},
		{"missing value", candidate("YS", "", "MPa"), CodeMissingValue},
		{"null value", candidate("YS", "null", "MPa"), CodeMissingValue},
		{"text value", candidate("YS", "high", "MPa"), CodeInvalidValue},
		{"upper bound", candidate("YS", "<5", "MPa"), CodeBoundedValue},
		{"range", candidate("YS", "200-250", "MPa"), CodeBoundedValue},
		{"missing unit", candidate("YS", "250", ""), CodeMissingUnit},
		{"unknown unit", candidate("YS", "250", "furlongs"), CodeUnknownUnit},
		{"stress in percent", candidate("UTS", "250", "%"), CodeUnitMismatch},
		{"hardness in MPa", candidate("Hardness", "250", "MPa"), CodeUnitMismatch},
		{"bad temperature", func() types.CandidateRecord {
			c := candidate("YS", "250", "MPa")
			c.Temperature = "hot"
			return c
		}(), CodeInvalidTemperature},
		{"temperature range", func() types.CandidateRecord {
			c := candidate("YS", "250", "MPa")
			c.Temperature = "20-25"
			return c
		}(), CodeInvalidTemperature},
		{"missing source", func() types.CandidateRecord {
			c := candidate("YS", "250", "MPa")
			c.SourceIdentifier = ""
			return c
		}(), CodeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec, rej := newTestValidator().Validate(tt.c)
			require.NotNil(t, rej)
			assert.Equal(t, tt.code, rej.Code)
			assert.NotEmpty(t, rej.Reason)
			assert.Equal(t, tt.c, rej.Candidate)
			assert.Zero(t, rec)
		})
	}
}

func TestValidate_CompoundNames(t *testing.T) {
	v := newTestValidator()

	rec, rej := v.Validate(candidate("Tensile elongation", "12.5", "%"))
	require.Nil(t, rej)
	assert.Equal(t, types.PropertyElongation, rec.PropertyType)
	assert.Equal(t, 12.5, rec.Value)

	rec, rej = v.Validate(candidate("Elongation to failure (tensile)", "9", ""))
	require.Nil(t, rej)
	assert.Equal(t, types.PropertyElongation, rec.PropertyType)
	assert.Equal(t, "%", rec.Unit)

	rec, rej = v.Validate(candidate("Tensile modulus", "45", "GPa"))
	require.Nil(t, rej)
	assert.Equal(t, types.PropertyOther, rec.PropertyType)
	assert.Equal(t, 45000.0, rec.Value)
}

func TestValidate_DefaultMaterial(t *testing.T) {
	c := candidate("YS", "250", "MPa")
	c.Material = "null"
	rec, rej := newTestValidator().Validate(c)
	require.Nil(t, rej)
	assert.Equal(t, DefaultMaterial, rec.Material)

	rec, rej = New(types.ValidationConfig{DefaultMaterial: "Mg alloy"}).Validate(c)
	require.Nil(t, rej)
	assert.Equal(t, "Mg alloy", rec.Material)
}

func TestValidateAll_ValueAndUnitJointlyPresent(t *testing.T) {
	cands := []types.CandidateRecord{
		candidate("YS", "250", "MPa"),
		candidate("YS", "250", ""),
		candidate("UTS", "", "MPa"),
		candidate("Elongation", "14", ""),
		candidate("", "", ""),
		candidate("Hardness", "98", "HV"),
	}
	accepted, rejected := newTestValidator().ValidateAll(cands)
	require.Len(t, accepted, 3)
	require.Len(t, rejected, 3)

	for _, r := range accepted {
		assert.NotEmpty(t, r.Unit)
		assert.NotZero(t, r.Value)
	}
	assert.Equal(t, types.PropertyYieldStrength, accepted[0].PropertyType)
	assert.Equal(t, types.PropertyElongation, accepted[1].PropertyType)
	assert.Equal(t, types.PropertyHardness, accepted[2].PropertyType)
	assert.Equal(t, []string{CodeMissingUnit, CodeMissingValue, CodeEmptyProperty},
		[]string{rejected[0].Code, rejected[1].Code, rejected[2].Code})
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		suffix string
		ok     bool
	}{
		{"250", 250, "", true},
		{"250 MPa", 250, "MPa", true},
		{"1,250", 1250, "", true},
		{"12,345,678", 12345678, "", true},
		{"12,5", 12.5, "", true},
		{"250 ± 5 MPa", 250, "MPa", true},
		{"250 +/- 5", 250, "", true},
		{"≈ 42.5 %", 42.5, "%", true},
		{"ca. 300", 300, "", true},
		{"1.5e3", 1500, "", true},
		{"1,25,0", 0, "", false},
		{"abc", 0, "", false},
		{"", 0, "", false},
		{"> 200", 0, "", false},
		{"200–250", 0, "", false},
		{"200 to 250", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, suffix, err := parseNumber(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.suffix, suffix)
		})
	}
}
