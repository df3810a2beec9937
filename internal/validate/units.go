// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"strings"

	"github.com/pdiddy/propextract/pkg/types"
)

// unitFamily groups units that measure the same quantity.
type unitFamily int

const (
	familyUnknown unitFamily = iota
	familyStress
	familyStrain
	familyHardness
	familyOther
)

// unitRule converts a value in a surface unit to the canonical unit.
type unitRule struct {
	canonical string
	family    unitFamily
	factor    float64
}

// Canonical stress unit.
const unitMPa = "MPa"

// unitTable is keyed by the folded spelling (see foldUnit).
var unitTable = map[string]unitRule{
	"mpa":     {unitMPa, familyStress, 1},
	"n/mm2":   {unitMPa, familyStress, 1},
	"n/mm^2":  {unitMPa, familyStress, 1},
	"nmm-2":   {unitMPa, familyStress, 1},
	"mn/m2":   {unitMPa, familyStress, 1},
	"gpa":     {unitMPa, familyStress, 1000},
	"kpa":     {unitMPa, familyStress, 0.001},
	"pa":      {unitMPa, familyStress, 1e-6},
	"ksi":     {unitMPa, familyStress, 6.894757},
	"psi":     {unitMPa, familyStress, 0.006894757},
	"kgf/mm2": {unitMPa, familyStress, 9.80665},

	"%":       {"%", familyStrain, 1},
	"pct":     {"%", familyStrain, 1},
	"percent": {"%", familyStrain, 1},

	"hv":    {"HV", familyHardness, 1},
	"hv0.1": {"HV", familyHardness, 1},
	"hv0.2": {"HV", familyHardness, 1},
	"hv0.5": {"HV", familyHardness, 1},
	"hv1":   {"HV", familyHardness, 1},
	"hb":    {"HB", familyHardness, 1},
	"hbw":   {"HB", familyHardness, 1},
	"hrc":   {"HRC", familyHardness, 1},
	"hrb":   {"HRB", familyHardness, 1},
	"hk":    {"HK", familyHardness, 1},

	"j":         {"J", familyOther, 1},
	"j/cm2":     {"J/cm²", familyOther, 1},
	"mpa·m^1/2": {"MPa·m^1/2", familyOther, 1},
	"mpam^1/2":  {"MPa·m^1/2", familyOther, 1},
	"mpa√m":     {"MPa·m^1/2", familyOther, 1},
}

// foldUnit lowercases a unit and normalizes superscripts and spacing so
// "N/mm²", "N / mm2" and "n/mm^2" meet in the table.
func foldUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.NewReplacer(
		" ", "",
		"²", "2",
		"⁻²", "-2",
		"½", "1/2",
		"*", "·",
	).Replace(u)
	return u
}

// lookupUnit returns the rule for u, or ok=false when the unit is unknown.
func lookupUnit(u string) (unitRule, bool) {
	r, ok := unitTable[foldUnit(u)]
	return r, ok
}

// expectedFamily is the unit family a property type must carry. Other
// properties accept any known unit.
func expectedFamily(pt types.PropertyType) unitFamily {
	switch pt {
	case types.PropertyYieldStrength, types.PropertyTensileStrength:
		return familyStress
	case types.PropertyHardness:
		return familyHardness
	case types.PropertyElongation:
		return familyStrain
	}
	return familyUnknown
}

// inferUnit supplies a unit when the candidate gave none and the property
// has only one sensible unit.
func inferUnit(pt types.PropertyType) (string, bool) {
	if pt == types.PropertyElongation {
		return "%", true
	}
	return "", false
}
