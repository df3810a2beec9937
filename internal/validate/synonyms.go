// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"strings"
	"unicode"

	"github.com/pdiddy/propextract/pkg/types"
)

// propertySynonyms maps folded surface names to canonical property types.
// Keys are lowercased with spaces and punctuation removed; see foldName.
var propertySynonyms = map[string]types.PropertyType{
	// yield strength
	"ys":                   types.PropertyYieldStrength,
	"tys":                  types.PropertyYieldStrength,
	"yieldstrength":        types.PropertyYieldStrength,
	"yieldstress":          types.PropertyYieldStrength,
	"yieldpoint":           types.PropertyYieldStrength,
	"tensileyieldstrength": types.PropertyYieldStrength,
	"proofstress":          types.PropertyYieldStrength,
	"02proofstress":        types.PropertyYieldStrength,
	"02%proofstress":       types.PropertyYieldStrength,
	"rp02":                 types.PropertyYieldStrength,
	"σy":                   types.PropertyYieldStrength,
	"σys":                  types.PropertyYieldStrength,
	"σ02":                  types.PropertyYieldStrength,
	"sigmay":               types.PropertyYieldStrength,

	// tensile strength
	"uts":                     types.PropertyTensileStrength,
	"ts":                      types.PropertyTensileStrength,
	"tensilestrength":         types.PropertyTensileStrength,
	"ultimatetensilestrength": types.PropertyTensileStrength,
	"ultimatestrength":        types.PropertyTensileStrength,
	"rm":                      types.PropertyTensileStrength,
	"σuts":                    types.PropertyTensileStrength,
	"σu":                      types.PropertyTensileStrength,
	"σb":                      types.PropertyTensileStrength,
	"sigmauts":                types.PropertyTensileStrength,

	// hardness
	"hardness":         types.PropertyHardness,
	"hv":               types.PropertyHardness,
	"hb":               types.PropertyHardness,
	"hrc":              types.PropertyHardness,
	"hrb":              types.PropertyHardness,
	"vickers":          types.PropertyHardness,
	"vickershardness":  types.PropertyHardness,
	"microhardness":    types.PropertyHardness,
	"brinellhardness":  types.PropertyHardness,
	"rockwellhardness": types.PropertyHardness,
	"knoophardness":    types.PropertyHardness,
	"nanohardness":     types.PropertyHardness,

	// elongation
	"el":                   types.PropertyElongation,
	"elongation":           types.PropertyElongation,
	"totalelongation":      types.PropertyElongation,
	"elongationtofailure":  types.PropertyElongation,
	"elongationatbreak":    types.PropertyElongation,
	"elongationatfracture": types.PropertyElongation,
	"ef":                   types.PropertyElongation,
	"εf":                   types.PropertyElongation,
	"δ":                    types.PropertyElongation,
	"a":                    types.PropertyElongation,
	"ductility":            types.PropertyElongation,
}

// foldName lowercases s and drops whitespace and punctuation other than
// '%', so "Yield Stress", "yield_stress" and "YIELD-STRESS" coincide.
func foldName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '%':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nonStrengthNouns name quantities that share "tensile" or "yield" with a
// strength but measure something else, e.g. "tensile modulus".
var nonStrengthNouns = []string{"modulus", "toughness", "strain", "ratio"}

// NormalizePropertyType maps a surface property name onto the closed
// enumeration. Exact synonyms win; otherwise keyword containment decides.
// The measured noun is checked before its qualifier, so "tensile
// elongation" is an elongation and "tensile modulus" is PropertyOther, and
// "yield" is checked before "tensile" so "tensile yield strength" is a
// yield strength. Unmapped but intelligible names are PropertyOther. ok is
// false for empty or unintelligible names.
func NormalizePropertyType(name string) (pt types.PropertyType, ok bool) {
	key := foldName(name)
	if !hasLetter(key) {
		return "", false
	}
	if pt, found := propertySynonyms[key]; found {
		return pt, true
	}
	switch {
	case strings.Contains(key, "elongation"):
		return types.PropertyElongation, true
	case containsAny(key, nonStrengthNouns):
		return types.PropertyOther, true
	case strings.Contains(key, "hardness"):
		return types.PropertyHardness, true
	case strings.Contains(key, "yield") || strings.Contains(key, "proof"):
		return types.PropertyYieldStrength, true
	case strings.Contains(key, "tensile") || strings.Contains(key, "ultimate"):
		return types.PropertyTensileStrength, true
	}
	return types.PropertyOther, true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
