// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	errNoNumber = errors.New("no numeric value")
	errBounded  = errors.New("value is a bound or range, not a measurement")
)

var (
	numberPrefix  = regexp.MustCompile(`^[+-]?(\d[\d,]*)(\.\d+)?([eE][+-]?\d+)?`)
	thousandsSep  = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	decimalComma  = regexp.MustCompile(`^\d+,\d+$`)
	rangePattern  = regexp.MustCompile(`^[+-]?\d[\d.,]*\s*(-|–|—|to)\s*\d`)
	approxPrefix  = strings.NewReplacer("~", "", "≈", "", "∼", "")
	deviationSigs = []string{"±", "+/-", "+-"}
)

// parseNumber reads the numeric part of a value string and returns the
// remainder, e.g. "250 ± 5 MPa" gives 250 and "MPa". Thousands separators
// ("1,250") are removed and a lone decimal comma ("12,5") is read as a
// point. Bounds ("<5", ">200") and ranges ("200-250") are rejected.
func parseNumber(s string) (float64, string, error) {
	s = strings.TrimSpace(approxPrefix.Replace(s))
	for _, p := range []string{"approx.", "ca."} {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = strings.TrimSpace(s[len(p):])
		}
	}
	if s == "" {
		return 0, "", errNoNumber
	}
	if strings.ContainsAny(s[:1], "<>≤≥") {
		return 0, "", errBounded
	}
	if rangePattern.MatchString(s) {
		return 0, "", errBounded
	}

	v, rest, err := leadingNumber(s)
	if err != nil {
		return 0, "", err
	}

	rest = strings.TrimSpace(rest)
	for _, sig := range deviationSigs {
		if strings.HasPrefix(rest, sig) {
			_, after, err := leadingNumber(strings.TrimSpace(rest[len(sig):]))
			if err != nil {
				return 0, "", err
			}
			rest = strings.TrimSpace(after)
			break
		}
	}
	return v, rest, nil
}

func leadingNumber(s string) (float64, string, error) {
	loc := numberPrefix.FindStringSubmatchIndex(s)
	if loc == nil {
		return 0, "", errNoNumber
	}
	whole := s[loc[0]:loc[1]]
	intPart := s[loc[2]:loc[3]]
	hasFraction := loc[4] >= 0

	num := whole
	if strings.Contains(intPart, ",") {
		switch {
		case thousandsSep.MatchString(intPart):
			num = strings.ReplaceAll(whole, ",", "")
		case !hasFraction && decimalComma.MatchString(intPart):
			num = strings.Replace(whole, ",", ".", 1)
		default:
			return 0, "", errNoNumber
		}
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "", errNoNumber
	}
	return v, s[loc[1]:], nil
}

// roundTo rounds v to the given number of decimal places, hiding float
// noise from unit conversions.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
