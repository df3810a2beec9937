// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RoomTemperature is the value, in °C, used for "room temperature" and
// for candidates that give no temperature.
const RoomTemperature = 25.0

var errTemperature = errors.New("unparseable temperature")

var temperaturePattern = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*(.*)$`)

var roomTemperatureWords = []string{"room", "ambient"}

// absentWords are temperature spellings that mean "not given".
var absentWords = map[string]bool{
	"":     true,
	"null": true,
	"none": true,
	"n/a":  true,
	"na":   true,
	"-":    true,
}

// parseTemperature converts a temperature string to °C. unitHint is the
// candidate's temperature_unit and applies when the string carries no
// unit of its own. present is false when no temperature was given.
func parseTemperature(raw, unitHint string) (celsius float64, present bool, err error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if absentWords[lower] {
		return 0, false, nil
	}
	if lower == "rt" || lower == "r.t." {
		return RoomTemperature, true, nil
	}
	for _, w := range roomTemperatureWords {
		if strings.Contains(lower, w) {
			return RoomTemperature, true, nil
		}
	}
	if rangePattern.MatchString(s) {
		return 0, true, fmt.Errorf("%w: %q is a range", errTemperature, raw)
	}

	m := temperaturePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, true, fmt.Errorf("%w: %q", errTemperature, raw)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %q", errTemperature, raw)
	}

	unit := m[2]
	if strings.TrimSpace(unit) == "" {
		unit = unitHint
	}
	scale, ok := temperatureScale(unit)
	if !ok {
		return 0, true, fmt.Errorf("%w: unknown temperature unit %q", errTemperature, unit)
	}
	switch scale {
	case 'K':
		v -= 273.15
	case 'F':
		v = (v - 32) * 5 / 9
	}
	return roundTo(v, 2), true, nil
}

// temperatureScale identifies the scale of a unit spelling. An empty unit
// is read as Celsius.
func temperatureScale(unit string) (byte, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.NewReplacer("°", "", "º", "", "degrees", "", "deg", "", " ", "", ".", "").Replace(u)
	switch u {
	case "", "c", "celsius", "℃":
		return 'C', true
	case "k", "kelvin":
		return 'K', true
	case "f", "fahrenheit", "℉":
		return 'F', true
	}
	return 0, false
}
