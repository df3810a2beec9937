// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/propextract/pkg/types"
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("extraction response is not parseable")

// ParseError reports an LLM response that held no structured data.
type ParseError struct {
	Identifier types.PaperIdentifier
	Snippet    string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing extraction response for %s: %v (response starts %q)", e.Identifier, e.Err, e.Snippet)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// wrapperKeys are object fields that commonly hold the record array.
var wrapperKeys = []string{"properties", "data", "records", "results", "items", "mechanical_properties"}

// ParseCandidates decodes an LLM response into candidate records. It
// accepts a bare array, an object wrapping the array, a single record
// object, markdown code fences and surrounding prose. Array elements that
// are not objects are skipped. A response with no JSON at all, or JSON
// that cannot be decoded, yields a *ParseError.
func ParseCandidates(raw string, id types.PaperIdentifier) ([]types.CandidateRecord, error) {
	body := locateJSON(stripFences(raw))
	if body == "" {
		return nil, &ParseError{Identifier: id, Snippet: snippet(raw), Err: errors.New("no JSON value found")}
	}

	items, err := decodeItems([]byte(body))
	if err != nil {
		salvaged, ok := salvageArray([]byte(body))
		if !ok {
			return nil, &ParseError{Identifier: id, Snippet: snippet(raw), Err: err}
		}
		items = salvaged
	}

	out := make([]types.CandidateRecord, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, toCandidate(obj, id))
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// locateJSON trims prose around the outermost JSON array or object.
func locateJSON(s string) string {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

func newDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

func decodeItems(data []byte) ([]any, error) {
	var v any
	if err := newDecoder(data).Decode(&v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		for _, k := range wrapperKeys {
			if arr, ok := t[k].([]any); ok {
				return arr, nil
			}
		}
		if _, ok := t["property_name"]; ok {
			return []any{t}, nil
		}
		if arr, ok := firstArrayField(data); ok {
			return arr, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected JSON %T", v)
	}
}

// firstArrayField returns the first array-valued field of a JSON object in
// document order.
func firstArrayField(data []byte) ([]any, bool) {
	dec := newDecoder(data)
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		if arr, ok := v.([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// salvageArray recovers the complete leading elements of a record array
// cut off mid-way, as happens when the response hits the token budget.
func salvageArray(data []byte) ([]any, bool) {
	start := bytes.IndexByte(data, '[')
	if start < 0 {
		return nil, false
	}
	dec := newDecoder(data[start:])
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	var items []any
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			break
		}
		items = append(items, v)
	}
	return items, len(items) > 0
}

func toCandidate(obj map[string]any, id types.PaperIdentifier) types.CandidateRecord {
	c := types.CandidateRecord{
		PropertyName:     field(obj, "property_name", "property", "name"),
		Value:            field(obj, "value"),
		Unit:             field(obj, "unit", "units"),
		Material:         field(obj, "material", "alloy"),
		Temperature:      field(obj, "temperature", "test_temperature"),
		TemperatureUnit:  field(obj, "temperature_unit"),
		Condition:        field(obj, "condition", "processing_condition"),
		StrainRate:       field(obj, "strain_rate"),
		SourceIdentifier: id,
		ConfidenceNotes:  field(obj, "confidence_notes", "notes", "confidence"),
	}
	if extra, ok := obj["additional_info"].(map[string]any); ok && len(extra) > 0 {
		c.AdditionalInfo = make(map[string]string, len(extra))
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := stringify(extra[k]); s != "" {
				c.AdditionalInfo[k] = s
			}
		}
	}
	return c
}

func field(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > 80 {
		return string(r[:80]) + "…"
	}
	return s
}
