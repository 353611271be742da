// Package chart models the chart payload stored on a template.
//
// A template's chart data is a free-form JSON object. Whether it describes a
// size table or a measurement form is decided by a single boolean inside the
// blob (isMeasurementTemplate). Classify is the only place that predicate is
// evaluated; everything else asks Classify or works on the decoded Chart.
package chart

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the variant a chart blob represents.
type Kind string

const (
	// KindTable is a size grid (size -> column values).
	KindTable Kind = "table"
	// KindCustom is a form collecting the buyer's body measurements.
	KindCustom Kind = "custom"
)

const measurementFlag = "isMeasurementTemplate"

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a known chart kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindTable, KindCustom:
		return true
	default:
		return false
	}
}

// ParseKind parses a requested chart kind. "measurement" is accepted as an alias of custom.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return KindTable, nil
	case "custom", "measurement":
		return KindCustom, nil
	default:
		return "", fmt.Errorf("unknown chart type %q (use 'table' or 'custom')", s)
	}
}

// ParseError reports a chart blob that could not be read as a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid chart data: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads chart data from a map, a JSON string, or JSON bytes.
// Missing or malformed input yields an empty object; a non-nil error is only
// informational and the returned map is always usable.
func Parse(v any) (map[string]any, error) {
	switch data := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return data, nil
	case json.RawMessage:
		return parseBytes([]byte(data), true)
	case []byte:
		return parseBytes(data, true)
	case string:
		return parseBytes([]byte(data), true)
	default:
		// Structs and other typed values go through JSON once.
		b, err := json.Marshal(data)
		if err != nil {
			return map[string]any{}, &ParseError{Err: err}
		}
		return parseBytes(b, false)
	}
}

func parseBytes(b []byte, unwrapString bool) (map[string]any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return map[string]any{}, &ParseError{Err: err}
	}

	switch value := decoded.(type) {
	case map[string]any:
		return value, nil
	case nil:
		return map[string]any{}, nil
	case string:
		// double-encoded blob
		if unwrapString {
			return parseBytes([]byte(value), false)
		}
	}

	return map[string]any{}, &ParseError{Err: fmt.Errorf("expected a JSON object, got %T", decoded)}
}

// Classify returns the variant a chart blob represents. Only a literal boolean
// true under isMeasurementTemplate makes a custom chart.
func Classify(v any) Kind {
	data, _ := Parse(v)
	if flag, ok := data[measurementFlag].(bool); ok && flag {
		return KindCustom
	}
	return KindTable
}
