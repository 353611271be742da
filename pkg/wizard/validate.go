package wizard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Ramsey-B/fern/pkg/cart"
	"github.com/Ramsey-B/fern/pkg/chart"
)

// FieldError is one invalid measurement.
type FieldError struct {
	FieldID string
	Name    string
	Message string
}

// ValidationErrors lists the invalid measurements in display order.
type ValidationErrors struct {
	Fields []FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return fmt.Sprintf("%d measurements need attention: %s", len(e.Fields), strings.Join(msgs, "; "))
}

// First returns the id of the first invalid field.
func (e *ValidationErrors) First() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].FieldID
}

// ParseValue reads a measurement as entered. Empty input is (0, false, nil).
func ParseValue(raw string) (float64, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%q is not a number", raw)
	}
	return v, true, nil
}

// ValidateField checks one entered value. Required fields must be non-empty;
// every non-empty value must be a number within the field's inclusive bounds.
func ValidateField(field chart.MeasurementField, raw string) string {
	name := displayName(field)

	v, ok, err := ParseValue(raw)
	switch {
	case err != nil:
		return fmt.Sprintf("%s must be a number", name)
	case !ok && field.Required:
		return fmt.Sprintf("%s is required", name)
	case !ok:
		return ""
	}

	if field.InBounds(v) {
		return ""
	}
	switch {
	case field.Min != nil && field.Max != nil:
		return fmt.Sprintf("%s must be between %s and %s", name, cart.FormatValue(*field.Min), cart.FormatValue(*field.Max))
	case field.Min != nil:
		return fmt.Sprintf("%s must be at least %s", name, cart.FormatValue(*field.Min))
	default:
		return fmt.Sprintf("%s must be at most %s", name, cart.FormatValue(*field.Max))
	}
}

// Validate checks every field in display order and returns nil when all pass.
func Validate(fields []chart.MeasurementField, values map[string]string) *ValidationErrors {
	var errs []FieldError
	for _, field := range fields {
		if msg := ValidateField(field, values[field.ID]); msg != "" {
			errs = append(errs, FieldError{FieldID: field.ID, Name: displayName(field), Message: msg})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Fields: errs}
}

func displayName(field chart.MeasurementField) string {
	if strings.TrimSpace(field.Name) != "" {
		return field.Name
	}
	return field.ID
}
