// Package cart hands a completed measurement form to the storefront cart.
package cart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Property keys added alongside the measurements.
const (
	FitPreferenceProperty  = "Fit Preference"
	StitchingNotesProperty = "Stitching Notes"
	CustomOrderProperty    = "_custom_order"
)

// NameLookup maps a measurement field id to its display name.
type NameLookup map[string]string

// Label returns the cart property label for a field: its name, or its id when
// unnamed, title-cased word by word with slash-separated parts joined by " / ".
func (n NameLookup) Label(fieldID string) string {
	name := strings.TrimSpace(n[fieldID])
	if name == "" {
		name = fieldID
	}
	return Label(name)
}

// Label title-cases a field name for display on a line item.
func Label(name string) string {
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = titleWords(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, " / ")
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}

// FormatValue renders a measurement as the shortest decimal string.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Properties turns measurements into line-item properties. Nil measurements
// are omitted. A label already taken by another field or by one of the fixed
// properties gets the field id appended, e.g. "Chest (chest_2)".
func Properties(measurements map[string]*float64, names NameLookup) map[string]string {
	fieldIDs := make([]string, 0, len(measurements))
	for fieldID, value := range measurements {
		if value != nil {
			fieldIDs = append(fieldIDs, fieldID)
		}
	}
	sort.Strings(fieldIDs)

	props := make(map[string]string, len(fieldIDs))
	for _, fieldID := range fieldIDs {
		label := names.Label(fieldID)
		if _, taken := props[label]; taken || reserved(label) {
			label = fmt.Sprintf("%s (%s)", label, fieldID)
		}
		props[label] = FormatValue(*measurements[fieldID])
	}
	return props
}

func reserved(label string) bool {
	switch label {
	case FitPreferenceProperty, StitchingNotesProperty, CustomOrderProperty:
		return true
	}
	return false
}
