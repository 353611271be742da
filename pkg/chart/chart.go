package chart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Gobusters/ectolinq"
)

// Chart is the decoded chart payload. It is implemented by *Table and *Measurement only.
type Chart interface {
	Kind() Kind
	ToMap() map[string]any
	isChart()
}

// Unit is the unit a measurement field is entered in.
type Unit string

const (
	UnitInches      Unit = "in"
	UnitCentimeters Unit = "cm"
)

// ParseUnit parses a unit, defaulting to inches.
func ParseUnit(s string) Unit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cm", "centimeters", "centimetres":
		return UnitCentimeters
	default:
		return UnitInches
	}
}

// Column is a declared column of a size table.
type Column struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Row is one size row: the "size" key plus one value per column id.
type Row map[string]string

// Size returns the row's size label.
func (r Row) Size() string {
	return r["size"]
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	row := make(Row, len(raw))
	for key, value := range raw {
		if s, ok := stringify(value); ok {
			row[key] = s
		}
	}
	*r = row
	return nil
}

// Table is the size grid variant.
type Table struct {
	Columns  []Column `json:"columns"`
	SizeData []Row    `json:"sizeData"`
}

// MissingCell is rendered for a row that has no value for a declared column.
const MissingCell = "-"

func (t *Table) Kind() Kind { return KindTable }
func (t *Table) isChart()   {}

// Cell returns the value of a column in a row, or MissingCell.
func (t *Table) Cell(row Row, columnID string) string {
	if value, ok := row[columnID]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return MissingCell
}

func (t *Table) ToMap() map[string]any {
	out := map[string]any{
		"columns":  []any{},
		"sizeData": []any{},
	}
	for _, column := range t.Columns {
		out["columns"] = append(out["columns"].([]any), map[string]any{"id": column.ID, "label": column.Label})
	}
	for _, row := range t.SizeData {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		out["sizeData"] = append(out["sizeData"].([]any), m)
	}
	return out
}

// MeasurementField is one numeric input of a measurement chart.
type MeasurementField struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Required           bool     `json:"required"`
	Enabled            bool     `json:"enabled"`
	Order              float64  `json:"order"`
	Min                *float64 `json:"min,omitempty"`
	Max                *float64 `json:"max,omitempty"`
	Unit               Unit     `json:"unit,omitempty"`
	Description        string   `json:"description,omitempty"`
	CustomInstructions string   `json:"customInstructions,omitempty"`
	GuideImage         string   `json:"guideImage,omitempty"`
	GuideImageURL      string   `json:"guideImageUrl,omitempty"`

	orderSet bool
}

func (f *MeasurementField) UnmarshalJSON(b []byte) error {
	type fieldAlias MeasurementField
	aux := struct {
		*fieldAlias
		Required any `json:"required"`
		Enabled  any `json:"enabled"`
		Order    any `json:"order"`
		Min      any `json:"min"`
		Max      any `json:"max"`
		Unit     any `json:"unit"`
	}{fieldAlias: (*fieldAlias)(f)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	f.Required = toBool(aux.Required, false)
	// fields are enabled unless explicitly switched off
	f.Enabled = toBool(aux.Enabled, true)
	if order, ok := toFloat(aux.Order); ok {
		f.Order = order
		f.orderSet = true
	}
	if lo, ok := toFloat(aux.Min); ok {
		f.Min = &lo
	}
	if hi, ok := toFloat(aux.Max); ok {
		f.Max = &hi
	}
	if unit, ok := aux.Unit.(string); ok && unit != "" {
		f.Unit = ParseUnit(unit)
	}
	return nil
}

func (f MeasurementField) MarshalJSON() ([]byte, error) {
	type fieldAlias MeasurementField
	aux := struct {
		fieldAlias
		Order *float64 `json:"order,omitempty"`
	}{fieldAlias: fieldAlias(f)}
	if f.orderSet || f.Order != 0 {
		order := f.Order
		aux.Order = &order
	}
	return json.Marshal(aux)
}

// Instructions returns the merchant's custom instructions, falling back to the description.
func (f MeasurementField) Instructions() string {
	if strings.TrimSpace(f.CustomInstructions) != "" {
		return f.CustomInstructions
	}
	return f.Description
}

// GuideImageRef returns the field's guide image reference, whichever key it was stored under.
func (f MeasurementField) GuideImageRef() string {
	if f.GuideImageURL != "" {
		return f.GuideImageURL
	}
	return f.GuideImage
}

// InBounds reports whether v is within the field's inclusive bounds. Unset bounds are open.
func (f MeasurementField) InBounds(v float64) bool {
	if f.Min != nil && v < *f.Min {
		return false
	}
	if f.Max != nil && v > *f.Max {
		return false
	}
	return true
}

// FitPreference is a selectable fit option.
type FitPreference struct {
	Label string `json:"label"`
	Ease  string `json:"ease"`
}

func (p *FitPreference) UnmarshalJSON(b []byte) error {
	var aux struct {
		Label string `json:"label"`
		Ease  any    `json:"ease"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Label = aux.Label
	p.Ease, _ = stringify(aux.Ease)
	return nil
}

// FitOption is a fit preference with its key, in display order.
type FitOption struct {
	Key string
	FitPreference
}

var defaultFitKeys = []string{"slim", "regular", "loose"}

// DefaultFitPreferences are offered when a chart does not define its own.
func DefaultFitPreferences() map[string]FitPreference {
	return map[string]FitPreference{
		"slim":    {Label: "Slim Fit", Ease: "1 in"},
		"regular": {Label: "Regular Fit", Ease: "2 in"},
		"loose":   {Label: "Loose Fit", Ease: "4 in"},
	}
}

// Measurement is the custom (buyer measurement) variant. A saved profile is a
// Measurement with SavedMeasurements populated.
type Measurement struct {
	MeasurementFields     []MeasurementField       `json:"measurementFields"`
	FitPreferencesEnabled bool                     `json:"fitPreferencesEnabled"`
	StitchingNotesEnabled bool                     `json:"stitchingNotesEnabled"`
	FitPreferences        map[string]FitPreference `json:"fitPreferences,omitempty"`
	SavedMeasurements     map[string]float64       `json:"savedMeasurements,omitempty"`
	FitPreference         string                   `json:"fitPreference,omitempty"`
	StitchingNotes        string                   `json:"stitchingNotes,omitempty"`
}

func (m *Measurement) Kind() Kind { return KindCustom }
func (m *Measurement) isChart()   {}

func (m *Measurement) UnmarshalJSON(b []byte) error {
	type measurementAlias Measurement
	aux := struct {
		*measurementAlias
		FitPreferencesEnabled any            `json:"fitPreferencesEnabled"`
		StitchingNotesEnabled any            `json:"stitchingNotesEnabled"`
		SavedMeasurements     map[string]any `json:"savedMeasurements"`
	}{measurementAlias: (*measurementAlias)(m)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	m.FitPreferencesEnabled = toBool(aux.FitPreferencesEnabled, false)
	m.StitchingNotesEnabled = toBool(aux.StitchingNotesEnabled, false)
	if aux.SavedMeasurements != nil {
		m.SavedMeasurements = make(map[string]float64, len(aux.SavedMeasurements))
		for id, raw := range aux.SavedMeasurements {
			if v, ok := toFloat(raw); ok {
				m.SavedMeasurements[id] = v
			}
		}
	}
	return nil
}

// IsSavedProfile reports whether the chart carries a buyer's saved measurements.
func (m *Measurement) IsSavedProfile() bool {
	return m.SavedMeasurements != nil
}

// EnabledFields returns the enabled fields sorted by order. Fields without an
// order keep their position; ties keep their original order.
func (m *Measurement) EnabledFields() []MeasurementField {
	type indexed struct {
		field MeasurementField
		key   float64
	}

	items := make([]indexed, 0, len(m.MeasurementFields))
	for i, field := range m.MeasurementFields {
		if !field.Enabled {
			continue
		}
		key := float64(i)
		if field.orderSet {
			key = field.Order
		}
		items = append(items, indexed{field: field, key: key})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key < items[j].key
	})

	return ectolinq.Map(items, func(item indexed) MeasurementField {
		return item.field
	})
}

// Field returns the field with the given id.
func (m *Measurement) Field(id string) (MeasurementField, bool) {
	field := ectolinq.Find(m.MeasurementFields, func(f MeasurementField) bool {
		return f.ID == id
	})
	return field, field.ID != "" && field.ID == id
}

// FitOptions returns the fit preferences in display order.
func (m *Measurement) FitOptions() []FitOption {
	prefs := m.FitPreferences
	if len(prefs) == 0 {
		prefs = DefaultFitPreferences()
	}

	keys := make([]string, 0, len(prefs))
	for _, key := range defaultFitKeys {
		if _, ok := prefs[key]; ok {
			keys = append(keys, key)
		}
	}
	extra := make([]string, 0)
	for key := range prefs {
		if !ectolinq.Contains(defaultFitKeys, key) {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	return ectolinq.Map(keys, func(key string) FitOption {
		return FitOption{Key: key, FitPreference: prefs[key]}
	})
}

func (m *Measurement) ToMap() map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{measurementFlag: true}
	}
	out, _ := Parse(b)
	out[measurementFlag] = true
	if m.SavedMeasurements != nil {
		if _, ok := out["savedMeasurements"]; !ok {
			out["savedMeasurements"] = map[string]any{}
		}
	}
	if _, ok := out["measurementFields"].([]any); !ok {
		out["measurementFields"] = []any{}
	}
	return out
}

// Decode turns a chart blob into its variant. Malformed blobs decode as an
// empty table together with a *ParseError.
func Decode(v any) (Chart, error) {
	data, parseErr := Parse(v)

	b, err := json.Marshal(data)
	if err != nil {
		return &Table{}, &ParseError{Err: err}
	}

	if Classify(data) == KindCustom {
		var m Measurement
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, &ParseError{Err: err}
		}
		return &m, nil
	}

	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		// a table with malformed columns still renders as an empty table
		return &Table{}, &ParseError{Err: err}
	}
	return &t, parseErr
}

// DecodeMeasurement decodes a blob that must be a measurement chart.
func DecodeMeasurement(v any) (*Measurement, error) {
	c, err := Decode(v)
	if c == nil {
		return nil, err
	}
	m, ok := c.(*Measurement)
	if !ok {
		return nil, fmt.Errorf("chart is a %s chart, not a measurement chart", c.Kind())
	}
	return m, nil
}

func toBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}
