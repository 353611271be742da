package chart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data any
		want Kind
	}{
		{name: "nil", data: nil, want: KindTable},
		{name: "empty map", data: map[string]any{}, want: KindTable},
		{name: "flag true", data: map[string]any{"isMeasurementTemplate": true}, want: KindCustom},
		{name: "flag false", data: map[string]any{"isMeasurementTemplate": false}, want: KindTable},
		{name: "flag string", data: map[string]any{"isMeasurementTemplate": "true"}, want: KindTable},
		{name: "json string", data: `{"isMeasurementTemplate":true}`, want: KindCustom},
		{name: "json bytes", data: []byte(`{"columns":[]}`), want: KindTable},
		{name: "double encoded", data: `"{\"isMeasurementTemplate\":true}"`, want: KindCustom},
		{name: "malformed", data: `{"isMeasurementTemplate":`, want: KindTable},
		{name: "array", data: `[1,2,3]`, want: KindTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Classify(tt.data)
			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, Classify(tt.data), "classification must be idempotent")
		})
	}
}

func TestClassify_KeyOrderIndependent(t *testing.T) {
	a := `{"isMeasurementTemplate":true,"measurementFields":[],"columns":[]}`
	b := `{"columns":[],"measurementFields":[],"isMeasurementTemplate":true}`

	assert.Equal(t, Classify(a), Classify(b))
}

func TestParse_MalformedReturnsEmptyObject(t *testing.T) {
	data, err := Parse("not json")

	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

func TestParse_EmptyStringIsNotAnError(t *testing.T) {
	data, err := Parse("  ")

	assert.NoError(t, err)
	assert.Empty(t, data)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Custom")
	require.NoError(t, err)
	assert.Equal(t, KindCustom, kind)

	kind, err = ParseKind("measurement")
	require.NoError(t, err)
	assert.Equal(t, KindCustom, kind)

	kind, err = ParseKind("table")
	require.NoError(t, err)
	assert.Equal(t, KindTable, kind)

	_, err = ParseKind("grid")
	assert.Error(t, err)
}

func TestDecode_Table(t *testing.T) {
	c, err := Decode(`{
		"columns": [{"id": "chest", "label": "Chest"}, {"id": "waist", "label": "Waist"}],
		"sizeData": [{"size": "S", "chest": "36", "waist": 30}, {"size": "M", "chest": "38"}]
	}`)
	require.NoError(t, err)

	table, ok := c.(*Table)
	require.True(t, ok)
	require.Len(t, table.Columns, 2)
	require.Len(t, table.SizeData, 2)

	assert.Equal(t, "S", table.SizeData[0].Size())
	assert.Equal(t, "30", table.Cell(table.SizeData[0], "waist"))
	assert.Equal(t, MissingCell, table.Cell(table.SizeData[1], "waist"))
}

func TestDecode_Measurement(t *testing.T) {
	c, err := Decode(map[string]any{
		"isMeasurementTemplate": true,
		"fitPreferencesEnabled": "true",
		"measurementFields": []any{
			map[string]any{"id": "waist", "name": "Waist", "order": 2, "min": "20", "max": 50},
			map[string]any{"id": "chest", "name": "Chest", "required": true, "order": 1, "unit": "cm"},
			map[string]any{"id": "hip", "name": "Hip", "enabled": false, "order": 0},
		},
		"savedMeasurements": map[string]any{"chest": 38, "waist": "32.5"},
	})
	require.NoError(t, err)

	m, ok := c.(*Measurement)
	require.True(t, ok)
	assert.True(t, m.FitPreferencesEnabled)
	assert.True(t, m.IsSavedProfile())
	assert.Equal(t, 32.5, m.SavedMeasurements["waist"])

	fields := m.EnabledFields()
	require.Len(t, fields, 2)
	assert.Equal(t, "chest", fields[0].ID)
	assert.Equal(t, UnitCentimeters, fields[0].Unit)
	assert.Equal(t, "waist", fields[1].ID)
	require.NotNil(t, fields[1].Min)
	assert.Equal(t, 20.0, *fields[1].Min)
	assert.True(t, fields[1].InBounds(50))
	assert.False(t, fields[1].InBounds(50.1))
}

func TestEnabledFields_TiesKeepOriginalOrder(t *testing.T) {
	m, err := DecodeMeasurement(`{"isMeasurementTemplate":true,"measurementFields":[
		{"id":"a","order":1},{"id":"b","order":0},{"id":"c","order":1}
	]}`)
	require.NoError(t, err)

	ids := []string{}
	for _, f := range m.EnabledFields() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestDecodeMeasurement_RejectsTable(t *testing.T) {
	_, err := DecodeMeasurement(`{"columns":[]}`)
	assert.Error(t, err)
}

func TestFitOptions_Defaults(t *testing.T) {
	m := &Measurement{}

	options := m.FitOptions()
	require.Len(t, options, 3)
	assert.Equal(t, "slim", options[0].Key)
	assert.Equal(t, "regular", options[1].Key)
	assert.Equal(t, "loose", options[2].Key)
}

func TestMeasurementToMap_KeepsFlagAndEmptySavedMeasurements(t *testing.T) {
	m := &Measurement{
		MeasurementFields: []MeasurementField{{ID: "chest", Name: "Chest", Enabled: true}},
		SavedMeasurements: map[string]float64{},
	}

	out := m.ToMap()
	assert.Equal(t, true, out["isMeasurementTemplate"])
	assert.Contains(t, out, "savedMeasurements")
	assert.Equal(t, KindCustom, Classify(out))

	b, err := json.Marshal(out)
	require.NoError(t, err)
	decoded, err := DecodeMeasurement(b)
	require.NoError(t, err)
	assert.True(t, decoded.IsSavedProfile())
}
