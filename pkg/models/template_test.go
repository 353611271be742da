package models

import (
	"testing"

	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/stretchr/testify/assert"
)

func TestTemplateKind(t *testing.T) {
	table := &Template{ChartData: map[string]any{"columns": []any{}}}
	custom := &Template{ChartData: map[string]any{"isMeasurementTemplate": true}}
	empty := &Template{}

	assert.Equal(t, chart.KindTable, table.Kind())
	assert.Equal(t, chart.KindCustom, custom.Kind())
	assert.Equal(t, chart.KindTable, empty.Kind())
}

func TestTemplateIsSavedProfile(t *testing.T) {
	merchant := &Template{ChartData: map[string]any{"isMeasurementTemplate": true}}
	saved := &Template{ChartData: map[string]any{
		"isMeasurementTemplate": true,
		"savedMeasurements":     map[string]any{"chest": 38.0},
	}}
	savedOnTable := &Template{ChartData: map[string]any{
		"savedMeasurements": map[string]any{"chest": 38.0},
	}}

	assert.False(t, merchant.IsSavedProfile())
	assert.True(t, saved.IsSavedProfile())
	assert.False(t, savedOnTable.IsSavedProfile())
}
