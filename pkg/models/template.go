package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/chart"
)

// Template is a stored chart definition scoped to a shop. Saved buyer profiles
// are templates too; they carry savedMeasurements in their chart data.
type Template struct {
	ID              string         `json:"id" db:"id"`
	Shop            string         `json:"shop" db:"shop"`
	Name            string         `json:"name" db:"name"`
	Description     string         `json:"description" db:"description"`
	Active          bool           `json:"active" db:"active"`
	ChartData       map[string]any `json:"chart_data" db:"chart_data"`
	MeasurementFile string         `json:"measurement_file,omitempty" db:"measurement_file"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Kind returns the chart variant the template's data represents.
func (t *Template) Kind() chart.Kind {
	return chart.Classify(t.ChartData)
}

// IsSavedProfile reports whether the template is a buyer's saved measurement profile.
func (t *Template) IsSavedProfile() bool {
	if t.Kind() != chart.KindCustom {
		return false
	}
	saved, ok := t.ChartData["savedMeasurements"]
	return ok && saved != nil
}

// Chart decodes the template's chart data.
func (t *Template) Chart() (chart.Chart, error) {
	return chart.Decode(t.ChartData)
}

// TemplateSummary counts a shop's merchant templates per kind.
type TemplateSummary struct {
	Total         int `json:"total"`
	Table         int `json:"table"`
	Custom        int `json:"custom"`
	Active        int `json:"active"`
	SavedProfiles int `json:"saved_profiles"`
}
