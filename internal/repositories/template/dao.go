package template

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	templatesTable = "templates"
	// columns tagged immutable are written on insert only
	immutableTag = "immutable"
)

// TemplateRow represents the database row for a template
type TemplateRow struct {
	ID              sql.NullString   `db:"id" fieldtag:"immutable"`
	Shop            sql.NullString   `db:"shop" fieldtag:"immutable"`
	Name            sql.NullString   `db:"name"`
	Description     sql.NullString   `db:"description"`
	Active          sql.NullBool     `db:"active"`
	ChartData       database.RawJSON `db:"chart_data"`
	MeasurementFile sql.NullString   `db:"measurement_file"`
	CreatedAt       sql.NullTime     `db:"created_at" fieldtag:"immutable"`
	UpdatedAt       sql.NullTime     `db:"updated_at"`
}

var templateStruct = database.NewStruct(new(TemplateRow))

// FromTemplate converts a domain model to a database row
func FromTemplate(t *models.Template) (*TemplateRow, error) {
	data, err := database.NewRawJSON(t.ChartData)
	if err != nil {
		return nil, err
	}

	return &TemplateRow{
		ID:              sql.NullString{String: t.ID, Valid: t.ID != ""},
		Shop:            sql.NullString{String: t.Shop, Valid: t.Shop != ""},
		Name:            sql.NullString{String: t.Name, Valid: t.Name != ""},
		Description:     sql.NullString{String: t.Description, Valid: true},
		Active:          sql.NullBool{Bool: t.Active, Valid: true},
		ChartData:       data,
		MeasurementFile: sql.NullString{String: t.MeasurementFile, Valid: t.MeasurementFile != ""},
		CreatedAt:       sql.NullTime{Time: t.CreatedAt, Valid: !t.CreatedAt.IsZero()},
		UpdatedAt:       sql.NullTime{Time: t.UpdatedAt, Valid: !t.UpdatedAt.IsZero()},
	}, nil
}

// ToTemplate converts a database row to a domain model. Malformed chart data
// becomes an empty object and the parse error is returned alongside.
func ToTemplate(row *TemplateRow) (*models.Template, error) {
	data, err := chart.Parse([]byte(row.ChartData))

	return &models.Template{
		ID:              row.ID.String,
		Shop:            row.Shop.String,
		Name:            row.Name.String,
		Description:     row.Description.String,
		Active:          row.Active.Bool,
		ChartData:       data,
		MeasurementFile: row.MeasurementFile.String,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}, err
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
