package assignment

import (
	"database/sql"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	assignmentsTable = "assignments"
)

// AssignmentRow represents the database row for an assignment
type AssignmentRow struct {
	ID           sql.NullString `db:"id"`
	Shop         sql.NullString `db:"shop"`
	ProductID    sql.NullString `db:"product_id"`
	TemplateID   sql.NullString `db:"template_id"`
	ProductTitle sql.NullString `db:"product_title"`
	CreatedAt    sql.NullTime   `db:"created_at"`
}

var assignmentStruct = database.NewStruct(new(AssignmentRow))

// FromAssignment converts a domain model to a database row
func FromAssignment(a *models.Assignment) *AssignmentRow {
	return &AssignmentRow{
		ID:           sql.NullString{String: a.ID, Valid: a.ID != ""},
		Shop:         sql.NullString{String: a.Shop, Valid: a.Shop != ""},
		ProductID:    sql.NullString{String: a.ProductID, Valid: a.ProductID != ""},
		TemplateID:   sql.NullString{String: a.TemplateID, Valid: a.TemplateID != ""},
		ProductTitle: sql.NullString{String: a.ProductTitle, Valid: a.ProductTitle != ""},
		CreatedAt:    sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()},
	}
}

// ToAssignment converts a database row to a domain model
func ToAssignment(row *AssignmentRow) *models.Assignment {
	return &models.Assignment{
		ID:           row.ID.String,
		Shop:         row.Shop.String,
		ProductID:    row.ProductID.String,
		TemplateID:   row.TemplateID.String,
		ProductTitle: row.ProductTitle.String,
		CreatedAt:    row.CreatedAt.Time,
	}
}

// ToAssignments converts a slice of database rows to domain models
func ToAssignments(rows []AssignmentRow) []*models.Assignment {
	assignments := make([]*models.Assignment, len(rows))
	for i := range rows {
		assignments[i] = ToAssignment(&rows[i])
	}
	return assignments
}

// Now returns the current time in UTC
func Now() time.Time {
	return time.Now().UTC()
}
