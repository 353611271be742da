package models

import "time"

// Assignment links a product to the template it shows. A product holds at most
// one assignment per chart kind.
type Assignment struct {
	ID           string    `json:"id" db:"id"`
	Shop         string    `json:"shop" db:"shop"`
	ProductID    string    `json:"product_id" db:"product_id"`
	TemplateID   string    `json:"template_id" db:"template_id"`
	ProductTitle string    `json:"product_title,omitempty" db:"product_title"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AssignmentWithTemplate is an assignment joined with its template. Template is
// nil when the referenced template no longer exists.
type AssignmentWithTemplate struct {
	Assignment
	Template *Template `json:"template,omitempty"`
}
