// Package storefront is the client for the public size chart endpoints, along
// with the JSON envelopes those endpoints speak.
package storefront

import "time"

// Template is a template as the public endpoints show it.
type Template struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	ChartData       map[string]any `json:"chartData"`
	MeasurementFile string         `json:"measurementFile,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
}

// ChartResponse is the body of GET /size-chart/public.
type ChartResponse struct {
	HasChart    bool      `json:"hasChart"`
	ProductName string    `json:"productName,omitempty"`
	Template    *Template `json:"template,omitempty"`
	Error       string    `json:"error,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// ProfilesResponse is the body of the /measurement-template/public endpoints.
type ProfilesResponse struct {
	Success   bool       `json:"success"`
	Templates []Template `json:"templates,omitempty"`
	Template  *Template  `json:"template,omitempty"`
	Error     string     `json:"error,omitempty"`
	Details   string     `json:"details,omitempty"`
}

// ProfileDraft is the body a buyer submits to save a profile.
type ProfileDraft struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	ChartData       map[string]any `json:"chartData"`
	MeasurementFile string         `json:"measurementFile,omitempty"`
}
