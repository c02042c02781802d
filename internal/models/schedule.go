package models

import "time"

// Schedule is a recurring generation request, persisted by the backend.
// The repo only creates, lists, and deletes schedules; execution is owned by
// the backend.
type Schedule struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	TemplateID string     `json:"templateId"`
	Frequency  string     `json:"frequency"`
	StartDate  string     `json:"startDate"`
	EndDate    string     `json:"endDate"`
	BatchIDs   []string      `json:"batchIds,omitempty"`
	KeyValues  KeyFilters    `json:"keyValues,omitempty"`
	Formats    FormatRequest `json:"formats"`
	CreatedAt  time.Time     `json:"createdAt,omitempty"`
}
