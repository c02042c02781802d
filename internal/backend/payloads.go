package backend

import (
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Wire shapes for the report backend. Responses are only loosely typed at
// the batch level; normalization into domain types happens exactly once, in
// the discovery engine.

// KeyOptionsRequest asks for the legal values of a template's filter tokens
// within a (connection, range) scope.
type KeyOptionsRequest struct {
	TemplateID   string   `json:"templateId"`
	ConnectionID string   `json:"connectionId,omitempty"`
	Tokens       []string `json:"tokens"`
	Limit        int      `json:"limit"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Kind         string   `json:"kind"`
}

// KeyOptionsResponse maps each requested token to its distinct values.
// Values may arrive as numbers; they are coerced downstream.
type KeyOptionsResponse struct {
	Keys map[string][]any `json:"keys"`
}

// DiscoveryRequest asks for the candidate batches of one template.
type DiscoveryRequest struct {
	TemplateID   string            `json:"templateId"`
	StartDate    string            `json:"startDate"`
	EndDate      string            `json:"endDate"`
	ConnectionID string            `json:"connectionId,omitempty"`
	KeyValues    models.KeyFilters `json:"keyValues,omitempty"`
	Kind         string            `json:"kind"`
}

// RawBatch is one batch as the backend reports it. Every field is optional
// and loosely typed; ids default to the 1-based position when absent.
type RawBatch struct {
	ID       any   `json:"id"`
	Parent   any   `json:"parent"`
	Rows     any   `json:"rows"`
	Time     any   `json:"time"`
	Category any   `json:"category"`
	Selected *bool `json:"selected"`
}

// RawBatchMetric is one per-batch metric row from the backend.
type RawBatchMetric struct {
	BatchID  any `json:"batch_id"`
	Time     any `json:"time"`
	Category any `json:"category"`
	Rows     any `json:"rows"`
	Parent   any `json:"parent"`
}

// DiscoveryResponse is the raw discovery payload. Counts, catalog, schema,
// bins, and groups may each be absent; defaults are derived downstream.
type DiscoveryResponse struct {
	Batches         []RawBatch               `json:"batches"`
	BatchesCount    *int                     `json:"batches_count"`
	RowsTotal       *int64                   `json:"rows_total"`
	FieldCatalog    []models.FieldDescriptor `json:"field_catalog"`
	DiscoverySchema *models.DiscoverySchema  `json:"discovery_schema"`
	BatchMetrics    []RawBatchMetric         `json:"batch_metrics"`
	NumericBins     []float64                `json:"numeric_bins"`
	CategoryGroups  map[string]string        `json:"category_groups"`
}

// RunRequest starts generation of one template. BatchIDs nil means all
// discovered batches.
type RunRequest struct {
	TemplateID      string            `json:"templateId"`
	StartDate       string            `json:"startDate"`
	EndDate         string            `json:"endDate"`
	BatchIDs        []string          `json:"batchIds"`
	ConnectionID    string            `json:"connectionId,omitempty"`
	KeyValues       models.KeyFilters `json:"keyValues,omitempty"`
	Docx            bool              `json:"docx"`
	Xlsx            bool              `json:"xlsx"`
	Kind            string            `json:"kind"`
	EmailRecipients string            `json:"emailRecipients,omitempty"`
	EmailSubject    string            `json:"emailSubject,omitempty"`
	EmailMessage    string            `json:"emailMessage,omitempty"`
}

// RunResponse carries whichever artifact URLs the backend produced. Any
// subset may be present.
type RunResponse struct {
	HTMLURL string `json:"html_url"`
	PDFURL  string `json:"pdf_url"`
	DocxURL string `json:"docx_url"`
	XlsxURL string `json:"xlsx_url"`
	JobID   string `json:"job_id"`
}

// Artifacts folds the response into the domain artifact set.
func (r RunResponse) Artifacts() models.ArtifactSet {
	return models.ArtifactSet{
		HTMLURL: r.HTMLURL,
		PDFURL:  r.PDFURL,
		DocxURL: r.DocxURL,
		XlsxURL: r.XlsxURL,
	}
}

// ScheduleRequest creates a recurring generation on the backend. It carries
// the same filter/batch/date shape as a run request plus name and frequency.
type ScheduleRequest struct {
	Name         string            `json:"name"`
	Frequency    string            `json:"frequency"`
	TemplateID   string            `json:"templateId"`
	StartDate    string            `json:"startDate"`
	EndDate      string            `json:"endDate"`
	BatchIDs     []string          `json:"batchIds"`
	ConnectionID string            `json:"connectionId,omitempty"`
	KeyValues    models.KeyFilters `json:"keyValues,omitempty"`
	Docx         bool              `json:"docx"`
	Xlsx         bool              `json:"xlsx"`
	Kind         string            `json:"kind"`
}
