package models

import "time"

// RunStatus is the lifecycle state of a generation item.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether the status admits no further transition except an
// explicit retry.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// ArtifactSet holds the output URLs of a completed run. Any subset may be
// empty; a missing format simply has no download action.
type ArtifactSet struct {
	HTMLURL string `json:"htmlUrl,omitempty"`
	PDFURL  string `json:"pdfUrl,omitempty"`
	DocxURL string `json:"docxUrl,omitempty"`
	XlsxURL string `json:"xlsxUrl,omitempty"`
}

// Empty reports whether no artifact URL is present.
func (a ArtifactSet) Empty() bool {
	return a == ArtifactSet{}
}

// FormatRequest records which optional output formats the user asked for.
// HTML and PDF are always implied.
type FormatRequest struct {
	Docx bool `json:"docx"`
	Xlsx bool `json:"xlsx"`
}

// PrimaryFormat picks the single extension used for the download label:
// xlsx when requested and returned, else docx when requested and returned,
// else pdf, else html. Returns empty when no artifact exists at all.
func (a ArtifactSet) PrimaryFormat(req FormatRequest) (format, url string) {
	switch {
	case req.Xlsx && a.XlsxURL != "":
		return "xlsx", a.XlsxURL
	case req.Docx && a.DocxURL != "":
		return "docx", a.DocxURL
	case a.PDFURL != "":
		return "pdf", a.PDFURL
	case a.HTMLURL != "":
		return "html", a.HTMLURL
	}
	return "", ""
}

// GenerationItem tracks one per-template generation job. Items are created
// by a seed, mutated in place by status transitions, and superseded (never
// deleted) by the next seed.
type GenerationItem struct {
	ID          string       `json:"id"`
	TemplateID  string       `json:"tplId"`
	Name        string       `json:"name"`
	Kind        TemplateKind `json:"kind"`
	Status      RunStatus    `json:"status"`
	Progress    int          `json:"progress"`
	Artifacts   ArtifactSet  `json:"artifacts"`
	JobID       string       `json:"jobId,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// RunParams carries everything one run request needs beyond the template
// itself. BatchIDs nil means "all discovered batches".
type RunParams struct {
	Range           DateRange
	ConnectionID    string
	BatchIDs        []string
	Filters         KeyFilters
	Formats         FormatRequest
	EmailRecipients string
	EmailSubject    string
	EmailMessage    string
}

// DownloadRecord is the append-only log entry created when a run completes.
// Params preserves the exact request so the record can be rerun later.
type DownloadRecord struct {
	ID         string       `json:"id"`
	TemplateID string       `json:"templateId"`
	Name       string       `json:"name"`
	Kind       TemplateKind `json:"kind"`
	Format     string       `json:"format"`
	URL        string       `json:"url"`
	Artifacts  ArtifactSet  `json:"artifacts"`
	Params     RunParams    `json:"-"`
	CreatedAt  time.Time    `json:"createdAt"`
}
