package history

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// RunRow is the persisted shape of a generation item.
type RunRow struct {
	ItemID      string     `json:"item_id"`
	TemplateID  string     `json:"template_id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error,omitempty"`
	JobID       *string    `json:"job_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	HTMLURL     *string    `json:"html_url,omitempty"`
	PDFURL      *string    `json:"pdf_url,omitempty"`
	DocxURL     *string    `json:"docx_url,omitempty"`
	XlsxURL     *string    `json:"xlsx_url,omitempty"`
	Created     time.Time  `json:"created,omitempty"`
}

// DownloadRow is the persisted shape of a download record.
type DownloadRow struct {
	RecordID   string         `json:"record_id"`
	TemplateID string         `json:"template_id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Format     string         `json:"format"`
	URL        string         `json:"url"`
	Params     map[string]any `json:"params,omitempty"`
	Created    time.Time      `json:"created,omitempty"`
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordRun appends one terminal generation item to the run log.
func (c *Client) RecordRun(ctx context.Context, item models.GenerationItem) error {
	row := RunRow{
		ItemID:      item.ID,
		TemplateID:  item.TemplateID,
		Name:        item.Name,
		Kind:        string(item.Kind),
		Status:      string(item.Status),
		Progress:    item.Progress,
		Error:       optStr(item.Error),
		JobID:       optStr(item.JobID),
		CompletedAt: item.CompletedAt,
		HTMLURL:     optStr(item.Artifacts.HTMLURL),
		PDFURL:      optStr(item.Artifacts.PDFURL),
		DocxURL:     optStr(item.Artifacts.DocxURL),
		XlsxURL:     optStr(item.Artifacts.XlsxURL),
	}
	if !item.StartedAt.IsZero() {
		started := item.StartedAt
		row.StartedAt = &started
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE generation_run CONTENT $row
	`, map[string]any{"row": row})
	if err != nil {
		return fmt.Errorf("record run: %w", wrapQueryError(err))
	}
	return nil
}

// RecordDownload appends one download record. Params are stored as a flexible
// object so the request can be inspected or replayed later.
func (c *Client) RecordDownload(ctx context.Context, record models.DownloadRecord) error {
	params := map[string]any{
		"rangeStart":   record.Params.Range.StartSQL(),
		"rangeEnd":     record.Params.Range.EndSQL(),
		"connectionId": record.Params.ConnectionID,
		"formats": map[string]any{
			"docx": record.Params.Formats.Docx,
			"xlsx": record.Params.Formats.Xlsx,
		},
	}
	if record.Params.BatchIDs != nil {
		params["batchIds"] = record.Params.BatchIDs
	}
	if len(record.Params.Filters) > 0 {
		params["filters"] = record.Params.Filters
	}
	if record.Params.EmailRecipients != "" {
		params["emailRecipients"] = record.Params.EmailRecipients
		params["emailSubject"] = record.Params.EmailSubject
		params["emailMessage"] = record.Params.EmailMessage
	}

	row := DownloadRow{
		RecordID:   record.ID,
		TemplateID: record.TemplateID,
		Name:       record.Name,
		Kind:       string(record.Kind),
		Format:     record.Format,
		URL:        record.URL,
		Params:     params,
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE download CONTENT $row
	`, map[string]any{"row": row})
	if err != nil {
		return fmt.Errorf("record download: %w", wrapQueryError(err))
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A zero limit uses 50.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]RunRow](ctx, c.db, `
		SELECT * OMIT id FROM generation_run ORDER BY created DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", wrapQueryError(err))
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []RunRow{}, nil
}

// ListDownloads returns the most recent download records, newest first.
func (c *Client) ListDownloads(ctx context.Context, limit int) ([]DownloadRow, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]DownloadRow](ctx, c.db, `
		SELECT * OMIT id FROM download ORDER BY created DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", wrapQueryError(err))
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []DownloadRow{}, nil
}

// Run returns the most recent recorded run for one item id, or ErrNotFound.
func (c *Client) Run(ctx context.Context, itemID string) (RunRow, error) {
	results, err := surrealdb.Query[[]RunRow](ctx, c.db, `
		SELECT * OMIT id FROM generation_run WHERE item_id = $item
		ORDER BY created DESC LIMIT 1
	`, map[string]any{"item": itemID})
	if err != nil {
		return RunRow{}, fmt.Errorf("run %s: %w", itemID, wrapQueryError(err))
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return (*results)[0].Result[0], nil
	}
	return RunRow{}, fmt.Errorf("run %s: %w", itemID, ErrNotFound)
}

// TemplateRuns returns runs for one template, newest first.
func (c *Client) TemplateRuns(ctx context.Context, templateID string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]RunRow](ctx, c.db, `
		SELECT * OMIT id FROM generation_run WHERE template_id = $tpl
		ORDER BY created DESC LIMIT $limit
	`, map[string]any{"tpl": templateID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("template runs: %w", wrapQueryError(err))
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []RunRow{}, nil
}
