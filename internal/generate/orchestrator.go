// Package generate seeds, runs, and retries per-template generation jobs
// and tracks their artifacts.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Validation failures are detected locally, block the action, and are never
// sent to the backend.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNoDateRange       = fmt.Errorf("%w: no date range selected", ErrValidation)
	ErrNoBatchesSelected = fmt.Errorf("%w: no batches selected", ErrValidation)

	ErrUnknownItem   = errors.New("unknown generation item")
	ErrItemNotFailed = errors.New("only failed items can be retried")
)

// RunClient is the backend surface the orchestrator needs.
type RunClient interface {
	Run(ctx context.Context, req backend.RunRequest) (*backend.RunResponse, error)
}

// PreflightFunc revalidates per-template preconditions (key values filled,
// batches still selected) immediately before a run or retry. Errors should
// wrap ErrValidation.
type PreflightFunc func(templateID string) error

// Recorder persists completed runs and download records. A nil recorder is
// tolerated; persistence failures are logged, never fatal.
type Recorder interface {
	RecordRun(ctx context.Context, item models.GenerationItem) error
	RecordDownload(ctx context.Context, record models.DownloadRecord) error
}

// eventBuffer is the per-subscriber channel depth; slow consumers drop
// intermediate snapshots rather than block a transition.
const eventBuffer = 16

// Orchestrator drives per-template generation jobs through the
// queued -> running -> {complete|failed} state machine. Failed items can be
// retried explicitly; nothing retries automatically and nothing is
// cancellable once issued.
type Orchestrator struct {
	client    RunClient
	logger    *slog.Logger
	recorder  Recorder
	preflight PreflightFunc

	mu        sync.RWMutex
	order     []string
	items     map[string]*models.GenerationItem
	templates map[string]models.Template // itemID -> template
	downloads []models.DownloadRecord
	subs      map[chan models.GenerationItem]struct{}
}

// NewOrchestrator creates an orchestrator. recorder and preflight may be nil.
func NewOrchestrator(client RunClient, logger *slog.Logger, recorder Recorder, preflight PreflightFunc) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:    client,
		logger:    logger,
		recorder:  recorder,
		preflight: preflight,
		items:     make(map[string]*models.GenerationItem),
		templates: make(map[string]models.Template),
		subs:      make(map[chan models.GenerationItem]struct{}),
	}
}

// SeedRun creates one queued item per template, superseding any previous
// run. Initial progress lands in [5,15] so the UI shows liveness before the
// first status lands.
func (o *Orchestrator) SeedRun(templates []models.Template) []models.GenerationItem {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.order = o.order[:0]
	o.items = make(map[string]*models.GenerationItem, len(templates))
	o.templates = make(map[string]models.Template, len(templates))

	seeded := make([]models.GenerationItem, 0, len(templates))
	for _, tpl := range templates {
		item := models.GenerationItem{
			ID:         tpl.ID + "-" + uuid.NewString()[:8],
			TemplateID: tpl.ID,
			Name:       tpl.Name,
			Kind:       tpl.Kind,
			Status:     models.RunStatusQueued,
			Progress:   5 + rand.IntN(11),
			StartedAt:  time.Now(),
		}
		o.order = append(o.order, item.ID)
		o.items[item.ID] = &item
		o.templates[item.ID] = tpl
		seeded = append(seeded, item)
	}

	o.logger.Info("generation run seeded", "items", len(seeded))
	return seeded
}

// Items returns snapshots of all items in seed order.
func (o *Orchestrator) Items() []models.GenerationItem {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.GenerationItem, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.items[id])
	}
	return out
}

// Item returns a snapshot of one item.
func (o *Orchestrator) Item(id string) (models.GenerationItem, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[id]
	if !ok {
		return models.GenerationItem{}, false
	}
	return *item, true
}

// ParamsFunc supplies the run parameters for one template at run time.
type ParamsFunc func(templateID string) models.RunParams

// RunSeeded runs every seeded item in order. Items fail and succeed
// independently; one failure never interrupts the loop.
func (o *Orchestrator) RunSeeded(ctx context.Context, paramsFor ParamsFunc) []models.GenerationItem {
	for _, id := range o.itemIDs() {
		item, ok := o.Item(id)
		if !ok {
			continue
		}
		if err := o.RunOne(ctx, id, paramsFor(item.TemplateID)); err != nil {
			o.logger.Warn("generation item failed", "item", id, "template", item.TemplateID, "error", err)
		}
	}
	return o.Items()
}

// RunOne validates, issues, and settles a single item's run request. The
// returned error reflects the run outcome; the item's terminal state carries
// the same information for observers.
func (o *Orchestrator) RunOne(ctx context.Context, itemID string, params models.RunParams) error {
	o.mu.RLock()
	_, ok := o.items[itemID]
	var tpl models.Template
	if ok {
		tpl = o.templates[itemID]
	}
	o.mu.RUnlock()
	if !ok {
		return ErrUnknownItem
	}

	if err := o.validate(tpl.ID, params); err != nil {
		o.settle(itemID, models.ArtifactSet{}, "", err)
		return err
	}

	o.transition(itemID, func(it *models.GenerationItem) {
		it.Status = models.RunStatusRunning
	})

	resp, err := o.client.Run(ctx, backend.RunRequest{
		TemplateID:      tpl.ID,
		StartDate:       params.Range.StartSQL(),
		EndDate:         params.Range.EndSQL(),
		BatchIDs:        params.BatchIDs,
		ConnectionID:    params.ConnectionID,
		KeyValues:       params.Filters,
		Docx:            params.Formats.Docx,
		Xlsx:            params.Formats.Xlsx,
		Kind:            string(tpl.Kind),
		EmailRecipients: params.EmailRecipients,
		EmailSubject:    params.EmailSubject,
		EmailMessage:    params.EmailMessage,
	})
	if err != nil {
		o.settle(itemID, models.ArtifactSet{}, "", err)
		return err
	}

	o.settle(itemID, resp.Artifacts(), resp.JobID, nil)
	o.appendDownload(ctx, itemID, params)
	return nil
}

// Retry re-runs a failed item. Preconditions are revalidated first; a
// validation failure leaves the item untouched. On success only this item's
// status, progress, and artifacts are reset; every sibling is left
// byte-for-byte unchanged.
func (o *Orchestrator) Retry(ctx context.Context, itemID string, params models.RunParams) error {
	o.mu.RLock()
	item, ok := o.items[itemID]
	var status models.RunStatus
	var tpl models.Template
	if ok {
		status = item.Status
		tpl = o.templates[itemID]
	}
	o.mu.RUnlock()

	if !ok {
		return ErrUnknownItem
	}
	if status != models.RunStatusFailed {
		return ErrItemNotFailed
	}
	if err := o.validate(tpl.ID, params); err != nil {
		return err
	}

	o.transition(itemID, func(it *models.GenerationItem) {
		it.Status = models.RunStatusRunning
		it.Progress = 5 + rand.IntN(11)
		it.Artifacts = models.ArtifactSet{}
		it.JobID = ""
		it.Error = ""
		it.CompletedAt = nil
		it.StartedAt = time.Now()
	})

	return o.RunOne(ctx, itemID, params)
}

// Downloads returns the append-only download log, newest last.
func (o *Orchestrator) Downloads() []models.DownloadRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]models.DownloadRecord(nil), o.downloads...)
}

// Rerun seeds and runs a fresh single-template generation from a download
// record, re-invoking the whole sequence with the recorded parameters.
func (o *Orchestrator) Rerun(ctx context.Context, recordID string) ([]models.GenerationItem, error) {
	var record models.DownloadRecord
	found := false
	o.mu.RLock()
	for _, d := range o.downloads {
		if d.ID == recordID {
			record = d
			found = true
			break
		}
	}
	o.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("download record %s: %w", recordID, ErrUnknownItem)
	}

	tpl := models.Template{ID: record.TemplateID, Name: record.Name, Kind: record.Kind}
	o.SeedRun([]models.Template{tpl})
	return o.RunSeeded(ctx, func(string) models.RunParams { return record.Params }), nil
}

// Subscribe registers an observer of item transitions. The cancel function
// must be called to release the channel.
func (o *Orchestrator) Subscribe() (<-chan models.GenerationItem, func()) {
	ch := make(chan models.GenerationItem, eventBuffer)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

func (o *Orchestrator) itemIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.order...)
}

func (o *Orchestrator) validate(templateID string, params models.RunParams) error {
	if params.Range.IsZero() {
		return ErrNoDateRange
	}
	if params.BatchIDs != nil && len(params.BatchIDs) == 0 {
		return ErrNoBatchesSelected
	}
	if o.preflight != nil {
		if err := o.preflight(templateID); err != nil {
			return err
		}
	}
	return nil
}

// settle moves an item to its terminal state and publishes the transition.
func (o *Orchestrator) settle(itemID string, artifacts models.ArtifactSet, jobID string, runErr error) {
	o.transition(itemID, func(it *models.GenerationItem) {
		now := time.Now()
		it.Progress = 100
		it.CompletedAt = &now
		if runErr != nil {
			it.Status = models.RunStatusFailed
			it.Error = runErr.Error()
			return
		}
		it.Status = models.RunStatusComplete
		it.Error = ""
		it.Artifacts = artifacts
		it.JobID = jobID
	})

	if item, ok := o.Item(itemID); ok && o.recorder != nil {
		if err := o.recorder.RecordRun(context.Background(), item); err != nil {
			o.logger.Warn("failed to persist run", "item", itemID, "error", err)
		}
	}
}

func (o *Orchestrator) appendDownload(ctx context.Context, itemID string, params models.RunParams) {
	item, ok := o.Item(itemID)
	if !ok {
		return
	}
	format, url := item.Artifacts.PrimaryFormat(params.Formats)
	record := models.DownloadRecord{
		ID:         uuid.NewString(),
		TemplateID: item.TemplateID,
		Name:       item.Name,
		Kind:       item.Kind,
		Format:     format,
		URL:        url,
		Artifacts:  item.Artifacts,
		Params:     params,
		CreatedAt:  time.Now(),
	}

	o.mu.Lock()
	o.downloads = append(o.downloads, record)
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordDownload(ctx, record); err != nil {
			o.logger.Warn("failed to persist download", "record", record.ID, "error", err)
		}
	}
}

// transition applies a mutation to one item and publishes the new snapshot.
// Sends happen under the lock; cancel closes subscriber channels under the
// same lock, so a send can never race a close. Sends are non-blocking, a
// slow consumer drops the intermediate snapshot.
func (o *Orchestrator) transition(itemID string, fn func(*models.GenerationItem)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	item, ok := o.items[itemID]
	if !ok {
		return
	}
	fn(item)
	snapshot := *item

	for ch := range o.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
