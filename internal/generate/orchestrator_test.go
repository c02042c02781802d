package generate

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

type fakeRunClient struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []backend.RunRequest
	resp  map[string]*backend.RunResponse
}

func (f *fakeRunClient) Run(_ context.Context, req backend.RunRequest) (*backend.RunResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.fail[req.TemplateID]; err != nil {
		return nil, err
	}
	if r, ok := f.resp[req.TemplateID]; ok {
		return r, nil
	}
	return &backend.RunResponse{PDFURL: "/out/" + req.TemplateID + ".pdf", HTMLURL: "/out/" + req.TemplateID + ".html"}, nil
}

var runRange = models.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
}

func params() models.RunParams {
	return models.RunParams{Range: runRange, BatchIDs: []string{"1", "2"}}
}

func twoTemplates() []models.Template {
	return []models.Template{
		{ID: "t1", Name: "Shift Report", Kind: models.TemplateKindPDF},
		{ID: "t2", Name: "Line Summary", Kind: models.TemplateKindExcel},
	}
}

func TestSeedRun(t *testing.T) {
	o := NewOrchestrator(&fakeRunClient{}, nil, nil, nil)
	items := o.SeedRun(twoTemplates())

	if len(items) != 2 {
		t.Fatalf("seeded %d items", len(items))
	}
	seen := map[string]bool{}
	for _, it := range items {
		if it.Status != models.RunStatusQueued {
			t.Errorf("item %s status = %s, want queued", it.ID, it.Status)
		}
		if it.Progress < 5 || it.Progress > 15 {
			t.Errorf("item %s initial progress = %d, want 5..15", it.ID, it.Progress)
		}
		if seen[it.ID] {
			t.Errorf("duplicate item id %s", it.ID)
		}
		seen[it.ID] = true
	}

	// A fresh seed supersedes, never appends.
	o.SeedRun(twoTemplates()[:1])
	if got := len(o.Items()); got != 1 {
		t.Errorf("after reseed: %d items, want 1", got)
	}
}

func TestRunSeededSuccess(t *testing.T) {
	client := &fakeRunClient{}
	o := NewOrchestrator(client, nil, nil, nil)
	o.SeedRun(twoTemplates())

	items := o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	for _, it := range items {
		if it.Status != models.RunStatusComplete || it.Progress != 100 {
			t.Errorf("item %s = %s/%d, want complete/100", it.ID, it.Status, it.Progress)
		}
		if it.Artifacts.PDFURL == "" {
			t.Errorf("item %s missing pdf artifact", it.ID)
		}
		if it.CompletedAt == nil {
			t.Errorf("item %s missing completion time", it.ID)
		}
	}

	downloads := o.Downloads()
	if len(downloads) != 2 {
		t.Fatalf("got %d download records", len(downloads))
	}
	if downloads[0].Format != "pdf" {
		t.Errorf("primary format = %q, want pdf", downloads[0].Format)
	}
}

func TestRunFailureDoesNotInterruptSiblings(t *testing.T) {
	client := &fakeRunClient{fail: map[string]error{"t1": errors.New("renderer crashed")}}
	o := NewOrchestrator(client, nil, nil, nil)
	o.SeedRun(twoTemplates())

	items := o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	if items[0].Status != models.RunStatusFailed || items[0].Progress != 100 {
		t.Errorf("failed item = %s/%d, want failed/100", items[0].Status, items[0].Progress)
	}
	if items[0].Error == "" {
		t.Error("failed item must surface its error")
	}
	if items[1].Status != models.RunStatusComplete {
		t.Errorf("sibling = %s, want complete", items[1].Status)
	}
}

func TestRetryTransitionsFailedItemToComplete(t *testing.T) {
	client := &fakeRunClient{fail: map[string]error{"t1": errors.New("transient")}}
	o := NewOrchestrator(client, nil, nil, nil)
	seeded := o.SeedRun(twoTemplates())
	o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	failedID := seeded[0].ID
	siblingBefore, _ := o.Item(seeded[1].ID)

	// Backend recovers; retry with the same batch ids.
	client.mu.Lock()
	client.fail = nil
	client.mu.Unlock()

	if err := o.Retry(context.Background(), failedID, params()); err != nil {
		t.Fatal(err)
	}

	item, ok := o.Item(failedID)
	if !ok {
		t.Fatal("item vanished")
	}
	if item.ID != failedID {
		t.Errorf("retry must keep the item id, got %s", item.ID)
	}
	if item.Status != models.RunStatusComplete || item.Artifacts.PDFURL == "" {
		t.Errorf("retried item = %s pdf=%q, want complete with pdf", item.Status, item.Artifacts.PDFURL)
	}
	if item.Error != "" {
		t.Errorf("retried item error not reset: %q", item.Error)
	}

	siblingAfter, _ := o.Item(seeded[1].ID)
	if !reflect.DeepEqual(siblingBefore, siblingAfter) {
		t.Errorf("retry mutated sibling:\nbefore %+v\nafter  %+v", siblingBefore, siblingAfter)
	}
}

func TestRetryPreconditions(t *testing.T) {
	client := &fakeRunClient{}
	o := NewOrchestrator(client, nil, nil, nil)
	seeded := o.SeedRun(twoTemplates())
	o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	// Completed items cannot be retried.
	if err := o.Retry(context.Background(), seeded[0].ID, params()); !errors.Is(err, ErrItemNotFailed) {
		t.Errorf("retry of complete item: %v", err)
	}
	if err := o.Retry(context.Background(), "nope", params()); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("retry of unknown item: %v", err)
	}
}

func TestRetryValidationLeavesItemUntouched(t *testing.T) {
	client := &fakeRunClient{fail: map[string]error{"t1": errors.New("boom")}}
	o := NewOrchestrator(client, nil, nil, nil)
	seeded := o.SeedRun(twoTemplates()[:1])
	o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	before, _ := o.Item(seeded[0].ID)

	bad := params()
	bad.Range = models.DateRange{}
	if err := o.Retry(context.Background(), seeded[0].ID, bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}

	after, _ := o.Item(seeded[0].ID)
	if !reflect.DeepEqual(before, after) {
		t.Error("failed validation must not touch the item")
	}
	if len(client.calls) != 1 {
		t.Error("validation failure must not reach the backend")
	}
}

func TestValidation(t *testing.T) {
	preflightErr := errors.New("keys not filled")
	o := NewOrchestrator(&fakeRunClient{}, nil, nil, func(string) error { return preflightErr })
	seeded := o.SeedRun(twoTemplates()[:1])

	noRange := models.RunParams{BatchIDs: []string{"1"}}
	if err := o.RunOne(context.Background(), seeded[0].ID, noRange); !errors.Is(err, ErrNoDateRange) {
		t.Errorf("missing range: %v", err)
	}

	o.SeedRun(twoTemplates()[:1])
	seeded = o.Items()
	empty := models.RunParams{Range: runRange, BatchIDs: []string{}}
	if err := o.RunOne(context.Background(), seeded[0].ID, empty); !errors.Is(err, ErrNoBatchesSelected) {
		t.Errorf("empty batch selection: %v", err)
	}

	o.SeedRun(twoTemplates()[:1])
	seeded = o.Items()
	if err := o.RunOne(context.Background(), seeded[0].ID, params()); !errors.Is(err, preflightErr) {
		t.Errorf("preflight: %v", err)
	}

	// Nil batch ids mean "all batches" and pass validation.
	o2 := NewOrchestrator(&fakeRunClient{}, nil, nil, nil)
	seeded = o2.SeedRun(twoTemplates()[:1])
	if err := o2.RunOne(context.Background(), seeded[0].ID, models.RunParams{Range: runRange}); err != nil {
		t.Errorf("nil batch ids should run: %v", err)
	}
}

func TestXlsxPrimaryFormat(t *testing.T) {
	client := &fakeRunClient{resp: map[string]*backend.RunResponse{
		"t2": {PDFURL: "/r.pdf", XlsxURL: "/r.xlsx", DocxURL: "/r.docx"},
	}}
	o := NewOrchestrator(client, nil, nil, nil)
	o.SeedRun([]models.Template{{ID: "t2", Name: "Line Summary", Kind: models.TemplateKindExcel}})

	p := params()
	p.Formats = models.FormatRequest{Xlsx: true, Docx: true}
	o.RunSeeded(context.Background(), func(string) models.RunParams { return p })

	downloads := o.Downloads()
	if len(downloads) != 1 {
		t.Fatal("expected one download")
	}
	if downloads[0].Format != "xlsx" || downloads[0].URL != "/r.xlsx" {
		t.Errorf("primary = %s %s, want xlsx /r.xlsx", downloads[0].Format, downloads[0].URL)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	o := NewOrchestrator(&fakeRunClient{}, nil, nil, nil)
	ch, cancel := o.Subscribe()
	defer cancel()

	seeded := o.SeedRun(twoTemplates()[:1])
	o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	var statuses []models.RunStatus
	for {
		select {
		case item := <-ch:
			statuses = append(statuses, item.Status)
			if item.Status.Terminal() {
				if item.ID != seeded[0].ID {
					t.Errorf("event for unexpected item %s", item.ID)
				}
				if len(statuses) < 2 {
					t.Errorf("expected running then terminal, got %v", statuses)
				}
				return
			}
		case <-time.After(time.Second):
			t.Fatal("no terminal event received")
		}
	}
}

func TestCancelDuringTransitionsDoesNotPanic(t *testing.T) {
	o := NewOrchestrator(&fakeRunClient{}, nil, nil, nil)
	seeded := o.SeedRun(twoTemplates()[:1])
	id := seeded[0].ID

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			o.transition(id, func(it *models.GenerationItem) { it.Progress = i % 100 })
		}
	}()

	// Subscribers come and go while transitions publish. A cancel that
	// lands between a snapshot and its send must never hit a closed channel.
	for i := 0; i < 2000; i++ {
		ch, cancel := o.Subscribe()
		go func() {
			for range ch {
			}
		}()
		cancel()
	}
	<-done
}

func TestRerunFromDownloadRecord(t *testing.T) {
	client := &fakeRunClient{}
	o := NewOrchestrator(client, nil, nil, nil)
	o.SeedRun(twoTemplates()[:1])
	o.RunSeeded(context.Background(), func(string) models.RunParams { return params() })

	record := o.Downloads()[0]
	items, err := o.Rerun(context.Background(), record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Status != models.RunStatusComplete {
		t.Fatalf("rerun items = %+v", items)
	}
	if len(client.calls) != 2 {
		t.Errorf("rerun should issue a second run request, got %d", len(client.calls))
	}
	if !reflect.DeepEqual(client.calls[0].BatchIDs, client.calls[1].BatchIDs) {
		t.Error("rerun must reuse the recorded batch ids")
	}
}
