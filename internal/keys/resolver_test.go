package keys

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

type fakeOptionsClient struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	keys     map[string]map[string][]any
	beforeMu func(templateID string)
}

func (f *fakeOptionsClient) KeyOptions(_ context.Context, req backend.KeyOptionsRequest) (*backend.KeyOptionsResponse, error) {
	if f.beforeMu != nil {
		f.beforeMu(req.TemplateID)
	}
	f.mu.Lock()
	f.calls = append(f.calls, req.TemplateID)
	f.mu.Unlock()

	if err := f.fail[req.TemplateID]; err != nil {
		return nil, err
	}
	return &backend.KeyOptionsResponse{Keys: f.keys[req.TemplateID]}, nil
}

func (f *fakeOptionsClient) callCount(templateID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.calls {
		if id == templateID {
			n++
		}
	}
	return n
}

var testRange = models.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
}

func TestResolveNormalizesAndCaches(t *testing.T) {
	client := &fakeOptionsClient{keys: map[string]map[string][]any{
		"t1": {"region": {" north ", "south", "north", "", 3}},
	}}
	r := NewResolver(client, nil)
	tpl := models.Template{ID: "t1", Kind: models.TemplateKindPDF, MappingKeys: []string{"region"}}

	set, err := r.Resolve(context.Background(), tpl, "conn-1", testRange)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"north", "south", "3"}
	if len(set["region"]) != len(want) {
		t.Fatalf("region = %v, want %v", set["region"], want)
	}
	for i, v := range want {
		if set["region"][i] != v {
			t.Errorf("region[%d] = %q, want %q", i, set["region"][i], v)
		}
	}

	// Same scope: no refetch.
	if _, err := r.Resolve(context.Background(), tpl, "conn-1", testRange); err != nil {
		t.Fatal(err)
	}
	if got := client.callCount("t1"); got != 1 {
		t.Errorf("unchanged scope refetched: %d calls", got)
	}

	// New connection: refetch.
	if _, err := r.Resolve(context.Background(), tpl, "conn-2", testRange); err != nil {
		t.Fatal(err)
	}
	if got := client.callCount("t1"); got != 2 {
		t.Errorf("changed scope not refetched: %d calls", got)
	}
}

func TestResolveNoKeysSkipsNetwork(t *testing.T) {
	client := &fakeOptionsClient{}
	r := NewResolver(client, nil)

	set, err := r.Resolve(context.Background(), models.Template{ID: "bare"}, "conn", testRange)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
	if len(client.calls) != 0 {
		t.Error("keyless template must not hit the backend")
	}
}

func TestResolveAllIsolatesFailures(t *testing.T) {
	client := &fakeOptionsClient{
		keys: map[string]map[string][]any{
			"ok": {"region": {"north"}},
		},
		fail: map[string]error{"bad": errors.New("boom")},
	}
	r := NewResolver(client, nil)

	templates := []models.Template{
		{ID: "ok", MappingKeys: []string{"region"}},
		{ID: "bad", MappingKeys: []string{"region"}},
	}
	outcomes := r.ResolveAll(context.Background(), templates, "conn", testRange)

	if outcomes["ok"] != nil {
		t.Errorf("ok template failed: %v", outcomes["ok"])
	}
	if outcomes["bad"] == nil {
		t.Error("bad template should report its error")
	}
	if opts := r.Options("ok"); len(opts["region"]) != 1 {
		t.Errorf("sibling cache corrupted: %v", opts)
	}
}

func TestResolveFailureKeepsPriorOptions(t *testing.T) {
	client := &fakeOptionsClient{keys: map[string]map[string][]any{
		"t1": {"region": {"north"}},
	}}
	r := NewResolver(client, nil)
	tpl := models.Template{ID: "t1", MappingKeys: []string{"region"}}

	if _, err := r.Resolve(context.Background(), tpl, "conn-1", testRange); err != nil {
		t.Fatal(err)
	}

	client.fail = map[string]error{"t1": errors.New("backend down")}
	if _, err := r.Resolve(context.Background(), tpl, "conn-2", testRange); err == nil {
		t.Fatal("expected error")
	}
	if opts := r.Options("t1"); len(opts["region"]) != 1 {
		t.Errorf("failed fetch corrupted cache: %v", opts)
	}

	// Failure must not record the new scope: a retry refetches.
	client.fail = nil
	if _, err := r.Resolve(context.Background(), tpl, "conn-2", testRange); err != nil {
		t.Fatal(err)
	}
	if got := client.callCount("t1"); got != 3 {
		t.Errorf("retry after failure should refetch, got %d calls", got)
	}
}

func TestResolveDiscardsStaleGeneration(t *testing.T) {
	client := &fakeOptionsClient{keys: map[string]map[string][]any{
		"t1": {"region": {"stale-value"}},
	}}
	r := NewResolver(client, nil)
	tpl := models.Template{ID: "t1", MappingKeys: []string{"region"}}

	// Invalidate the scope while the request is "in flight".
	client.beforeMu = func(string) { r.Invalidate() }

	_, err := r.Resolve(context.Background(), tpl, "conn-1", testRange)
	if !errors.Is(err, ErrStaleScope) {
		t.Fatalf("expected ErrStaleScope, got %v", err)
	}
	if opts := r.Options("t1"); opts != nil && len(opts["region"]) != 0 {
		t.Errorf("stale response leaked into cache: %v", opts)
	}
}
