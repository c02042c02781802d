// Package keys resolves template filter vocabularies and builds
// request-ready key filters from user selections.
package keys

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// ErrStaleScope marks a resolution whose (connection, range) scope was
// superseded while the request was in flight. The fetched values were
// discarded; callers should treat this as a non-event.
var ErrStaleScope = errors.New("key options superseded by scope change")

// DefaultOptionLimit caps how many distinct values one token fetch returns.
const DefaultOptionLimit = 500

// resolveConcurrency bounds how many templates fetch options at once.
const resolveConcurrency = 4

// OptionsClient is the backend surface the resolver needs.
type OptionsClient interface {
	KeyOptions(ctx context.Context, req backend.KeyOptionsRequest) (*backend.KeyOptionsResponse, error)
}

// Resolver fetches and caches the legal values of each template's filter
// tokens, scoped to (template, connection, range). Resolutions for different
// templates are independent: one failure never blocks or corrupts siblings.
type Resolver struct {
	client OptionsClient
	logger *slog.Logger
	limit  int

	mu        sync.RWMutex
	gen       uint64
	options   map[string]models.KeyOptionSet // templateID -> token -> values
	lastScope map[string]string              // templateID -> scope key of last successful fetch
}

// NewResolver creates a resolver backed by the given client.
func NewResolver(client OptionsClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:    client,
		logger:    logger,
		limit:     DefaultOptionLimit,
		options:   make(map[string]models.KeyOptionSet),
		lastScope: make(map[string]string),
	}
}

// Resolve fetches the option set for one template. A template without
// mapping keys resolves to an empty set without touching the network. If the
// template was already resolved for the same (connection, range) scope, the
// cached set is returned without refetching; this guards against redundant
// re-invocations from the UI layer.
func (r *Resolver) Resolve(ctx context.Context, tpl models.Template, connectionID string, rng models.DateRange) (models.KeyOptionSet, error) {
	if !tpl.RequiresKeys() {
		return models.KeyOptionSet{}, nil
	}

	scope := rng.ScopeKey(connectionID)

	r.mu.RLock()
	gen := r.gen
	if r.lastScope[tpl.ID] == scope {
		cached := r.options[tpl.ID].Clone()
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	resp, err := r.client.KeyOptions(ctx, backend.KeyOptionsRequest{
		TemplateID:   tpl.ID,
		ConnectionID: connectionID,
		Tokens:       tpl.MappingKeys,
		Limit:        r.limit,
		StartDate:    rng.StartSQL(),
		EndDate:      rng.EndSQL(),
		Kind:         string(tpl.Kind),
	})
	if err != nil {
		// Previously cached options stay untouched; the scope key is not
		// recorded so the next call retries.
		return nil, err
	}

	set := make(models.KeyOptionSet, len(tpl.MappingKeys))
	for _, token := range tpl.MappingKeys {
		set[token] = models.NormalizeAnyValues(resp.Keys[token])
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		r.logger.Debug("discarding stale key options", "template", tpl.ID, "scope", scope)
		return nil, ErrStaleScope
	}
	next := make(map[string]models.KeyOptionSet, len(r.options)+1)
	for id, s := range r.options {
		next[id] = s
	}
	next[tpl.ID] = set
	r.options = next
	r.lastScope[tpl.ID] = scope
	r.mu.Unlock()

	r.logger.Debug("key options resolved", "template", tpl.ID, "tokens", len(set))
	return set.Clone(), nil
}

// ResolveAll resolves every template concurrently and returns the per-
// template errors. A failed or superseded template never cancels siblings.
func (r *Resolver) ResolveAll(ctx context.Context, templates []models.Template, connectionID string, rng models.DateRange) map[string]error {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string]error, len(templates))
	)
	g.SetLimit(resolveConcurrency)

	for _, tpl := range templates {
		g.Go(func() error {
			_, err := r.Resolve(ctx, tpl, connectionID, rng)
			if err != nil && !errors.Is(err, ErrStaleScope) {
				r.logger.Warn("key resolution failed", "template", tpl.ID, "error", err)
			}
			mu.Lock()
			results[tpl.ID] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Options returns the cached option set for a template, or nil if never
// resolved.
func (r *Resolver) Options(templateID string) models.KeyOptionSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.options[templateID].Clone()
}

// Invalidate marks every cached scope stale, forcing the next Resolve per
// template to refetch and causing in-flight responses to be discarded.
// Cached values stay readable until replaced.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.lastScope = make(map[string]string)
}
