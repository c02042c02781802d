package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/resample"
)

// ErrNoResult marks an operation on a template that has no discovery result
// in the current scope.
var ErrNoResult = errors.New("no discovery result for template")

// discoverConcurrency bounds how many templates discover at once.
const discoverConcurrency = 4

// Outcome is the per-template result of one discovery run. A failed
// template never aborts its siblings; callers get one outcome each.
type Outcome struct {
	TemplateID string `json:"templateId"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

// FiltersFunc supplies the key filters for one template at issue time.
type FiltersFunc func(templateID string) models.KeyFilters

// Session owns the discovery results for one explicit scope: the selected
// templates, connection, and date range. Changing the scope clears all
// results and bumps a generation counter so stale in-flight responses are
// discarded instead of overwriting newer state.
type Session struct {
	engine *Engine
	logger *slog.Logger

	mu           sync.RWMutex
	gen          uint64
	templates    []models.Template
	connectionID string
	rng          models.DateRange
	results      map[string]*models.DiscoveryResult
}

// NewSession creates a session over the given engine.
func NewSession(engine *Engine, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		engine:  engine,
		logger:  logger,
		results: make(map[string]*models.DiscoveryResult),
	}
}

// SetScope replaces the session scope. All previous results are dropped and
// any in-flight discovery for the old scope will be discarded on arrival.
func (s *Session) SetScope(templates []models.Template, connectionID string, rng models.DateRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.templates = append([]models.Template(nil), templates...)
	s.connectionID = connectionID
	s.rng = rng
	s.results = make(map[string]*models.DiscoveryResult)
	s.logger.Debug("discovery scope changed",
		"templates", len(templates), "connection", connectionID)
}

// Scope returns the current scope.
func (s *Session) Scope() ([]models.Template, string, models.DateRange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Template(nil), s.templates...), s.connectionID, s.rng
}

// Template looks up a scoped template by id.
func (s *Session) Template(templateID string) (models.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tpl := range s.templates {
		if tpl.ID == templateID {
			return tpl, true
		}
	}
	return models.Template{}, false
}

// DiscoverAll discovers every scoped template and returns one outcome per
// template, in scope order. Issuance is concurrent but failures are
// isolated: a failed template reports its error while siblings keep their
// fresh results. Responses arriving after a scope change are dropped.
func (s *Session) DiscoverAll(ctx context.Context, filtersFor FiltersFunc) []Outcome {
	s.mu.RLock()
	gen := s.gen
	templates := append([]models.Template(nil), s.templates...)
	connectionID := s.connectionID
	rng := s.rng
	s.mu.RUnlock()

	var (
		g        errgroup.Group
		mu       sync.Mutex
		outcomes = make([]Outcome, len(templates))
	)
	g.SetLimit(discoverConcurrency)

	for i, tpl := range templates {
		g.Go(func() error {
			var filters models.KeyFilters
			if filtersFor != nil {
				filters = filtersFor(tpl.ID)
			}

			result, err := s.engine.Discover(ctx, tpl, rng, connectionID, filters)
			outcome := Outcome{TemplateID: tpl.ID}
			if err != nil {
				outcome.Err = err
				outcome.Error = err.Error()
				s.logger.Warn("discovery failed", "template", tpl.ID, "error", err)
			} else if !s.storeResult(gen, result) {
				s.logger.Debug("discarding stale discovery result", "template", tpl.ID)
			}

			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// storeResult publishes a result via copy-on-write, refusing it when the
// scope generation moved on while the request was in flight.
func (s *Session) storeResult(gen uint64, result *models.DiscoveryResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	next := make(map[string]*models.DiscoveryResult, len(s.results)+1)
	for id, r := range s.results {
		next[id] = r
	}
	next[result.TemplateID] = result
	s.results = next
	return true
}

// Result returns the current result for a template, or nil. The returned
// value is a shared snapshot; callers must not mutate it.
func (s *Session) Result(templateID string) *models.DiscoveryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[templateID]
}

// Results returns the current result map snapshot keyed by template id.
func (s *Session) Results() map[string]*models.DiscoveryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.DiscoveryResult, len(s.results))
	for id, r := range s.results {
		out[id] = r
	}
	return out
}

// SetBatchSelected flips one batch's selection flag. The result is updated
// copy-on-write so concurrent readers never observe a half-applied change.
func (s *Session) SetBatchSelected(templateID, batchID string, selected bool) error {
	return s.update(templateID, func(r *models.DiscoveryResult) error {
		found := false
		for i := range r.AllBatches {
			if r.AllBatches[i].ID == batchID {
				r.AllBatches[i].Selected = selected
				found = true
			}
		}
		if !found {
			return ErrNoResult
		}
		r.Batches = models.FilterBatches(r.AllBatches, r.Resample.FilteredIDs)
		return nil
	})
}

// SetAllBatchesSelected sets every batch's selection flag at once.
func (s *Session) SetAllBatchesSelected(templateID string, selected bool) error {
	return s.update(templateID, func(r *models.DiscoveryResult) error {
		for i := range r.AllBatches {
			r.AllBatches[i].Selected = selected
		}
		r.Batches = models.FilterBatches(r.AllBatches, r.Resample.FilteredIDs)
		return nil
	})
}

// Resample recomputes the bucket series for a template and, when bucket
// keys are selected, restricts the visible batches to the ids those buckets
// contribute. Passing no keys keeps the previous restriction.
func (s *Session) Resample(templateID string, cfg models.ResampleConfig, selectedKeys []string) (resample.Series, error) {
	var series resample.Series
	err := s.update(templateID, func(r *models.DiscoveryResult) error {
		if cfg.DimensionKind == "" {
			cfg.DimensionKind = models.KindForDimension(cfg.Dimension)
		}
		var resolved string
		series, resolved = resample.ComputeBuckets(r.BatchMetrics, cfg, r.NumericBins, r.CategoryGroups)
		cfg.Bucket = resolved
		r.Resample.Config = cfg
		if selectedKeys != nil {
			r.Resample.FilteredIDs = resample.CollectIDs(series, selectedKeys)
			r.Batches = models.FilterBatches(r.AllBatches, r.Resample.FilteredIDs)
		}
		return nil
	})
	return series, err
}

// ClearResampleFilter removes the id restriction, restoring the full batch
// list while keeping the configured axes.
func (s *Session) ClearResampleFilter(templateID string) error {
	return s.update(templateID, func(r *models.DiscoveryResult) error {
		r.Resample.FilteredIDs = nil
		r.Batches = models.FilterBatches(r.AllBatches, nil)
		return nil
	})
}

// update clones the template's result, applies fn, and publishes the clone.
func (s *Session) update(templateID string, fn func(*models.DiscoveryResult) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.results[templateID]
	if !ok {
		return ErrNoResult
	}
	clone := current.Clone()
	if err := fn(clone); err != nil {
		return err
	}
	next := make(map[string]*models.DiscoveryResult, len(s.results))
	for id, r := range s.results {
		next[id] = r
	}
	next[templateID] = clone
	s.results = next
	return nil
}
