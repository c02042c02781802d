// Package server exposes the discovery and generation engine over a JSON
// HTTP API with a websocket job stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/discovery"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/generate"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/keys"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/metrics"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Server wires the backend client, key resolution, discovery session, and
// generation orchestrator behind one HTTP surface.
type Server struct {
	logger       *slog.Logger
	backend      *backend.Client
	resolver     *keys.Resolver
	selections   *keys.SelectionStore
	builder      *keys.Builder
	session      *discovery.Session
	orchestrator *generate.Orchestrator
	collector    *metrics.Collector
	connectionID string

	httpServer *http.Server
}

// Options carries the server dependencies. Recorder may be nil to disable
// run persistence.
type Options struct {
	Backend      *backend.Client
	Recorder     generate.Recorder
	Logger       *slog.Logger
	Port         string
	ConnectionID string
}

// New assembles a server and its engine components.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger:       logger,
		backend:      opts.Backend,
		resolver:     keys.NewResolver(opts.Backend, logger),
		selections:   keys.NewSelectionStore(),
		session:      discovery.NewSession(discovery.NewEngine(opts.Backend, logger), logger),
		collector:    metrics.NewCollector(),
		connectionID: opts.ConnectionID,
	}
	s.builder = keys.NewBuilder(s.selections, s.resolver.Options)

	recorder := opts.Recorder
	if recorder != nil {
		recorder = &timedRecorder{next: recorder, collector: s.collector}
	}
	s.orchestrator = generate.NewOrchestrator(opts.Backend, logger, recorder, s.preflight)

	s.httpServer = &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes builds the chi router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware(s.logger))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/stats", s.handleStats)

	r.Route("/api/report", func(r chi.Router) {
		r.Put("/scope", s.handleSetScope)
		r.Get("/scope", s.handleGetScope)
		r.Post("/keys/resolve", s.handleResolveKeys)
		r.Post("/discover", s.handleDiscover)

		r.Route("/templates/{templateID}", func(r chi.Router) {
			r.Get("/keys", s.handleKeyOptions)
			r.Put("/keys/{token}", s.handleSetSelection)
			r.Post("/keys/{token}/toggle", s.handleToggleSelection)
			r.Delete("/keys", s.handleClearSelections)
			r.Get("/discovery", s.handleDiscoveryResult)
			r.Put("/batches/{batchID}", s.handleSetBatchSelected)
			r.Put("/batches", s.handleSetAllBatches)
			r.Post("/resample", s.handleResample)
			r.Delete("/resample", s.handleClearResample)
		})

		r.Post("/generate", s.handleGenerate)
	})

	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{itemID}", s.handleGetJob)
	r.Post("/api/jobs/{itemID}/retry", s.handleRetryJob)

	r.Get("/api/downloads", s.handleListDownloads)
	r.Post("/api/downloads/{recordID}/rerun", s.handleRerun)

	r.Get("/api/schedules", s.handleListSchedules)
	r.Post("/api/schedules", s.handleCreateSchedule)
	r.Delete("/api/schedules/{scheduleID}", s.handleDeleteSchedule)
	r.Get("/api/schedules/preview", s.handleSchedulePreview)

	r.Get("/ws/jobs", s.handleJobStream)

	return r
}

// Handler returns the HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// preflight gates runs on every mapping key having a selection.
func (s *Server) preflight(templateID string) error {
	tpl, ok := s.session.Template(templateID)
	if !ok {
		return fmt.Errorf("%w: template %s not in scope", generate.ErrValidation, templateID)
	}
	if missing := s.builder.MissingKeys(tpl); len(missing) > 0 {
		return fmt.Errorf("%w: missing key values %v", generate.ErrValidation, missing)
	}
	return nil
}

// timedRecorder counts history writes on the stats collector.
type timedRecorder struct {
	next      generate.Recorder
	collector *metrics.Collector
}

func (t *timedRecorder) RecordRun(ctx context.Context, item models.GenerationItem) error {
	return t.collector.Observe(metrics.OpHistoryWrite, func() error {
		return t.next.RecordRun(ctx, item)
	})
}

func (t *timedRecorder) RecordDownload(ctx context.Context, record models.DownloadRecord) error {
	return t.collector.Observe(metrics.OpHistoryWrite, func() error {
		return t.next.RecordDownload(ctx, record)
	})
}

// emailFields is the optional email delivery block of a generate request.
type emailFields struct {
	Recipients string `json:"emailRecipients"`
	Subject    string `json:"emailSubject"`
	Message    string `json:"emailMessage"`
}

// runParams assembles the run parameters for one template from the current
// scope, selections, and discovery result.
func (s *Server) runParams(templateID string, formats models.FormatRequest, email emailFields) models.RunParams {
	_, connectionID, rng := s.session.Scope()

	params := models.RunParams{
		Range:           rng,
		ConnectionID:    connectionID,
		Filters:         s.builder.Build(templateID),
		Formats:         formats,
		EmailRecipients: email.Recipients,
		EmailSubject:    email.Subject,
		EmailMessage:    email.Message,
	}
	if result := s.session.Result(templateID); result != nil {
		params.BatchIDs = result.SelectedBatchIDs()
	}
	return params
}
