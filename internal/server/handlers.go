package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/discovery"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/generate"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/metrics"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/schedule"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, generate.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, schedule.ErrUnknownFrequency),
		errors.Is(err, schedule.ErrEmptyName),
		errors.Is(err, schedule.ErrNoTemplate),
		errors.Is(err, schedule.ErrBadDateWindow):
		status = http.StatusBadRequest
	case errors.Is(err, generate.ErrUnknownItem), errors.Is(err, discovery.ErrNoResult):
		status = http.StatusNotFound
	case errors.Is(err, generate.ErrItemNotFailed):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(generate.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

// scopeRequest selects the templates, connection, and date window every
// subsequent key/discovery call operates on.
type scopeRequest struct {
	Templates    []models.Template `json:"templates"`
	ConnectionID string            `json:"connectionId"`
	StartDate    string            `json:"startDate"`
	EndDate      string            `json:"endDate"`
}

func (s *Server) handleSetScope(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	rng, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		s.writeError(w, err)
		return
	}

	connectionID := req.ConnectionID
	if connectionID == "" {
		connectionID = s.connectionID
	}

	s.session.SetScope(req.Templates, connectionID, rng)
	s.resolver.Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"templates":    len(req.Templates),
		"connectionId": connectionID,
		"startDate":    rng.StartSQL(),
		"endDate":      rng.EndSQL(),
	})
}

func (s *Server) handleGetScope(w http.ResponseWriter, r *http.Request) {
	templates, connectionID, rng := s.session.Scope()
	resp := map[string]any{
		"templates":    templates,
		"connectionId": connectionID,
	}
	if !rng.IsZero() {
		resp["startDate"] = rng.StartSQL()
		resp["endDate"] = rng.EndSQL()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func parseRange(start, end string) (models.DateRange, error) {
	if start == "" || end == "" {
		return models.DateRange{}, nil
	}
	from, err := models.ParseSQLTime(start)
	if err != nil {
		return models.DateRange{}, errors.Join(generate.ErrValidation, err)
	}
	to, err := models.ParseSQLTime(end)
	if err != nil {
		return models.DateRange{}, errors.Join(generate.ErrValidation, err)
	}
	return models.DateRange{Start: from, End: to}, nil
}

// handleResolveKeys fetches the filter vocabularies for every scoped
// template. Failures are per-template and reported, never fatal.
func (s *Server) handleResolveKeys(w http.ResponseWriter, r *http.Request) {
	templates, connectionID, rng := s.session.Scope()

	start := time.Now()
	results := s.resolver.ResolveAll(r.Context(), templates, connectionID, rng)

	failed := false
	errsByTemplate := make(map[string]string)
	for id, err := range results {
		if err != nil {
			errsByTemplate[id] = err.Error()
			failed = true
		}
	}
	s.collector.RecordTiming(metrics.OpKeyResolve, time.Since(start), failed)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"resolved": len(results) - len(errsByTemplate),
		"errors":   errsByTemplate,
	})
}

func (s *Server) handleKeyOptions(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")
	options := s.resolver.Options(templateID)
	if options == nil {
		options = models.KeyOptionSet{}
	}

	tpl, _ := s.session.Template(templateID)
	selections := make(map[string][]string, len(tpl.MappingKeys))
	for _, token := range tpl.MappingKeys {
		if sel := s.selections.Get(templateID, token); len(sel) > 0 {
			selections[token] = sel
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"options":    options,
		"selections": selections,
		"ready":      s.builder.KeysReady(tpl),
	})
}

type selectionRequest struct {
	Values []string `json:"values"`
	All    bool     `json:"all"`
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")
	token := chi.URLParam(r, "token")

	var req selectionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if req.All {
		s.selections.SelectAll(templateID, token)
	} else {
		s.selections.Set(templateID, token, req.Values)
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"selection": s.selections.Get(templateID, token)})
}

type toggleRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")
	token := chi.URLParam(r, "token")

	var req toggleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	s.selections.Toggle(templateID, token, req.Value)
	s.writeJSON(w, http.StatusOK, map[string][]string{"selection": s.selections.Get(templateID, token)})
}

func (s *Server) handleClearSelections(w http.ResponseWriter, r *http.Request) {
	s.selections.ClearTemplate(chi.URLParam(r, "templateID"))
	s.writeJSON(w, http.StatusNoContent, nil)
}

// handleDiscover runs discovery for every scoped template using the current
// key selections. One outcome per template; failures never abort siblings.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcomes := s.session.DiscoverAll(r.Context(), s.builder.Build)

	failed := false
	for _, o := range outcomes {
		if o.Err != nil {
			failed = true
			break
		}
	}
	s.collector.RecordTiming(metrics.OpDiscovery, time.Since(start), failed)

	s.writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (s *Server) handleDiscoveryResult(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateID")
	result := s.session.Result(templateID)
	if result == nil {
		s.writeError(w, discovery.ErrNoResult)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type batchSelectRequest struct {
	Selected bool `json:"selected"`
}

func (s *Server) handleSetBatchSelected(w http.ResponseWriter, r *http.Request) {
	var req batchSelectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.session.SetBatchSelected(chi.URLParam(r, "templateID"), chi.URLParam(r, "batchID"), req.Selected)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetAllBatches(w http.ResponseWriter, r *http.Request) {
	var req batchSelectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.session.SetAllBatchesSelected(chi.URLParam(r, "templateID"), req.Selected); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// resampleRequest reconfigures the bucket axes and optionally restricts the
// batch list to the selected buckets.
type resampleRequest struct {
	models.ResampleConfig
	SelectedKeys []string `json:"selectedKeys"`
}

func (s *Server) handleResample(w http.ResponseWriter, r *http.Request) {
	var req resampleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	series, err := s.session.Resample(chi.URLParam(r, "templateID"), req.ResampleConfig, req.SelectedKeys)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"series": series,
		"total":  series.Total(),
	})
}

func (s *Server) handleClearResample(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearResampleFilter(chi.URLParam(r, "templateID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// generateRequest starts a run over the scoped templates. TemplateIDs may
// narrow the scope; empty means all scoped templates.
type generateRequest struct {
	TemplateIDs []string             `json:"templateIds"`
	Formats     models.FormatRequest `json:"formats"`
	Email       emailFields          `json:"email"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, err)
		return
	}

	scoped, _, _ := s.session.Scope()
	templates := scoped
	if len(req.TemplateIDs) > 0 {
		want := make(map[string]struct{}, len(req.TemplateIDs))
		for _, id := range req.TemplateIDs {
			want[id] = struct{}{}
		}
		templates = templates[:0:0]
		for _, tpl := range scoped {
			if _, ok := want[tpl.ID]; ok {
				templates = append(templates, tpl)
			}
		}
	}
	if len(templates) == 0 {
		s.writeError(w, errors.Join(generate.ErrValidation, errors.New("no templates in scope")))
		return
	}

	s.orchestrator.SeedRun(templates)

	start := time.Now()
	items := s.orchestrator.RunSeeded(r.Context(), func(templateID string) models.RunParams {
		return s.runParams(templateID, req.Formats, req.Email)
	})

	failed := false
	for _, item := range items {
		if item.Status == models.RunStatusFailed {
			failed = true
			break
		}
	}
	s.collector.RecordTiming(metrics.OpRun, time.Since(start), failed)

	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"items": s.orchestrator.Items()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	item, ok := s.orchestrator.Item(chi.URLParam(r, "itemID"))
	if !ok {
		s.writeError(w, generate.ErrUnknownItem)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type retryRequest struct {
	Formats models.FormatRequest `json:"formats"`
	Email   emailFields          `json:"email"`
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req retryRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, err)
		return
	}

	item, ok := s.orchestrator.Item(itemID)
	if !ok {
		s.writeError(w, generate.ErrUnknownItem)
		return
	}

	params := s.runParams(item.TemplateID, req.Formats, req.Email)
	if err := s.orchestrator.Retry(r.Context(), itemID, params); err != nil {
		s.writeError(w, err)
		return
	}

	item, _ = s.orchestrator.Item(itemID)
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"downloads": s.orchestrator.Downloads()})
}

func (s *Server) handleRerun(w http.ResponseWriter, r *http.Request) {
	items, err := s.orchestrator.Rerun(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.backend.ListSchedules(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req backend.ScheduleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	err := schedule.Validate(schedule.Request{
		Name:       req.Name,
		TemplateID: req.TemplateID,
		Frequency:  req.Frequency,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.backend.CreateSchedule(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteSchedule(r.Context(), chi.URLParam(r, "scheduleID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// handleSchedulePreview returns the next fire times of a frequency without
// creating anything.
func (s *Server) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	frequency := r.URL.Query().Get("frequency")
	count := 3
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 20 {
			count = n
		}
	}

	times, err := schedule.NextRuns(frequency, time.Now(), count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"frequency": frequency, "next": times})
}
