// Package discovery issues per-template discovery queries and owns the
// authoritative per-template results for the active session scope.
package discovery

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/backend"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Client is the backend surface the engine needs.
type Client interface {
	Discover(ctx context.Context, req backend.DiscoveryRequest) (*backend.DiscoveryResponse, error)
}

// Engine runs discovery queries and normalizes the heterogeneous payloads
// into the uniform batch/metric/schema shape.
type Engine struct {
	client Client
	logger *slog.Logger
}

// NewEngine creates a discovery engine backed by the given client.
func NewEngine(client Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{client: client, logger: logger}
}

// Discover fetches and normalizes one template's candidate batches.
func (e *Engine) Discover(ctx context.Context, tpl models.Template, rng models.DateRange, connectionID string, filters models.KeyFilters) (*models.DiscoveryResult, error) {
	resp, err := e.client.Discover(ctx, backend.DiscoveryRequest{
		TemplateID:   tpl.ID,
		StartDate:    rng.StartSQL(),
		EndDate:      rng.EndSQL(),
		ConnectionID: connectionID,
		KeyValues:    filters,
		Kind:         string(tpl.Kind),
	})
	if err != nil {
		return nil, err
	}

	result := Normalize(tpl.ID, resp)
	e.logger.Debug("discovery complete",
		"template", tpl.ID,
		"batches", result.BatchCount,
		"rows", result.RowsTotal)
	return result, nil
}

// Normalize folds a raw discovery payload into a DiscoveryResult. This is
// the single place the loose payload shape is interpreted: ids default to
// the 1-based position, counts are derived when absent, and schema defaults
// follow the fixed priority order.
func Normalize(templateID string, resp *backend.DiscoveryResponse) *models.DiscoveryResult {
	batches := normalizeBatches(resp.Batches)

	count := len(batches)
	if resp.BatchesCount != nil {
		count = *resp.BatchesCount
	}

	var rowsTotal int64
	if resp.RowsTotal != nil {
		rowsTotal = *resp.RowsTotal
	} else {
		for _, b := range batches {
			rowsTotal += b.Rows
		}
	}

	metrics := normalizeMetrics(resp.BatchMetrics, batches)
	schema := normalizeSchema(resp.DiscoverySchema, metrics)

	result := &models.DiscoveryResult{
		TemplateID:     templateID,
		AllBatches:     batches,
		Batches:        append([]models.Batch(nil), batches...),
		BatchCount:     count,
		RowsTotal:      rowsTotal,
		FieldCatalog:   resp.FieldCatalog,
		BatchMetrics:   metrics,
		Schema:         schema,
		NumericBins:    resp.NumericBins,
		CategoryGroups: resp.CategoryGroups,
	}
	result.Resample.Config = models.ResampleConfig{
		Dimension:     schema.Defaults.Dimension,
		Metric:        schema.Defaults.Metric,
		Aggregation:   schema.Defaults.Aggregation,
		Bucket:        schema.Defaults.Bucket,
		DimensionKind: models.KindForDimension(schema.Defaults.Dimension),
	}
	return result
}

func normalizeBatches(raw []backend.RawBatch) []models.Batch {
	batches := make([]models.Batch, 0, len(raw))
	for i, rb := range raw {
		id := models.CoerceString(rb.ID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		rows := models.CoerceInt64(rb.Rows)
		parent := models.CoerceInt64(rb.Parent)
		selected := true
		if rb.Selected != nil {
			selected = *rb.Selected
		}
		batches = append(batches, models.Batch{
			ID:            id,
			Parent:        parent,
			Rows:          rows,
			RowsPerParent: models.DeriveRowsPerParent(rows, parent),
			Time:          models.CoerceTime(rb.Time),
			Category:      models.CoerceString(rb.Category),
			Selected:      selected,
		})
	}
	return batches
}

func normalizeMetrics(raw []backend.RawBatchMetric, batches []models.Batch) []models.BatchMetric {
	if len(raw) == 0 {
		// Backend sent no metric rows; derive them from the batches.
		metrics := make([]models.BatchMetric, 0, len(batches))
		for i, b := range batches {
			metrics = append(metrics, models.BatchMetric{
				BatchID:       b.ID,
				Index:         i + 1,
				Time:          b.Time,
				Category:      b.Category,
				Rows:          float64(b.Rows),
				RowsPerParent: b.RowsPerParent,
				Parent:        float64(b.Parent),
			})
		}
		return metrics
	}

	metrics := make([]models.BatchMetric, 0, len(raw))
	for i, rm := range raw {
		id := models.CoerceString(rm.BatchID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		rows := models.CoerceFloat(rm.Rows)
		parent := models.CoerceFloat(rm.Parent)
		perParent := rows
		if parent > 0 {
			perParent = rows / parent
		}
		metrics = append(metrics, models.BatchMetric{
			BatchID:       id,
			Index:         i + 1,
			Time:          models.CoerceTime(rm.Time),
			Category:      models.CoerceString(rm.Category),
			Rows:          rows,
			RowsPerParent: perParent,
			Parent:        parent,
		})
	}
	return metrics
}

// normalizeSchema fills in missing schema parts. Default priority when the
// backend is silent: dimension time, then category, then batch index;
// metric rows, then rows per parent, then parent.
func normalizeSchema(schema *models.DiscoverySchema, metrics []models.BatchMetric) models.DiscoverySchema {
	out := models.DiscoverySchema{}
	if schema != nil {
		out = *schema
	}

	if len(out.Dimensions) == 0 {
		hasTime, hasCategory := false, false
		for _, m := range metrics {
			if m.Time != nil {
				hasTime = true
			}
			if m.Category != "" {
				hasCategory = true
			}
		}
		if hasTime {
			out.Dimensions = append(out.Dimensions, models.DimensionTime)
		}
		if hasCategory {
			out.Dimensions = append(out.Dimensions, models.DimensionCategory)
		}
		out.Dimensions = append(out.Dimensions, models.DimensionBatchIndex)
	}
	if len(out.Metrics) == 0 {
		out.Metrics = []string{models.MetricRows, models.MetricRowsPerParent, models.MetricParent}
	}

	if out.Defaults.Dimension == "" {
		out.Defaults.Dimension = pickFirst(out.Dimensions,
			models.DimensionTime, models.DimensionCategory, models.DimensionBatchIndex)
	}
	if out.Defaults.Metric == "" {
		out.Defaults.Metric = pickFirst(out.Metrics,
			models.MetricRows, models.MetricRowsPerParent, models.MetricParent)
	}
	if out.Defaults.Aggregation == "" {
		out.Defaults.Aggregation = models.AggregationSum
	}
	if out.Defaults.Bucket == "" {
		out.Defaults.Bucket = "auto"
	}
	return out
}

// pickFirst returns the first preferred name present in available, falling
// back to the first available entry.
func pickFirst(available []string, preferred ...string) string {
	for _, p := range preferred {
		for _, a := range available {
			if a == p {
				return p
			}
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return ""
}
