package models

import "time"

// Batch is a discovered group of underlying report rows sharing a natural
// grouping key. RowsPerParent is always derived, never trusted from the
// payload: rows divided by parent, or rows itself when parent is zero.
type Batch struct {
	ID            string     `json:"id"`
	Parent        int64      `json:"parent"`
	Rows          int64      `json:"rows"`
	RowsPerParent float64    `json:"rows_per_parent"`
	Time          *time.Time `json:"time,omitempty"`
	Category      string     `json:"category,omitempty"`
	Selected      bool       `json:"selected"`
}

// DeriveRowsPerParent computes the rows-per-parent ratio for the batch.
func DeriveRowsPerParent(rows, parent int64) float64 {
	if parent <= 0 {
		return float64(rows)
	}
	return float64(rows) / float64(parent)
}

// BatchMetric is the per-batch row the resample engine aggregates over.
// Index is the 1-based position of the batch within the discovery result,
// used as the fallback dimension when neither time nor category exists.
type BatchMetric struct {
	BatchID       string
	Index         int
	Time          *time.Time
	Category      string
	Rows          float64
	RowsPerParent float64
	Parent        float64
}

// Value returns the named metric, or false if the name is unknown.
func (m BatchMetric) Value(metric string) (float64, bool) {
	switch metric {
	case MetricRows:
		return m.Rows, true
	case MetricRowsPerParent:
		return m.RowsPerParent, true
	case MetricParent:
		return m.Parent, true
	}
	return 0, false
}

// Dimension and metric names shared between the discovery schema and the
// resample engine.
const (
	DimensionTime       = "time"
	DimensionCategory   = "category"
	DimensionBatchIndex = "batch_index"

	MetricRows          = "rows"
	MetricRowsPerParent = "rows_per_parent"
	MetricParent        = "parent"
)

// FieldDescriptor describes one column of the discovered data set, as
// reported by the backend's field catalog.
type FieldDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SchemaDefaults carries the backend's preferred starting resample axes.
type SchemaDefaults struct {
	Dimension   string `json:"dimension,omitempty"`
	Metric      string `json:"metric,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
}

// DiscoverySchema lists the axes available for resampling a template's
// discovery result, plus the defaults to start from.
type DiscoverySchema struct {
	Dimensions []string       `json:"dimensions"`
	Metrics    []string       `json:"metrics"`
	Defaults   SchemaDefaults `json:"defaults"`
}

// DiscoveryResult is the authoritative per-template outcome of one discovery
// call. Batches is always AllBatches optionally restricted by
// Resample.FilteredIDs; the two are never independently mutated. A new
// discovery fully replaces the previous result for the template.
type DiscoveryResult struct {
	TemplateID     string
	AllBatches     []Batch
	Batches        []Batch
	BatchCount     int
	RowsTotal      int64
	FieldCatalog   []FieldDescriptor
	BatchMetrics   []BatchMetric
	Schema         DiscoverySchema
	NumericBins    []float64
	CategoryGroups map[string]string
	Resample       ResampleState
}

// SelectedBatchIDs returns the ids of the currently visible batches that the
// user has left selected, in batch order.
func (d *DiscoveryResult) SelectedBatchIDs() []string {
	ids := make([]string, 0, len(d.Batches))
	for _, b := range d.Batches {
		if b.Selected {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Clone deep-copies the result so callers can apply copy-on-write updates
// without racing concurrent readers.
func (d *DiscoveryResult) Clone() *DiscoveryResult {
	if d == nil {
		return nil
	}
	out := *d
	out.AllBatches = append([]Batch(nil), d.AllBatches...)
	out.Batches = append([]Batch(nil), d.Batches...)
	out.FieldCatalog = append([]FieldDescriptor(nil), d.FieldCatalog...)
	out.BatchMetrics = append([]BatchMetric(nil), d.BatchMetrics...)
	out.NumericBins = append([]float64(nil), d.NumericBins...)
	if d.CategoryGroups != nil {
		out.CategoryGroups = make(map[string]string, len(d.CategoryGroups))
		for k, v := range d.CategoryGroups {
			out.CategoryGroups[k] = v
		}
	}
	if d.Resample.FilteredIDs != nil {
		out.Resample.FilteredIDs = make(map[string]struct{}, len(d.Resample.FilteredIDs))
		for id := range d.Resample.FilteredIDs {
			out.Resample.FilteredIDs[id] = struct{}{}
		}
	}
	return &out
}

// FilterBatches restricts batches to the given id set; an empty set means no
// restriction.
func FilterBatches(all []Batch, ids map[string]struct{}) []Batch {
	if len(ids) == 0 {
		return append([]Batch(nil), all...)
	}
	out := make([]Batch, 0, len(ids))
	for _, b := range all {
		if _, ok := ids[b.ID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ResampleState is the per-template aggregation view state: the active axes
// and the optional id restriction produced by a bucket/brush selection.
type ResampleState struct {
	Config      ResampleConfig
	FilteredIDs map[string]struct{}
}

// DimensionKind tells the resample engine how to bucket a dimension.
type DimensionKind string

const (
	DimensionKindTemporal    DimensionKind = "temporal"
	DimensionKindNumeric     DimensionKind = "numeric"
	DimensionKindCategorical DimensionKind = "categorical"
)

// Aggregation names accepted by the resample engine.
const (
	AggregationSum     = "sum"
	AggregationCount   = "count"
	AggregationAverage = "average"
	AggregationMin     = "min"
	AggregationMax     = "max"
)

// ResampleConfig selects the axes for one resample computation.
type ResampleConfig struct {
	Dimension     string        `json:"dimension"`
	Metric        string        `json:"metric"`
	Aggregation   string        `json:"aggregation"`
	Bucket        string        `json:"bucket"`
	DimensionKind DimensionKind `json:"dimensionKind"`
}

// KindForDimension maps a dimension name to its bucketing kind.
func KindForDimension(dimension string) DimensionKind {
	switch dimension {
	case DimensionTime:
		return DimensionKindTemporal
	case DimensionCategory:
		return DimensionKindCategorical
	default:
		return DimensionKindNumeric
	}
}
