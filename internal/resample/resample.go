// Package resample aggregates a template's batch metrics into ordered
// buckets along a chosen dimension, and maps bucket selections back to
// batch id sets.
package resample

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Temporal bucket widths. "auto" resolves deterministically from the span
// of the data, never from render-time heuristics.
const (
	BucketAuto = "auto"
	BucketHour = "hour"
	BucketDay  = "day"
	BucketWeek = "week"
)

// equalWidthBins is the bin count used when the backend supplies no numeric
// bin edges.
const equalWidthBins = 10

// BucketPoint is one aggregated bucket of the series.
type BucketPoint struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Start    time.Time `json:"start,omitempty"`
	Value    float64   `json:"value"`
	Count    int       `json:"count"`
	BatchIDs []string  `json:"batchIds"`
}

// Series is the ordered bucket list for one resample computation.
type Series []BucketPoint

// Total sums the aggregate values across the series.
func (s Series) Total() float64 {
	var total float64
	for _, p := range s {
		total += p.Value
	}
	return total
}

// ComputeBuckets aggregates the metrics into buckets per the config.
// Identical inputs always produce identical bucket ordering and values:
// temporal and numeric buckets sort by their natural order, categorical
// buckets keep first-seen order. Returns the series and the bucket width
// actually used (relevant when the config asked for auto).
func ComputeBuckets(metrics []models.BatchMetric, cfg models.ResampleConfig, numericBins []float64, categoryGroups map[string]string) (Series, string) {
	resolvedBucket := cfg.Bucket
	if len(metrics) == 0 {
		return Series{}, resolvedBucket
	}

	type bucket struct {
		key    string
		label  string
		start  time.Time
		order  float64
		values []float64
		ids    []string
	}

	var (
		buckets []*bucket
		index   = make(map[string]*bucket)
	)
	add := func(key, label string, start time.Time, order float64, m models.BatchMetric) {
		b, ok := index[key]
		if !ok {
			b = &bucket{key: key, label: label, start: start, order: order}
			index[key] = b
			buckets = append(buckets, b)
		}
		if v, ok := m.Value(cfg.Metric); ok {
			b.values = append(b.values, v)
		}
		b.ids = append(b.ids, m.BatchID)
	}

	switch cfg.DimensionKind {
	case models.DimensionKindTemporal:
		resolvedBucket = resolveBucket(cfg.Bucket, metrics)
		for _, m := range metrics {
			if m.Time == nil {
				continue
			}
			start := truncateTo(*m.Time, resolvedBucket)
			key := start.Format(time.RFC3339)
			add(key, labelFor(start, resolvedBucket), start, float64(start.Unix()), m)
		}
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].order < buckets[j].order })

	case models.DimensionKindCategorical:
		for _, m := range metrics {
			group := m.Category
			if mapped, ok := categoryGroups[m.Category]; ok && mapped != "" {
				group = mapped
			}
			if group == "" {
				group = "(none)"
			}
			add(group, group, time.Time{}, 0, m)
		}
		// First-seen order already holds; no sort.

	default: // numeric, over the dimension's metric value per batch
		edges := numericBins
		if len(edges) < 2 {
			edges = equalWidthEdges(metrics, cfg)
		}
		for _, m := range metrics {
			v := numericDimensionValue(m, cfg)
			idx := binIndex(edges, v)
			key := strconv.Itoa(idx)
			label := fmt.Sprintf("%s–%s", trimFloat(edges[idx]), trimFloat(edges[idx+1]))
			add(key, label, time.Time{}, float64(idx), m)
		}
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].order < buckets[j].order })
	}

	series := make(Series, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, BucketPoint{
			Key:      b.key,
			Label:    b.label,
			Start:    b.start,
			Value:    aggregate(cfg.Aggregation, b.values),
			Count:    len(b.ids),
			BatchIDs: b.ids,
		})
	}
	return series, resolvedBucket
}

// CollectIDs returns the union of batch ids contributed by the selected
// bucket keys. An empty selection yields an empty set, meaning no filter.
func CollectIDs(series Series, selectedKeys []string) map[string]struct{} {
	if len(selectedKeys) == 0 {
		return nil
	}
	selected := make(map[string]struct{}, len(selectedKeys))
	for _, k := range selectedKeys {
		selected[k] = struct{}{}
	}
	ids := make(map[string]struct{})
	for _, p := range series {
		if _, ok := selected[p.Key]; !ok {
			continue
		}
		for _, id := range p.BatchIDs {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// resolveBucket maps "auto" to a concrete width from the metric time span:
// up to two days of data buckets by hour, up to five weeks by day,
// anything longer by week.
func resolveBucket(configured string, metrics []models.BatchMetric) string {
	switch configured {
	case BucketHour, BucketDay, BucketWeek:
		return configured
	}

	var minT, maxT time.Time
	for _, m := range metrics {
		if m.Time == nil {
			continue
		}
		if minT.IsZero() || m.Time.Before(minT) {
			minT = *m.Time
		}
		if maxT.IsZero() || m.Time.After(maxT) {
			maxT = *m.Time
		}
	}
	if minT.IsZero() {
		return BucketDay
	}

	span := maxT.Sub(minT)
	switch {
	case span <= 48*time.Hour:
		return BucketHour
	case span <= 35*24*time.Hour:
		return BucketDay
	default:
		return BucketWeek
	}
}

// truncateTo floors a timestamp to its bucket start. Weeks start on Monday.
func truncateTo(t time.Time, bucket string) time.Time {
	t = t.UTC()
	switch bucket {
	case BucketHour:
		return t.Truncate(time.Hour)
	case BucketWeek:
		day := t.Truncate(24 * time.Hour)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

func labelFor(start time.Time, bucket string) string {
	if bucket == BucketHour {
		return start.Format("2006-01-02 15:00")
	}
	return start.Format("2006-01-02")
}

// numericDimensionValue picks the value to bin a metric row by. A numeric
// dimension is either the batch index or one of the metric names.
func numericDimensionValue(m models.BatchMetric, cfg models.ResampleConfig) float64 {
	if cfg.Dimension == models.DimensionBatchIndex {
		return float64(m.Index)
	}
	if v, ok := m.Value(cfg.Dimension); ok {
		return v
	}
	return float64(m.Index)
}

// equalWidthEdges builds bin edges covering the observed value range.
func equalWidthEdges(metrics []models.BatchMetric, cfg models.ResampleConfig) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range metrics {
		v := numericDimensionValue(m, cfg)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	if lo == hi {
		hi = lo + 1
	}
	edges := make([]float64, equalWidthBins+1)
	width := (hi - lo) / equalWidthBins
	for i := range edges {
		edges[i] = lo + width*float64(i)
	}
	return edges
}

// binIndex returns the bin an observation falls into; values outside the
// edges clamp to the first or last bin.
func binIndex(edges []float64, v float64) int {
	last := len(edges) - 2
	for i := 0; i < len(edges)-1; i++ {
		if v < edges[i+1] {
			return i
		}
	}
	if v >= edges[len(edges)-1] {
		return last
	}
	return 0
}

func aggregate(aggregation string, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch aggregation {
	case models.AggregationCount:
		return float64(len(values))
	case models.AggregationAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case models.AggregationMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case models.AggregationMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default: // sum
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
