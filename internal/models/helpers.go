package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Backend payloads are only loosely typed: ids and counts arrive as numbers
// or strings depending on the connector, and timestamps come in several
// layouts. These helpers give each response shape a single coercion path.

// CoerceString renders any scalar payload value as a trimmed string.
// Float values that are whole numbers drop the fraction, so a JSON id of
// 3 (decoded as 3.0) round-trips as "3".
func CoerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// CoerceInt64 extracts an integer from a number or numeric string, returning
// zero for anything else.
func CoerceInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	}
	return 0
}

// CoerceFloat extracts a float from a number or numeric string, returning
// zero for anything else.
func CoerceFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// batchTimeLayouts are the timestamp formats connectors have been seen to
// emit, most specific first.
var batchTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	SQLTimeLayout,
	"2006-01-02",
}

// CoerceTime parses a payload timestamp in any known layout; numbers are
// treated as Unix seconds. Returns nil when the value is absent or
// unparseable.
func CoerceTime(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		ts := time.Unix(int64(t), 0).UTC()
		return &ts
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range batchTimeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

// NormalizeValues trims every value, drops empties, and removes duplicates
// while preserving first-seen order.
func NormalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NormalizeAnyValues stringifies then normalizes a loosely typed value list.
func NormalizeAnyValues(values []any) []string {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, CoerceString(v))
	}
	return NormalizeValues(strs)
}
