package models

import "encoding/json"

// AllOption is the sentinel selection meaning "every currently known value
// for this token". A selection holding AllOption never also holds literals.
const AllOption = "__all__"

// KeyOptionSet maps a filter token to its resolved legal values for the
// current (connection, range) scope. Token slices are replaced wholesale on
// refresh, never partially merged.
type KeyOptionSet map[string][]string

// Clone returns a deep copy. Option sets are shared across goroutines once
// published, so callers mutate copies only.
func (s KeyOptionSet) Clone() KeyOptionSet {
	if s == nil {
		return nil
	}
	out := make(KeyOptionSet, len(s))
	for token, values := range s {
		out[token] = append([]string(nil), values...)
	}
	return out
}

// FilterValue is the scalar-or-list value shape the backend accepts for one
// key token: a single value serializes as a bare string, multiple values as
// an array.
type FilterValue []string

// MarshalJSON collapses a single value to a scalar.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

// UnmarshalJSON accepts either a bare string or an array of strings.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = FilterValue{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*v = FilterValue(many)
	return nil
}

// KeyFilters is the request-ready filter map produced by the filter builder.
type KeyFilters map[string]FilterValue

// Clone returns a deep copy of the filter map.
func (f KeyFilters) Clone() KeyFilters {
	if f == nil {
		return nil
	}
	out := make(KeyFilters, len(f))
	for token, values := range f {
		out[token] = append(FilterValue(nil), values...)
	}
	return out
}
