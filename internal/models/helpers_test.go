package models

import (
	"testing"
	"time"
)

func TestCoerceString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string trimmed", "  north  ", "north"},
		{"whole float", float64(3), "3"},
		{"fractional float", 2.5, "2.5"},
		{"int", 7, "7"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceString(tt.in); got != tt.want {
				t.Errorf("CoerceString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"float", float64(42), 42},
		{"numeric string", " 10 ", 10},
		{"float string", "10.9", 10},
		{"garbage", "abc", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceInt64(tt.in); got != tt.want {
				t.Errorf("CoerceInt64(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerceTime(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantNil bool
		want    time.Time
	}{
		{"sql layout", "2024-01-05 13:45:00", false, time.Date(2024, 1, 5, 13, 45, 0, 0, time.UTC)},
		{"date only", "2024-01-05", false, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2024-01-05T13:45:00Z", false, time.Date(2024, 1, 5, 13, 45, 0, 0, time.UTC)},
		{"epoch seconds", float64(1704459900), false, time.Unix(1704459900, 0).UTC()},
		{"empty", "", true, time.Time{}},
		{"garbage", "not-a-time", true, time.Time{}},
		{"nil", nil, true, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceTime(tt.in)
			if tt.wantNil {
				if got != nil {
					t.Errorf("CoerceTime(%v) = %v, want nil", tt.in, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("CoerceTime(%v) = nil, want %v", tt.in, tt.want)
			}
			if !got.Equal(tt.want) {
				t.Errorf("CoerceTime(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeValues(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trims and drops empties", []string{" a ", "", "  "}, []string{"a"}},
		{"dedupes preserving order", []string{"b", "a", "b", "a"}, []string{"b", "a"}},
		{"empty input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValues(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeValues(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NormalizeValues(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
