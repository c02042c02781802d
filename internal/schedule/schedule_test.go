package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Request{Name: "daily north", TemplateID: "tpl-1", Frequency: FrequencyDaily}

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"valid", func(*Request) {}, nil},
		{"missing name", func(r *Request) { r.Name = "" }, ErrEmptyName},
		{"missing template", func(r *Request) { r.TemplateID = "" }, ErrNoTemplate},
		{"bad frequency", func(r *Request) { r.Frequency = "fortnightly" }, ErrUnknownFrequency},
		{"inverted window", func(r *Request) {
			r.StartDate = "2024-02-01"
			r.EndDate = "2024-01-01"
		}, ErrBadDateWindow},
		{"open window ok", func(r *Request) { r.StartDate = "2024-02-01" }, nil},
		{"sql datetime window ok", func(r *Request) {
			r.StartDate = "2024-01-01 00:00:00"
			r.EndDate = "2024-02-01 00:00:00"
		}, nil},
		{"inverted sql datetime window", func(r *Request) {
			r.StartDate = "2024-02-01 08:00:00"
			r.EndDate = "2024-02-01 07:00:00"
		}, ErrBadDateWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := Validate(req)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejectsMalformedDates(t *testing.T) {
	req := Request{Name: "x", TemplateID: "t", Frequency: FrequencyHourly, StartDate: "01/02/2024"}
	if err := Validate(req); err == nil {
		t.Error("malformed start date must fail")
	}
}

func TestNextRuns(t *testing.T) {
	from := time.Date(2024, 1, 3, 10, 30, 0, 0, time.UTC) // Wednesday

	weekly, err := NextRuns(FrequencyWeekly, from, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Weekly schedules fire Monday 06:00.
	want := time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC)
	if !weekly[0].Equal(want) {
		t.Errorf("first weekly run = %v, want %v", weekly[0], want)
	}
	if got := weekly[1].Sub(weekly[0]); got != 7*24*time.Hour {
		t.Errorf("weekly spacing = %v", got)
	}

	hourly, err := NextRuns(FrequencyHourly, from, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hourly[0].Minute() != 0 || hourly[0].Hour() != 11 {
		t.Errorf("first hourly run = %v", hourly[0])
	}

	if _, err := NextRuns("sometimes", from, 1); !errors.Is(err, ErrUnknownFrequency) {
		t.Errorf("unknown frequency: %v", err)
	}
}
