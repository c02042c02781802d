// Package schedule validates recurring generation requests and previews
// their upcoming run times. Execution is owned by the backend; this package
// only decides whether a request is well-formed before it is sent.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequencies accepted for a schedule.
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

var (
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrEmptyName        = errors.New("schedule name is required")
	ErrNoTemplate       = errors.New("schedule template is required")
	ErrBadDateWindow    = errors.New("end date precedes start date")
)

// cronExprs maps each frequency to the cron expression the backend runs it
// with. Daily and coarser fire at 06:00 so reports cover the previous period.
var cronExprs = map[string]string{
	FrequencyHourly:  "0 * * * *",
	FrequencyDaily:   "0 6 * * *",
	FrequencyWeekly:  "0 6 * * 1",
	FrequencyMonthly: "0 6 1 * *",
}

// dateLayouts are the accepted window formats: a calendar day, or the SQL
// datetime the run query carries for its range bounds.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05"}

func parseWindowDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, want 2006-01-02 or 2006-01-02 15:04:05", s)
}

// CronExpr returns the cron expression for a frequency.
func CronExpr(frequency string) (string, error) {
	expr, ok := cronExprs[frequency]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
	return expr, nil
}

// Request is the validated shape of a schedule before it is sent to the
// backend.
type Request struct {
	Name       string
	TemplateID string
	Frequency  string
	StartDate  string
	EndDate    string
}

// Validate checks a schedule request. Dates are optional; when both are set
// the window must not be inverted.
func Validate(req Request) error {
	if req.Name == "" {
		return ErrEmptyName
	}
	if req.TemplateID == "" {
		return ErrNoTemplate
	}
	if _, err := CronExpr(req.Frequency); err != nil {
		return err
	}

	var start, end time.Time
	if req.StartDate != "" {
		t, err := parseWindowDate(req.StartDate)
		if err != nil {
			return fmt.Errorf("start date: %w", err)
		}
		start = t
	}
	if req.EndDate != "" {
		t, err := parseWindowDate(req.EndDate)
		if err != nil {
			return fmt.Errorf("end date: %w", err)
		}
		end = t
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: %s before %s", ErrBadDateWindow, req.EndDate, req.StartDate)
	}
	return nil
}

// NextRuns previews the next n fire times of a frequency after from.
func NextRuns(frequency string, from time.Time, n int) ([]time.Time, error) {
	expr, err := CronExpr(frequency)
	if err != nil {
		return nil, err
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}

	times := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = sched.Next(next)
		times = append(times, next)
	}
	return times, nil
}
