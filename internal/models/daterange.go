package models

import (
	"fmt"
	"time"
)

// SQLTimeLayout is the wire format the backend expects for range bounds.
// Seconds are always zeroed.
const SQLTimeLayout = "2006-01-02 15:04:00"

// DateRange is the report window selected by the user.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether either bound is unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() || r.End.IsZero()
}

// StartSQL renders the start bound in the backend wire format.
func (r DateRange) StartSQL() string {
	return r.Start.Format(SQLTimeLayout)
}

// EndSQL renders the end bound in the backend wire format.
func (r DateRange) EndSQL() string {
	return r.End.Format(SQLTimeLayout)
}

// Span returns the duration covered by the range.
func (r DateRange) Span() time.Duration {
	return r.End.Sub(r.Start)
}

// ScopeKey builds the composite cache key used to dedupe per-template
// fetches for an unchanged (connection, range) pair.
func (r DateRange) ScopeKey(connectionID string) string {
	return fmt.Sprintf("%s|%s|%s", connectionID, r.StartSQL(), r.EndSQL())
}

// ParseSQLTime parses a backend-format timestamp.
func ParseSQLTime(s string) (time.Time, error) {
	return time.Parse(SQLTimeLayout, s)
}
