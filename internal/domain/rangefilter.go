package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampField is the field attached to filtered fragmented-time rows.
const TimestampField = "timestamp"

// ErrInvalidRange marks a missing or inverted date range. It is a user input
// error and is reported before any fetch happens.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate checks that both bounds are set and Start is not after End.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: both start and end are required", ErrInvalidRange)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidRange)
	}
	return nil
}

// Contains reports whether t lies within the range, bounds included. The zero
// time never matches.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// FilterRange keeps the rows whose timestamp lies within r. Rows whose
// timestamp is reconstructed from fragments are returned as copies carrying
// the instant under TimestampField; instant-stamped rows are returned as is.
// The input is never modified.
func FilterRange(rows []Row, ts TimestampStrategy, r DateRange) []Row {
	out := make([]Row, 0)
	for _, row := range rows {
		t, ok := ts.Timestamp(row)
		if !ok || !r.Contains(t) {
			continue
		}
		if ts.Reconstructed() {
			row = row.Clone()
			row.Set(TimestampField, FormatInstant(t))
		}
		out = append(out, row)
	}
	return out
}

var boundLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBound parses a user supplied range bound. RFC 3339 values are taken
// as-is; datetime-local style values are read in loc.
func ParseBound(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidRange, s)
}

// ParseRange parses and validates start/end bounds.
func ParseRange(start, end string, loc *time.Location) (DateRange, error) {
	s, err := ParseBound(start, loc)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseBound(end, loc)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}
