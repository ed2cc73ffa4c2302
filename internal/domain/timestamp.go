package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Fragmented-time field names.
const (
	FieldYear  = "year"
	FieldMonth = "month"
	FieldDay   = "day"
	FieldTime  = "time"
)

// RowShape identifies how a source encodes the time of each row. The shape is
// a property of the source, never inferred per row.
type RowShape int

const (
	// ShapeFragmented rows carry separate year, month, day and time fields.
	ShapeFragmented RowShape = iota
	// ShapeInstant rows carry one ready-to-parse instant field.
	ShapeInstant
)

func (s RowShape) String() string {
	switch s {
	case ShapeFragmented:
		return "fragmented"
	case ShapeInstant:
		return "instant"
	default:
		return "unknown"
	}
}

// ParseRowShape maps a configuration value to a RowShape.
func ParseRowShape(s string) (RowShape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fragmented":
		return ShapeFragmented, nil
	case "instant":
		return ShapeInstant, nil
	default:
		return 0, fmt.Errorf("unknown row shape %q", s)
	}
}

// TimestampStrategy reconstructs the canonical instant of a row.
type TimestampStrategy interface {
	// Timestamp returns the row's instant in UTC, or false when the row has
	// no usable time.
	Timestamp(row Row) (time.Time, bool)
	// Reconstructed reports whether the instant is assembled from several
	// fields, in which case filtered rows carry it as an extra field.
	Reconstructed() bool
}

// Strategy returns the timestamp strategy for the shape. timeField names the
// instant column and is ignored for fragmented rows.
func (s RowShape) Strategy(timeField string, loc *time.Location) TimestampStrategy {
	if s == ShapeInstant {
		return InstantField{Field: timeField, Location: loc}
	}
	return FragmentedTime{Location: loc}
}

// FragmentedTime reconstructs instants from year/month/day/time fields.
type FragmentedTime struct {
	Location *time.Location
}

func (f FragmentedTime) Timestamp(row Row) (time.Time, bool) {
	return ReconstructFragmented(row, f.Location)
}

func (FragmentedTime) Reconstructed() bool { return true }

// InstantField parses a single instant column.
type InstantField struct {
	Field    string
	Location *time.Location
}

func (s InstantField) Timestamp(row Row) (time.Time, bool) {
	v, ok := row.Get(s.Field)
	if !ok {
		return time.Time{}, false
	}
	str, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	return ParseInstant(str, s.Location)
}

func (InstantField) Reconstructed() bool { return false }

// ReconstructFragmented joins year-month-day (zero padded) with T<time>, parses
// it in loc and returns the instant in UTC. A time of day carrying its own
// zone ("10:00:00Z", "10:00:00+08:00") ignores loc. A missing, null or zero date part,
// or a time of day that does not parse, yields false.
func ReconstructFragmented(row Row, loc *time.Location) (time.Time, bool) {
	year, ok := positiveInt(row, FieldYear)
	if !ok {
		return time.Time{}, false
	}
	month, ok := positiveInt(row, FieldMonth)
	if !ok {
		return time.Time{}, false
	}
	day, ok := positiveInt(row, FieldDay)
	if !ok {
		return time.Time{}, false
	}
	tod, ok := timeOfDay(row)
	if !ok {
		return time.Time{}, false
	}

	if loc == nil {
		loc = time.UTC
	}
	local := fmt.Sprintf("%04d-%02d-%02dT%s", year, month, day, tod)
	if t, err := time.Parse(time.RFC3339Nano, local); err == nil {
		return t.UTC(), true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, local, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses an instant string. Values carrying an offset are used
// as-is; zone-less values are read in loc. The result is in UTC.
func ParseInstant(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t as an ISO-8601 UTC string with millisecond precision.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func positiveInt(row Row, key string) (int, bool) {
	v, ok := row.Get(key)
	if !ok {
		return 0, false
	}
	f, ok := ToNumber(v)
	if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func timeOfDay(row Row) (string, bool) {
	v, ok := row.Get(FieldTime)
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ToNumber coerces a row value to a finite float64. Native numbers are
// accepted, strings are parsed strictly, everything else is rejected.
func ToNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
