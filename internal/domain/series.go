package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultSeriesPrefix selects the marker columns of satellite band tables.
const DefaultSeriesPrefix = "marker"

// SeriesPoint is one numeric reading at one instant.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SeriesMap buckets points by series key (the source column name).
type SeriesMap map[string][]SeriesPoint

// Keys returns the series keys in lexical order.
func (m SeriesMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Points returns the total number of points across all series.
func (m SeriesMap) Points() int {
	n := 0
	for _, pts := range m {
		n += len(pts)
	}
	return n
}

// GroupSeries partitions rows into series keyed by every field whose name
// starts with prefix. Values are coerced with ToNumber and non-numeric values
// are dropped. Rows without a timestamp contribute nothing. Points are
// appended in input order, so rows must already be oldest-first for the
// series to be chronological.
func GroupSeries(rows []Row, ts TimestampStrategy, prefix string) SeriesMap {
	out := make(SeriesMap)
	for _, row := range rows {
		t, ok := ts.Timestamp(row)
		if !ok {
			continue
		}
		for _, key := range row.keys {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			v, ok := ToNumber(row.fields[key])
			if !ok {
				continue
			}
			out[key] = append(out[key], SeriesPoint{Timestamp: t, Value: v})
		}
	}
	return out
}

// CountUntimed returns how many rows have no usable timestamp.
func CountUntimed(rows []Row, ts TimestampStrategy) int {
	n := 0
	for _, row := range rows {
		if _, ok := ts.Timestamp(row); !ok {
			n++
		}
	}
	return n
}

// MetricSeries builds one series per field from metric rows. Nil values are
// left out, so a series may have fewer points than there are rows.
func MetricSeries(rows []MetricRow, fields []string) SeriesMap {
	out := make(SeriesMap)
	for _, r := range rows {
		for _, f := range fields {
			v := r.Values[f]
			if v == nil {
				continue
			}
			out[f] = append(out[f], SeriesPoint{Timestamp: r.Timestamp, Value: *v})
		}
	}
	return out
}
