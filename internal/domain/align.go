package domain

import (
	"sort"
	"time"
)

// DefaultAlignWindow is the number of most recent timestamps shown on an
// aligned multi-metric chart.
const DefaultAlignWindow = 10

// MetricRow is one timestamped observation from a single source. Values holds
// only the fields that source reports; a nil entry means the field was
// reported but could not be read.
type MetricRow struct {
	Source    string              `json:"source,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Values    map[string]*float64 `json:"values"`
}

// AlignedView projects several metrics onto one shared time axis. A nil entry
// in Fields is a gap: no source reported that field at that timestamp.
type AlignedView struct {
	Timestamps []time.Time           `json:"timestamps"`
	Fields     map[string][]*float64 `json:"fields"`
}

// Latest returns the most recent non-gap value of field.
func (v AlignedView) Latest(field string) (float64, bool) {
	vals := v.Fields[field]
	for i := len(vals) - 1; i >= 0; i-- {
		if vals[i] != nil {
			return *vals[i], true
		}
	}
	return 0, false
}

// SortMetricRows orders rows oldest-first, keeping the relative order of rows
// that share a timestamp.
func SortMetricRows(rows []MetricRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

// CommonTimestamps returns the distinct timestamps across rows, ascending,
// limited to the most recent window entries. A window of zero or less keeps
// all of them.
func CommonTimestamps(rows []MetricRow, window int) []time.Time {
	seen := make(map[int64]struct{}, len(rows))
	var out []time.Time
	for _, r := range rows {
		if r.Timestamp.IsZero() {
			continue
		}
		k := r.Timestamp.UnixNano()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r.Timestamp.UTC())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// Align builds the common time axis and, for each field and timestamp, takes
// the first non-nil value among the rows sharing exactly that timestamp, in
// input order. Timestamps where no row reports the field stay nil.
func Align(rows []MetricRow, fields []string, window int) AlignedView {
	axis := CommonTimestamps(rows, window)

	byTime := make(map[int64][]int, len(axis))
	for _, t := range axis {
		byTime[t.UnixNano()] = nil
	}
	for i, r := range rows {
		k := r.Timestamp.UnixNano()
		if idx, ok := byTime[k]; ok {
			byTime[k] = append(idx, i)
		}
	}

	view := AlignedView{
		Timestamps: axis,
		Fields:     make(map[string][]*float64, len(fields)),
	}
	for _, f := range fields {
		vals := make([]*float64, len(axis))
		for i, t := range axis {
			for _, ri := range byTime[t.UnixNano()] {
				if v := rows[ri].Values[f]; v != nil {
					val := *v
					vals[i] = &val
					break
				}
			}
		}
		view.Fields[f] = vals
	}
	return view
}

// ColumnMetrics converts rows whose metrics are plain columns into metric
// rows. Rows without a timestamp are dropped; non-numeric values become nil.
func ColumnMetrics(source string, rows []Row, ts TimestampStrategy, fields []string) []MetricRow {
	out := make([]MetricRow, 0, len(rows))
	for _, row := range rows {
		t, ok := ts.Timestamp(row)
		if !ok {
			continue
		}
		values := make(map[string]*float64, len(fields))
		for _, f := range fields {
			raw, _ := row.Get(f)
			if v, ok := ToNumber(raw); ok {
				values[f] = &v
			} else {
				values[f] = nil
			}
		}
		out = append(out, MetricRow{Source: source, Timestamp: t, Values: values})
	}
	return out
}
