package domain

import (
	"math"
	"strconv"
	"strings"
)

// Weather-station metric names decoded from NMEA sentences.
const (
	MetricTemp          = "temp"
	MetricPressure      = "pressure"
	MetricHumidity      = "humidity"
	MetricWindSpeed     = "wind_speed"
	MetricWindDirection = "wind_direction"
	MetricValue1        = "value1"
	MetricValue2        = "value2"
)

// ParseNMEA decodes the weather-station sentences stored by the logger:
//
//	$WIXDR  transducer readings; the value sits two fields before its tag
//	        (TEMP, PRESS, RH).
//	$WIMWV  wind; field 1 is direction, field 3 is speed.
//	$HYUDF  solar; fields 7 and 8.
//
// The result holds only the metrics the sentence type defines. A metric that
// is missing or unreadable maps to nil. Unknown sentences yield an empty map.
func ParseNMEA(sentence string) map[string]*float64 {
	sentence = strings.TrimSpace(sentence)
	parts := strings.Split(sentence, ",")

	switch {
	case strings.HasPrefix(sentence, "$WIXDR"):
		return map[string]*float64{
			MetricTemp:     taggedValue(parts, "TEMP"),
			MetricPressure: taggedValue(parts, "PRESS"),
			MetricHumidity: taggedValue(parts, "RH"),
		}
	case strings.HasPrefix(sentence, "$WIMWV"):
		return map[string]*float64{
			MetricWindDirection: fieldValue(parts, 1),
			MetricWindSpeed:     fieldValue(parts, 3),
		}
	case strings.HasPrefix(sentence, "$HYUDF"):
		return map[string]*float64{
			MetricValue1: fieldValue(parts, 7),
			MetricValue2: fieldValue(parts, 8),
		}
	default:
		return map[string]*float64{}
	}
}

// NMEAMetrics decodes the sentence in dataField of each row into a metric
// row. Only the listed fields are kept, so a source never reports metrics it
// does not own.
func NMEAMetrics(source string, rows []Row, ts TimestampStrategy, dataField string, fields []string) []MetricRow {
	out := make([]MetricRow, 0, len(rows))
	for _, row := range rows {
		t, ok := ts.Timestamp(row)
		if !ok {
			continue
		}
		raw, _ := row.Get(dataField)
		sentence, _ := raw.(string)
		parsed := ParseNMEA(sentence)

		values := make(map[string]*float64, len(fields))
		for _, f := range fields {
			values[f] = parsed[f]
		}
		out = append(out, MetricRow{Source: source, Timestamp: t, Values: values})
	}
	return out
}

func taggedValue(parts []string, tag string) *float64 {
	for i, p := range parts {
		if stripChecksum(strings.TrimSpace(p)) == tag {
			return fieldValue(parts, i-2)
		}
	}
	return nil
}

func fieldValue(parts []string, i int) *float64 {
	if i < 0 || i >= len(parts) {
		return nil
	}
	s := stripChecksum(strings.TrimSpace(parts[i]))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// stripChecksum drops the checksum trailing the last field, e.g. "RH*3F".
func stripChecksum(s string) string {
	if star := strings.IndexByte(s, '*'); star >= 0 {
		return s[:star]
	}
	return s
}
