package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestGroupSeries_MarkerConvention(t *testing.T) {
	row := fragRow(2024, 1, 5, "10:00:00",
		Field{"marker1", "12.5"},
		Field{"marker2", "abc"},
		Field{"other", 3},
	)

	got := GroupSeries([]Row{row}, FragmentedTime{}, DefaultSeriesPrefix)

	want := SeriesMap{
		"marker1": {{Timestamp: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), Value: 12.5}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GroupSeries() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupSeries_ChronologicalAppend(t *testing.T) {
	rows := []Row{
		fragRow(2024, 1, 5, "10:00:00", Field{"marker1", 1.0}, Field{"marker2", 10.0}),
		fragRow(nil, 1, 5, "10:00:05", Field{"marker1", 99.0}),
		fragRow(2024, 1, 5, "10:00:10", Field{"marker1", 2.0}),
		fragRow(2024, 1, 5, "10:00:20", Field{"marker1", nil}, Field{"marker2", "11"}),
	}

	got := GroupSeries(rows, FragmentedTime{}, "marker")

	base := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	want := SeriesMap{
		"marker1": {
			{Timestamp: base, Value: 1},
			{Timestamp: base.Add(10 * time.Second), Value: 2},
		},
		"marker2": {
			{Timestamp: base, Value: 10},
			{Timestamp: base.Add(20 * time.Second), Value: 11},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GroupSeries() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"marker1", "marker2"}, got.Keys())
	assert.Equal(t, 4, got.Points())
}

func TestGroupSeries_NoMatchingFields(t *testing.T) {
	rows := []Row{fragRow(2024, 1, 5, "10:00:00", Field{"other", 1})}
	got := GroupSeries(rows, FragmentedTime{}, "marker")
	assert.Empty(t, got)
	assert.Zero(t, got.Points())
}

func TestCountUntimed(t *testing.T) {
	rows := []Row{
		fragRow(2024, 1, 5, "10:00:00"),
		fragRow(2024, 1, 0, "10:00:00"),
		fragRow(2024, 1, 5, "noon"),
	}
	assert.Equal(t, 2, CountUntimed(rows, FragmentedTime{}))
}

func TestMetricSeries_SkipsNil(t *testing.T) {
	t1 := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	rows := []MetricRow{
		{Timestamp: t1, Values: map[string]*float64{"temp": ptr(21.5), "humidity": nil}},
		{Timestamp: t2, Values: map[string]*float64{"temp": ptr(22.0), "humidity": ptr(55)}},
	}

	got := MetricSeries(rows, []string{"temp", "humidity", "pressure"})

	want := SeriesMap{
		"temp":     {{Timestamp: t1, Value: 21.5}, {Timestamp: t2, Value: 22}},
		"humidity": {{Timestamp: t2, Value: 55}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MetricSeries() mismatch (-want +got):\n%s", diff)
	}
}

func ptr(v float64) *float64 { return &v }
