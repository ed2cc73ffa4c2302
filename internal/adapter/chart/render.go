// Package chart renders sensor series as PNG line charts.
package chart

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

// Default canvas size in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 400
)

// Options controls the canvas.
type Options struct {
	Title  string
	Width  int
	Height int
	// TimeFormat labels the time axis, e.g. "15:04".
	TimeFormat string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.TimeFormat == "" {
		o.TimeFormat = "15:04:05"
	}
	return o
}

// line is one named curve; nil values are gaps.
type line struct {
	name   string
	times  []time.Time
	values []*float64
}

// RenderSeries draws one line per series key, in key order.
func RenderSeries(w io.Writer, series domain.SeriesMap, opts Options) error {
	lines := make([]line, 0, len(series))
	for _, key := range series.Keys() {
		pts := series[key]
		l := line{name: key, times: make([]time.Time, len(pts)), values: make([]*float64, len(pts))}
		for i, p := range pts {
			v := p.Value
			l.times[i] = p.Timestamp
			l.values[i] = &v
		}
		lines = append(lines, l)
	}
	return render(w, lines, opts)
}

// RenderAligned draws the given fields of an aligned view on its shared
// time axis. Gaps break the line.
func RenderAligned(w io.Writer, view domain.AlignedView, fields []string, opts Options) error {
	lines := make([]line, 0, len(fields))
	for _, f := range fields {
		vals, ok := view.Fields[f]
		if !ok {
			continue
		}
		lines = append(lines, line{name: f, times: view.Timestamps, values: vals})
	}
	return render(w, lines, opts)
}

func render(w io.Writer, lines []line, opts Options) error {
	opts = opts.withDefaults()

	var series []chart.Series
	for i, l := range lines {
		style := chart.Style{
			StrokeColor: chart.GetDefaultColor(i),
			StrokeWidth: 2,
			DotColor:    chart.GetDefaultColor(i),
			DotWidth:    2,
		}
		for j, seg := range segments(l) {
			name := l.name
			if j > 0 {
				name = ""
			}
			series = append(series, chart.TimeSeries{
				Name:    name,
				XValues: seg.times,
				YValues: seg.values,
				Style:   style,
			})
		}
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(opts.TimeFormat),
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

type segment struct {
	times  []time.Time
	values []float64
}

// segments splits a line at its gaps. go-chart needs at least two points
// per series, so a lone point is drawn as a one-second stub.
func segments(l line) []segment {
	var (
		out []segment
		cur segment
	)
	flush := func() {
		switch len(cur.times) {
		case 0:
			return
		case 1:
			cur.times = append(cur.times, cur.times[0].Add(time.Second))
			cur.values = append(cur.values, cur.values[0])
		}
		out = append(out, cur)
		cur = segment{}
	}
	for i, v := range l.values {
		if v == nil || i >= len(l.times) {
			flush()
			continue
		}
		cur.times = append(cur.times, l.times[i])
		cur.values = append(cur.values, *v)
	}
	flush()
	return out
}
