package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SourceResult is the outcome of reading one source during a cycle. A failed
// source keeps only Err; its data fields are empty.
type SourceResult struct {
	Source    string             `json:"source"`
	Kind      string             `json:"kind"`
	Rows      int                `json:"rows"`
	Skipped   int                `json:"skipped"`
	Series    domain.SeriesMap   `json:"series,omitempty"`
	Metrics   []domain.MetricRow `json:"-"`
	Err       error              `json:"-"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// OK reports whether the source was read successfully.
func (r *SourceResult) OK() bool { return r.Err == nil }

// GroupResult is the aligned view of a group. The group fails as a whole when
// any of its sources failed.
type GroupResult struct {
	Group string             `json:"group"`
	View  domain.AlignedView `json:"view"`
	Err   error              `json:"-"`
}

// Snapshot is the self-contained result of one fetch cycle.
type Snapshot struct {
	Sources     map[string]*SourceResult `json:"sources"`
	Groups      map[string]*GroupResult  `json:"groups"`
	CompletedAt time.Time                `json:"completed_at"`
}

// Healthy reports whether at least one source was read successfully.
func (s *Snapshot) Healthy() bool {
	for _, r := range s.Sources {
		if r.OK() {
			return true
		}
	}
	return false
}

// FetchCycle reads every configured source and derives the series and
// aligned views. Sources are read concurrently; each source's pages are read
// in sequence. A failed source does not affect the others. The returned
// Snapshot shares no state with the Service or with earlier snapshots.
func (s *Service) FetchCycle(ctx context.Context) *Snapshot {
	start := time.Now()
	sources := s.catalog.Sources
	results := make([]*SourceResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.fetchSource(ctx, src)
			return results[i].Err
		})
	}
	// Every source runs to completion; the error is only the first failure.
	if err := g.Wait(); err != nil {
		s.logger.Warn("fetch cycle finished with failed sources", "first_error", err)
	}

	snap := &Snapshot{
		Sources: make(map[string]*SourceResult, len(sources)),
		Groups:  make(map[string]*GroupResult, len(s.catalog.Groups)),
	}
	for _, r := range results {
		snap.Sources[r.Source] = r
	}
	for _, grp := range s.catalog.Groups {
		snap.Groups[grp.Name] = alignGroup(grp, snap.Sources)
	}
	snap.CompletedAt = s.clock.Now().UTC()

	s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	return snap
}

func (s *Service) fetchSource(ctx context.Context, src config.Source) *SourceResult {
	res := &SourceResult{Source: src.Name, Kind: src.Kind}

	rows, err := s.readSource(ctx, src)
	res.FetchedAt = s.clock.Now().UTC()
	if err != nil {
		s.logger.Error("source fetch failed", "source", src.Name, "error", err)
		res.Err = err
		return res
	}

	ts := s.Strategy(src)
	res.Rows = len(rows)
	res.Skipped = s.countSkipped(src, rows, ts)

	switch src.Kind {
	case config.KindMarkers:
		res.Series = domain.GroupSeries(rows, ts, src.SeriesPrefix)
	case config.KindNMEA:
		res.Metrics = domain.NMEAMetrics(src.Name, rows, ts, src.DataField, src.Fields)
		res.Series = domain.MetricSeries(res.Metrics, src.Fields)
	case config.KindColumns:
		res.Metrics = domain.ColumnMetrics(src.Name, rows, ts, src.Fields)
		res.Series = domain.MetricSeries(res.Metrics, src.Fields)
	}

	s.logger.Debug("source fetched", "source", src.Name, "rows", res.Rows, "series", len(res.Series))
	return res
}

func alignGroup(grp config.Group, sources map[string]*SourceResult) *GroupResult {
	out := &GroupResult{Group: grp.Name}

	var merged []domain.MetricRow
	for _, name := range grp.Sources {
		r, ok := sources[name]
		if !ok {
			continue
		}
		if r.Err != nil {
			out.Err = r.Err
			return out
		}
		merged = append(merged, r.Metrics...)
	}

	domain.SortMetricRows(merged)
	out.View = domain.Align(merged, grp.Fields, grp.Window)
	return out
}
