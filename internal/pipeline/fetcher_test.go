package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var distroSource = config.Source{
	Name: "distro", Table: "distro", Shape: "instant", TimeField: "inserted_at",
	OrderField: "id", Descending: true, Mode: config.ModePaginate, Kind: config.KindColumns,
	Fields: []string{"batt"},
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func TestPaginator_FetchAll_ThreePages(t *testing.T) {
	store := newFakeStore()
	store.tables["distro"] = numberedRows(2400)
	p := pipeline.NewPaginator(store, 1000, slog.Default(), newTestMetrics())

	rows, err := p.FetchAll(context.Background(), distroSource)
	require.NoError(t, err)
	require.Len(t, rows, 2400)

	want := []pageRequest{
		{table: "distro", order: "id.desc", from: 0, to: 999},
		{table: "distro", order: "id.desc", from: 1000, to: 1999},
		{table: "distro", order: "id.desc", from: 2000, to: 2999},
	}
	if diff := cmp.Diff(want, store.requestsFor("distro"), cmp.AllowUnexported(pageRequest{})); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}

	// Rows keep request order.
	first, _ := rows[0].Get("id")
	last, _ := rows[2399].Get("id")
	assert.Equal(t, 1, first)
	assert.Equal(t, 2400, last)
}

func TestPaginator_FetchAll_RequestCount(t *testing.T) {
	const pageSize = 100
	tests := []struct {
		total        int
		wantRequests int
	}{
		{0, 1},
		{1, 1},
		{99, 1},
		{100, 2}, // exact multiple: the trailing empty page ends the read
		{101, 2},
		{250, 3},
		{300, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows", tt.total), func(t *testing.T) {
			store := newFakeStore()
			store.tables["distro"] = numberedRows(tt.total)
			p := pipeline.NewPaginator(store, pageSize, slog.Default(), newTestMetrics())

			rows, err := p.FetchAll(context.Background(), distroSource)
			require.NoError(t, err)
			assert.Len(t, rows, tt.total)
			assert.Len(t, store.requestsFor("distro"), tt.wantRequests)
		})
	}
}

func TestPaginator_FetchAll_ErrorAborts(t *testing.T) {
	store := newFakeStore()
	store.tables["distro"] = numberedRows(2400)
	store.fail["distro"] = errors.New("connection reset")
	store.failPage["distro"] = 1
	p := pipeline.NewPaginator(store, 1000, slog.Default(), newTestMetrics())

	rows, err := p.FetchAll(context.Background(), distroSource)
	require.Error(t, err)
	require.ErrorIs(t, err, pipeline.ErrFetch)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, rows, "no partial result on failure")
	assert.Len(t, store.requestsFor("distro"), 2, "no request after the failed page")
}

func TestPaginator_DefaultPageSize(t *testing.T) {
	p := pipeline.NewPaginator(newFakeStore(), 0, slog.Default(), newTestMetrics())
	assert.Equal(t, pipeline.DefaultPageSize, p.PageSize())
}

func TestPaginator_FetchAll_PreservesRowsAsReturned(t *testing.T) {
	store := newFakeStore()
	store.tables["distro"] = []domain.Row{
		domain.NewRow(domain.Field{Key: "id", Value: 2}, domain.Field{Key: "extra", Value: "x"}),
		domain.NewRow(domain.Field{Key: "id", Value: 1}),
	}
	p := pipeline.NewPaginator(store, 10, slog.Default(), newTestMetrics())

	rows, err := p.FetchAll(context.Background(), distroSource)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "extra"}, rows[0].Keys())
}
