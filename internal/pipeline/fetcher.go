package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
)

// DefaultPageSize matches the store's default maximum rows per response.
const DefaultPageSize = 1000

// ErrFetch marks a failed read against the tabular store.
var ErrFetch = errors.New("fetch failed")

// PageReader reads one inclusive offset window [from, to] of a table.
type PageReader interface {
	ReadPage(ctx context.Context, table, order string, from, to int) ([]domain.Row, error)
}

// Paginator reads whole tables one page at a time.
type Paginator struct {
	reader   PageReader
	pageSize int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewPaginator creates a Paginator. A non-positive pageSize falls back to
// DefaultPageSize.
func NewPaginator(reader PageReader, pageSize int, logger *slog.Logger, metrics *observability.Metrics) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Paginator{reader: reader, pageSize: pageSize, logger: logger, metrics: metrics}
}

// PageSize returns the number of rows requested per page.
func (p *Paginator) PageSize() int { return p.pageSize }

// FetchAll reads every row of the source's table in the source's order.
// Pages are requested strictly one after another and the read stops at the
// first page holding fewer than PageSize rows. When the row count is an exact
// multiple of the page size, the trailing empty page ends the read.
//
// Any failed page aborts the read: FetchAll then returns nil rows and an
// error wrapping ErrFetch, never a partial table.
func (p *Paginator) FetchAll(ctx context.Context, src config.Source) ([]domain.Row, error) {
	var all []domain.Row
	for page := 0; ; page++ {
		from := page * p.pageSize
		to := from + p.pageSize - 1

		rows, err := p.readPage(ctx, src, from, to)
		if err != nil {
			p.logger.Warn("page fetch failed", "source", src.Name, "page", page, "error", err)
			return nil, fmt.Errorf("%w: %s page %d: %w", ErrFetch, src.Name, page, err)
		}
		p.logger.Debug("page fetched", "source", src.Name, "page", page, "rows", len(rows))

		all = append(all, rows...)
		if len(rows) < p.pageSize {
			break
		}
	}
	return all, nil
}

func (p *Paginator) readPage(ctx context.Context, src config.Source, from, to int) ([]domain.Row, error) {
	start := time.Now()
	rows, err := p.reader.ReadPage(ctx, src.Table, src.Order(), from, to)
	p.metrics.FetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.FetchErrors.WithLabelValues(src.Name).Inc()
		return nil, err
	}
	p.metrics.PagesFetched.WithLabelValues(src.Name).Inc()
	p.metrics.RowsFetched.WithLabelValues(src.Name).Add(float64(len(rows)))
	return rows, nil
}
