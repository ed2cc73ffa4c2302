package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
)

// DefaultBrowsePageSize is the page size of raw table browsing.
const DefaultBrowsePageSize = 10

// RowsInRange reads the whole table of a source and keeps the rows whose
// timestamp lies within r. The range is validated before any request is made.
func (s *Service) RowsInRange(ctx context.Context, name string, r domain.DateRange) ([]domain.Row, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	src, err := s.source(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.pages.FetchAll(ctx, src)
	if err != nil {
		return nil, err
	}
	ts := s.Strategy(src)
	s.countSkipped(src, rows, ts)

	out := domain.FilterRange(rows, ts, r)
	s.logger.Info("range filtered", "source", name, "fetched", len(rows), "matched", len(out))
	return out, nil
}

// BrowsePage is one page of raw rows, newest first.
type BrowsePage struct {
	Source   string       `json:"source"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
	Pages    int          `json:"pages"`
	Rows     []domain.Row `json:"rows"`
}

// MaxBrowsePage is the highest page whose row offsets fit in an int.
func MaxBrowsePage(pageSize int) int {
	return math.MaxInt / pageSize
}

// Browse returns page (1-based) of a source's table ordered newest first,
// together with the exact row count of the table.
func (s *Service) Browse(ctx context.Context, name string, page, pageSize int) (BrowsePage, error) {
	src, err := s.source(name)
	if err != nil {
		return BrowsePage{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultBrowsePageSize
	}
	if page > MaxBrowsePage(pageSize) {
		return BrowsePage{}, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}

	from := (page - 1) * pageSize
	rows, total, err := s.store.ReadPageCounted(ctx, src.Table, src.OrderField+".desc", from, from+pageSize-1)
	if err != nil {
		s.metrics.FetchErrors.WithLabelValues(src.Name).Inc()
		return BrowsePage{}, fmt.Errorf("%w: %s browse: %w", ErrFetch, src.Name, err)
	}
	if rows == nil {
		rows = []domain.Row{}
	}

	return BrowsePage{
		Source:   src.Name,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    (total + pageSize - 1) / pageSize,
		Rows:     rows,
	}, nil
}

// Count returns the exact number of rows in a source's table.
func (s *Service) Count(ctx context.Context, name string) (int, error) {
	p, err := s.Browse(ctx, name, 1, 1)
	if err != nil {
		return 0, err
	}
	return p.Total, nil
}
