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
	"github.com/jonboulle/clockwork"
)

// ErrUnknownSource is returned for a source or group name missing from the catalog.
var ErrUnknownSource = errors.New("unknown source")

// ErrInvalidPage is returned for a browse page beyond the addressable rows.
var ErrInvalidPage = errors.New("invalid page")

// Store is the tabular store as seen by the pipeline.
type Store interface {
	PageReader
	// ReadLatest returns the first limit rows in the given order.
	ReadLatest(ctx context.Context, table, order string, limit int) ([]domain.Row, error)
	// ReadPageCounted is ReadPage plus the exact number of rows in the table.
	ReadPageCounted(ctx context.Context, table, order string, from, to int) ([]domain.Row, int, error)
}

// Options tunes a Service.
type Options struct {
	PageSize int
	// Location is the timezone of zone-less timestamps stored in the tables.
	Location *time.Location
	Clock    clockwork.Clock
}

// Service runs every read the dashboard makes against the store.
type Service struct {
	catalog *config.Catalog
	store   Store
	pages   *Paginator
	loc     *time.Location
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates a Service over the given catalog and store.
func NewService(catalog *config.Catalog, store Store, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		catalog: catalog,
		store:   store,
		pages:   NewPaginator(store, opts.PageSize, logger, metrics),
		loc:     opts.Location,
		clock:   opts.Clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Catalog returns the configured sources and groups.
func (s *Service) Catalog() *config.Catalog { return s.catalog }

// Location returns the timezone used for zone-less stored timestamps.
func (s *Service) Location() *time.Location { return s.loc }

// Strategy returns the timestamp strategy for a source.
func (s *Service) Strategy(src config.Source) domain.TimestampStrategy {
	shape, err := domain.ParseRowShape(src.Shape)
	if err != nil {
		// The catalog is validated on load; fall back to the date-part layout.
		shape = domain.ShapeFragmented
	}
	return shape.Strategy(src.TimeField, s.loc)
}

func (s *Service) source(name string) (config.Source, error) {
	src, ok := s.catalog.Source(name)
	if !ok {
		return config.Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// readSource reads a source according to its mode and returns its rows
// oldest-first.
func (s *Service) readSource(ctx context.Context, src config.Source) ([]domain.Row, error) {
	var (
		rows []domain.Row
		err  error
	)
	switch src.Mode {
	case config.ModeLatest:
		rows, err = s.readLatest(ctx, src)
	default:
		rows, err = s.pages.FetchAll(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	if src.Descending {
		rows = domain.ReverseRows(rows)
	}
	return rows, nil
}

func (s *Service) readLatest(ctx context.Context, src config.Source) ([]domain.Row, error) {
	start := time.Now()
	rows, err := s.store.ReadLatest(ctx, src.Table, src.Order(), src.Limit)
	s.metrics.FetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FetchErrors.WithLabelValues(src.Name).Inc()
		return nil, fmt.Errorf("%w: %s latest: %w", ErrFetch, src.Name, err)
	}
	s.metrics.PagesFetched.WithLabelValues(src.Name).Inc()
	s.metrics.RowsFetched.WithLabelValues(src.Name).Add(float64(len(rows)))
	return rows, nil
}

// countSkipped records rows that carry no usable timestamp.
func (s *Service) countSkipped(src config.Source, rows []domain.Row, ts domain.TimestampStrategy) int {
	n := domain.CountUntimed(rows, ts)
	if n > 0 {
		s.metrics.RowsSkipped.WithLabelValues(src.Name).Add(float64(n))
		s.logger.Debug("rows without timestamp skipped", "source", src.Name, "rows", n)
	}
	return n
}
