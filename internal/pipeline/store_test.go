package pipeline_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
)

type pageRequest struct {
	table    string
	order    string
	from, to int
}

// fakeStore serves rows from memory. Tables are held in the order a query
// would return them; the order argument is only recorded.
type fakeStore struct {
	mu       sync.Mutex
	tables   map[string][]domain.Row
	fail     map[string]error
	failPage map[string]int // table -> page index that fails
	pageSize int
	requests []pageRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:   make(map[string][]domain.Row),
		fail:     make(map[string]error),
		failPage: make(map[string]int),
	}
}

func (s *fakeStore) ReadPage(_ context.Context, table, order string, from, to int) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, pageRequest{table: table, order: order, from: from, to: to})
	if err, ok := s.fail[table]; ok {
		if page, ok := s.failPage[table]; !ok || page == from/(to-from+1) {
			return nil, err
		}
	}
	return s.slice(table, from, to+1), nil
}

func (s *fakeStore) ReadLatest(_ context.Context, table, order string, limit int) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, pageRequest{table: table, order: order, from: 0, to: limit - 1})
	if err, ok := s.fail[table]; ok {
		return nil, err
	}
	return s.slice(table, 0, limit), nil
}

func (s *fakeStore) ReadPageCounted(ctx context.Context, table, order string, from, to int) ([]domain.Row, int, error) {
	rows, err := s.ReadPage(ctx, table, order, from, to)
	if err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return rows, len(s.tables[table]), nil
}

func (s *fakeStore) slice(table string, from, to int) []domain.Row {
	rows := s.tables[table]
	if from >= len(rows) {
		return []domain.Row{}
	}
	if to > len(rows) {
		to = len(rows)
	}
	out := make([]domain.Row, to-from)
	copy(out, rows[from:to])
	return out
}

func (s *fakeStore) requestsFor(table string) []pageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pageRequest
	for _, r := range s.requests {
		if r.table == table {
			out = append(out, r)
		}
	}
	return out
}

// numberedRows returns n instant-stamped rows with ids 1..n.
func numberedRows(n int) []domain.Row {
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.NewRow(
			domain.Field{Key: "id", Value: i + 1},
			domain.Field{Key: "inserted_at", Value: fmt.Sprintf("2024-01-01T00:00:%02dZ", i%60)},
		)
	}
	return rows
}

// bandRow is a fragmented-time row of a satellite band table.
func bandRow(id, day int, clock string, markers ...any) domain.Row {
	row := domain.NewRow(
		domain.Field{Key: "id", Value: id},
		domain.Field{Key: "year", Value: 2024},
		domain.Field{Key: "month", Value: 1},
		domain.Field{Key: "day", Value: day},
		domain.Field{Key: "time", Value: clock},
	)
	for i, m := range markers {
		row.Set(fmt.Sprintf("marker%d", i+1), m)
	}
	return row
}

// sentenceRow is a weather-station row holding one NMEA sentence.
func sentenceRow(ts, sentence string) domain.Row {
	return domain.NewRow(
		domain.Field{Key: "timestamp", Value: ts},
		domain.Field{Key: "data", Value: sentence},
	)
}
