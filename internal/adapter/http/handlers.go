package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/sensor-dashboard-service/internal/adapter/chart"
	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
)

type sourceStatus struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Mode      string   `json:"mode"`
	Fields    []string `json:"fields,omitempty"`
	Rows      int      `json:"rows"`
	Skipped   int      `json:"skipped"`
	FetchedAt string   `json:"fetched_at,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type sourcesResponse struct {
	User        string         `json:"user,omitempty"`
	Sources     []sourceStatus `json:"sources"`
	Groups      []string       `json:"groups"`
	CompletedAt string         `json:"completed_at,omitempty"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	cat := s.reader.Catalog()
	snap := s.snapshots.Current()

	resp := sourcesResponse{
		Sources: make([]sourceStatus, 0, len(cat.Sources)),
		Groups:  make([]string, 0, len(cat.Groups)),
	}
	if sess, ok := sessionFrom(r.Context()); ok {
		resp.User = sess.Username
	}
	if snap != nil {
		resp.CompletedAt = domain.FormatInstant(snap.CompletedAt)
	}

	for _, src := range cat.Sources {
		st := sourceStatus{Name: src.Name, Kind: src.Kind, Mode: src.Mode, Fields: src.Fields}
		if snap != nil {
			if res, ok := snap.Sources[src.Name]; ok {
				st.Rows = res.Rows
				st.Skipped = res.Skipped
				st.FetchedAt = domain.FormatInstant(res.FetchedAt)
				if res.Err != nil {
					st.Error = res.Err.Error()
				}
			}
		}
		resp.Sources = append(resp.Sources, st)
	}
	for _, g := range cat.Groups {
		resp.Groups = append(resp.Groups, g.Name)
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// currentSource returns the latest cycle result of a source, writing the
// error response itself when there is none to serve.
func (s *Server) currentSource(w http.ResponseWriter, name string) (*pipeline.SourceResult, bool) {
	if _, ok := s.reader.Catalog().Source(name); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source %q", name))
		return nil, false
	}
	snap := s.snapshots.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no data fetched yet")
		return nil, false
	}
	res, ok := snap.Sources[name]
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no data fetched yet")
		return nil, false
	}
	if res.Err != nil {
		writeError(w, http.StatusBadGateway, res.Err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) currentGroup(w http.ResponseWriter, name string) (*pipeline.GroupResult, bool) {
	if _, ok := s.reader.Catalog().Group(name); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown group %q", name))
		return nil, false
	}
	snap := s.snapshots.Current()
	if snap == nil || snap.Groups[name] == nil {
		writeError(w, http.StatusServiceUnavailable, "no data fetched yet")
		return nil, false
	}
	res := snap.Groups[name]
	if res.Err != nil {
		writeError(w, http.StatusBadGateway, res.Err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	res, ok := s.currentSource(w, mux.Vars(r)["source"])
	if !ok {
		return
	}
	series := res.Series
	if series == nil {
		series = domain.SeriesMap{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"source":     res.Source,
		"fetched_at": domain.FormatInstant(res.FetchedAt),
		"series":     series,
	})
}

func (s *Server) handleAligned(w http.ResponseWriter, r *http.Request) {
	res, ok := s.currentGroup(w, mux.Vars(r)["group"])
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > pipeline.MaxBrowsePage(pipeline.DefaultBrowsePageSize) {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	result, err := s.reader.Browse(r.Context(), mux.Vars(r)["source"], page, pipeline.DefaultBrowsePageSize)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["source"]
	q := r.URL.Query()

	rng, err := domain.ParseRange(q.Get("start"), q.Get("end"), s.inputLoc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.reader.RowsInRange(r.Context(), name, rng)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	if len(rows) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := domain.ExportCSV(&buf, rows); err != nil {
		s.logger.Error("csv export failed", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.ExportFilename(name, rng)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("csv export write failed", "source", name, "error", err)
		return
	}
	s.metrics.ExportsServed.Inc()
	s.logger.Info("csv exported", "source", name, "rows", len(rows))
}

func (s *Server) handleSourceChart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.currentSource(w, mux.Vars(r)["source"])
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := chart.RenderSeries(&buf, res.Series, chartOptions(r, res.Source))
	s.writeChart(w, &buf, err)
}

func (s *Server) handleGroupChart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["group"]
	res, ok := s.currentGroup(w, name)
	if !ok {
		return
	}
	grp, _ := s.reader.Catalog().Group(name)
	fields := grp.Fields
	if f := r.URL.Query().Get("field"); f != "" {
		fields = strings.Split(f, ",")
	}

	var buf bytes.Buffer
	err := chart.RenderAligned(&buf, res.View, fields, chartOptions(r, name))
	s.writeChart(w, &buf, err)
}

func chartOptions(r *http.Request, title string) chart.Options {
	q := r.URL.Query()
	width, _ := strconv.Atoi(q.Get("width"))
	height, _ := strconv.Atoi(q.Get("height"))
	return chart.Options{Title: title, Width: min(width, 4096), Height: min(height, 4096)}
}

func (s *Server) writeChart(w http.ResponseWriter, buf *bytes.Buffer, err error) {
	if errors.Is(err, chart.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error("chart render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeReadError maps pipeline errors to HTTP statuses.
func (s *Server) writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, pipeline.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrFetch):
		s.logger.Warn("store read failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
