package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey           = "anon-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testKey, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_ReadPage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ku", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "id.desc", r.URL.Query().Get("order"))
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "items", r.Header.Get("Range-Unit"))
		assert.Equal(t, "1000-1999", r.Header.Get("Range"))
		assert.Empty(t, r.Header.Get("Prefer"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[{"marker2":1.5,"marker1":"12.5","id":7},{"id":6,"year":2024}]`)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL+"/").ReadPage(context.Background(), "ku", "id.desc", 1000, 1999)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"marker2", "marker1", "id"}, rows[0].Keys(), "column order is kept")
	v, _ := rows[0].Get("id")
	assert.Equal(t, json.Number("7"), v, "numbers keep their literal form")
}

func TestClient_ReadLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distro", r.URL.Path)
		assert.Equal(t, "inserted_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.Header.Get("Range"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).ReadLatest(context.Background(), "distro", "inserted_at.desc", 10)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestClient_ReadPageCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "0-9", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "0-1/42")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, `[{"id":42},{"id":41}]`)
	}))
	defer srv.Close()

	rows, total, err := testClient(srv.URL).ReadPageCounted(context.Background(), "wind", "id.desc", 0, 9)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 42, total)
}

func TestClient_RangePastEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Range", "*/2000")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		_, _ = io.WriteString(w, `{"message":"Requested range not satisfiable"}`)
	}))
	defer srv.Close()

	rows, total, err := testClient(srv.URL).ReadPageCounted(context.Background(), "ku", "id.desc", 2000, 2999)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 2000, total)
}

func TestClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid API key"}`)
	}))
	defer srv.Close()

	rows, err := testClient(srv.URL).ReadPage(context.Background(), "ku", "id.desc", 0, 999)
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ReadPage(context.Background(), "ku", "id.desc", 0, 999)
	require.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.ReadPage(context.Background(), "ku", "id.desc", 0, 999)
	require.Error(t, err)
}

func TestClient_NoKeyNoAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("apikey"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.ReadPage(context.Background(), "ku", "id.desc", 0, 9)
	require.NoError(t, err)
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0-9/42", 42, false},
		{"*/0", 0, false},
		{"*/2000", 2000, false},
		{"0-9/*", 0, true},
		{"", 0, true},
		{"0-9/abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseContentRange(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
