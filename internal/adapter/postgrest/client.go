// Package postgrest reads sensor tables through a PostgREST-compatible REST
// endpoint, such as the one fronting a Supabase project.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sensor-dashboard-service/internal/domain"
)

// ErrNoCount is returned when a counted read gets no usable Content-Range total.
var ErrNoCount = errors.New("response carries no row count")

// Client reads table rows over HTTP.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a client for the REST endpoint at baseURL, e.g.
// "https://project.supabase.co/rest/v1".
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// ReadPage returns the rows at offsets [from, to] of table in the given order.
func (c *Client) ReadPage(ctx context.Context, table, order string, from, to int) ([]domain.Row, error) {
	rows, _, err := c.read(ctx, table, url.Values{"select": {"*"}, "order": {order}}, rangeHeader(from, to), false)
	return rows, err
}

// ReadLatest returns the first limit rows of table in the given order.
func (c *Client) ReadLatest(ctx context.Context, table, order string, limit int) ([]domain.Row, error) {
	params := url.Values{
		"select": {"*"},
		"order":  {order},
		"limit":  {strconv.Itoa(limit)},
	}
	rows, _, err := c.read(ctx, table, params, "", false)
	return rows, err
}

// ReadPageCounted is ReadPage plus the exact number of rows in the table.
func (c *Client) ReadPageCounted(ctx context.Context, table, order string, from, to int) ([]domain.Row, int, error) {
	return c.read(ctx, table, url.Values{"select": {"*"}, "order": {order}}, rangeHeader(from, to), true)
}

func (c *Client) read(ctx context.Context, table string, params url.Values, rng string, count bool) ([]domain.Row, int, error) {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(table), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if rng != "" {
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", rng)
	}
	if count {
		req.Header.Set("Prefer", "count=exact")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s request: %w", table, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusRequestedRangeNotSatisfiable:
		// Offset past the end of the table.
		total, _ := parseContentRange(resp.Header.Get("Content-Range"))
		c.logger.Debug("range past end of table", "table", table, "range", rng)
		return []domain.Row{}, total, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, 0, fmt.Errorf("store API error: status %d: %s", resp.StatusCode, body)
	}

	rows, err := domain.DecodeRows(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", table, err)
	}
	if rows == nil {
		rows = []domain.Row{}
	}

	if !count {
		return rows, 0, nil
	}
	total, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", table, err)
	}
	return rows, total, nil
}

func rangeHeader(from, to int) string {
	return fmt.Sprintf("%d-%d", from, to)
}

// parseContentRange extracts the total from "0-9/42" or "*/42".
func parseContentRange(v string) (int, error) {
	_, total, ok := strings.Cut(strings.TrimSpace(v), "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("%w: Content-Range %q", ErrNoCount, v)
	}
	n, err := strconv.Atoi(total)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: Content-Range %q", ErrNoCount, v)
	}
	return n, nil
}
