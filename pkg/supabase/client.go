// Package supabase is a small client for the PostgREST table API exposed by a
// hosted Supabase project.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vcf-drop/pkg/logger"
)

// uniqueViolation is the Postgres error code for a unique constraint failure
const uniqueViolation = "23505"

// APIError is a non-2xx response from PostgREST
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.StatusCode, e.Message)
}

// IsUniqueViolation reports whether err is a unique constraint failure
func IsUniqueViolation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == uniqueViolation || apiErr.StatusCode == http.StatusConflict
}

// Client talks to /rest/v1 with the project's anon key
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new Supabase table client
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Eq builds an equality filter for column
func Eq(column, value string) url.Values {
	return url.Values{column: []string{"eq." + value}}
}

// Select fetches rows into out. query may carry filters, "select" and "order".
func (c *Client) Select(ctx context.Context, table string, query url.Values, out interface{}) error {
	q := cloneValues(query)
	if q.Get("select") == "" {
		q.Set("select", "*")
	}

	_, body, err := c.do(ctx, http.MethodGet, table, q, nil, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.WithFields(map[string]interface{}{
			"table":         table,
			"response_size": len(body),
		}).Error("Failed to parse Supabase response")
		return fmt.Errorf("failed to parse Supabase response: %w", err)
	}
	return nil
}

// Insert adds rows. With upsert, rows whose primary key exists are merged.
func (c *Client) Insert(ctx context.Context, table string, rows interface{}, upsert bool) error {
	prefer := []string{"return=minimal"}
	if upsert {
		prefer = append(prefer, "resolution=merge-duplicates")
	}
	_, _, err := c.do(ctx, http.MethodPost, table, nil, rows, prefer)
	return err
}

// Update patches every row matching filter with body
func (c *Client) Update(ctx context.Context, table string, filter url.Values, body interface{}) error {
	_, _, err := c.do(ctx, http.MethodPatch, table, filter, body, []string{"return=minimal"})
	return err
}

// Delete removes every row matching filter. PostgREST refuses unfiltered
// deletes, so callers pass an always-true filter to clear a table.
func (c *Client) Delete(ctx context.Context, table string, filter url.Values) error {
	_, _, err := c.do(ctx, http.MethodDelete, table, filter, nil, []string{"return=minimal"})
	return err
}

// Count returns the exact number of rows matching filter
func (c *Client) Count(ctx context.Context, table string, filter url.Values) (int, error) {
	q := cloneValues(filter)
	q.Set("select", "*")

	header, _, err := c.do(ctx, http.MethodHead, table, q, nil, []string{"count=exact"})
	if err != nil {
		return 0, err
	}

	return parseContentRange(header.Get("Content-Range"))
}

// parseContentRange extracts the total from "0-24/25" or "*/0"
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", header)
	}
	total, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid count in Content-Range %q: %w", header, err)
	}
	return total, nil
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, payload interface{}, prefer []string) (http.Header, []byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(prefer, ","))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to call Supabase: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"table":       table,
		"status_code": resp.StatusCode,
		"duration":    time.Since(start).String(),
	}).Debug("supabase_request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(body) > 0 && json.Unmarshal(body, apiErr) != nil {
			apiErr.Message = string(body)
		}
		return nil, nil, apiErr
	}

	return resp.Header, body, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
