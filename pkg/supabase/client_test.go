package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "anon-key", nil)
}

func assertAuthHeaders(t *testing.T, r *http.Request) {
	assert.Equal(t, "anon-key", r.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
}

func TestClient_Select(t *testing.T) {
	tests := []struct {
		name          string
		query         url.Values
		status        int
		body          string
		expected      []row
		expectedQuery string
		errorContains string
	}{
		{
			name:          "rows in order",
			query:         url.Values{"order": []string{"timestamp.asc"}},
			status:        http.StatusOK,
			body:          `[{"id":"1","name":"a"},{"id":"2","name":"b"}]`,
			expected:      []row{{"1", "a"}, {"2", "b"}},
			expectedQuery: "order=timestamp.asc&select=%2A",
		},
		{
			name:          "filter by equality",
			query:         Eq("id", "1"),
			status:        http.StatusOK,
			body:          `[]`,
			expected:      []row{},
			expectedQuery: "id=eq.1&select=%2A",
		},
		{
			name:          "server error",
			status:        http.StatusInternalServerError,
			body:          `{"message":"boom"}`,
			errorContains: "supabase returned status 500: boom",
		},
		{
			name:          "invalid JSON",
			status:        http.StatusOK,
			body:          `not json`,
			errorContains: "failed to parse Supabase response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/rest/v1/contacts", r.URL.Path)
				assertAuthHeaders(t, r)
				if tt.expectedQuery != "" {
					assert.Equal(t, tt.expectedQuery, r.URL.RawQuery)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			var got []row
			err := client.Select(context.Background(), "contacts", tt.query, &got)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClient_Insert(t *testing.T) {
	tests := []struct {
		name           string
		upsert         bool
		expectedPrefer string
	}{
		{"plain insert", false, "return=minimal"},
		{"upsert", true, "return=minimal,resolution=merge-duplicates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, tt.expectedPrefer, r.Header.Get("Prefer"))
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `[{"id":"1","name":"a"}]`, string(body))
				w.WriteHeader(http.StatusCreated)
			})

			err := client.Insert(context.Background(), "contacts", []row{{"1", "a"}}, tt.upsert)
			assert.NoError(t, err)
		})
	}
}

func TestClient_Insert_UniqueViolation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	})

	err := client.Insert(context.Background(), "contacts", row{"1", "a"}, false)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", err)))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "23505", apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(&APIError{StatusCode: http.StatusBadRequest, Code: "22P02"}))
	assert.True(t, IsUniqueViolation(&APIError{StatusCode: http.StatusBadRequest, Code: "23505"}))
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.RawQuery)
		if r.Method == http.MethodPatch {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"isSystemLocked":true}`, string(body))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	require.NoError(t, client.Update(ctx, "settings", Eq("id", "1"), map[string]bool{"isSystemLocked": true}))
	require.NoError(t, client.Delete(ctx, "contacts", url.Values{"id": []string{"not.is.null"}}))

	assert.Equal(t, []string{
		"PATCH id=eq.1",
		"DELETE id=not.is.null",
	}, calls)
}

func TestClient_Count(t *testing.T) {
	tests := []struct {
		name          string
		contentRange  string
		status        int
		expected      int
		errorContains string
	}{
		{"some rows", "0-24/25", http.StatusOK, 25, ""},
		{"empty table", "*/0", http.StatusOK, 0, ""},
		{"partial content", "0-99/812", http.StatusPartialContent, 812, ""},
		{"missing header", "", http.StatusOK, 0, "missing count"},
		{"unknown total", "0-9/*", http.StatusOK, 0, "invalid count"},
		{"server error", "", http.StatusServiceUnavailable, 0, "status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
				if tt.contentRange != "" {
					w.Header().Set("Content-Range", tt.contentRange)
				}
				w.WriteHeader(tt.status)
			})

			got, err := client.Count(context.Background(), "contacts", nil)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "k", nil)
	_, err := client.Count(context.Background(), "contacts", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call Supabase")
}
