package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"training-management-api/config"
)

func testClient(serverURL string, maxAttempts int) *RemoteClient {
	cfg := &config.IntegrationConfig{
		RemoteBaseURL:   serverURL,
		BearerToken:     "test-token",
		SyncMaxAttempts: maxAttempts,
		SyncBaseBackoff: time.Millisecond,
		SyncMaxBackoff:  5 * time.Millisecond,
		SyncPageSize:    2,
	}
	return NewRemoteClient(cfg, &http.Client{Timeout: time.Second})
}

func TestGetSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	if _, err := client.Get(context.Background(), "/trainees/tr-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestResponseClassification(t *testing.T) {
	cases := []struct {
		status    int
		body      string
		wantKind  ErrorKind
		retryable bool
	}{
		{http.StatusUnauthorized, `{"error": "bad token"}`, ErrKindUnauthorized, false},
		{http.StatusForbidden, `{}`, ErrKindUnauthorized, false},
		{http.StatusNotFound, `{}`, ErrKindNotFound, false},
		{http.StatusUnprocessableEntity, `{"errors": {"email": ["is invalid"]}}`, ErrKindValidation, false},
		{http.StatusTooManyRequests, `{}`, ErrKindRateLimited, true},
		{http.StatusInternalServerError, `{}`, ErrKindServer, true},
		{http.StatusBadGateway, `{}`, ErrKindServer, true},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		client := testClient(server.URL, 1)
		_, err := client.Get(context.Background(), "/trainees", nil)
		server.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected APIError, got %v", tc.status, err)
		}
		if apiErr.Kind != tc.wantKind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.wantKind, apiErr.Kind)
		}
		if apiErr.StatusCode != tc.status {
			t.Fatalf("status %d: recorded status %d", tc.status, apiErr.StatusCode)
		}
		if apiErr.Retryable() != tc.retryable {
			t.Fatalf("status %d: expected retryable=%v", tc.status, tc.retryable)
		}
	}
}

func TestValidationErrorCarriesFieldDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors": {"email": ["is invalid", "is taken"], "name": "is required"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	_, err := client.Post(context.Background(), "/trainees", map[string]interface{}{"email": "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.FieldErrors["email"] != "is invalid; is taken" {
		t.Fatalf("unexpected email detail: %q", apiErr.FieldErrors["email"])
	}
	if apiErr.FieldErrors["name"] != "is required" {
		t.Fatalf("unexpected name detail: %q", apiErr.FieldErrors["name"])
	}
}

func TestRateLimitRetryAfterSeconds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	_, err := client.Get(context.Background(), "/trainees", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.RetryAfter == nil || *apiErr.RetryAfter != 7*time.Second {
		t.Fatalf("expected 7s retry hint, got %v", apiErr.RetryAfter)
	}
}

func TestListPageRetriesTransientFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data": [{"id": "tr-1"}], "meta": {"current_page": 1, "total_pages": 1, "total_count": 1}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 5)
	page, err := client.ListPage(context.Background(), "/trainees", 1, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(page.Data) != 1 || page.Meta.TotalPages != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestListPageSendsPaginationAndFilters(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"data": [], "meta": {"current_page": 3, "total_pages": 3, "total_count": 5}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	filters := url.Values{}
	filters.Set("updated_since", "2026-08-01T00:00:00Z")

	if _, err := client.ListPage(context.Background(), "/trainees", 3, 25, filters); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery.Get("page") != "3" || gotQuery.Get("per_page") != "25" {
		t.Fatalf("pagination params missing: %v", gotQuery)
	}
	if gotQuery.Get("updated_since") != "2026-08-01T00:00:00Z" {
		t.Fatalf("filter dropped: %v", gotQuery)
	}
}

func TestListPageMalformedBodyIsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	client := testClient(server.URL, 1)
	_, err := client.ListPage(context.Background(), "/trainees", 1, 2, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != ErrKindServer {
		t.Fatalf("expected server-kind APIError for malformed body, got %v", err)
	}
}

func TestNonRetryableStatusFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL, 5)
	_, err := client.ListPage(context.Background(), "/trainees", 1, 2, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != ErrKindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries on unauthorized, got %d calls", calls)
	}
}
