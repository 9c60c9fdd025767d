package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"training-management-api/config"
)

const remoteClientTimeout = 30 * time.Second

// RemoteClient wraps the remote training-records API with bearer
// authentication, response classification and pagination.
type RemoteClient struct {
	baseURL string
	token   string
	client  *http.Client
	retry   *RetryPolicy
}

// NewRemoteClient constructs a RemoteClient. A nil cfg loads the environment
// configuration; a nil http client gets a sane timeout.
func NewRemoteClient(cfg *config.IntegrationConfig, client *http.Client) *RemoteClient {
	if cfg == nil {
		cfg = config.LoadIntegrationConfig()
	}
	if client == nil {
		client = &http.Client{Timeout: remoteClientTimeout}
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(cfg.RemoteBaseURL, "/"),
		token:   cfg.BearerToken,
		client:  client,
		retry:   NewRetryPolicy(cfg),
	}
}

// PageMeta is the pagination envelope returned by the remote list endpoints.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
}

// Page is one page of raw remote records.
type Page struct {
	Data []json.RawMessage `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// Get performs an authenticated GET and returns the classified response body.
func (c *RemoteClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *RemoteClient) Post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// Put performs an authenticated PUT with a JSON body.
func (c *RemoteClient) Put(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// ListPage fetches one page of a paginated list endpoint. The caller supplies
// the page number, so an interrupted sync run can resume where it stopped.
// Transient failures retry per the backoff policy before surfacing.
func (c *RemoteClient) ListPage(ctx context.Context, path string, page, perPage int, query url.Values) (*Page, error) {
	q := url.Values{}
	for key, vals := range query {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var result *Page
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		body, err := c.Get(ctx, path, q)
		if err != nil {
			return err
		}
		var decoded Page
		if err := json.Unmarshal(body, &decoded); err != nil {
			return &APIError{Kind: ErrKindServer, Message: "malformed list response", Err: err}
		}
		result = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *RemoteClient) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: ErrKindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{Kind: ErrKindNetwork, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}
	return nil, classifyResponse(resp, respBody)
}

func classifyResponse(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    snippet(body),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = ErrKindUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Kind = ErrKindNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		apiErr.Kind = ErrKindValidation
		apiErr.FieldErrors = parseFieldErrors(body)
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Kind = ErrKindRateLimited
		apiErr.RetryAfter = parseRetryAfter(resp.Header)
	case resp.StatusCode >= 500:
		apiErr.Kind = ErrKindServer
	default:
		apiErr.Kind = ErrKindServer
	}
	return apiErr
}

// parseFieldErrors extracts {"errors": {"field": ["msg", ...]}} detail from a
// 422 body; anything unparseable is ignored.
func parseFieldErrors(body []byte) map[string]string {
	var decoded struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.Errors) == 0 {
		return nil
	}
	fields := make(map[string]string, len(decoded.Errors))
	for field, raw := range decoded.Errors {
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
			fields[field] = strings.Join(msgs, "; ")
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			fields[field] = msg
		}
	}
	return fields
}

func parseRetryAfter(header http.Header) *time.Duration {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}
