package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ClientOptions configures the remote API client
type ClientOptions struct {
	BaseURL      string
	TenantID     string
	APIKey       string
	APIKeyHeader string
	HTTPClient   *http.Client
	UserAgent    string
}

// Client talks to the remote multi-tenant REST API. It does no retrying of
// its own; it classifies failures as transient or rejections and leaves retry
// policy to the caller.
type Client struct {
	baseURL      string
	tenantID     string
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
	userAgent    string
}

// NewClient creates a Client with sane defaults
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	header := strings.TrimSpace(opts.APIKeyHeader)
	if header == "" {
		header = "X-API-Key"
	}
	return &Client{
		baseURL:      baseURL,
		tenantID:     opts.TenantID,
		apiKey:       opts.APIKey,
		apiKeyHeader: header,
		httpClient:   httpClient,
		userAgent:    strings.TrimSpace(opts.UserAgent),
	}
}

// ListParams are the query parameters of a list request
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]string
}

// Encode renders the parameters as a deterministic query string
func (p ListParams) Encode() string {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, p.Filters[k])
	}
	return v.Encode()
}

// Resource is the server's view of one entity after a successful write
type Resource struct {
	ID        string
	UpdatedAt time.Time
	Body      json.RawMessage
}

// List fetches a page of entities. The raw body is returned untouched; the
// pagination normalizer decides its shape exactly once.
func (c *Client) List(ctx context.Context, table string, p ListParams) (json.RawMessage, error) {
	path := "/api/" + table
	if q := p.Encode(); q != "" {
		path += "?" + q
	}
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// GetByID fetches a single entity
func (c *Client) GetByID(ctx context.Context, table, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/"+table+"/"+url.PathEscape(id), nil, "")
}

// Create pushes a new entity. The idempotency key (the client-generated id)
// lets the server drop a duplicate push after a crash-recovery replay.
func (c *Client) Create(ctx context.Context, table string, payload json.RawMessage, idempotencyKey string) (*Resource, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/"+table, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return parseResource(body)
}

// Update pushes changed fields for an existing entity
func (c *Client) Update(ctx context.Context, table, id string, payload json.RawMessage) (*Resource, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/"+table+"/"+url.PathEscape(id), payload, "")
	if err != nil {
		return nil, err
	}
	return parseResource(body)
}

// Delete soft-deletes an entity on the server
func (c *Client) Delete(ctx context.Context, table, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/"+table+"/"+url.PathEscape(id), nil, "")
	return err
}

// Ping probes connectivity against the API health endpoint
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return nil, &TransientError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return nil, parseRejection(resp.StatusCode, respBody)
	}
}

func parseRejection(status int, body []byte) *RejectionError {
	rej := &RejectionError{Status: status}
	var envelope struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		rej.Message = envelope.Message
		if rej.Message == "" {
			rej.Message = envelope.Error
		}
		if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
			rej.Authoritative = envelope.Data
		}
	}
	if rej.Message == "" {
		rej.Message = strings.TrimSpace(string(body))
		if len(rej.Message) > 200 {
			rej.Message = rej.Message[:200]
		}
	}
	return rej
}

func parseResource(body json.RawMessage) (*Resource, error) {
	entity := body
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		entity = envelope.Data
	}

	var fields struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(entity, &fields); err != nil {
		return nil, fmt.Errorf("unexpected write response shape: %w", err)
	}
	return &Resource{ID: fields.ID, UpdatedAt: fields.UpdatedAt, Body: entity}, nil
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}
