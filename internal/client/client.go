// Package client talks to a remote transaction API over HTTP. It satisfies
// dashboard.Gateway so the UI can run against a separately deployed API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/middleware/trace"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, logger *log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.WithComponent(log.ComponentHTTP),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions", d, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), p, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := trace.GetRequestID(ctx); id != "" {
		req.Header.Set(trace.RequestIDHeader, id)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Transaction API unreachable",
			log.FieldError, err, log.FieldMethod, method, log.FieldPath, path)
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError turns an error response into the matching core sentinel.
func statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}
	if payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = core.ErrValidation
	case http.StatusNotFound:
		sentinel = core.ErrNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		sentinel = core.ErrStoreUnavailable
	default:
		sentinel = errors.New("unexpected status")
	}
	return fmt.Errorf("%w: %s (status %d)", sentinel, payload.Error, resp.StatusCode)
}
