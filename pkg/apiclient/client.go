// Package apiclient is the thin HTTP layer shared by the notes and genAI
// clients: base URL resolution, JSON bodies, request/response logging and an
// optional client-side rate limit.
package apiclient

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/notesqa/internal/models"
)

// Doer is the transport capability the client needs. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL    string
	HTTPClient Doer
	Timeout    time.Duration // used only when HTTPClient is nil
	RateLimit  float64       // requests per second, 0 disables limiting
	Logger     *zap.Logger
}

type Client struct {
	baseURL *url.URL
	http    Doer
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Client{
		baseURL: base,
		http:    config.HTTPClient,
		limiter: limiter,
		logger:  config.Logger,
	}, nil
}

// BaseURL returns the service root the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// NewRequest builds a request for path relative to the base URL. A non-nil
// body is encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req after waiting on the rate limiter. The caller owns the
// response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	c.logger.Debug("API request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("API request failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("API response",
		zap.Int("status", resp.StatusCode),
		zap.String("url", req.URL.String()))
	return resp, nil
}

// Response is a fully read reply. Body holds the data on success and the
// error payload otherwise.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns the response as an *APIError, or nil for a 2xx status.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &APIError{StatusCode: r.StatusCode, Body: r.Body}
}

func (r *Response) Decode(v interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(req)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(req)
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Probe issues a GET on path and reports whether it answered with a 2xx,
// along with how long the round trip took.
func (c *Client) Probe(ctx context.Context, path string) models.HealthReport {
	start := time.Now()
	resp, err := c.Get(ctx, path, nil)
	elapsed := time.Since(start)

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		return models.HealthReport{IsHealthy: false, ResponseTime: elapsed, Error: msg}
	}
	if apiErr := resp.Err(); apiErr != nil {
		return models.HealthReport{IsHealthy: false, ResponseTime: elapsed, Error: apiErr.Error()}
	}
	return models.HealthReport{IsHealthy: true, ResponseTime: elapsed}
}
