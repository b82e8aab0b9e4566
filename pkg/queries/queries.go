// Package queries is the client for the genAI service: one-shot and streamed
// question answering plus health probing.
package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/notesqa/internal/models"
	"github.com/xhad/notesqa/pkg/apiclient"
)

type Config struct {
	BaseURL    string
	HTTPClient apiclient.Doer
	Timeout    time.Duration
	RateLimit  float64
	Logger     *zap.Logger
}

type Client struct {
	api     *apiclient.Client
	logger  *zap.Logger
	timeout time.Duration
}

func NewWithConfig(config Config) (*Client, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	// Streams can outlive any fixed timeout, so the transport has none and
	// Timeout is applied per call to the non-streaming requests only.
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	api, err := apiclient.NewWithConfig(apiclient.Config{
		BaseURL:    config.BaseURL,
		HTTPClient: config.HTTPClient,
		RateLimit:  config.RateLimit,
		Logger:     config.Logger.Named("genai"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genAI client: %w", err)
	}

	return &Client{
		api:     api,
		logger:  config.Logger.Named("genai"),
		timeout: config.Timeout,
	}, nil
}

// withTimeout bounds the non-streaming calls by the configured timeout.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// SubmitQuery asks question and waits for the whole answer.
func (c *Client) SubmitQuery(ctx context.Context, question string) (*models.QueryResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.Post(ctx, "/queries/", models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var answer models.QueryResponse
	if err := resp.Decode(&answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// GetHealth fetches the service's health document. A bare JSON string or
// plain-text body becomes the status.
func (c *Client) GetHealth(ctx context.Context) (*models.HealthStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.Get(ctx, "/health", nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var raw interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return &models.HealthStatus{Status: string(resp.Body)}, nil
	}

	switch v := raw.(type) {
	case string:
		return &models.HealthStatus{Status: v}, nil
	case map[string]interface{}:
		status, _ := v["status"].(string)
		return &models.HealthStatus{Status: status}, nil
	default:
		return &models.HealthStatus{Status: string(resp.Body)}, nil
	}
}

// TestConnection reports whether the health endpoint answers successfully.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.GetHealth(ctx)
	return err == nil
}

func (c *Client) CheckHealth(ctx context.Context) models.HealthReport {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.api.Probe(ctx, "/health")
}
