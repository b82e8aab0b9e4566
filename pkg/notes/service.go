// Package notes is the client for the notes service.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
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

type Service struct {
	api    *apiclient.Client
	logger *zap.Logger
}

func NewWithConfig(config Config) (*Service, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	logger := config.Logger.Named("notes")

	api, err := apiclient.NewWithConfig(apiclient.Config{
		BaseURL:    config.BaseURL,
		HTTPClient: config.HTTPClient,
		Timeout:    config.Timeout,
		RateLimit:  config.RateLimit,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notes client: %w", err)
	}

	return &Service{api: api, logger: logger}, nil
}

// LoadNote fetches note id. It never fails outright: every outcome,
// including a transport failure, is reported through the result.
func (s *Service) LoadNote(ctx context.Context, id int) LoadNoteResult {
	resp, err := s.api.Get(ctx, "/notes/"+strconv.Itoa(id), nil)
	if err != nil {
		s.logger.Warn("Note request failed", zap.Int("id", id), zap.Error(err))
		return networkFailure(err)
	}

	result := Classify(id, resp.StatusCode, resp.Body)
	if f, ok := result.(Failure); ok {
		s.logger.Debug("Note load failed",
			zap.Int("id", id),
			zap.Int("status", resp.StatusCode),
			zap.String("type", string(f.Err.Type)))
	}
	return result
}

// ListNotes returns the first page of notes holding at most size items.
func (s *Service) ListNotes(ctx context.Context, size int) (*models.NotePage, error) {
	query := url.Values{}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	resp, err := s.api.Get(ctx, "/notes/", query)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	var page models.NotePage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Health returns the body of the notes service health endpoint.
func (s *Service) Health(ctx context.Context) (json.RawMessage, error) {
	resp, err := s.api.Get(ctx, "/health/", nil)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (s *Service) CheckHealth(ctx context.Context) models.HealthReport {
	return s.api.Probe(ctx, "/health/")
}
