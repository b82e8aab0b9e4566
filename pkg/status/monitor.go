// Package status probes the backend services and reports their health.
package status

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/notesqa/internal/models"
)

// Checker is implemented by every service client that can probe its health.
type Checker interface {
	CheckHealth(ctx context.Context) models.HealthReport
}

type Target struct {
	Name    string
	Checker Checker
}

type Monitor struct {
	targets []Target
	logger  *zap.Logger
	now     func() time.Time
}

func NewMonitor(logger *zap.Logger, targets ...Target) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		targets: targets,
		logger:  logger.Named("status"),
		now:     time.Now,
	}
}

// CheckAll probes every target concurrently. Results keep the order the
// targets were registered in.
func (m *Monitor) CheckAll(ctx context.Context) []models.APIStatus {
	statuses := make([]models.APIStatus, len(m.targets))

	var g errgroup.Group
	for i, target := range m.targets {
		i, target := i, target
		g.Go(func() error {
			report := target.Checker.CheckHealth(ctx)
			statuses[i] = models.APIStatus{
				Name:         target.Name,
				IsHealthy:    report.IsHealthy,
				LastChecked:  m.now(),
				ResponseTime: report.ResponseTime,
				Error:        report.Error,
			}
			if !report.IsHealthy {
				m.logger.Warn("Service unhealthy",
					zap.String("service", target.Name),
					zap.String("error", report.Error))
			}
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

// Healthy reports whether every status in statuses is healthy.
func Healthy(statuses []models.APIStatus) bool {
	for _, s := range statuses {
		if !s.IsHealthy {
			return false
		}
	}
	return true
}

// Watch runs CheckAll immediately and then every interval until ctx is done,
// handing each round to fn.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, fn func([]models.APIStatus)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(m.CheckAll(ctx))
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
