package status

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/notesqa/internal/models"
)

type fakeChecker struct {
	report models.HealthReport
	delay  time.Duration
	calls  int32
}

func (f *fakeChecker) CheckHealth(ctx context.Context) models.HealthReport {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(f.delay)
	return f.report
}

func TestCheckAll(t *testing.T) {
	notes := &fakeChecker{
		report: models.HealthReport{IsHealthy: true, ResponseTime: 12 * time.Millisecond},
		delay:  20 * time.Millisecond,
	}
	genai := &fakeChecker{
		report: models.HealthReport{IsHealthy: false, ResponseTime: 3 * time.Millisecond, Error: "API Error: \"down\""},
	}

	fixed := time.Date(2025, 7, 22, 10, 0, 0, 0, time.UTC)
	m := NewMonitor(nil, Target{Name: "Notes API", Checker: notes}, Target{Name: "GenAI API", Checker: genai})
	m.now = func() time.Time { return fixed }

	statuses := m.CheckAll(context.Background())

	require.Len(t, statuses, 2)
	assert.Equal(t, models.APIStatus{
		Name:         "Notes API",
		IsHealthy:    true,
		LastChecked:  fixed,
		ResponseTime: 12 * time.Millisecond,
	}, statuses[0])
	assert.Equal(t, models.APIStatus{
		Name:         "GenAI API",
		IsHealthy:    false,
		LastChecked:  fixed,
		ResponseTime: 3 * time.Millisecond,
		Error:        "API Error: \"down\"",
	}, statuses[1])
	assert.False(t, Healthy(statuses))
	assert.True(t, Healthy(statuses[:1]))
}

func TestCheckAllRunsConcurrently(t *testing.T) {
	var targets []Target
	for i := 0; i < 5; i++ {
		targets = append(targets, Target{
			Name:    "svc",
			Checker: &fakeChecker{report: models.HealthReport{IsHealthy: true}, delay: 50 * time.Millisecond},
		})
	}

	start := time.Now()
	statuses := NewMonitor(nil, targets...).CheckAll(context.Background())

	assert.Len(t, statuses, 5)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWatch(t *testing.T) {
	checker := &fakeChecker{report: models.HealthReport{IsHealthy: true}}
	m := NewMonitor(nil, Target{Name: "Notes API", Checker: checker})

	ctx, cancel := context.WithCancel(context.Background())
	rounds := 0
	err := m.Watch(ctx, 5*time.Millisecond, func(statuses []models.APIStatus) {
		rounds++
		if rounds == 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, rounds)
	assert.Equal(t, int32(3), atomic.LoadInt32(&checker.calls))
}
