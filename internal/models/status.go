package models

import "time"

type HealthStatus struct {
	Status string `json:"status"`
}

// HealthReport is the outcome of a single health probe.
type HealthReport struct {
	IsHealthy    bool
	ResponseTime time.Duration
	Error        string
}

// APIStatus is a named HealthReport stamped with the time it was taken.
type APIStatus struct {
	Name         string        `json:"name"`
	IsHealthy    bool          `json:"is_healthy"`
	LastChecked  time.Time     `json:"last_checked"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}
