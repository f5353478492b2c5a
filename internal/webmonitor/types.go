package webmonitor

import (
	"github.com/nexus-wellbeing/presence-monitor/internal/alert"
	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// ResetResponse is returned by /api/monitor/reset.
type ResetResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id"`
}

// AlertsResponse is returned by /api/monitor/alerts.
type AlertsResponse struct {
	UserID string        `json:"user_id"`
	Alerts []alert.Alert `json:"alerts"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	StreamClients  int64  `json:"stream_clients"`
}

// ActivityStats summarizes the frames handled since startup.
type ActivityStats struct {
	FramesProcessed    int     `json:"frames_processed"`
	ErrorResults       int     `json:"error_results"`
	StretchSuggestions int     `json:"stretch_suggestions"`
	FramesPerMinute    float64 `json:"frames_per_minute"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// StatusResponse is returned by /api/monitor/status.
type StatusResponse struct {
	Activity       ActivityStats            `json:"activity"`
	ActiveSessions int                      `json:"active_sessions"`
	Recent         []types.MonitoringResult `json:"recent"`
	Timestamp      float64                  `json:"timestamp"`
}
