package webmonitor

import "time"

// Config defines the runtime configuration for the monitoring HTTP server.
type Config struct {
	Addr              string
	MaxFrameBytes     int64         // Upper bound for a frame submission body
	AlertTimeout      time.Duration // Per alert write to the sink
	KeepaliveInterval time.Duration // SSE comment interval on idle streams
	DefaultAlertLimit int
	HistorySize       int // Results kept for /api/monitor/status
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		MaxFrameBytes:     10 << 20,
		AlertTimeout:      5 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		DefaultAlertLimit: 20,
		HistorySize:       8,
	}
}
