// Package config holds the runtime configuration of the presence monitor.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config defines the runtime configuration for the presence monitor server.
type Config struct {
	HTTPAddr      string   `yaml:"http_addr"`
	MetricsAddr   string   `yaml:"metrics_addr"`
	PprofAddr     string   `yaml:"pprof_addr"`
	LogLevel      string   `yaml:"log_level"`
	LogColor      bool     `yaml:"log_color"`
	MaxFrameBytes int64    `yaml:"max_frame_bytes"`
	Users         []string `yaml:"users"` // Empty allows every user id
	Monitor       Monitor  `yaml:"monitor"`
	Alerts        Alerts   `yaml:"alerts"`
}

// Monitor holds the tunable constants of the motion engine.
type Monitor struct {
	PixelThreshold         int           `yaml:"pixel_threshold"`
	MotionThreshold        int           `yaml:"motion_threshold"`
	BlurKernel             int           `yaml:"blur_kernel"`
	AbsenceLimit           time.Duration `yaml:"absence_limit"`
	SittingAlertMinutes    int           `yaml:"sitting_alert_minutes"`
	StretchIntervalMinutes int           `yaml:"stretch_interval_minutes"`
	LongBreakMinutes       int           `yaml:"long_break_minutes"`
}

// Alerts configures where stretch alerts are persisted.
type Alerts struct {
	RedisAddr     string        `yaml:"redis_addr"` // Empty keeps alerts in memory
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	MaxPerUser    int           `yaml:"max_per_user"`
	DedupeTTL     time.Duration `yaml:"dedupe_ttl"`
	RecordTimeout time.Duration `yaml:"record_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		MetricsAddr:   ":9090",
		PprofAddr:     "",
		LogLevel:      "info",
		LogColor:      true,
		MaxFrameBytes: 10 << 20,
		Monitor:       DefaultMonitor(),
		Alerts: Alerts{
			KeyPrefix:     "presence",
			MaxPerUser:    100,
			DedupeTTL:     2 * time.Minute,
			RecordTimeout: 5 * time.Second,
		},
	}
}

// DefaultMonitor returns the engine defaults.
func DefaultMonitor() Monitor {
	return Monitor{
		PixelThreshold:         25,
		MotionThreshold:        20000,
		BlurKernel:             21,
		AbsenceLimit:           5 * time.Minute,
		SittingAlertMinutes:    60,
		StretchIntervalMinutes: 30,
		LongBreakMinutes:       90,
	}
}

// WithDefaults returns m with every zero field taken from DefaultMonitor.
func (m Monitor) WithDefaults() Monitor {
	def := DefaultMonitor()
	if m.PixelThreshold == 0 {
		m.PixelThreshold = def.PixelThreshold
	}
	if m.MotionThreshold == 0 {
		m.MotionThreshold = def.MotionThreshold
	}
	if m.BlurKernel == 0 {
		m.BlurKernel = def.BlurKernel
	}
	if m.AbsenceLimit == 0 {
		m.AbsenceLimit = def.AbsenceLimit
	}
	if m.SittingAlertMinutes == 0 {
		m.SittingAlertMinutes = def.SittingAlertMinutes
	}
	if m.StretchIntervalMinutes == 0 {
		m.StretchIntervalMinutes = def.StretchIntervalMinutes
	}
	if m.LongBreakMinutes == 0 {
		m.LongBreakMinutes = def.LongBreakMinutes
	}
	return m
}

// LoadFile reads a YAML file on top of Default. Keys missing from the file keep their defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the values the engine cannot work with.
func (c Config) Validate() error {
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("%w: max_frame_bytes must be positive", ErrInvalid)
	}
	if c.Alerts.MaxPerUser < 0 {
		return fmt.Errorf("%w: alerts.max_per_user must not be negative", ErrInvalid)
	}
	return c.Monitor.Validate()
}

// Validate checks the engine constants.
func (m Monitor) Validate() error {
	switch {
	case m.PixelThreshold < 0 || m.PixelThreshold > 255:
		return fmt.Errorf("%w: pixel_threshold must be within 0..255", ErrInvalid)
	case m.MotionThreshold < 0:
		return fmt.Errorf("%w: motion_threshold must not be negative", ErrInvalid)
	case m.BlurKernel < 1 || m.BlurKernel%2 == 0:
		return fmt.Errorf("%w: blur_kernel must be odd and >= 1, got %d", ErrInvalid, m.BlurKernel)
	case m.AbsenceLimit <= 0:
		return fmt.Errorf("%w: absence_limit must be positive", ErrInvalid)
	case m.SittingAlertMinutes < 0:
		return fmt.Errorf("%w: sitting_alert_minutes must not be negative", ErrInvalid)
	case m.StretchIntervalMinutes <= 0:
		return fmt.Errorf("%w: stretch_interval_minutes must be positive", ErrInvalid)
	case m.LongBreakMinutes < 0:
		return fmt.Errorf("%w: long_break_minutes must not be negative", ErrInvalid)
	}
	return nil
}
