package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/nexus-wellbeing/presence-monitor/internal/config"
)

// bindFlags registers every setting on fs, using cfg's current values as defaults.
func bindFlags(fs *flag.FlagSet, cfg *config.Config, users *string) {
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP server address")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Metrics server address (empty disables)")
	fs.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "pprof server address (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	fs.Int64Var(&cfg.MaxFrameBytes, "max-frame-bytes", cfg.MaxFrameBytes, "Maximum frame submission size")
	fs.StringVar(users, "users", strings.Join(cfg.Users, ","), "Known user ids (comma-separated, empty accepts any)")

	fs.IntVar(&cfg.Monitor.PixelThreshold, "pixel-threshold", cfg.Monitor.PixelThreshold, "Per-cell intensity difference")
	fs.IntVar(&cfg.Monitor.MotionThreshold, "motion-threshold", cfg.Monitor.MotionThreshold, "Differing cells needed for motion")
	fs.IntVar(&cfg.Monitor.BlurKernel, "blur-kernel", cfg.Monitor.BlurKernel, "Box blur diameter (odd)")
	fs.DurationVar(&cfg.Monitor.AbsenceLimit, "absence-limit", cfg.Monitor.AbsenceLimit, "No-motion time before a user is absent")
	fs.IntVar(&cfg.Monitor.SittingAlertMinutes, "sitting-alert", cfg.Monitor.SittingAlertMinutes, "Sitting minutes before stretch suggestions")
	fs.IntVar(&cfg.Monitor.StretchIntervalMinutes, "stretch-interval", cfg.Monitor.StretchIntervalMinutes, "Minutes between stretch suggestions")
	fs.IntVar(&cfg.Monitor.LongBreakMinutes, "long-break", cfg.Monitor.LongBreakMinutes, "Sitting minutes before a long break is suggested")

	fs.StringVar(&cfg.Alerts.RedisAddr, "redis", cfg.Alerts.RedisAddr, "Redis address for alerts (empty keeps them in memory)")
	fs.StringVar(&cfg.Alerts.RedisPassword, "redis-password", cfg.Alerts.RedisPassword, "Redis password")
	fs.IntVar(&cfg.Alerts.RedisDB, "redis-db", cfg.Alerts.RedisDB, "Redis database")
	fs.StringVar(&cfg.Alerts.KeyPrefix, "redis-prefix", cfg.Alerts.KeyPrefix, "Redis key prefix")
	fs.IntVar(&cfg.Alerts.MaxPerUser, "alerts-per-user", cfg.Alerts.MaxPerUser, "Alerts kept per user")
	fs.DurationVar(&cfg.Alerts.DedupeTTL, "alert-dedupe-ttl", cfg.Alerts.DedupeTTL, "How long a repeated alert is suppressed")
	fs.DurationVar(&cfg.Alerts.RecordTimeout, "alert-timeout", cfg.Alerts.RecordTimeout, "Timeout for one alert write")
}

// loadConfig resolves the configuration: defaults, then the -config file,
// then flags given explicitly on the command line.
func loadConfig(args []string) (config.Config, error) {
	// First pass only looks for -config.
	probe := flag.NewFlagSet("presence-server", flag.ContinueOnError)
	probe.SetOutput(io.Discard)
	configPath := probe.String("config", "", "YAML config file")
	var scratch config.Config
	var scratchUsers string
	bindFlags(probe, &scratch, &scratchUsers)
	if err := probe.Parse(args); err != nil && err != flag.ErrHelp {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	fs := flag.NewFlagSet("presence-server", flag.ContinueOnError)
	fs.String("config", *configPath, "YAML config file")
	var users string
	bindFlags(fs, &cfg, &users)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg.Users = splitList(users)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
