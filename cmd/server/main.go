package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-wellbeing/presence-monitor/internal/alert"
	"github.com/nexus-wellbeing/presence-monitor/internal/config"
	"github.com/nexus-wellbeing/presence-monitor/internal/logger"
	"github.com/nexus-wellbeing/presence-monitor/internal/metrics"
	"github.com/nexus-wellbeing/presence-monitor/internal/monitor"
	"github.com/nexus-wellbeing/presence-monitor/internal/session"
	"github.com/nexus-wellbeing/presence-monitor/internal/users"
	"github.com/nexus-wellbeing/presence-monitor/internal/webmonitor"
)

// Server wires the engine, its HTTP surface and the side servers together.
type Server struct {
	cfg     config.Config
	metrics *metrics.Metrics
	engine  *monitor.Engine
	web     *webmonitor.Server
	redis   *redis.Client // nil when alerts stay in memory

	httpServer    *http.Server
	metricsServer *http.Server
	pprofServer   *http.Server
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	logger.Info("Main", "Presence monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Main", "Server error: %v", err)
		os.Exit(1)
	}

	logger.Info("Main", "Server stopped")
}

// NewServer creates the server from cfg. With a Redis address configured
// the connection is checked before anything starts listening.
func NewServer(cfg config.Config) (*Server, error) {
	m := metrics.New()

	store := session.NewStore()
	m.SetSessionCounter(store.Len)

	engine, err := monitor.New(cfg.Monitor,
		monitor.WithStore(store),
		monitor.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:     cfg,
		metrics: m,
		engine:  engine,
	}

	sink, err := srv.newAlertSink()
	if err != nil {
		return nil, err
	}

	srv.web = webmonitor.NewServer(webmonitor.Config{
		Addr:          cfg.HTTPAddr,
		MaxFrameBytes: cfg.MaxFrameBytes,
		AlertTimeout:  cfg.Alerts.RecordTimeout,
	}, engine, users.FromList(cfg.Users), sink, m)

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.MetricsAddr != "" {
		srv.metricsServer = m.NewServer(cfg.MetricsAddr)
	}
	if cfg.PprofAddr != "" {
		srv.pprofServer = &http.Server{Addr: cfg.PprofAddr, Handler: http.DefaultServeMux}
	}

	return srv, nil
}

func (s *Server) newAlertSink() (alert.Sink, error) {
	a := s.cfg.Alerts
	if a.RedisAddr == "" {
		logger.Info("Main", "Alerts kept in memory (%d per user)", a.MaxPerUser)
		return alert.NewMemorySink(a.MaxPerUser), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.RedisAddr,
		Password: a.RedisPassword,
		DB:       a.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", a.RedisAddr, err)
	}

	s.redis = client
	logger.Info("Main", "Alerts stored in Redis at %s (prefix %q)", a.RedisAddr, a.KeyPrefix)
	return alert.NewRedisSink(client,
		alert.WithPrefix(a.KeyPrefix),
		alert.WithMaxPerUser(a.MaxPerUser),
		alert.WithDedupeTTL(a.DedupeTTL),
	), nil
}

// Run serves until ctx is cancelled or a server fails, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.serve(g, "HTTP", s.httpServer)
	s.serve(g, "metrics", s.metricsServer)
	s.serve(g, "pprof", s.pprofServer)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Main", "Shutting down...")
		return s.Shutdown()
	})

	logger.Info("Main", "Server started successfully")
	return g.Wait()
}

func (s *Server) serve(g *errgroup.Group, name string, srv *http.Server) {
	if srv == nil {
		return
	}
	g.Go(func() error {
		logger.Info("Main", "Starting %s server on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	// Open result streams would hold the HTTP shutdown until its deadline
	s.web.CloseStreams()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range []*http.Server{s.httpServer, s.metricsServer, s.pprofServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	// Pending alert writes finish before the Redis client goes away
	s.web.Close()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
