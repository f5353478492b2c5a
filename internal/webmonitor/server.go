package webmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nexus-wellbeing/presence-monitor/internal/alert"
	"github.com/nexus-wellbeing/presence-monitor/internal/logger"
	"github.com/nexus-wellbeing/presence-monitor/internal/metrics"
	"github.com/nexus-wellbeing/presence-monitor/internal/monitor"
	"github.com/nexus-wellbeing/presence-monitor/internal/users"
	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// Server exposes the monitoring engine over HTTP.
type Server struct {
	cfg         Config
	engine      *monitor.Engine
	users       users.Directory
	alerts      alert.Sink
	metrics     *metrics.Metrics
	activity    *Activity
	broadcaster *ResultBroadcaster

	alertWG sync.WaitGroup // In-flight alert writes
}

// NewServer returns a configured server. A nil directory accepts every user,
// a nil sink drops alerts and nil metrics are replaced by a private instance.
func NewServer(cfg Config, engine *monitor.Engine, dir users.Directory, sink alert.Sink, m *metrics.Metrics) *Server {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultConfig().MaxFrameBytes
	}
	if cfg.AlertTimeout == 0 {
		cfg.AlertTimeout = DefaultConfig().AlertTimeout
	}
	if cfg.KeepaliveInterval == 0 {
		cfg.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	if cfg.DefaultAlertLimit <= 0 {
		cfg.DefaultAlertLimit = DefaultConfig().DefaultAlertLimit
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	if dir == nil {
		dir = users.AllowAll{}
	}
	if sink == nil {
		sink = alert.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}

	return &Server{
		cfg:         cfg,
		engine:      engine,
		users:       dir,
		alerts:      sink,
		metrics:     m,
		activity:    NewActivity(cfg.HistorySize),
		broadcaster: NewResultBroadcaster(m),
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/monitor/frame", s.handleFrame)
	mux.HandleFunc("/api/monitor/reset", s.handleReset)
	mux.HandleFunc("/api/monitor/stats", s.handleStats)
	mux.HandleFunc("/api/monitor/alerts", s.handleAlerts)
	mux.HandleFunc("/api/monitor/status", s.handleStatus)
	mux.HandleFunc("/api/monitor/stream", s.handleStream)

	return mux
}

// CloseStreams disconnects every stream client. Open streams would otherwise
// keep http.Server.Shutdown waiting.
func (s *Server) CloseStreams() {
	s.broadcaster.Close()
}

// Close disconnects stream clients and waits for pending alert writes.
// Call it once no more frames are being handled.
func (s *Server) Close() {
	s.CloseStreams()
	s.alertWG.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{
		Status:         "ok",
		ActiveSessions: s.engine.ActiveSessions(),
		StreamClients:  s.metrics.StreamClients.Load(),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseFrameRequest(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Sprintf("frame exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.checkUser(w, r, req.UserID) {
		return
	}

	res, stretch := s.engine.Process(req)

	s.activity.Record(res)
	s.broadcaster.Publish(res)
	if stretch != nil {
		s.recordAlert(*stretch)
	}

	if wantsProtobuf(r) {
		writeProtobuf(w, res)
		return
	}
	writeJSON(w, res)
}

// parseFrameRequest accepts either a JSON FrameRequest or a raw image body
// with user_id and reset in the query string. A frame that is not valid
// base64 is passed on empty so the engine reports it as undecodable.
func (s *Server) parseFrameRequest(w http.ResponseWriter, r *http.Request) (monitor.Request, error) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxFrameBytes)
	defer body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var payload types.FrameRequest
		if err := json.NewDecoder(body).Decode(&payload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return monitor.Request{}, err
			}
			return monitor.Request{}, fmt.Errorf("invalid frame request: %w", err)
		}
		if payload.UserID == "" {
			return monitor.Request{}, errors.New("user_id is required")
		}

		data, err := payload.FrameBytes()
		if err != nil {
			logger.Warn("HTTP", "User %s sent an invalid frame encoding: %v", payload.UserID, err)
			data = nil
		}
		return monitor.Request{UserID: string(payload.UserID), Frame: data, Reset: payload.Reset}, nil
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		return monitor.Request{}, errors.New("user_id is required")
	}
	reset, _ := strconv.ParseBool(r.URL.Query().Get("reset"))

	data, err := io.ReadAll(body)
	if err != nil {
		return monitor.Request{}, err
	}
	return monitor.Request{UserID: userID, Frame: data, Reset: reset}, nil
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" && r.Body != nil {
		var payload types.ResetRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, "invalid reset request", http.StatusBadRequest)
			return
		}
		userID = string(payload.UserID)
	}
	if userID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if !s.checkUser(w, r, userID) {
		return
	}

	s.engine.Reset(userID)
	writeJSON(w, ResetResponse{Status: "reset", UserID: userID})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserParam(w, r)
	if !ok {
		return
	}

	snap, found := s.engine.Stats(userID)
	if !found {
		writeError(w, "no active session for user "+userID, http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserParam(w, r)
	if !ok {
		return
	}

	limit := s.cfg.DefaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if !s.checkUser(w, r, userID) {
		return
	}

	list, err := s.alerts.List(r.Context(), userID, limit)
	if err != nil {
		logger.Error("Alerts", "Failed to list alerts for user %s: %v", userID, err)
		writeError(w, "alert store unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, AlertsResponse{UserID: userID, Alerts: list})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, recent := s.activity.Snapshot()
	writeJSON(w, StatusResponse{
		Activity:       stats,
		ActiveSessions: s.engine.ActiveSessions(),
		Recent:         recent,
		Timestamp:      float64(time.Now().Unix()),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	streamResultEventsFromChannel(w, r, eventCh, wantsProtobuf(r), userID, s.cfg.KeepaliveInterval)
}

// recordAlert hands a to the sink without holding up the response.
func (s *Server) recordAlert(a alert.Alert) {
	s.alertWG.Add(1)
	go func() {
		defer s.alertWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AlertTimeout)
		defer cancel()

		if err := s.alerts.Record(ctx, a); err != nil {
			s.metrics.AlertErrors.Add(1)
			logger.Warn("Alerts", "Failed to record %s alert for user %s: %v", a.Type, a.UserID, err)
			return
		}
		s.metrics.AlertsRecorded.Add(1)
		logger.Debug("Alerts", "Recorded %s alert for user %s (risk %d)", a.Type, a.UserID, a.RiskLevel)
	}()
}

// checkUser writes the error response and returns false when userID is not known.
func (s *Server) checkUser(w http.ResponseWriter, r *http.Request, userID string) bool {
	err := s.users.Lookup(r.Context(), userID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, users.ErrUnknownUser):
		writeError(w, "unknown user "+userID, http.StatusNotFound)
	default:
		logger.Error("HTTP", "User lookup failed for %s: %v", userID, err)
		writeError(w, "user lookup failed", http.StatusBadGateway)
	}
	return false
}

func requireUserParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

// wantsProtobuf checks if client prefers Protobuf
func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")
}

func writeProtobuf(w http.ResponseWriter, res types.MonitoringResult) {
	data, err := marshalResultProto(res)
	if err != nil {
		logger.Error("HTTP", "Protobuf encode failed for user %s: %v", res.UserID, err)
		writeError(w, "failed to encode result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSONWithStatus(w, map[string]any{"error": msg}, status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
