// Package monitor turns a stream of still frames per user into presence,
// sitting-time and break suggestions.
//
// Each call to Process runs the whole read-modify-write of one user's
// session under that user's lock in the session store:
//
//	decode -> [reset] -> compare with last frame -> update session -> store frame
//
// The engine owns no goroutines. Callers may invoke Process concurrently for
// any mix of users.
package monitor

import (
	"fmt"
	"image"
	"time"

	"github.com/nexus-wellbeing/presence-monitor/internal/alert"
	"github.com/nexus-wellbeing/presence-monitor/internal/config"
	"github.com/nexus-wellbeing/presence-monitor/internal/frame"
	"github.com/nexus-wellbeing/presence-monitor/internal/logger"
	"github.com/nexus-wellbeing/presence-monitor/internal/metrics"
	"github.com/nexus-wellbeing/presence-monitor/internal/session"
	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// Request is one submitted frame.
type Request struct {
	UserID string
	Frame  []byte // Encoded still image
	Reset  bool   // Drop the session before processing this frame

	// At overrides the engine clock for this frame (replays). Zero means now.
	At time.Time
}

// Engine is the presence state machine.
type Engine struct {
	cfg     config.Monitor
	diff    frame.Differencer
	decoder frame.Decoder
	store   *session.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDecoder replaces the image decoder.
func WithDecoder(d frame.Decoder) Option {
	return func(e *Engine) {
		e.decoder = d
	}
}

// WithStore shares an existing session store.
func WithStore(s *session.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithMetrics reports into m instead of a private Metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine. Zero fields of cfg take their config.DefaultMonitor
// value; the result must pass Monitor.Validate.
func New(cfg config.Monitor, opts ...Option) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("monitor config: %w", err)
	}

	e := &Engine{
		cfg: cfg,
		diff: frame.Differencer{
			PixelThreshold:  cfg.PixelThreshold,
			MotionThreshold: cfg.MotionThreshold,
			BlurKernel:      cfg.BlurKernel,
		},
		decoder: frame.NewImageDecoder(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = session.NewStore()
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}

	return e, nil
}

// step is what one frame did to the session.
type step struct {
	first          bool
	comparison     frame.Comparison
	wentAbsent     bool
	returned       bool
	suggestStretch bool
	absentFor      time.Duration
	sess           session.Session // copy taken after the update
}

// Process handles one frame and always returns a result. Decode failures and
// internal failures yield an error-shaped result and leave the session as it was.
// A stretch alert is returned alongside when the result suggests a stretch.
func (e *Engine) Process(req Request) (res types.MonitoringResult, stretch *alert.Alert) {
	started := time.Now()
	now := req.At
	if now.IsZero() {
		now = e.now()
	}

	defer func() {
		if r := recover(); r != nil {
			e.metrics.InternalErrors.Add(1)
			logger.Error("Monitor", "Unexpected failure for user %s (frame %d bytes): %v", req.UserID, len(req.Frame), r)
			res = errorResult(req.UserID, now, fmt.Sprintf("unexpected failure: %v", r))
			stretch = nil
		}
	}()

	logger.Debug("Monitor", "Processing frame for user %s (%d bytes)", req.UserID, len(req.Frame))

	img, err := e.decoder.Decode(req.Frame)
	if err != nil {
		e.metrics.DecodeErrors.Add(1)
		logger.Warn("Monitor", "Could not decode frame for user %s (%d bytes): %v", req.UserID, len(req.Frame), err)
		return errorResult(req.UserID, now, "could not decode image"), nil
	}

	var st step
	err = e.store.Update(req.UserID, func(tx *session.Tx) error {
		return e.apply(tx, img, now, req.Reset, &st)
	})
	if err != nil {
		e.metrics.InternalErrors.Add(1)
		b := img.Bounds()
		logger.Error("Monitor", "Failed to process frame for user %s (%dx%d): %v", req.UserID, b.Dx(), b.Dy(), err)
		return errorResult(req.UserID, now, fmt.Sprintf("failed to process image: %v", err)), nil
	}

	res, stretch = e.result(req.UserID, &st, now)
	e.record(&st, res)
	e.metrics.UpdateProcessLatency(time.Since(started))

	return res, stretch
}

// apply runs the state machine for one frame under the user's lock. The
// new state is built on a copy and committed in one step at the end, so a
// failure anywhere before that leaves the stored session and frame untouched.
func (e *Engine) apply(tx *session.Tx, img image.Image, now time.Time, reset bool, st *step) error {
	prev, cur := tx.LastFrame(), tx.Session()
	if reset {
		prev, cur = nil, nil
	}
	st.first = prev == nil

	motion := true
	if !st.first {
		cmp, err := e.diff.Compare(prev, img)
		if err != nil {
			return fmt.Errorf("compare frames: %w", err)
		}
		st.comparison = cmp
		motion = cmp.Motion
		logger.Debug("Monitor", "User %s: %d differing cells, motion=%v", tx.UserID(), cmp.DiffCount, motion)
	} else {
		logger.Debug("Monitor", "First frame for user %s", tx.UserID())
	}

	var sess session.Session
	if cur != nil {
		sess = *cur
	} else {
		sess = session.Start(tx.UserID(), now)
	}

	if motion {
		sess.LastMotionAt = now
		if sess.Absent {
			st.returned = true
			st.absentFor = now.Sub(sess.AbsentSince)
			sess.Absent = false
			sess.AbsentSince = time.Time{}
			sess.TotalPauses++
		}
	} else {
		if now.Sub(sess.LastMotionAt) >= e.cfg.AbsenceLimit && !sess.Absent {
			sess.Absent = true
			sess.AbsentSince = now
			st.wentAbsent = true
		}
		sess.SittingMinutes = minutes(now.Sub(sess.StartedAt))
	}
	st.suggestStretch = e.suggestStretch(sess.SittingMinutes)

	if reset {
		tx.Reset()
		e.metrics.Resets.Add(1)
		logger.Info("Monitor", "Session reset for user %s", tx.UserID())
	}
	tx.Commit(sess, img)

	st.comparison.Motion = motion
	st.sess = sess

	return nil
}

func (e *Engine) result(userID string, st *step, now time.Time) (types.MonitoringResult, *alert.Alert) {
	sess := &st.sess
	suggestStretch := st.suggestStretch
	suggestions := e.suggestions(sess, suggestStretch)

	res := types.MonitoringResult{
		UserID:         userID,
		MotionDetected: st.comparison.Motion,
		DiffCount:      st.comparison.DiffCount,
		Present:        !sess.Absent,
		SittingMinutes: sess.SittingMinutes,
		TotalPauses:    sess.TotalPauses,
		SuggestStretch: suggestStretch,
		Message:        e.message(sess, st.comparison.Motion, st.comparison.DiffCount, now),
		Suggestions:    suggestions,
		Timestamp:      now,
	}

	if !suggestStretch {
		return res, nil
	}

	a := alert.NewStretch(userID, sess.SittingMinutes, sess.TotalPauses, sess.StartedAt, now, suggestions[0])
	return res, &a
}

// suggestStretch holds for every frame of each qualifying minute, so fast
// pollers see it repeatedly.
func (e *Engine) suggestStretch(sittingMinutes int) bool {
	return sittingMinutes >= e.cfg.SittingAlertMinutes && sittingMinutes%e.cfg.StretchIntervalMinutes == 0
}

func (e *Engine) record(st *step, res types.MonitoringResult) {
	e.metrics.FramesProcessed.Add(1)
	if st.first {
		e.metrics.FirstFrames.Add(1)
	}
	if res.MotionDetected {
		e.metrics.MotionFrames.Add(1)
	}
	if res.SuggestStretch {
		e.metrics.StretchSuggestions.Add(1)
	}
	if st.wentAbsent {
		e.metrics.AbsenceTransitions.Add(1)
		logger.Info("Monitor", "User %s absent for %s (limit %s)",
			res.UserID, st.sess.AbsentSince.Sub(st.sess.LastMotionAt).Truncate(time.Second), e.cfg.AbsenceLimit)
	}
	if st.returned {
		e.metrics.Returns.Add(1)
		logger.Info("Monitor", "User %s returned after %d minutes away (pauses: %d)",
			res.UserID, minutes(st.absentFor), res.TotalPauses)
	}
}

// Reset drops userID's session and last frame. The next frame starts a new session.
func (e *Engine) Reset(userID string) {
	e.store.Reset(userID)
	e.metrics.Resets.Add(1)
	logger.Info("Monitor", "Session reset for user %s", userID)
}

// Stats returns a copy of userID's session.
func (e *Engine) Stats(userID string) (session.Snapshot, bool) {
	return e.store.Snapshot(userID, e.now())
}

// ActiveSessions returns the number of live sessions.
func (e *Engine) ActiveSessions() int {
	return e.store.Len()
}

// Config returns the engine constants.
func (e *Engine) Config() config.Monitor {
	return e.cfg
}

func minutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
