package webmonitor

import (
	"sync"
	"time"

	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// Activity keeps running totals and the most recent results for the status endpoint.
type Activity struct {
	startTime   time.Time
	historySize int

	mu                 sync.Mutex
	framesProcessed    int
	errorResults       int
	stretchSuggestions int
	history            []types.MonitoringResult // newest first
}

// NewActivity creates an Activity that keeps historySize recent results.
func NewActivity(historySize int) *Activity {
	return &Activity{
		startTime:   time.Now(),
		historySize: historySize,
	}
}

// Record accounts for one result.
func (a *Activity) Record(res types.MonitoringResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.framesProcessed++
	if res.Failed() {
		a.errorResults++
	}
	if res.SuggestStretch {
		a.stretchSuggestions++
	}

	a.history = append([]types.MonitoringResult{res}, a.history...)
	if len(a.history) > a.historySize {
		a.history = a.history[:a.historySize]
	}
}

// Snapshot returns the totals and a copy of the recent results.
func (a *Activity) Snapshot() (ActivityStats, []types.MonitoringResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	uptime := time.Since(a.startTime)
	stats := ActivityStats{
		FramesProcessed:    a.framesProcessed,
		ErrorResults:       a.errorResults,
		StretchSuggestions: a.stretchSuggestions,
		UptimeSeconds:      uptime.Seconds(),
	}
	if uptime >= time.Second {
		stats.FramesPerMinute = float64(a.framesProcessed) / uptime.Minutes()
	}

	historyCopy := make([]types.MonitoringResult, len(a.history))
	copy(historyCopy, a.history)

	return stats, historyCopy
}
