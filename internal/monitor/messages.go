package monitor

import (
	"fmt"
	"time"

	"github.com/nexus-wellbeing/presence-monitor/internal/session"
	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// Remediation offered on every error-shaped result.
const resubmitSuggestion = "Check that the image was sent correctly and submit it again"

func (e *Engine) message(sess *session.Session, motion bool, diffCount int, now time.Time) string {
	switch {
	case sess.Absent:
		return fmt.Sprintf("User absent for %d minutes. Waiting for return...", sess.AbsentMinutes(now))
	case motion:
		return fmt.Sprintf("Movement detected (%d differing cells). User present.", diffCount)
	case sess.SittingMinutes >= e.cfg.SittingAlertMinutes:
		return fmt.Sprintf("No significant movement for %d minutes. Consider taking a break!", sess.SittingMinutes)
	default:
		return "Monitoring active. Environment stable."
	}
}

func (e *Engine) suggestions(sess *session.Session, suggestStretch bool) []string {
	var out []string

	if suggestStretch {
		out = append(out,
			fmt.Sprintf("You have been sitting for %d minutes. Time to stretch!", sess.SittingMinutes),
			"Take a 5 minute break: stand up, walk around and stretch your arms and legs",
			"Rest your eyes: look at something far away for 20 seconds every 20 minutes",
			"Drink some water and use the moment to move",
		)
	}

	if sess.SittingMinutes >= e.cfg.LongBreakMinutes {
		out = append(out, fmt.Sprintf("You have been sitting for over %d minutes. A longer break (15-20 min) is recommended", e.cfg.LongBreakMinutes))
	}

	if sess.TotalPauses == 0 && sess.SittingMinutes >= e.cfg.SittingAlertMinutes {
		out = append(out, "You have not taken any breaks yet. Regular breaks improve productivity!")
	}

	if len(out) == 0 {
		out = append(out, fmt.Sprintf("Keep monitoring. Remember to take a break every %d minutes", e.cfg.LongBreakMinutes))
	}

	return out
}

func errorResult(userID string, now time.Time, reason string) types.MonitoringResult {
	return types.MonitoringResult{
		UserID:      userID,
		Present:     false,
		Message:     "Error: " + reason,
		Suggestions: []string{resubmitSuggestion},
		Timestamp:   now,
		Error:       reason,
	}
}
