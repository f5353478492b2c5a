// Package alert persists the stretch alerts emitted by the monitor.
//
// Persistence is fire-and-forget from the monitor's point of view: a sink
// that drops everything (Nop) is a valid configuration.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TypeStretchSuggested marks an alert raised because a stretch was suggested.
const TypeStretchSuggested = "stretch_suggested"

// Alert is one persisted monitoring event.
type Alert struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Type             string    `json:"type"`
	Message          string    `json:"message"`
	RiskLevel        int       `json:"risk_level"` // 1..5
	SittingMinutes   int       `json:"sitting_minutes"`
	TotalPauses      int       `json:"total_pauses"`
	SessionStartedAt time.Time `json:"session_started_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewStretch builds a stretch alert for the given session state.
func NewStretch(userID string, sittingMinutes, totalPauses int, sessionStart, now time.Time, message string) Alert {
	return Alert{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             TypeStretchSuggested,
		Message:          message,
		RiskLevel:        RiskLevel(sittingMinutes, totalPauses),
		SittingMinutes:   sittingMinutes,
		TotalPauses:      totalPauses,
		SessionStartedAt: sessionStart,
		CreatedAt:        now,
	}
}

// RiskLevel grades a stretch alert: 4 after two hours without any pause,
// 3 after an hour and a half, 2 otherwise.
func RiskLevel(sittingMinutes, totalPauses int) int {
	switch {
	case sittingMinutes >= 120 && totalPauses == 0:
		return 4
	case sittingMinutes >= 90:
		return 3
	default:
		return 2
	}
}

// DedupeKey identifies the qualifying minute of a session. The monitor keeps
// suggesting a stretch on every frame of that minute; sinks persist it once.
func (a Alert) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%d:%d", a.Type, a.UserID, a.SessionStartedAt.UnixNano(), a.SittingMinutes)
}

// Sink stores alerts.
type Sink interface {
	Record(ctx context.Context, a Alert) error
	List(ctx context.Context, userID string, limit int) ([]Alert, error)
}

// Nop discards alerts.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Alert) error { return nil }

// List implements Sink.
func (Nop) List(context.Context, string, int) ([]Alert, error) { return []Alert{}, nil }
