// Package types holds the wire shapes shared with monitoring clients.
package types

import "time"

// MonitoringResult is produced for every submitted frame.
type MonitoringResult struct {
	UserID         string    `json:"user_id"`
	MotionDetected bool      `json:"motion_detected"`
	DiffCount      int       `json:"diff_count"`
	Present        bool      `json:"present"`
	SittingMinutes int       `json:"sitting_minutes"`
	TotalPauses    int       `json:"total_pauses"`
	SuggestStretch bool      `json:"suggest_stretch"`
	Message        string    `json:"message"`
	Suggestions    []string  `json:"suggestions"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"` // Set on error-shaped results
}

// Failed reports whether r is an error-shaped result.
func (r MonitoringResult) Failed() bool {
	return r.Error != ""
}

// Fields returns r as a generic map using the JSON field names.
// Values are restricted to what structpb accepts.
func (r MonitoringResult) Fields() map[string]any {
	suggestions := make([]any, len(r.Suggestions))
	for i, s := range r.Suggestions {
		suggestions[i] = s
	}

	fields := map[string]any{
		"user_id":         r.UserID,
		"motion_detected": r.MotionDetected,
		"diff_count":      r.DiffCount,
		"present":         r.Present,
		"sitting_minutes": r.SittingMinutes,
		"total_pauses":    r.TotalPauses,
		"suggest_stretch": r.SuggestStretch,
		"message":         r.Message,
		"suggestions":     suggestions,
		"timestamp":       r.Timestamp.Format(time.RFC3339Nano),
	}
	if r.Error != "" {
		fields["error"] = r.Error
	}
	return fields
}
