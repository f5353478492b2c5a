// Package session keeps the in-memory presence state of every monitored user.
package session

import "time"

// Session is the presence-tracking state for one user.
//
// SittingMinutes is only refreshed on frames without motion; it is the
// elapsed time since StartedAt sampled at that moment, not an accumulator.
type Session struct {
	UserID         string
	StartedAt      time.Time
	LastMotionAt   time.Time
	Absent         bool
	AbsentSince    time.Time // valid only while Absent
	SittingMinutes int
	TotalPauses    int
}

// Start returns a session beginning at now.
func Start(userID string, now time.Time) Session {
	return Session{
		UserID:       userID,
		StartedAt:    now,
		LastMotionAt: now,
	}
}

func newSession(userID string, now time.Time) *Session {
	s := Start(userID, now)
	return &s
}

// AbsentMinutes returns whole minutes since the absence started, or 0 when present.
func (s *Session) AbsentMinutes(now time.Time) int {
	if !s.Absent || s.AbsentSince.IsZero() {
		return 0
	}
	return int(now.Sub(s.AbsentSince).Minutes())
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	UserID         string    `json:"user_id"`
	StartedAt      time.Time `json:"started_at"`
	LastMotionAt   time.Time `json:"last_motion_at"`
	Present        bool      `json:"present"`
	AbsentSince    time.Time `json:"absent_since,omitzero"`
	AbsentMinutes  int       `json:"absent_minutes"`
	SittingMinutes int       `json:"sitting_minutes"`
	TotalPauses    int       `json:"total_pauses"`
	HasFrame       bool      `json:"has_frame"`
}
