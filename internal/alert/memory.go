package alert

import (
	"context"
	"sync"
)

// MemorySink keeps the most recent alerts per user in process memory.
type MemorySink struct {
	mu         sync.Mutex
	maxPerUser int
	byUser     map[string][]Alert // newest first
}

// NewMemorySink creates a sink that keeps at most maxPerUser alerts per user (0 = unbounded).
func NewMemorySink(maxPerUser int) *MemorySink {
	return &MemorySink{
		maxPerUser: maxPerUser,
		byUser:     make(map[string][]Alert),
	}
}

// Record stores a, skipping it when the newest alert of the user has the same dedupe key.
func (s *MemorySink) Record(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[a.UserID]
	if len(list) > 0 && list[0].DedupeKey() == a.DedupeKey() {
		return nil
	}

	list = append([]Alert{a}, list...)
	if s.maxPerUser > 0 && len(list) > s.maxPerUser {
		list = list[:s.maxPerUser]
	}
	s.byUser[a.UserID] = list
	return nil
}

// List returns up to limit alerts for userID, newest first (limit <= 0 returns all).
func (s *MemorySink) List(_ context.Context, userID string, limit int) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]Alert, len(list))
	copy(out, list)
	return out, nil
}
