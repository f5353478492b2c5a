package session

import (
	"image"
	"sync"
	"time"

	"github.com/nexus-wellbeing/presence-monitor/internal/logger"
)

// Store maps a user id to its session and the last frame seen for it.
//
// All reads and writes for one user go through Update, which holds a lock
// dedicated to that user for the whole callback. Different users only share
// the short map lock, so they never wait on each other's frame processing.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	locks   map[string]*keyLock
}

type entry struct {
	session *Session
	frame   image.Image
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		locks:   make(map[string]*keyLock),
	}
}

// lock acquires the per-user lock and returns its release function.
// Lock objects are reference counted and dropped once nobody holds or waits on them.
func (s *Store) lock(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &keyLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// Update runs fn with exclusive access to userID's session and last frame.
// The Tx must not be used after fn returns.
func (s *Store) Update(userID string, fn func(tx *Tx) error) error {
	unlock := s.lock(userID)
	defer unlock()

	return fn(&Tx{store: s, userID: userID})
}

// Reset removes the session and last frame of userID. It is a no-op for unknown users.
func (s *Store) Reset(userID string) {
	_ = s.Update(userID, func(tx *Tx) error {
		tx.Reset()
		return nil
	})
}

// Snapshot returns a copy of userID's session, taken under the user's lock.
func (s *Store) Snapshot(userID string, now time.Time) (Snapshot, bool) {
	var (
		snap  Snapshot
		found bool
	)

	_ = s.Update(userID, func(tx *Tx) error {
		sess := tx.Session()
		if sess == nil {
			return nil
		}
		found = true
		snap = Snapshot{
			UserID:         sess.UserID,
			StartedAt:      sess.StartedAt,
			LastMotionAt:   sess.LastMotionAt,
			Present:        !sess.Absent,
			AbsentMinutes:  sess.AbsentMinutes(now),
			SittingMinutes: sess.SittingMinutes,
			TotalPauses:    sess.TotalPauses,
			HasFrame:       tx.LastFrame() != nil,
		}
		if sess.Absent {
			snap.AbsentSince = sess.AbsentSince
		}
		return nil
	})

	return snap, found
}

// Len returns the number of users with a live session.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.session != nil {
			n++
		}
	}
	return n
}

// Tx is the view of one user's state inside Update.
type Tx struct {
	store  *Store
	userID string
}

// UserID returns the user the transaction is locked on.
func (tx *Tx) UserID() string {
	return tx.userID
}

// Session returns the current session or nil if none exists.
func (tx *Tx) Session() *Session {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if e, ok := tx.store.entries[tx.userID]; ok {
		return e.session
	}
	return nil
}

// GetOrCreate returns the existing session or starts a new one at now.
func (tx *Tx) GetOrCreate(now time.Time) *Session {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	e, ok := tx.store.entries[tx.userID]
	if !ok {
		e = &entry{}
		tx.store.entries[tx.userID] = e
	}
	if e.session == nil {
		e.session = newSession(tx.userID, now)
		logger.Debug("Store", "Session created for user %s", tx.userID)
	}
	return e.session
}

// Reset drops the session and last frame.
func (tx *Tx) Reset() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	delete(tx.store.entries, tx.userID)
}

// LastFrame returns the most recent frame or nil.
func (tx *Tx) LastFrame() image.Image {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if e, ok := tx.store.entries[tx.userID]; ok {
		return e.frame
	}
	return nil
}

// SetLastFrame replaces the stored frame.
func (tx *Tx) SetLastFrame(img image.Image) {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	e, ok := tx.store.entries[tx.userID]
	if !ok {
		e = &entry{}
		tx.store.entries[tx.userID] = e
	}
	e.frame = img
}

// Commit replaces the session and last frame in one step.
func (tx *Tx) Commit(sess Session, img image.Image) {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	tx.store.entries[tx.userID] = &entry{session: &sess, frame: img}
}
