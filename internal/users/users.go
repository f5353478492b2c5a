// Package users validates the user ids that frames are submitted for.
package users

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownUser is returned for an id the directory does not know.
var ErrUnknownUser = errors.New("unknown user")

// Directory checks that a user id exists.
type Directory interface {
	Lookup(ctx context.Context, userID string) error
}

// AllowAll accepts every non-empty id.
type AllowAll struct{}

// Lookup implements Directory.
func (AllowAll) Lookup(_ context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnknownUser
	}
	return nil
}

// Static accepts a fixed set of ids.
type Static struct {
	ids map[string]struct{}
}

// NewStatic builds a directory from ids. Blank entries are ignored.
func NewStatic(ids []string) *Static {
	s := &Static{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Lookup implements Directory.
func (s *Static) Lookup(_ context.Context, userID string) error {
	if _, ok := s.ids[userID]; !ok {
		return ErrUnknownUser
	}
	return nil
}

// FromList returns AllowAll for an empty list and a Static directory otherwise.
func FromList(ids []string) Directory {
	if len(ids) == 0 {
		return AllowAll{}
	}
	return NewStatic(ids)
}
