package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadFrameEncoding is returned when frame_base64 is not valid base64.
var ErrBadFrameEncoding = errors.New("frame_base64 is not valid base64")

// UserID is an opaque user identifier. JSON accepts both "42" and 42.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or a number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// FrameRequest is the JSON body of a frame submission.
type FrameRequest struct {
	UserID      UserID `json:"user_id"`
	FrameBase64 string `json:"frame_base64"` // Optionally a data: URL
	Reset       bool   `json:"reset,omitempty"`
}

// FrameBytes decodes FrameBase64, dropping a "data:image/...;base64," prefix if present.
func (r FrameRequest) FrameBytes() ([]byte, error) {
	payload := strings.TrimSpace(r.FrameBase64)
	if strings.HasPrefix(payload, "data:") {
		if i := strings.IndexByte(payload, ','); i >= 0 {
			payload = payload[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrameEncoding, err)
	}
	return data, nil
}

// ResetRequest is the JSON body of an explicit session reset.
type ResetRequest struct {
	UserID UserID `json:"user_id"`
}
