package types

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_StringOrNumber(t *testing.T) {
	var req FrameRequest
	require.NoError(t, json.Unmarshal([]byte(`{"user_id": 42, "frame_base64": ""}`), &req))
	assert.Equal(t, UserID("42"), req.UserID)

	require.NoError(t, json.Unmarshal([]byte(`{"user_id": " abc "}`), &req))
	assert.Equal(t, UserID("abc"), req.UserID)

	assert.Error(t, json.Unmarshal([]byte(`{"user_id": true}`), &req))
}

func TestFrameRequest_FrameBytes(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	enc := base64.StdEncoding.EncodeToString(raw)

	data, err := FrameRequest{FrameBase64: enc}.FrameBytes()
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	data, err = FrameRequest{FrameBase64: "data:image/png;base64," + enc}.FrameBytes()
	require.NoError(t, err)
	assert.Equal(t, raw, data)

	_, err = FrameRequest{FrameBase64: "not base64!"}.FrameBytes()
	assert.ErrorIs(t, err, ErrBadFrameEncoding)
}

func TestMonitoringResult_Fields(t *testing.T) {
	ts := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	r := MonitoringResult{
		UserID:      "1",
		DiffCount:   3,
		Present:     true,
		Message:     "ok",
		Suggestions: []string{"a", "b"},
		Timestamp:   ts,
	}

	f := r.Fields()
	assert.Equal(t, 3, f["diff_count"])
	assert.Equal(t, []any{"a", "b"}, f["suggestions"])
	assert.Equal(t, "2025-01-15T09:00:00Z", f["timestamp"])
	assert.NotContains(t, f, "error")
	assert.False(t, r.Failed())

	r.Error = "boom"
	assert.Equal(t, "boom", r.Fields()["error"])
	assert.True(t, r.Failed())
}
