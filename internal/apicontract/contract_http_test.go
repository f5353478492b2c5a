package apicontract

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestContractHealth(t *testing.T) {
	client := newAPIClient(t)
	resp, body := client.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health status = %d", resp.StatusCode)
	}
	payload := decodeJSONMap(t, body)
	if status := requireString(t, payload["status"], "status"); status != "ok" {
		t.Fatalf("health status = %q", status)
	}
	requireNumber(t, payload["active_sessions"], "active_sessions")
	requireNumber(t, payload["stream_clients"], "stream_clients")
}

func TestContractFrameSequence(t *testing.T) {
	client := newAPIClient(t)
	user := contractUser(t)
	black, white := solidFrame(t, 0), solidFrame(t, 255)

	first := client.postFrame(t, user, black, false)
	assertResultPayload(t, first)
	if first["motion_detected"] != false || first["present"] != true {
		t.Fatalf("first frame = %v", first)
	}
	if first["diff_count"] != float64(0) {
		t.Fatalf("first frame diff_count = %v", first["diff_count"])
	}

	second := client.postFrame(t, user, white, false)
	assertResultPayload(t, second)
	if second["motion_detected"] != true {
		t.Fatalf("black to white not reported as motion: %v", second)
	}
	if requireString(t, second["user_id"], "user_id") != user {
		t.Fatalf("user_id = %v", second["user_id"])
	}

	third := client.postFrame(t, user, white, false)
	if third["motion_detected"] != false || third["diff_count"] != float64(0) {
		t.Fatalf("repeated frame = %v", third)
	}
}

func TestContractInvalidFrame(t *testing.T) {
	client := newAPIClient(t)
	user := contractUser(t)

	payload := client.postFrame(t, user, "bm90IGFuIGltYWdl", false)
	assertResultPayload(t, payload)
	errMsg := requireString(t, payload["error"], "error")
	if errMsg == "" {
		t.Fatalf("undecodable frame produced no error")
	}
	if !strings.HasPrefix(requireString(t, payload["message"], "message"), "Error: ") {
		t.Fatalf("message = %v", payload["message"])
	}

	resp, _ := client.postJSON(t, "/api/monitor/frame", map[string]any{"frame_base64": solidFrame(t, 0)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing user_id status = %d", resp.StatusCode)
	}

	resp, _ = client.get(t, "/api/monitor/frame")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/monitor/frame status = %d", resp.StatusCode)
	}
}

func TestContractStatsAndReset(t *testing.T) {
	client := newAPIClient(t)
	user := contractUser(t)
	query := "?user_id=" + url.QueryEscape(user)

	resp, _ := client.get(t, "/api/monitor/stats"+query)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stats before any frame status = %d", resp.StatusCode)
	}

	client.postFrame(t, user, solidFrame(t, 0), false)

	resp, body := client.get(t, "/api/monitor/stats"+query)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/monitor/stats status = %d body=%s", resp.StatusCode, body)
	}
	stats := decodeJSONMap(t, body)
	if requireString(t, stats["user_id"], "user_id") != user {
		t.Fatalf("stats user_id = %v", stats["user_id"])
	}
	requireString(t, stats["started_at"], "started_at")
	requireBool(t, stats["present"], "present")
	requireNumber(t, stats["total_pauses"], "total_pauses")
	if !requireBool(t, stats["has_frame"], "has_frame") {
		t.Fatalf("stats has_frame = false after a frame")
	}

	resp, body = client.postJSON(t, "/api/monitor/reset", map[string]any{"user_id": user})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/monitor/reset status = %d body=%s", resp.StatusCode, body)
	}
	reset := decodeJSONMap(t, body)
	if reset["status"] != "reset" {
		t.Fatalf("reset status = %v", reset["status"])
	}

	resp, _ = client.get(t, "/api/monitor/stats"+query)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stats after reset status = %d", resp.StatusCode)
	}
}

func TestContractAlerts(t *testing.T) {
	client := newAPIClient(t)
	user := contractUser(t)

	resp, body := client.get(t, "/api/monitor/alerts?limit=5&user_id="+url.QueryEscape(user))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/monitor/alerts status = %d body=%s", resp.StatusCode, body)
	}
	payload := decodeJSONMap(t, body)
	if requireString(t, payload["user_id"], "user_id") != user {
		t.Fatalf("alerts user_id = %v", payload["user_id"])
	}
	if payload["alerts"] != nil {
		requireSlice(t, payload["alerts"], "alerts")
	}

	resp, _ = client.get(t, "/api/monitor/alerts?limit=0&user_id="+url.QueryEscape(user))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("limit=0 status = %d", resp.StatusCode)
	}
}

func TestContractStatus(t *testing.T) {
	client := newAPIClient(t)
	resp, body := client.get(t, "/api/monitor/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/monitor/status status = %d", resp.StatusCode)
	}
	payload := decodeJSONMap(t, body)
	activity := requireMap(t, payload["activity"], "activity")
	requireNumber(t, activity["frames_processed"], "activity.frames_processed")
	requireNumber(t, activity["error_results"], "activity.error_results")
	requireNumber(t, activity["frames_per_minute"], "activity.frames_per_minute")
	requireNumber(t, payload["active_sessions"], "active_sessions")
	requireNumber(t, payload["timestamp"], "timestamp")
}
