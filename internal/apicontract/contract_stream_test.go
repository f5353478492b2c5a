package apicontract

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestContractResultStream(t *testing.T) {
	client := newAPIClient(t)
	user := contractUser(t)
	frame := solidFrame(t, 128)

	streamURL := client.baseURL + "/api/monitor/stream?user_id=" + url.QueryEscape(user)
	data, headers, err := readSSEData(streamURL, 5*time.Second, func() {
		// Give the subscription a moment before publishing.
		time.Sleep(100 * time.Millisecond)
		body := `{"user_id":"` + user + `","frame_base64":"` + frame + `"}`
		resp, err := client.client.Post(client.baseURL+"/api/monitor/frame", "application/json", strings.NewReader(body))
		if err == nil {
			_ = resp.Body.Close()
		}
	})
	if err != nil {
		t.Fatalf("result stream error: %v", err)
	}
	if !strings.Contains(headers.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("result stream content-type = %q", headers.Get("Content-Type"))
	}
	if headers.Get("X-Content-Format") != "application/json" {
		t.Fatalf("result stream format = %q", headers.Get("X-Content-Format"))
	}

	payload := decodeJSONMap(t, []byte(data))
	assertResultPayload(t, payload)
	if payload["user_id"] != user {
		t.Fatalf("stream delivered result for %v", payload["user_id"])
	}
}
