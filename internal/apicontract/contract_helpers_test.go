package apicontract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const (
	defaultBaseURL        = "http://localhost:8080"
	defaultRequestTimeout = 5 * time.Second
)

type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	baseURL := strings.TrimRight(os.Getenv("PRESENCE_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &http.Client{Timeout: defaultRequestTimeout}

	if !isReachable(client, baseURL+"/health") {
		t.Skipf("presence server not reachable at %s (set PRESENCE_BASE_URL to run)", baseURL)
	}

	return &apiClient{
		baseURL: baseURL,
		client:  client,
	}
}

func isReachable(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// contractUser returns a user id that no earlier run has touched.
func contractUser(t *testing.T) string {
	return fmt.Sprintf("contract-%s-%d", strings.ToLower(t.Name()), time.Now().UnixNano())
}

func (c *apiClient) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

func (c *apiClient) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return c.do(t, req)
}

func (c *apiClient) postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(t, req)
}

// postFrame submits img for userID and returns the decoded result.
func (c *apiClient) postFrame(t *testing.T, userID, img string, reset bool) map[string]any {
	t.Helper()
	resp, body := c.postJSON(t, "/api/monitor/frame", map[string]any{
		"user_id":      userID,
		"frame_base64": img,
		"reset":        reset,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/monitor/frame status = %d body=%s", resp.StatusCode, body)
	}
	return decodeJSONMap(t, body)
}

// solidFrame returns a base64 PNG of a single gray level.
func solidFrame(t *testing.T, y uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 200, 150))
	for i := range img.Pix {
		img.Pix[i] = color.Gray{Y: y}.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// readSSEData connects to url, runs trigger once the stream is open and
// returns the data of the first event. Keepalive comments are skipped.
func readSSEData(url string, timeout time.Duration, trigger func()) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	go trigger()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data:")), resp.Header, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, fmt.Errorf("read sse: %w", err)
	}
	return "", nil, fmt.Errorf("sse stream closed before event")
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireSlice(t *testing.T, value any, field string) []any {
	t.Helper()
	s, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return s
}

func assertResultPayload(t *testing.T, payload map[string]any) {
	t.Helper()
	requireString(t, payload["user_id"], "user_id")
	requireBool(t, payload["motion_detected"], "motion_detected")
	requireNumber(t, payload["diff_count"], "diff_count")
	requireBool(t, payload["present"], "present")
	requireNumber(t, payload["sitting_minutes"], "sitting_minutes")
	requireNumber(t, payload["total_pauses"], "total_pauses")
	requireBool(t, payload["suggest_stretch"], "suggest_stretch")
	requireString(t, payload["message"], "message")
	requireString(t, payload["timestamp"], "timestamp")
	suggestions := requireSlice(t, payload["suggestions"], "suggestions")
	for i, raw := range suggestions {
		requireString(t, raw, fmt.Sprintf("suggestions[%d]", i))
	}
}
