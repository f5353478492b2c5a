package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nexus-wellbeing/presence-monitor/internal/logger"
	"github.com/nexus-wellbeing/presence-monitor/internal/metrics"
	"github.com/nexus-wellbeing/presence-monitor/pkg/types"
)

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	UserID       string
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized Protobuf (base64 encoded for SSE)
}

// ResultBroadcaster manages fanout of monitoring results to SSE clients.
type ResultBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	closed  bool
	metrics *metrics.Metrics
}

// NewResultBroadcaster creates a broadcaster reporting client counts into m.
func NewResultBroadcaster(m *metrics.Metrics) *ResultBroadcaster {
	return &ResultBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving results.
// After Close the returned channel is already closed.
func (rb *ResultBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	id := rb.nextID
	rb.nextID++
	ch := make(chan *SerializedEvent, 2) // Buffer 2 events to avoid blocking
	if rb.closed {
		close(ch)
		return id, ch
	}

	rb.clients[id] = ch
	rb.metrics.StreamClients.Add(1)

	logger.Debug("ResultBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(rb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (rb *ResultBroadcaster) Unsubscribe(id int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if ch, ok := rb.clients[id]; ok {
		close(ch)
		delete(rb.clients, id)
		rb.metrics.StreamClients.Add(-1)
		logger.Debug("ResultBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(rb.clients))
	}
}

// Clients returns the number of subscribed clients.
func (rb *ResultBroadcaster) Clients() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.clients)
}

// Publish serializes res once and fans it out. Nothing is serialized without clients.
func (rb *ResultBroadcaster) Publish(res types.MonitoringResult) {
	if rb.Clients() == 0 {
		return
	}

	event, err := serializeResult(res)
	if err != nil {
		logger.Error("ResultBroadcaster", "Serialize error: %v", err)
		return
	}

	rb.broadcast(event)
}

func (rb *ResultBroadcaster) broadcast(event *SerializedEvent) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for id, ch := range rb.clients {
		select {
		case ch <- event:
			// Sent successfully
		default:
			// Client too slow, skip this event for this client
			rb.metrics.StreamDropped.Add(1)
			logger.Debug("ResultBroadcaster", "Client #%d too slow, event dropped", id)
		}
	}
}

// Close disconnects every client. Streams see their channel closed and return.
func (rb *ResultBroadcaster) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return
	}
	rb.closed = true

	for id, ch := range rb.clients {
		close(ch)
		delete(rb.clients, id)
		rb.metrics.StreamClients.Add(-1)
	}
}

func serializeResult(res types.MonitoringResult) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	pbData, err := marshalResultProto(res)
	if err != nil {
		return nil, err
	}

	return &SerializedEvent{
		UserID:       res.UserID,
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)), // Base64 encode for SSE transport
	}, nil
}

// marshalResultProto encodes res as a google.protobuf.Struct with the JSON field names.
func marshalResultProto(res types.MonitoringResult) ([]byte, error) {
	pbResult, err := structpb.NewStruct(res.Fields())
	if err != nil {
		return nil, fmt.Errorf("protobuf conversion: %w", err)
	}

	pbData, err := proto.Marshal(pbResult)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal: %w", err)
	}
	return pbData, nil
}
