package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := uuid.New().String()

	clientA := hub.NewSSEClient()
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationCreated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationProgress, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventGenerationCreated {
		t.Fatalf("first event: want=%s got=%s", SSEEventGenerationCreated, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventGenerationProgress {
		t.Fatalf("second event: want=%s got=%s", SSEEventGenerationProgress, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close=%d", n)
	}

	clientB := hub.NewSSEClient()
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationDone})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventGenerationDone {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventGenerationDone, got.Event)
	}
}

func TestSSEHubIgnoresOtherChannels(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient()
	hub.AddChannel(client, "run-a")
	hub.AddChannel(client, "  ")
	hub.Broadcast(SSEMessage{Channel: "run-b", Event: SSEEventGenerationProgress})
	hub.Broadcast(SSEMessage{Event: SSEEventGenerationProgress})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubServeHTTPStopsAfterTerminalEvent(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient()
	hub.AddChannel(client, "run-1")
	defer hub.CloseClient(client)

	hub.Broadcast(SSEMessage{Channel: "run-1", Event: SSEEventGenerationProgress, Data: map[string]any{"progress": 40}})
	hub.Broadcast(SSEMessage{Channel: "run-1", Event: SSEEventGenerationFailed, Data: map[string]any{"error": "boom"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req, client)

	if ctx.Err() != nil {
		t.Fatalf("stream did not end on terminal event")
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: GenerationProgress\n") || !strings.Contains(body, "event: GenerationFailed\n") {
		t.Fatalf("body=%q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type=%q", ct)
	}
}
