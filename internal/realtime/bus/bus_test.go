package bus

import (
	"context"
	"testing"

	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
)

func TestLocalBusForwardsInOrder(t *testing.T) {
	b := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []realtime.SSEEvent
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got = append(got, m.Event) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	for _, ev := range []realtime.SSEEvent{realtime.SSEEventGenerationProgress, realtime.SSEEventGenerationDone} {
		if err := b.Publish(context.Background(), realtime.SSEMessage{Channel: "run", Event: ev}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(got) != 2 || got[1] != realtime.SSEEventGenerationDone {
		t.Fatalf("got=%v", got)
	}
	if err := b.StartForwarder(ctx, nil); err == nil {
		t.Fatalf("nil callback should be rejected")
	}
}

func TestLocalBusPublishHonoursCancel(t *testing.T) {
	b := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Publish(ctx, realtime.SSEMessage{Channel: "run"}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestNewSSEBusWithoutRedisIsLocal(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	b, err := NewSSEBus(nil)
	if err != nil {
		t.Fatalf("NewSSEBus: %v", err)
	}
	if _, ok := b.(*localBus); !ok {
		t.Fatalf("bus=%T want *localBus", b)
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"channel":"run-1","event":"GenerationDone","data":{"progress":100}}`))
	if err != nil || msg.Channel != "run-1" || !msg.Event.Terminal() {
		t.Fatalf("msg=%+v err=%v", msg, err)
	}
	if _, err := decodeMessage([]byte(`{"event":"GenerationDone"}`)); err == nil {
		t.Fatalf("message without channel should fail")
	}
	if _, err := decodeMessage([]byte(`{`)); err == nil {
		t.Fatalf("bad json should fail")
	}
}
