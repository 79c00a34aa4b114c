package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recvEvent pops one queued event off the client's buffer and decodes it.
func recvEvent(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var ev map[string]any
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	default:
		t.Fatal("no event queued")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event queued: %s", data)
	default:
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(discardLogger())
	a := &Client{send: make(chan []byte, sendBufferSize)}
	b := &Client{send: make(chan []byte, sendBufferSize)}
	other := &Client{send: make(chan []byte, sendBufferSize)}

	hub.Join(1, a)
	hub.Join(1, b)
	hub.Join(2, other)

	hub.Broadcast(1, sessionEndedEvent{Type: EventEnded, SessionID: 1})

	for _, c := range []*Client{a, b} {
		ev := recvEvent(t, c)
		if ev["type"] != EventEnded {
			t.Errorf("type = %v, want %v", ev["type"], EventEnded)
		}
	}
	// Rooms are isolated
	assertNoEvent(t, other)
}

func TestHubBroadcastExcept(t *testing.T) {
	hub := NewHub(discardLogger())
	sender := &Client{send: make(chan []byte, sendBufferSize)}
	peer := &Client{send: make(chan []byte, sendBufferSize)}

	hub.Join(1, sender)
	hub.Join(1, peer)

	hub.BroadcastExcept(1, sender, typingEvent{Type: EventTyping, SessionID: 1, Typing: true})

	assertNoEvent(t, sender)
	ev := recvEvent(t, peer)
	if ev["type"] != EventTyping {
		t.Errorf("type = %v, want %v", ev["type"], EventTyping)
	}
}

func TestHubLeave(t *testing.T) {
	hub := NewHub(discardLogger())
	a := &Client{send: make(chan []byte, sendBufferSize)}
	b := &Client{send: make(chan []byte, sendBufferSize)}

	hub.Join(1, a)
	hub.Join(1, b)
	if got := hub.RoomSize(1); got != 2 {
		t.Fatalf("room size = %d, want 2", got)
	}

	hub.Leave(1, a)
	if got := hub.RoomSize(1); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}

	hub.Broadcast(1, sessionEndedEvent{Type: EventEnded, SessionID: 1})
	assertNoEvent(t, a)
	recvEvent(t, b)

	// Leaving twice and leaving an unknown room are harmless
	hub.Leave(1, a)
	hub.Leave(99, a)

	hub.Leave(1, b)
	if got := hub.RoomSize(1); got != 0 {
		t.Fatalf("room size = %d, want 0", got)
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(discardLogger())
	slow := &Client{send: make(chan []byte)} // unbuffered, nothing draining
	fast := &Client{send: make(chan []byte, sendBufferSize)}

	hub.Join(1, slow)
	hub.Join(1, fast)

	// Must return immediately; the slow client's event is dropped.
	hub.Broadcast(1, sessionEndedEvent{Type: EventEnded, SessionID: 1})
	recvEvent(t, fast)
}
