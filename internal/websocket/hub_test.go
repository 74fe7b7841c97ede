package websocket

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func TestHubRegisterUnregister(t *testing.T) {
	h := newRunningHub(t)

	client := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- client
	waitFor(t, func() bool { return h.GetClientCount() == 1 }, "client never registered")

	h.unregister <- client
	waitFor(t, func() bool { return h.GetClientCount() == 0 }, "client never unregistered")

	// The hub closes the send channel of a pruned client.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel, got message")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after unregister")
	}
}

func TestHubNotifyReachesAllViewers(t *testing.T) {
	h := newRunningHub(t)

	a := &Client{hub: h, send: make(chan []byte, 8)}
	b := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- a
	h.register <- b
	waitFor(t, func() bool { return h.GetClientCount() == 2 }, "clients never registered")

	h.Notify()

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if string(msg) != `{"type":"leaderboardUpdated"}` {
				t.Errorf("message = %s", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("viewer never received notification")
		}
	}
}

func TestHubSkipsViewerWithFullBuffer(t *testing.T) {
	h := newRunningHub(t)

	stuck := &Client{hub: h, send: make(chan []byte)} // no buffer, nobody reading
	healthy := &Client{hub: h, send: make(chan []byte, 8)}
	h.register <- stuck
	h.register <- healthy
	waitFor(t, func() bool { return h.GetClientCount() == 2 }, "clients never registered")

	// Must not block despite the stuck viewer.
	h.Notify()

	select {
	case <-healthy.send:
	case <-time.After(time.Second):
		t.Fatal("healthy viewer starved by stuck viewer")
	}
}

func TestNotifyCoalesces(t *testing.T) {
	h := NewHub(nil) // not running: pushes accumulate in the notify channel

	for i := 0; i < 10; i++ {
		h.Notify() // must never block
	}
	if len(h.notify) != 1 {
		t.Errorf("pending notifications = %d, want 1", len(h.notify))
	}
}
