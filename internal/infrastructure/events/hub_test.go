package events

import (
	"testing"
	"time"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	a := h.Subscribe("a")
	b := h.Subscribe("b")
	if h.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", h.ClientCount())
	}

	h.Broadcast(Event{Kind: "requested", ProcessID: "n1", ProcessType: "contract_negotiation", State: "REQUESTED", Timestamp: time.Now()})

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.Events:
			if ev.ProcessID != "n1" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			t.Fatalf("client %s received no event", c.ID)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	c := h.Subscribe("slow")
	for i := 0; i < 100; i++ {
		h.Broadcast(Event{Kind: "requested", ProcessID: "n1"})
	}
	if len(c.Events) != cap(c.Events) {
		t.Fatalf("expected full buffer, got %d", len(c.Events))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("a")
	h.Unsubscribe("a")

	if _, open := <-c.Events; open {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", h.ClientCount())
	}

	// Double unsubscribe is a no-op.
	h.Unsubscribe("a")
}
