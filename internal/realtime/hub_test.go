package realtime

import (
	"errors"
	"testing"
)

func TestHubSendFiltersByMode(t *testing.T) {
	hub := NewHub()
	full := NewSubscriber(ModeFull, 4)
	blocking := NewSubscriber(ModeBlocking, 4)
	hub.Join("shop1", full)
	hub.Join("shop1", blocking)
	hub.Join("shop2", NewSubscriber(ModeFull, 4))

	hub.Send("shop1", Message{Type: MsgDelta, ShopID: "shop1", Version: 1})
	hub.Send("shop1", Message{Type: MsgBlocked, ShopID: "shop1", Version: 1})

	if got := len(full.C()); got != 2 {
		t.Fatalf("expected full subscriber to get 2 messages, got %d", got)
	}
	if got := len(blocking.C()); got != 1 {
		t.Fatalf("expected blocking subscriber to get 1 message, got %d", got)
	}
	if msg := <-blocking.C(); msg.Type != MsgBlocked {
		t.Fatalf("expected blocked notice, got %s", msg.Type)
	}
	if hub.Count("shop1") != 2 || hub.Count("shop2") != 1 {
		t.Fatalf("unexpected counts: %d, %d", hub.Count("shop1"), hub.Count("shop2"))
	}
}

func TestHubDropsStaleSubscriber(t *testing.T) {
	hub := NewHub()
	slow := NewSubscriber(ModeFull, 1)
	hub.Join("shop1", slow)

	hub.Send("shop1", Message{Type: MsgDelta, Version: 1})
	hub.Send("shop1", Message{Type: MsgDelta, Version: 2})

	select {
	case <-slow.Done():
	default:
		t.Fatal("expected overflowing subscriber to be closed")
	}
	if !errors.Is(slow.Err(), ErrStaleSubscription) {
		t.Fatalf("expected ErrStaleSubscription, got %v", slow.Err())
	}
	if hub.Count("shop1") != 0 {
		t.Fatal("stale subscriber still in room")
	}
	if msg := <-slow.C(); msg.Version != 1 {
		t.Fatalf("expected buffered message to survive, got version %d", msg.Version)
	}
}

func TestHubSendTo(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(ModeBlocking, 1)
	hub.Join("shop1", sub)

	if err := hub.SendTo("shop1", sub.ID(), Message{Type: MsgSnapshot}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hub.SendTo("shop1", sub.ID(), Message{Type: MsgSnapshot}); !errors.Is(err, ErrStaleSubscription) {
		t.Fatalf("expected ErrStaleSubscription on full buffer, got %v", err)
	}
	if err := hub.SendTo("shop1", "nobody", Message{}); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

func TestHubLeave(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(ModeFull, 1)
	hub.Join("shop1", sub)
	hub.Leave("shop1", sub.ID())

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscriber to be closed")
	}
	if sub.Err() != nil {
		t.Fatalf("expected clean close, got %v", sub.Err())
	}
	hub.Send("shop1", Message{Type: MsgDelta})
	if len(sub.C()) != 0 {
		t.Fatal("subscriber received a message after leaving")
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("blocking") != ModeBlocking || ParseMode("") != ModeFull || ParseMode("full") != ModeFull {
		t.Fatal("unexpected mode parsing")
	}
	if ModeBlocking.Accepts(MsgSnapshot) || !ModeBlocking.Accepts(MsgBlockedSet) {
		t.Fatal("blocking mode must take the blocked set instead of snapshots")
	}
	if !ModeFull.Accepts(MsgUnblocked) || ModeFull.Accepts(MsgBlockedSet) {
		t.Fatal("unexpected full mode filter")
	}
}
