package realtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mode selects which messages a subscriber receives.
type Mode int

const (
	// ModeFull receives snapshots, deltas and blocked/unblocked notices.
	ModeFull Mode = iota
	// ModeBlocking receives only blocked-interval traffic.  Booking forms
	// use it for live slot blocking.
	ModeBlocking
)

// ParseMode maps a query value to a Mode.  Anything but "blocking" is
// ModeFull.
func ParseMode(s string) Mode {
	if s == "blocking" {
		return ModeBlocking
	}
	return ModeFull
}

func (m Mode) String() string {
	if m == ModeBlocking {
		return "blocking"
	}
	return "full"
}

// Accepts reports whether a subscriber in mode m wants messages of type t.
func (m Mode) Accepts(t MessageType) bool {
	switch t {
	case MsgBlocked, MsgUnblocked:
		return true
	case MsgBlockedSet:
		return m == ModeBlocking
	case MsgSnapshot, MsgDelta:
		return m == ModeFull
	}
	return false
}

// Subscriber is one viewer connection.  Messages arrive on C until Done is
// closed; Err then holds the close reason, nil for a regular leave.
type Subscriber struct {
	id   string
	mode Mode
	ch   chan Message
	done chan struct{}
	once sync.Once
	err  error
}

// NewSubscriber creates a subscriber with a buffer of the given size.
func NewSubscriber(mode Mode, buffer int) *Subscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscriber{
		id:   uuid.NewString(),
		mode: mode,
		ch:   make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

func (s *Subscriber) ID() string            { return s.id }
func (s *Subscriber) Mode() Mode            { return s.mode }
func (s *Subscriber) C() <-chan Message     { return s.ch }
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Err returns the close reason.  It is only meaningful after Done is
// closed.
func (s *Subscriber) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// offer enqueues msg without blocking and reports whether it fit.
func (s *Subscriber) offer(msg Message) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Transport is a shop-scoped, at-most-once, ordered-per-room channel to
// viewers.
type Transport interface {
	Join(room string, s *Subscriber)
	Leave(room, id string)
	// Send delivers msg to every subscriber of room whose mode accepts it.
	Send(room string, msg Message)
	// SendTo delivers msg to one subscriber regardless of its mode.
	SendTo(room, id string, msg Message) error
	Count(room string) int
}

// Hub is the in-process Transport.  Delivery never blocks: a subscriber
// whose buffer is full is dropped and closed with ErrStaleSubscription.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Subscriber
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Subscriber)}
}

func (h *Hub) Join(room string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[string]*Subscriber)
		h.rooms[room] = subs
	}
	subs[s.id] = s
}

func (h *Hub) Leave(room, id string) {
	if s := h.remove(room, id); s != nil {
		s.close(nil)
	}
}

func (h *Hub) Send(room string, msg Message) {
	h.mu.RLock()
	var stale []*Subscriber
	for _, s := range h.rooms[room] {
		if !s.mode.Accepts(msg.Type) {
			continue
		}
		if !s.offer(msg) {
			stale = append(stale, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stale {
		h.drop(room, s)
	}
}

func (h *Hub) SendTo(room, id string, msg Message) error {
	h.mu.RLock()
	s, ok := h.rooms[room][id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s in room %s", ErrNotSubscribed, id, room)
	}
	if !s.offer(msg) {
		h.drop(room, s)
		return fmt.Errorf("%w: %s", ErrStaleSubscription, id)
	}
	return nil
}

func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) drop(room string, s *Subscriber) {
	h.remove(room, s.id)
	s.close(ErrStaleSubscription)
}

func (h *Hub) remove(room, id string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[room]
	s, ok := subs[id]
	if !ok {
		return nil
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.rooms, room)
	}
	return s
}
