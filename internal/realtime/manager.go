package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/salon-live-queue/internal/model"
)

// Manager owns one Room per shop.  Rooms start on first use and run in
// parallel; the manager lock only guards the room map and is never held
// while a room works.
type Manager struct {
	store     Store
	transport Transport
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewManager(store Store, transport Transport, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		transport: transport,
		opts:      opts.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
		rooms:     make(map[string]*Room),
	}
}

// Room returns the running room of shopID, starting it if needed.  A room
// that stopped after idling is replaced.
func (m *Manager) Room(shopID string) (*Room, error) {
	if shopID == "" {
		return nil, fmt.Errorf("%w: missing shop id", ErrInvalidEvent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrRoomClosed
	}
	if r, ok := m.rooms[shopID]; ok && !r.stopped() {
		return r, nil
	}
	r := NewRoom(shopID, m.store, m.transport, m.opts)
	m.rooms[shopID] = r
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.Run(m.ctx)
		m.mu.Lock()
		if m.rooms[shopID] == r {
			delete(m.rooms, shopID)
		}
		m.mu.Unlock()
	}()
	return r, nil
}

// existing returns the room of shopID only if one is already running.
func (m *Manager) existing(shopID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[shopID]
	if !ok || r.stopped() {
		return nil, false
	}
	return r, true
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// withRoom runs fn against the room of shopID.  When the room stopped for
// idleness under fn, fn is retried once on a fresh room.
func (m *Manager) withRoom(shopID string, fn func(*Room) error) error {
	for attempt := 0; ; attempt++ {
		r, err := m.Room(shopID)
		if err != nil {
			return err
		}
		err = fn(r)
		if !errors.Is(err, ErrRoomClosed) || attempt > 0 || m.isClosed() {
			return err
		}
		<-r.Done()
	}
}

// Apply routes a mutation event to its shop's room and waits until the
// room has applied it.
func (m *Manager) Apply(ctx context.Context, ev MutationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return m.withRoom(ev.ShopID, func(r *Room) error { return r.Apply(ctx, ev) })
}

// Dispatch queues a mutation event on its shop's room, starting the room
// if needed, and returns without waiting for it to be applied.  Events of
// one shop keep their order; a slow shop never holds up another.
func (m *Manager) Dispatch(ev MutationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return m.withRoom(ev.ShopID, func(r *Room) error { return r.Enqueue(ev) })
}

// DispatchExisting queues ev only when this instance already runs a room
// for the shop.  It reports whether the event was queued.
func (m *Manager) DispatchExisting(ev MutationEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	r, ok := m.existing(ev.ShopID)
	if !ok {
		return false, nil
	}
	if err := r.Enqueue(ev); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			// Stopping for idleness: nobody is watching the shop here.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) Subscribe(ctx context.Context, shopID string, sub *Subscriber) error {
	return m.withRoom(shopID, func(r *Room) error { return r.Subscribe(ctx, sub) })
}

func (m *Manager) Unsubscribe(shopID, subscriberID string) {
	m.mu.Lock()
	r, ok := m.rooms[shopID]
	m.mu.Unlock()
	if ok {
		r.Unsubscribe(subscriberID)
		return
	}
	m.transport.Leave(shopID, subscriberID)
}

func (m *Manager) Resync(ctx context.Context, shopID string, sub *Subscriber) error {
	return m.withRoom(shopID, func(r *Room) error { return r.Resync(ctx, sub) })
}

func (m *Manager) Snapshot(ctx context.Context, shopID string) (model.ShopSnapshot, error) {
	var snap model.ShopSnapshot
	err := m.withRoom(shopID, func(r *Room) error {
		var err error
		snap, err = r.Snapshot(ctx)
		return err
	})
	return snap, err
}

// Close stops every room and waits for their loops to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}
