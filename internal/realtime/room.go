package realtime

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/salon-live-queue/internal/model"
	"github.com/iliyamo/salon-live-queue/internal/scheduler"
)

// RoomState is the lifecycle phase of a room.
type RoomState int32

const (
	StateIdle RoomState = iota
	StateSubscribed
	StateRecomputing
	StateBroadcasting
)

func (s RoomState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateRecomputing:
		return "recomputing"
	case StateBroadcasting:
		return "broadcasting"
	}
	return fmt.Sprintf("RoomState(%d)", int32(s))
}

// Options tunes rooms.  Zero values fall back to defaults.
type Options struct {
	TickInterval  time.Duration    // re-estimation period, default 10s
	InboxSize     int              // buffered requests per room, default 64
	StoreTimeout  time.Duration    // per store read, default 5s
	NotifyTimeout time.Duration    // per SeatAdvanced delivery, default 5s
	Location      *time.Location   // shop time zone, default UTC
	Notifier      Notifier         // optional
	Now           func() time.Time // clock, default time.Now

	// ReloadInterval bounds how long the cached staff and bookings are
	// trusted before a tick re-reads the store, default 1m.
	ReloadInterval time.Duration
	// IdleTimeout stops a room that has had no subscribers and no
	// events for this long, default 5m.
	IdleTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 10 * time.Second
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 64
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 5 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = time.Minute
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	return o
}

type requestKind int

const (
	reqApply requestKind = iota
	reqSubscribe
	reqResync
	reqSnapshot
)

type request struct {
	kind  requestKind
	event MutationEvent
	sub   *Subscriber
	reply chan response
}

type response struct {
	snapshot model.ShopSnapshot
	err      error
}

// Room owns the live state of one shop.  All state below wake is touched
// only by the goroutine running Run; other goroutines talk to the room
// through requests on inbox, answered in arrival order, or queue events
// with Enqueue without waiting for them.
type Room struct {
	shopID    string
	store     Store
	transport Transport
	opts      Options

	inbox chan request
	done  chan struct{}
	state atomic.Int32

	evMu     sync.Mutex
	pending  []MutationEvent
	overflow bool // pending was discarded; the next drain reloads the shop
	exited   bool
	wake     chan struct{}

	loaded     bool
	stale      bool // an event failed to apply; the next refresh reloads
	loadedAt   time.Time
	lastActive time.Time
	date       string
	version    uint64
	staff      []model.Staff
	bookings   map[string][]model.Booking
	blocked    map[string][]model.BlockedInterval
	seats      map[string]model.StaffSeat
}

// NewRoom creates the room of shopID.  It does nothing until Run is
// started.
func NewRoom(shopID string, store Store, transport Transport, opts Options) *Room {
	opts = opts.withDefaults()
	return &Room{
		shopID:     shopID,
		store:      store,
		transport:  transport,
		opts:       opts,
		inbox:      make(chan request, opts.InboxSize),
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
		lastActive: opts.Now(),
		bookings:   make(map[string][]model.Booking),
		blocked:    make(map[string][]model.BlockedInterval),
	}
}

func (r *Room) ShopID() string        { return r.shopID }
func (r *Room) State() RoomState      { return RoomState(r.state.Load()) }
func (r *Room) Done() <-chan struct{} { return r.done }
func (r *Room) setState(s RoomState)  { r.state.Store(int32(s)) }
func (r *Room) now() time.Time        { return r.opts.Now().In(r.opts.Location) }

// Run processes requests, queued events and ticks until ctx is cancelled
// or the room has been idle for IdleTimeout.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.evMu.Lock()
			r.exited = true
			r.evMu.Unlock()
			return
		case req := <-r.inbox:
			req.reply <- r.handle(ctx, req)
			r.lastActive = r.now()
			r.settle()
		case <-r.wake:
			r.drain(ctx)
			r.lastActive = r.now()
			r.settle()
		case <-ticker.C:
			if r.evict() {
				log.Printf("room %s: idle, stopping", r.shopID)
				return
			}
			r.tick(ctx)
			r.settle()
		}
	}
}

// stopped reports whether the room has stopped or is about to.
func (r *Room) stopped() bool {
	r.evMu.Lock()
	defer r.evMu.Unlock()
	return r.exited
}

// maxPending bounds the event queue; past it the queued events are
// replaced by one full reload.
func (r *Room) maxPending() int { return r.opts.InboxSize * 16 }

// Enqueue queues ev and returns without waiting for the room to apply
// it.  Events are applied in the order they were queued.  A store failure
// while applying is logged and repaired by a reload on the next refresh.
func (r *Room) Enqueue(ev MutationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ShopID != r.shopID {
		return fmt.Errorf("%w: event for shop %s sent to room %s", ErrInvalidEvent, ev.ShopID, r.shopID)
	}
	r.evMu.Lock()
	switch {
	case r.exited:
		r.evMu.Unlock()
		return ErrRoomClosed
	case r.overflow:
	case len(r.pending) >= r.maxPending():
		r.pending = nil
		r.overflow = true
	default:
		r.pending = append(r.pending, ev)
	}
	r.evMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *Room) drain(ctx context.Context) {
	r.evMu.Lock()
	evs, overflow := r.pending, r.overflow
	r.pending, r.overflow = nil, false
	r.evMu.Unlock()

	now := r.now()
	if overflow {
		log.Printf("room %s: event queue overflowed, reloading", r.shopID)
		if err := r.refresh(ctx, now, true); err != nil {
			log.Printf("room %s: reload after overflow: %v", r.shopID, err)
			r.stale = true
		}
		return
	}
	for _, ev := range evs {
		if err := r.apply(ctx, ev, now); err != nil {
			log.Printf("room %s: apply %s %s: %v", r.shopID, ev.Kind, ev.BookingID, err)
			r.stale = true
		}
	}
}

// evict reports whether the room has been idle long enough to stop.  Once
// it returns true Enqueue refuses new events.
func (r *Room) evict() bool {
	now := r.now()
	if r.transport.Count(r.shopID) > 0 {
		r.lastActive = now
		return false
	}
	if now.Sub(r.lastActive) < r.opts.IdleTimeout || len(r.inbox) > 0 {
		return false
	}
	r.evMu.Lock()
	defer r.evMu.Unlock()
	if len(r.pending) > 0 || r.overflow {
		return false
	}
	r.exited = true
	return true
}

// Apply hands a mutation event to the room and waits until it has been
// applied and broadcast.
func (r *Room) Apply(ctx context.Context, ev MutationEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ShopID != r.shopID {
		return fmt.Errorf("%w: event for shop %s sent to room %s", ErrInvalidEvent, ev.ShopID, r.shopID)
	}
	_, err := r.do(ctx, request{kind: reqApply, event: ev})
	return err
}

// Subscribe joins sub to the room and sends it exactly one full state
// message: a snapshot, or the blocked set for blocking-only subscribers.
// Every later message to sub is ordered after it.
func (r *Room) Subscribe(ctx context.Context, sub *Subscriber) error {
	_, err := r.do(ctx, request{kind: reqSubscribe, sub: sub})
	return err
}

// Unsubscribe removes a subscriber.  It stops receiving immediately.
func (r *Room) Unsubscribe(id string) {
	r.transport.Leave(r.shopID, id)
	if r.transport.Count(r.shopID) == 0 {
		r.state.CompareAndSwap(int32(StateSubscribed), int32(StateIdle))
	}
}

// Resync sends sub a fresh full state message.
func (r *Room) Resync(ctx context.Context, sub *Subscriber) error {
	_, err := r.do(ctx, request{kind: reqResync, sub: sub})
	return err
}

// Snapshot returns the room's current snapshot.
func (r *Room) Snapshot(ctx context.Context) (model.ShopSnapshot, error) {
	res, err := r.do(ctx, request{kind: reqSnapshot})
	return res.snapshot, err
}

func (r *Room) do(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	select {
	case r.inbox <- req:
	case <-r.done:
		return response{}, ErrRoomClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res, res.err
	case <-r.done:
		select {
		case res := <-req.reply:
			return res, res.err
		default:
			return response{}, ErrRoomClosed
		}
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (r *Room) handle(ctx context.Context, req request) response {
	now := r.now()
	switch req.kind {
	case reqApply:
		return response{err: r.apply(ctx, req.event, now)}
	case reqSubscribe:
		if err := r.refresh(ctx, now, true); err != nil {
			return response{err: err}
		}
		r.transport.Join(r.shopID, req.sub)
		return response{err: r.sendState(req.sub, now)}
	case reqResync:
		if err := r.refresh(ctx, now, true); err != nil {
			return response{err: err}
		}
		return response{err: r.sendState(req.sub, now)}
	case reqSnapshot:
		if err := r.refresh(ctx, now, false); err != nil {
			return response{err: err}
		}
		return response{snapshot: r.snapshot(now)}
	}
	return response{err: fmt.Errorf("room %s: unknown request %d", r.shopID, req.kind)}
}

func (r *Room) settle() {
	if r.transport.Count(r.shopID) > 0 {
		r.setState(StateSubscribed)
		return
	}
	r.setState(StateIdle)
}

func (r *Room) tick(ctx context.Context) {
	if r.transport.Count(r.shopID) == 0 && (!r.loaded || r.opts.Notifier == nil) {
		return
	}
	if err := r.refresh(ctx, r.now(), false); err != nil {
		log.Printf("room %s: tick: %v", r.shopID, err)
	}
}

// refresh brings the cached state up to now.  The first use and a day
// change reload the shop and broadcast a snapshot.  fromStore, a failed
// event or a cache older than ReloadInterval re-read the store and
// broadcast what changed as a delta.  Otherwise the cache is recomputed.
func (r *Room) refresh(ctx context.Context, now time.Time, fromStore bool) error {
	if !r.loaded || r.date != scheduler.DayWindow(now).Date() {
		return r.reload(ctx, now, false, true)
	}
	if fromStore || r.stale || now.Sub(r.loadedAt) >= r.opts.ReloadInterval {
		return r.reload(ctx, now, false, false)
	}
	r.recompute(now, false)
	return nil
}

func (r *Room) apply(ctx context.Context, ev MutationEvent, now time.Time) error {
	staffID, date := ev.StaffID, ev.Date
	if ev.Booking != nil {
		if staffID == "" {
			staffID = ev.Booking.StaffID
		}
		if date == "" {
			date = ev.Booking.Date
		}
	}

	if !r.loaded || r.date != scheduler.DayWindow(now).Date() {
		return r.reload(ctx, now, true, true)
	}
	if date != "" && date != r.date {
		// Outside the live day only the booking form's blocking feed cares.
		r.notifyFromEvent(ev)
		return nil
	}

	r.setState(StateRecomputing)
	sctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()
	// The staff rows carry the chair pointer and the active flag, so they
	// are re-read with every event.
	staff, err := r.store.ListStaffByShop(sctx, r.shopID)
	if err != nil {
		return fmt.Errorf("room %s: list staff: %w", r.shopID, err)
	}
	if !sameMembers(r.staff, staff) || !hasStaff(staff, staffID) {
		return r.reload(ctx, now, true, true)
	}
	r.staff = staff

	list, err := r.store.ListBookingsForStaff(sctx, staffID, r.date)
	if err != nil {
		return fmt.Errorf("room %s: list bookings for staff %s: %w", r.shopID, staffID, err)
	}
	before := r.blocked[staffID]
	r.bookings[staffID] = list
	r.blocked[staffID] = r.blockedOf(list)

	r.recompute(now, true, staffID)
	r.sendNotices(before, r.blocked[staffID])
	return nil
}

func hasStaff(staff []model.Staff, id string) bool {
	if id == "" {
		return false
	}
	for _, s := range staff {
		if s.ID == id {
			return true
		}
	}
	return false
}

// sameMembers reports whether a and b list the same staff IDs.
func sameMembers(a, b []model.Staff) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, s := range a {
		ids[s.ID] = struct{}{}
	}
	for _, s := range b {
		if _, ok := ids[s.ID]; !ok {
			return false
		}
	}
	return true
}

// reload reads the whole shop for today.  With snapshot set, or when the
// cached state belongs to another day, it broadcasts a snapshot;
// otherwise it broadcasts the seats that changed as a delta.  Blocked
// notices and seat advances are only derived when the previous state
// belongs to the same day.
func (r *Room) reload(ctx context.Context, now time.Time, logIssues, snapshot bool) error {
	r.setState(StateRecomputing)
	date := scheduler.DayWindow(now).Date()

	sctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()
	staff, err := r.store.ListStaffByShop(sctx, r.shopID)
	if err != nil {
		return fmt.Errorf("room %s: list staff: %w", r.shopID, err)
	}
	all, err := r.store.ListBookingsForShop(sctx, r.shopID, date)
	if err != nil {
		return fmt.Errorf("room %s: list bookings for %s: %w", r.shopID, date, err)
	}

	sameDay := r.loaded && r.date == date
	prevBlocked, prevSeats := r.blocked, r.seats

	r.staff = staff
	r.date = date
	r.loaded = true
	r.stale = false
	r.loadedAt = now
	r.bookings = make(map[string][]model.Booking, len(staff))
	for _, b := range all {
		r.bookings[b.StaffID] = append(r.bookings[b.StaffID], b)
	}
	r.blocked = make(map[string][]model.BlockedInterval, len(r.bookings))
	for id, list := range r.bookings {
		r.blocked[id] = r.blockedOf(list)
	}
	full := snapshot || !sameDay
	if full {
		r.seats = r.aggregate(now, logIssues)
		r.version++
		snap := r.snapshot(now)
		r.broadcast(Message{Type: MsgSnapshot, ShopID: r.shopID, Version: r.version, Snapshot: &snap})
	} else {
		r.recompute(now, logIssues)
	}

	if sameDay {
		for id, ivs := range r.blocked {
			r.sendNotices(prevBlocked[id], ivs)
		}
		for id, ivs := range prevBlocked {
			if _, ok := r.blocked[id]; !ok {
				r.sendNotices(ivs, nil)
			}
		}
	}
	if full && sameDay {
		r.detectAdvances(prevSeats, r.seats, now)
	}
	return nil
}

// recompute re-runs the aggregation over the cached bookings and
// broadcasts a delta with every seat that changed.  Seats named in force
// are included even when unchanged.
func (r *Room) recompute(now time.Time, logIssues bool, force ...string) {
	r.setState(StateRecomputing)
	next := r.aggregate(now, logIssues)

	delta := make(map[string]*model.StaffSeat)
	for id, seat := range next {
		if prev, ok := r.seats[id]; !ok || !reflect.DeepEqual(prev, seat) {
			s := seat
			delta[id] = &s
		}
	}
	for id := range r.seats {
		if _, ok := next[id]; !ok {
			delta[id] = nil
		}
	}
	for _, id := range force {
		if _, ok := delta[id]; ok {
			continue
		}
		if seat, ok := next[id]; ok {
			s := seat
			delta[id] = &s
		}
	}

	prev := r.seats
	r.seats = next
	r.detectAdvances(prev, next, now)

	if len(delta) == 0 {
		return
	}
	r.version++
	r.broadcast(Message{Type: MsgDelta, ShopID: r.shopID, Version: r.version, Delta: delta})
}

func (r *Room) aggregate(now time.Time, logIssues bool) map[string]model.StaffSeat {
	res := scheduler.AggregateWindow(r.shopID, r.staff, r.bookings, now, scheduler.DayWindow(now))
	if logIssues {
		for _, is := range res.Issues {
			log.Printf("room %s: %v", r.shopID, is)
		}
	}
	return res.Snapshot.Seats
}

func (r *Room) blockedOf(list []model.Booking) []model.BlockedInterval {
	ivs, errs := scheduler.BlockedIntervals(list, r.opts.Location)
	for _, err := range errs {
		log.Printf("room %s: blocked interval skipped: %v", r.shopID, err)
	}
	return ivs
}

func (r *Room) snapshot(now time.Time) model.ShopSnapshot {
	seats := make(map[string]model.StaffSeat, len(r.seats))
	for id, s := range r.seats {
		seats[id] = s
	}
	return model.ShopSnapshot{
		ShopID:      r.shopID,
		Date:        r.date,
		Version:     r.version,
		GeneratedAt: now,
		Seats:       seats,
	}
}

// blockedSet lists every blocked interval of the day ordered by start.
func (r *Room) blockedSet() []model.BlockedInterval {
	var out []model.BlockedInterval
	for _, ivs := range r.blocked {
		out = append(out, ivs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].BookingID < out[j].BookingID
	})
	return out
}

// sendState sends the full state message matching sub's mode.  It carries
// the current version without advancing it.
func (r *Room) sendState(sub *Subscriber, now time.Time) error {
	r.setState(StateBroadcasting)
	if sub.Mode() == ModeBlocking {
		return r.transport.SendTo(r.shopID, sub.ID(), Message{
			Type:    MsgBlockedSet,
			ShopID:  r.shopID,
			Version: r.version,
			Blocked: r.blockedSet(),
		})
	}
	snap := r.snapshot(now)
	return r.transport.SendTo(r.shopID, sub.ID(), Message{
		Type:     MsgSnapshot,
		ShopID:   r.shopID,
		Version:  r.version,
		Snapshot: &snap,
	})
}

func (r *Room) broadcast(msg Message) {
	r.setState(StateBroadcasting)
	r.transport.Send(r.shopID, msg)
}

// sendNotices broadcasts blocked for intervals only in after and
// unblocked for intervals only in before.
func (r *Room) sendNotices(before, after []model.BlockedInterval) {
	key := func(iv model.BlockedInterval) string {
		return iv.BookingID + "|" + iv.Start.String() + "|" + iv.End.String()
	}
	old := make(map[string]struct{}, len(before))
	for _, iv := range before {
		old[key(iv)] = struct{}{}
	}
	cur := make(map[string]struct{}, len(after))
	for _, iv := range after {
		cur[key(iv)] = struct{}{}
	}
	for _, iv := range before {
		if _, ok := cur[key(iv)]; !ok {
			r.broadcast(Message{Type: MsgUnblocked, ShopID: r.shopID, Version: r.version, Interval: &iv})
		}
	}
	for _, iv := range after {
		if _, ok := old[key(iv)]; !ok {
			r.broadcast(Message{Type: MsgBlocked, ShopID: r.shopID, Version: r.version, Interval: &iv})
		}
	}
}

// notifyFromEvent derives a blocked or unblocked notice from the booking
// body of an event that falls outside the cached day.  An unblocked
// notice needs the event to say the booking occupied its slot before.
func (r *Room) notifyFromEvent(ev MutationEvent) {
	if ev.Booking == nil {
		return
	}
	b := *ev.Booking
	var typ MessageType
	switch {
	case b.Status.Occupies():
		typ = MsgBlocked
	case ev.PreviousStatus.Occupies():
		typ = MsgUnblocked
	default:
		return
	}
	b.Status = model.BookingConfirmed
	ivs, errs := scheduler.BlockedIntervals([]model.Booking{b}, r.opts.Location)
	if len(errs) > 0 || len(ivs) == 0 {
		return
	}
	r.broadcast(Message{Type: typ, ShopID: r.shopID, Version: r.version, Interval: &ivs[0]})
}

// detectAdvances hands a SeatAdvanced record to the notifier for every
// staff member whose current booking or queue head changed.
func (r *Room) detectAdvances(prev, next map[string]model.StaffSeat, now time.Time) {
	if r.opts.Notifier == nil || prev == nil {
		return
	}
	for id, seat := range next {
		old, ok := prev[id]
		if !ok {
			continue
		}
		pc, nc := currentID(old), currentID(seat)
		if pc == nc && headID(old) == headID(seat) {
			continue
		}
		go r.notify(SeatAdvanced{
			ShopID:            r.shopID,
			StaffID:           id,
			Date:              r.date,
			PreviousBookingID: pc,
			CurrentBookingID:  nc,
			NextBookingID:     headID(seat),
			OccurredAt:        now,
		})
	}
}

func (r *Room) notify(ev SeatAdvanced) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.NotifyTimeout)
	defer cancel()
	if err := r.opts.Notifier.SeatAdvanced(ctx, ev); err != nil {
		log.Printf("room %s: seat advanced for staff %s: %v", r.shopID, ev.StaffID, err)
	}
}

func currentID(s model.StaffSeat) string {
	if s.Seat.Current == nil {
		return ""
	}
	return s.Seat.Current.ID
}

func headID(s model.StaffSeat) string {
	if len(s.Seat.Queue) == 0 {
		return ""
	}
	return s.Seat.Queue[0].ID
}
