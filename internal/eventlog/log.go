package eventlog

import (
	"sync"
	"time"
)

// subscriber is one connection currently bound to the room, tied to the
// seat it represents so broadcast can route to the outbox or the seat's
// offline queue.
type subscriber struct {
	connID string
	seat   int
	outbox *Outbox
}

// Log is the per-room event log: it owns the Ring, the set of connections
// currently bound to the room, and the per-seat offline queues. append/
// broadcast/ack/resync are the only entry points other components use —
// nothing outside this package mutates Ring or OfflineQueue state directly.
type Log struct {
	mu               sync.Mutex
	ring             *Ring
	subs             map[string]*subscriber // connID -> subscriber
	offline          map[int]*OfflineQueue  // seat -> queue
	seatDisconnected map[int]bool
	offlineQueueSize int
}

// NewLog creates a Log for roomID with the given ring and offline queue
// sizes (pass 0 for either to use the package defaults).
func NewLog(roomID string, ringSize, offlineQueueSize int) *Log {
	return &Log{
		ring:             NewRing(roomID, ringSize),
		subs:             make(map[string]*subscriber),
		offline:          make(map[int]*OfflineQueue),
		seatDisconnected: make(map[int]bool),
		offlineQueueSize: offlineQueueSize,
	}
}

// Subscribe binds a connection's outbox to seat. Any event appended after
// this call is delivered to outbox while the seat remains connected.
func (l *Log) Subscribe(connID string, seat int, outbox *Outbox) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[connID] = &subscriber{connID: connID, seat: seat, outbox: outbox}
}

// Unsubscribe removes a connection's binding, e.g. on transport close.
func (l *Log) Unsubscribe(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, connID)
}

// SetSeatOffline marks whether seat's original human is currently
// disconnected (bot-controlled). While true, broadcast routes that seat's
// events to its offline queue instead of any bound connection's outbox,
// even if a bot's own connection (there is none) might otherwise receive it.
func (l *Log) SetSeatOffline(seat int, offline bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seatDisconnected[seat] = offline
	if offline {
		if _, ok := l.offline[seat]; !ok {
			l.offline[seat] = NewOfflineQueue(l.offlineQueueSize)
		}
	}
}

// DrainOffline removes and returns every event queued for seat while it was
// disconnected, in order. It only empties the queue; whether new events
// are routed to it is decided by SetSeatOffline.
func (l *Log) DrainOffline(seat int) []Event {
	l.mu.Lock()
	q, ok := l.offline[seat]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Drain()
}

// Append assigns the next sequence number, stores the event in the ring,
// and broadcasts it to every current subscriber per seat connectivity.
func (l *Log) Append(kind Kind, payload any) Event {
	ev := l.ring.Append(kind, payload, time.Now())
	l.broadcast(ev)
	return ev
}

// AppendPrivate records ev in the ring (so its sequence number and resync
// entry exist like any other event) but delivers it live only to seat,
// never to the other three subscribers. Resync of a reconnecting client
// still returns the raw stored payload; redacting other seats' hands from
// a resync response is the gateway's job at serialization time, since it
// is the only layer that knows which seat is asking.
func (l *Log) AppendPrivate(kind Kind, payload any, seat int) Event {
	ev := l.ring.Append(kind, payload, time.Now())
	l.SendToSeat(seat, ev)
	return ev
}

// broadcast delivers ev to every connected human's outbox, and to the
// offline queue of any seat whose human is currently disconnected.
func (l *Log) broadcast(ev Event) {
	l.mu.Lock()
	subsCopy := make([]*subscriber, 0, len(l.subs))
	for _, s := range l.subs {
		subsCopy = append(subsCopy, s)
	}
	offlineSeats := make(map[int]*OfflineQueue, len(l.offline))
	for seat, q := range l.offline {
		if l.seatDisconnected[seat] {
			offlineSeats[seat] = q
		}
	}
	l.mu.Unlock()

	connectedSeats := make(map[int]bool)
	for _, s := range subsCopy {
		if offlineSeats[s.seat] != nil {
			continue // this seat's human is disconnected; route to offline queue below
		}
		connectedSeats[s.seat] = true
		_ = s.outbox.Push(ev)
	}

	for seat, q := range offlineSeats {
		if connectedSeats[seat] {
			continue
		}
		q.Push(ev)
	}
}

// SendTo delivers ev only to one connection (used for action_rejected,
// which is never broadcast).
func (l *Log) SendTo(connID string, ev Event) {
	l.mu.Lock()
	s, ok := l.subs[connID]
	l.mu.Unlock()
	if !ok {
		return
	}
	_ = s.outbox.Push(ev)
}

// SendToSeat delivers ev only to whichever connection currently represents
// seat (if any), or queues it for that seat if it is offline. Used for
// per-seat private events such as hand_dealt, which must never broadcast
// to the other three seats.
func (l *Log) SendToSeat(seat int, ev Event) {
	l.mu.Lock()
	var target *subscriber
	for _, s := range l.subs {
		if s.seat == seat {
			target = s
			break
		}
	}
	offline := l.seatDisconnected[seat]
	q := l.offline[seat]
	l.mu.Unlock()

	if offline && q != nil {
		q.Push(ev)
		return
	}
	if target != nil {
		_ = target.outbox.Push(ev)
	}
}

// Ack forwards a client's ack to its connection's outbox.
func (l *Log) Ack(connID string, seq uint64) {
	l.mu.Lock()
	s, ok := l.subs[connID]
	l.mu.Unlock()
	if !ok {
		return
	}
	s.outbox.Ack(seq)
}

// Resync returns the tail of the ring from fromSequence+1 onward, or
// ErrTooOld if fromSequence predates the ring's floor (a fromSequence of 0
// returns the whole retained ring instead).
func (l *Log) Resync(fromSequence uint64) ([]Event, error) {
	return l.ring.Resync(fromSequence)
}

// Sequence returns the room's current (most recently assigned) sequence.
func (l *Log) Sequence() uint64 {
	return l.ring.Sequence()
}
