package eventlog

import (
	"sync"
	"time"
)

// DefaultRetransmitTimeout is how long an unacked event waits before resend.
const DefaultRetransmitTimeout = 2 * time.Second

// DefaultRetransmitLimit is the number of failed retransmits tolerated
// before a connection is considered dead.
const DefaultRetransmitLimit = 5

// Sender writes one event to a connection's transport. Outbox.Push returns
// its error to the caller; Outbox.Retransmit ignores it and judges a
// connection dead only by the retransmit limit.
type Sender func(Event) error

type pendingEntry struct {
	event    Event
	sentAt   time.Time
	attempts int
}

// Outbox tracks one connection's in-flight (unacked) outbound events and
// drives retransmission. It does not own the connection's transport; it
// calls back into a Sender to perform the actual write.
type Outbox struct {
	mu                sync.Mutex
	send              Sender
	pending           map[uint64]*pendingEntry
	retransmitTimeout time.Duration
	retransmitLimit   int
}

// NewOutbox creates an Outbox that writes through send.
func NewOutbox(send Sender) *Outbox {
	return &Outbox{
		send:              send,
		pending:           make(map[uint64]*pendingEntry),
		retransmitTimeout: DefaultRetransmitTimeout,
		retransmitLimit:   DefaultRetransmitLimit,
	}
}

// SetRetransmitPolicy overrides the default timeout/limit.
func (o *Outbox) SetRetransmitPolicy(timeout time.Duration, limit int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retransmitTimeout = timeout
	o.retransmitLimit = limit
}

// Push writes ev immediately and tracks it pending an ack.
func (o *Outbox) Push(ev Event) error {
	o.mu.Lock()
	o.pending[ev.Sequence] = &pendingEntry{event: ev, sentAt: time.Now()}
	o.mu.Unlock()

	return o.send(ev)
}

// Ack removes every pending entry with sequence <= seq. Double-acking (or
// acking a sequence never sent) is a no-op.
func (o *Outbox) Ack(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for s := range o.pending {
		if s <= seq {
			delete(o.pending, s)
		}
	}
}

// PendingCount reports how many events await acknowledgement.
func (o *Outbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Retransmit resends any pending event older than the retransmit timeout.
// It returns true if the connection should be considered dead because some
// event exceeded the retransmit limit.
func (o *Outbox) Retransmit(now time.Time) bool {
	var toResend []*pendingEntry

	o.mu.Lock()
	for _, entry := range o.pending {
		if now.Sub(entry.sentAt) >= o.retransmitTimeout {
			toResend = append(toResend, entry)
		}
	}
	o.mu.Unlock()

	dead := false
	for _, entry := range toResend {
		entry.attempts++
		if entry.attempts > o.retransmitLimit {
			dead = true
			continue
		}
		entry.sentAt = now
		_ = o.send(entry.event)
	}
	return dead
}
