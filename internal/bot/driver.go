// Package bot drives decisions for any bot-controlled seat: it watches
// phase/turn notifications pushed by a room.Machine and, after a
// human-like delay, enqueues a valid action back into that room's inbound
// queue — exactly as if a human had submitted it.
package bot

import (
	"math/rand"
	"sync"
	"time"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/metrics"
	"liap-tui-server/internal/room"
)

// RoomHandle is the subset of room.Machine the driver needs. Declared as
// an interface so tests can fake a room without spinning up the actor.
type RoomHandle interface {
	Hand(seat int) cards.Hand
	DeclareContext(seat int) (yourTurn, isLast bool, sumSoFar int)
	TrickContext(seat int) (yourTurn bool, lead cards.Play, hasLead bool)
	WeakRedealPending(seat int) bool
	IsBot(seat int) bool
	Enqueue(a room.Action) bool
}

// Driver schedules and dedups bot decisions across every room it is told
// about. One Driver is shared by the whole server; rooms register
// themselves as they're created via Register, and Unregister on close.
type Driver struct {
	cfg config.Config
	rnd *rand.Rand

	mu      sync.Mutex
	rooms   map[string]RoomHandle
	timers  map[timerKey]*time.Timer
	phaseIt map[timerKey]int // dedup token: a fired timer checks this is still current
}

type timerKey struct {
	roomID string
	seat   int
}

// New creates a Driver. cfg supplies the [min,max] decision delay window.
func New(cfg config.Config) *Driver {
	return &Driver{
		cfg:     cfg,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		rooms:   make(map[string]RoomHandle),
		timers:  make(map[timerKey]*time.Timer),
		phaseIt: make(map[timerKey]int),
	}
}

// Register makes roomID's handle available for scheduled decisions to act
// against. Call once per room, right after the room.Machine starts.
func (d *Driver) Register(roomID string, h RoomHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomID] = h
}

// Unregister drops a room's handle and cancels any outstanding timers for
// it, e.g. on room close.
func (d *Driver) Unregister(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, roomID)
	for k, t := range d.timers {
		if k.roomID == roomID {
			t.Stop()
			delete(d.timers, k)
		}
	}
}

// CancelSeat cancels any outstanding decision timer for (roomID, seat) and
// bumps its dedup token so a timer already in flight (racing this call) is
// a no-op when it fires. Call this whenever a seat stops being bot
// controlled, e.g. a human reconnecting — otherwise a decision queued
// before the reconnect can still fire and act on the human's behalf.
func (d *Driver) CancelSeat(roomID string, seat int) {
	key := timerKey{roomID: roomID, seat: seat}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
	d.phaseIt[key]++
}

// NotifyPhaseChanged implements room.BotNotifier. Entering DECLARATION or
// PREPARATION schedules a decision for whichever bot seat must act first;
// other phases need no scheduling here (TURN is driven by
// NotifyTurnStarted instead).
func (d *Driver) NotifyPhaseChanged(roomID string, phase room.Phase, view room.RoomView) {
	switch phase {
	case room.PhaseDeclaration:
		for seat, pv := range view.Players {
			if pv.Bot {
				d.schedule(roomID, seat, "declare", d.actDeclareIfTurn)
			}
		}
	case room.PhasePreparation:
		for seat, pv := range view.Players {
			if pv.Bot {
				d.schedule(roomID, seat, "redeal", d.actRedealIfPending)
			}
		}
	}
}

// NotifyTurnStarted implements room.BotNotifier.
func (d *Driver) NotifyTurnStarted(roomID string, seat int, view room.RoomView) {
	if view.Players[seat].Bot {
		d.schedule(roomID, seat, "play", d.actTurn)
	}
}

// NotifyDeclareTurn implements room.BotNotifier. It is fired after every
// DECLARE so the next seat in DeclareOrder gets a fresh timer — without
// this, a bot seat whose timer fired out of turn would no-op forever and
// the room would hang waiting for a declaration nothing ever produces.
func (d *Driver) NotifyDeclareTurn(roomID string, seat int, view room.RoomView) {
	if view.Players[seat].Bot {
		d.schedule(roomID, seat, "declare", d.actDeclareIfTurn)
	}
}

// NotifyRedealTurn implements room.BotNotifier, mirroring NotifyDeclareTurn
// for the PREPARATION redeal-offer sequence.
func (d *Driver) NotifyRedealTurn(roomID string, seat int, view room.RoomView) {
	if view.Players[seat].Bot {
		d.schedule(roomID, seat, "redeal", d.actRedealIfPending)
	}
}

// schedule registers a one-shot timer for (roomID, seat) after a delay
// uniformly drawn from [BotDelayMin, BotDelayMax], cancelling whatever
// timer previously existed for that key so at most one decision is ever
// outstanding per seat at a time.
func (d *Driver) schedule(roomID string, seat int, action string, act func(h RoomHandle, roomID string, seat int)) {
	key := timerKey{roomID: roomID, seat: seat}

	d.mu.Lock()
	if existing, ok := d.timers[key]; ok {
		existing.Stop()
	}
	d.phaseIt[key]++
	myToken := d.phaseIt[key]
	delay := d.randomDelay()
	d.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		d.mu.Lock()
		h, ok := d.rooms[roomID]
		current := d.phaseIt[key] == myToken
		if current {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		if !ok || !current {
			return
		}
		metrics.RecordBotDecision(action, delay.Seconds())
		act(h, roomID, seat)
	})

	d.mu.Lock()
	d.timers[key] = timer
	d.mu.Unlock()
}

func (d *Driver) randomDelay() time.Duration {
	lo := d.cfg.BotDelayMin
	hi := d.cfg.BotDelayMax
	if hi <= lo {
		return lo
	}
	span := hi - lo
	return lo + time.Duration(d.rnd.Int63n(int64(span)))
}
