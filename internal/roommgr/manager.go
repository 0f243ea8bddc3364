// Package roommgr implements fleet-level concerns across many rooms: room
// creation, seat assignment, host migration, disconnect-driven bot
// takeover, and reaping rooms nobody is left to play. Every mutation it
// performs on a room is funneled through that room's single-writer
// Machine — the Manager itself never touches room.State.
package roommgr

import (
	"fmt"
	"log"
	"sync"
	"time"

	"liap-tui-server/internal/bot"
	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/metrics"
	"liap-tui-server/internal/room"
	"liap-tui-server/pkg/rng"
)

var (
	ErrRoomNotFound = fmt.Errorf("room not found")
	ErrNotHost      = fmt.Errorf("not host")
)

// entry is the Manager's bookkeeping for one room, layered on top of its
// Machine (which owns all actual game state).
type entry struct {
	machine  *room.Machine
	code     string
	hostSeat int
	created  time.Time
}

// RoomSummary is returned by ListRooms.
type RoomSummary struct {
	RoomID   string `json:"room_id"`
	RoomCode string `json:"room_code"`
	HostName string `json:"host_name"`
	Occupied int    `json:"occupied"`
	Total    int    `json:"total"`
	Started  bool   `json:"started"`
}

// Manager owns the fleet of live rooms.
type Manager struct {
	cfg  config.Config
	bots *bot.Driver
	hook room.CompletionHook

	mu     sync.RWMutex
	byID   map[string]*entry
	byCode map[string]string // code -> room id

	stopCh chan struct{}
}

// New creates a Manager and starts its background empty-room reaper.
func New(cfg config.Config, bots *bot.Driver, hook room.CompletionHook) *Manager {
	m := &Manager{
		cfg:    cfg,
		bots:   bots,
		hook:   hook,
		byID:   make(map[string]*entry),
		byCode: make(map[string]string),
		stopCh: make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Stop halts the reaper and every room's Machine.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		e.machine.Stop()
	}
}

func (m *Manager) newShuffler() cards.Shuffler {
	src, err := rng.NewSource()
	if err != nil {
		log.Printf("roommgr: falling back to seed-from-time source: %v", err)
		src, _ = rng.NewSourceWithSeed([]byte(time.Now().String()))
	}
	return src
}

// CreateRoom allocates a room, seats hostName in seat 0, and returns its
// identifiers.
func (m *Manager) CreateRoom(hostPlayerID, hostName string) (roomID, roomCode string, err error) {
	roomID, err = newRoomID()
	if err != nil {
		return "", "", err
	}
	roomCode, err = newRoomCode()
	if err != nil {
		return "", "", err
	}

	mach := room.NewMachine(roomID, roomCode, m.cfg, m.newShuffler, m.bots, m.hook)
	mach.Start()
	if m.bots != nil {
		m.bots.Register(roomID, mach)
	}

	e := &entry{machine: mach, code: roomCode, hostSeat: 0, created: time.Now()}

	m.mu.Lock()
	m.byID[roomID] = e
	m.byCode[roomCode] = roomID
	m.mu.Unlock()
	metrics.RoomsCreatedTotal.Inc()
	metrics.RoomsActive.Inc()

	res := make(chan room.ActionResult, 1)
	mach.Enqueue(room.Action{Kind: room.ActionJoin, PlayerID: hostPlayerID, Name: hostName, Reply: res})
	<-res

	return roomID, roomCode, nil
}

// JoinRoom assigns the lowest vacant seat in roomCode's room to playerID,
// or rebinds an existing seat of the same name (reconnect case) — the
// room.Machine's join handler finds that seat by name and hands it back to
// its human, so a reconnect goes through JoinRoom like a fresh join.
func (m *Manager) JoinRoom(roomCode, playerID, playerName string) (roomID string, seat int, err error) {
	m.mu.RLock()
	id, ok := m.byCode[roomCode]
	var e *entry
	if ok {
		e = m.byID[id]
	}
	m.mu.RUnlock()
	if !ok || e == nil {
		return "", 0, ErrRoomNotFound
	}

	res := make(chan room.ActionResult, 1)
	if !e.machine.Enqueue(room.Action{Kind: room.ActionJoin, PlayerID: playerID, Name: playerName, Reply: res}) {
		return "", 0, ErrRoomNotFound
	}
	result := <-res
	if result.Err != nil {
		return "", 0, result.Err
	}
	if m.bots != nil {
		// A human just took (or retook) this seat; cancel any bot timer still
		// outstanding from a previous disconnect so it can't act on their behalf.
		m.bots.CancelSeat(id, result.Seat)
	}
	m.mu.Lock()
	m.recomputeHost(e)
	m.mu.Unlock()
	return id, result.Seat, nil
}

// AddBot fills the lowest vacant seat with a bot. issuedBySeat must be the
// room's current host.
func (m *Manager) AddBot(roomID string, issuedBySeat int) (seat int, err error) {
	e, ok := m.lookup(roomID)
	if !ok {
		return 0, ErrRoomNotFound
	}
	if issuedBySeat != e.hostSeat {
		return 0, ErrNotHost
	}
	res := make(chan room.ActionResult, 1)
	if !e.machine.Enqueue(room.Action{Kind: room.ActionAddBot, PlayerID: "bot-" + fmt.Sprint(time.Now().UnixNano()), Name: "Bot", Reply: res}) {
		return 0, ErrRoomNotFound
	}
	result := <-res
	return result.Seat, result.Err
}

// RemovePlayer is pre-game only, enforced inside the room.Machine itself.
func (m *Manager) RemovePlayer(roomID string, seat, issuedBySeat int) error {
	e, ok := m.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if issuedBySeat != e.hostSeat {
		return ErrNotHost
	}
	res := make(chan room.ActionResult, 1)
	if !e.machine.Enqueue(room.Action{Kind: room.ActionRemovePlayer, Seat: seat, Reply: res}) {
		return ErrRoomNotFound
	}
	result := <-res
	if result.Err == nil {
		m.mu.Lock()
		m.recomputeHost(e)
		m.mu.Unlock()
	}
	return result.Err
}

// LeaveRoom vacates (pre-game) or bot-flips (in-progress) seat, migrating
// host if the departing seat was host.
func (m *Manager) LeaveRoom(roomID string, seat int) error {
	e, ok := m.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	res := make(chan room.ActionResult, 1)
	if !e.machine.Enqueue(room.Action{Kind: room.ActionLeave, Seat: seat, Reply: res}) {
		return ErrRoomNotFound
	}
	result := <-res
	m.mu.Lock()
	m.recomputeHost(e)
	m.mu.Unlock()
	return result.Err
}

// StartGame transitions a full lobby into PREPARATION. issuedBySeat must be
// the room's current host.
func (m *Manager) StartGame(roomID string, issuedBySeat int) error {
	e, ok := m.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if issuedBySeat != e.hostSeat {
		return ErrNotHost
	}
	res := make(chan room.ActionResult, 1)
	if !e.machine.Enqueue(room.Action{Kind: room.ActionStartGame, Reply: res}) {
		return ErrRoomNotFound
	}
	return (<-res).Err
}

// SetConnected flips a seat's connectivity. It is a priority action: it
// must preempt any backlog of queued gameplay actions so a disconnect is
// never delayed behind stale plays.
func (m *Manager) SetConnected(roomID string, seat int, connected bool) error {
	e, ok := m.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	res := make(chan room.ActionResult, 1)
	if !e.machine.EnqueuePriority(room.Action{Kind: room.ActionSetConnected, Seat: seat, Connected: connected, Reply: res}) {
		return ErrRoomNotFound
	}
	return (<-res).Err
}

// Dispatch enqueues a gameplay action (declare/play/redeal/ready) into
// roomID's inbound queue.
func (m *Manager) Dispatch(roomID string, a room.Action) error {
	e, ok := m.lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !e.machine.Enqueue(a) {
		return ErrRoomNotFound
	}
	return nil
}

// Machine exposes a room's Machine for the gateway to subscribe outboxes
// and read the event log directly.
func (m *Manager) Machine(roomID string) (*room.Machine, bool) {
	e, ok := m.lookup(roomID)
	if !ok {
		return nil, false
	}
	return e.machine, true
}

// ListRooms summarizes every non-terminal room.
func (m *Manager) ListRooms(joinableOnly bool) []RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RoomSummary
	for id, e := range m.byID {
		v := e.machine.Snapshot()
		if v.Phase == room.PhaseGameOver {
			continue
		}
		occupied := 0
		var hostName string
		for _, p := range v.Players {
			if p.PlayerID != "" {
				occupied++
			}
		}
		if e.hostSeat >= 0 && e.hostSeat < 4 {
			hostName = v.Players[e.hostSeat].Name
		}
		started := v.Phase != room.PhaseLobby
		if joinableOnly && (started || occupied >= 4) {
			continue
		}
		out = append(out, RoomSummary{
			RoomID:   id,
			RoomCode: e.code,
			HostName: hostName,
			Occupied: occupied,
			Total:    4,
			Started:  started,
		})
	}
	return out
}

func (m *Manager) lookup(roomID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[roomID]
	return e, ok
}

// recomputeHost assigns host to the lowest-seated connected human,
// per the host-migration rule.
func (m *Manager) recomputeHost(e *entry) {
	v := e.machine.Snapshot()
	for seat, p := range v.Players {
		if p.PlayerID != "" && !p.Bot {
			e.hostSeat = seat
			return
		}
	}
	// No humans left: keep the previous host seat; reapLoop will close the
	// room once the empty grace period elapses, whatever its phase.
}

// reapLoop closes rooms with no connected humans once ROOM_EMPTY_GRACE has
// elapsed, per the "destroyed when reference count of connected humans
// falls to zero for a grace period" lifecycle rule.
func (m *Manager) reapLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	emptySince := make(map[string]time.Time)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.Lock()
			for id, e := range m.byID {
				v := e.machine.Snapshot()
				anyHuman := false
				for _, p := range v.Players {
					if p.PlayerID != "" && p.Connected && !p.Bot {
						anyHuman = true
						break
					}
				}
				if anyHuman {
					delete(emptySince, id)
					continue
				}
				since, tracked := emptySince[id]
				if !tracked {
					emptySince[id] = time.Now()
					continue
				}
				if time.Since(since) >= m.cfg.RoomEmptyGrace {
					e.machine.Stop()
					if m.bots != nil {
						m.bots.Unregister(id)
					}
					delete(m.byID, id)
					delete(m.byCode, e.code)
					delete(emptySince, id)
					metrics.RoomsActive.Dec()
					metrics.RecordRoomClosed("empty_grace", time.Since(e.created).Seconds())
				}
			}
			m.mu.Unlock()
		}
	}
}
