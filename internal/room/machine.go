package room

import (
	"log"
	"sync"
	"time"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/metrics"
)

// BotNotifier lets the Machine push phase/turn transitions to the bot
// package without the room package importing it back (bot imports room).
type BotNotifier interface {
	NotifyPhaseChanged(roomID string, phase Phase, view RoomView)
	NotifyTurnStarted(roomID string, seat int, view RoomView)
	NotifyDeclareTurn(roomID string, seat int, view RoomView)
	NotifyRedealTurn(roomID string, seat int, view RoomView)
}

// CompletionHook is invoked once, from inside the Machine's own goroutine,
// when a room reaches GAME_OVER. Implementations must not block long.
type CompletionHook interface {
	OnGameOver(summary RoomSummary, events []eventlog.Event)
}

// RoomSummary is the header record an archival sink prefixes to a room's
// full event stream.
type RoomSummary struct {
	RoomID       string
	RoundsPlayed int
	FinalScores  [4]int
	Winner       int
	EndedAt      time.Time
}

// Machine is the per-room single-writer actor: every mutation of State
// flows through its inbound/priority channels, mirroring the teacher's
// table.go gameLoop (actions channel + ticker, no external locking needed
// because nothing outside this goroutine ever writes State).
type Machine struct {
	RoomID   string
	RoomCode string

	cfg config.Config

	mu    sync.RWMutex // guards State for Snapshot (read-only elsewhere)
	state State

	inbound  chan Action
	priority chan Action
	stopChan chan struct{}
	wg       sync.WaitGroup

	Log *eventlog.Log

	newShuffler func() cards.Shuffler

	bots BotNotifier
	hook CompletionHook

	tickRate time.Duration

	turnResultsUntil time.Time
	pendingReady     map[int]bool
}

// NewMachine constructs a room Machine in LOBBY phase. newShuffler is
// invoked once per deal so each round gets a fresh seeded source.
func NewMachine(roomID, roomCode string, cfg config.Config, newShuffler func() cards.Shuffler, bots BotNotifier, hook CompletionHook) *Machine {
	m := &Machine{
		RoomID:       roomID,
		RoomCode:     roomCode,
		cfg:          cfg,
		state:        State{Phase: PhaseLobby, StarterSeat: -1},
		inbound:      make(chan Action, cfg.InboundQueueSize),
		priority:     make(chan Action, cfg.InboundQueueSize),
		stopChan:     make(chan struct{}),
		Log:          eventlog.NewLog(roomID, cfg.EventRingSize, cfg.OfflineQueueSize),
		newShuffler:  newShuffler,
		bots:         bots,
		hook:         hook,
		tickRate:     50 * time.Millisecond,
		pendingReady: make(map[int]bool),
	}
	for i := range m.state.Players {
		m.state.Players[i] = Player{Seat: i}
	}
	return m
}

// Start begins the game loop in its own goroutine.
func (m *Machine) Start() {
	m.wg.Add(1)
	go m.gameLoop()
}

// Stop shuts the Machine down and waits for the loop to exit.
func (m *Machine) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

// Enqueue submits an action for asynchronous processing. Returns false if
// the room has stopped or the inbound queue is full.
func (m *Machine) Enqueue(a Action) bool {
	select {
	case m.inbound <- a:
		return true
	case <-m.stopChan:
		return false
	default:
		return false
	}
}

// EnqueuePriority submits a connection-lifecycle action ahead of regular
// gameplay actions, per the requirement that disconnect events preempt
// queued gameplay actions.
func (m *Machine) EnqueuePriority(a Action) bool {
	select {
	case m.priority <- a:
		return true
	case <-m.stopChan:
		return false
	default:
		return false
	}
}

// gameLoop is the sole mutator of State. It mirrors the teacher's
// gameLoop/tick split: a non-blocking priority check runs before every
// blocking select so disconnects never queue behind a backlog of plays.
func (m *Machine) gameLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.tickRate)
	defer ticker.Stop()

	for {
		select {
		case a := <-m.priority:
			m.withLock(func() { m.dispatch(a) })
			continue
		default:
		}

		select {
		case <-m.stopChan:
			return
		case a := <-m.priority:
			m.withLock(func() { m.dispatch(a) })
		case a := <-m.inbound:
			m.withLock(func() { m.dispatch(a) })
		case <-ticker.C:
			m.withLock(m.tick)
		}
	}
}

// withLock serializes State mutation against Snapshot's RLock. Only the
// gameLoop goroutine ever takes the write lock, so this never contends
// with itself — it exists purely so concurrent readers see a consistent
// State.
func (m *Machine) withLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *Machine) dispatch(a Action) {
	metrics.RecordAction(string(a.Kind), len(m.inbound))
	defer func() {
		if r := recover(); r != nil {
			m.handleInvariantViolation(&InvariantError{Reason: "panic in action handler"})
			reply(a, ActionResult{Err: ErrWrongPhase})
			log.Printf("room %s: recovered panic handling %s: %v", m.RoomID, a.Kind, r)
		}
	}()

	switch a.Kind {
	case ActionJoin:
		m.handleJoin(a)
	case ActionAddBot:
		m.handleAddBot(a)
	case ActionRemovePlayer:
		m.handleRemovePlayer(a)
	case ActionLeave:
		m.handleLeave(a)
	case ActionSetConnected:
		m.handleSetConnected(a)
	case ActionRequestRedeal:
		m.handleRedealDecision(a, true)
	case ActionDeclineRedeal:
		m.handleRedealDecision(a, false)
	case ActionDeclare:
		m.handleDeclare(a)
	case ActionPlay:
		m.handlePlay(a)
	case ActionStartGame:
		m.handleStartGame(a)
	case ActionPlayerReady:
		m.handlePlayerReady(a)
	default:
		reply(a, ActionResult{Err: ErrWrongPhase})
	}
}

// tick drives time-based phase transitions: the TURN_RESULTS display
// interval and any other phase with no player-driven trigger.
func (m *Machine) tick() {
	switch m.state.Phase {
	case PhaseTurnResults:
		m.tickTurnResults()
	}
}

func (m *Machine) emit(kind eventlog.Kind, payload any) eventlog.Event {
	return m.Log.Append(kind, payload)
}

func (m *Machine) emitPhaseChange() {
	m.emit(eventlog.KindPhaseChange, m.snapshotLocked())
	if m.bots != nil {
		m.bots.NotifyPhaseChanged(m.RoomID, m.state.Phase, m.snapshotLocked())
	}
}

func (m *Machine) handleInvariantViolation(err *InvariantError) {
	metrics.RecordInvariantViolation(err.Reason)
	m.state.Invariant3Strikes++
	m.emit(eventlog.KindRoomError, map[string]any{"reason": err.Reason})
	if m.state.Invariant3Strikes >= 3 {
		m.state.Phase = PhaseGameOver
		m.emit(eventlog.KindGameEnded, map[string]any{"reason": "internal"})
		m.emitPhaseChange()
		m.runCompletionHook()
	}
}

func (m *Machine) runCompletionHook() {
	if m.hook == nil {
		return
	}
	var finals [4]int
	winner := -1
	best := -1
	for i, p := range m.state.Players {
		finals[i] = p.Score
		if p.Score > best {
			best = p.Score
			winner = i
		}
	}
	summary := RoomSummary{
		RoomID:       m.RoomID,
		RoundsPlayed: m.state.RoundNumber,
		FinalScores:  finals,
		Winner:       winner,
		EndedAt:      time.Now(),
	}
	events, _ := m.Log.Resync(0)
	metrics.GamesCompletedTotal.Inc()
	m.hook.OnGameOver(summary, events)
}

// Snapshot returns a read-only view of room state, safe for concurrent use.
func (m *Machine) Snapshot() RoomView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Hand returns a copy of seat's current hand. Used by the bot driver,
// which is allowed to see the hand of the seat it controls.
func (m *Machine) Hand(seat int) cards.Hand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Players[seat].Hand
}

// IsBot reports whether seat is currently bot controlled. The bot driver
// checks this immediately before acting so a decision timer queued before a
// reconnect can't act on a seat a human has since retaken.
func (m *Machine) IsBot(seat int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Players[seat].Bot
}

// DeclareContext reports what a seat needs to know to pick a DECLARE value:
// whether it is that seat's turn, whether it is the last declarer of the
// round, and the running sum of declarations made so far.
func (m *Machine) DeclareContext(seat int) (yourTurn, isLast bool, sumSoFar int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Phase != PhaseDeclaration || m.state.DeclareIdx >= len(m.state.DeclareOrder) {
		return false, false, 0
	}
	yourTurn = m.state.DeclareOrder[m.state.DeclareIdx] == seat
	isLast = m.state.DeclareIdx == len(m.state.DeclareOrder)-1
	for _, s := range m.state.DeclareOrder[:m.state.DeclareIdx] {
		sumSoFar += m.state.Players[s].Declared
	}
	return yourTurn, isLast, sumSoFar
}

// TrickContext reports the state of the in-progress trick relevant to a
// following decision: the lead play (if any) and whether seat is on turn.
func (m *Machine) TrickContext(seat int) (yourTurn bool, lead cards.Play, hasLead bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Phase != PhaseTurn {
		return false, cards.Play{}, false
	}
	yourTurn = m.state.TurnSeat == seat
	trick := m.state.CurrentTrick
	if trick.Played[trick.Leader] {
		return yourTurn, trick.Plays[trick.Leader], true
	}
	return yourTurn, cards.Play{}, false
}

// WeakRedealPending reports whether seat currently has an outstanding
// redeal offer awaiting its decision.
func (m *Machine) WeakRedealPending(seat int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Phase != PhasePreparation {
		return false
	}
	if m.state.RedealRequests[seat] {
		return false
	}
	for _, s := range rotateFrom(m.state.StarterSeat, m.weakSeatsLocked()) {
		if s == seat {
			return true
		}
		if !m.state.RedealRequests[s] {
			return s == seat
		}
	}
	return false
}

func (m *Machine) weakSeatsLocked() []int {
	var weak []int
	for i, p := range m.state.Players {
		if cards.IsWeak(p.Hand) {
			weak = append(weak, i)
		}
	}
	return weak
}

func (m *Machine) snapshotLocked() RoomView {
	v := RoomView{
		RoomID:      m.RoomID,
		Phase:       m.state.Phase,
		RoundNumber: m.state.RoundNumber,
		TurnSeat:    m.state.TurnSeat,
	}
	for i, p := range m.state.Players {
		v.Players[i] = PlayerView{
			Seat:      p.Seat,
			PlayerID:  p.PlayerID,
			Name:      p.Name,
			Connected: p.Connected,
			Bot:       p.Bot,
			HandSize:  p.Hand.Len(),
			Declared:  p.Declared,
			Captured:  p.Captured,
			Score:     p.Score,
		}
	}
	return v
}
