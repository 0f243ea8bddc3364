package room

import "liap-tui-server/internal/eventlog"

func (m *Machine) firstVacantSeat() int {
	for i, p := range m.state.Players {
		if p.PlayerID == "" {
			return i
		}
	}
	return -1
}

// seatOfName finds a seat already occupied by name, if any — used to
// detect the reconnect case (a returning player rejoining under a fresh
// connection id rather than a brand new player).
func (m *Machine) seatOfName(name string) int {
	for i, p := range m.state.Players {
		if p.Name == name && p.Name != "" {
			return i
		}
	}
	return -1
}

func (m *Machine) handleJoin(a Action) {
	if seat := m.seatOfName(a.Name); seat != -1 {
		p := &m.state.Players[seat]
		p.PlayerID = a.PlayerID
		p.Connected = true
		p.Bot = p.OriginalBot
		m.Log.SetSeatOffline(seat, false)
		reply(a, ActionResult{Seat: seat})
		return
	}
	if m.state.Phase != PhaseLobby {
		reply(a, ActionResult{Err: ErrGameAlreadyStarted})
		return
	}
	seat := m.firstVacantSeat()
	if seat == -1 {
		reply(a, ActionResult{Err: ErrRoomFull})
		return
	}
	m.state.Players[seat] = Player{
		Seat:      seat,
		PlayerID:  a.PlayerID,
		Name:      a.Name,
		Connected: true,
	}
	m.emit(eventlog.KindRoomJoined, map[string]any{"seat": seat, "name": a.Name})
	m.emit(eventlog.KindRoomUpdate, m.snapshotLocked())
	reply(a, ActionResult{Seat: seat})
}

func (m *Machine) handleAddBot(a Action) {
	if m.state.Phase != PhaseLobby {
		reply(a, ActionResult{Err: ErrGameAlreadyStarted})
		return
	}
	seat := m.firstVacantSeat()
	if seat == -1 {
		reply(a, ActionResult{Err: ErrRoomFull})
		return
	}
	m.state.Players[seat] = Player{
		Seat:        seat,
		PlayerID:    a.PlayerID,
		Name:        a.Name,
		Connected:   true,
		Bot:         true,
		OriginalBot: true,
	}
	m.emit(eventlog.KindRoomUpdate, m.snapshotLocked())
	reply(a, ActionResult{Seat: seat})
}

func (m *Machine) handleRemovePlayer(a Action) {
	if m.state.Phase != PhaseLobby {
		reply(a, ActionResult{Err: ErrGameAlreadyStarted})
		return
	}
	seat := a.Seat
	if seat < 0 || seat > 3 || m.state.Players[seat].PlayerID == "" {
		reply(a, ActionResult{Err: ErrPlayerNotFound})
		return
	}
	m.state.Players[seat] = Player{Seat: seat}
	m.emit(eventlog.KindRoomUpdate, m.snapshotLocked())
	reply(a, ActionResult{})
}

func (m *Machine) handleLeave(a Action) {
	seat := a.Seat
	if seat < 0 || seat > 3 {
		reply(a, ActionResult{Err: ErrPlayerNotFound})
		return
	}
	if m.state.Phase == PhaseLobby {
		m.state.Players[seat] = Player{Seat: seat}
	} else {
		// Once a game is underway a seat never empties: it becomes
		// bot-controlled instead, per the room's never-empty-seat invariant.
		m.state.Players[seat].Connected = false
		m.state.Players[seat].Bot = true
	}
	m.emit(eventlog.KindRoomUpdate, m.snapshotLocked())
	reply(a, ActionResult{})
}

func (m *Machine) handleSetConnected(a Action) {
	seat := a.Seat
	if seat < 0 || seat > 3 || m.state.Players[seat].PlayerID == "" {
		reply(a, ActionResult{Err: ErrPlayerNotFound})
		return
	}
	p := &m.state.Players[seat]
	p.Connected = a.Connected
	m.Log.SetSeatOffline(seat, !a.Connected)
	if !a.Connected {
		// Disconnected humans are taken over by a bot until they return;
		// original_is_bot is implicitly false here since Bot only flips on
		// disconnect for a previously-human seat.
		if !p.Bot {
			p.Bot = true
		}
	}
	m.emit(eventlog.KindRoomUpdate, m.snapshotLocked())
	reply(a, ActionResult{})
}

func (m *Machine) handleStartGame(a Action) {
	if m.state.Phase != PhaseLobby {
		reply(a, ActionResult{Err: ErrGameAlreadyStarted})
		return
	}
	for _, p := range m.state.Players {
		if p.PlayerID == "" {
			reply(a, ActionResult{Err: ErrRoomFull})
			return
		}
	}
	m.startRound(true)
	reply(a, ActionResult{})
}

func (m *Machine) handlePlayerReady(a Action) {
	if m.state.Phase != PhaseScoring {
		reply(a, ActionResult{Err: ErrWrongPhase})
		return
	}
	if m.pendingReady == nil {
		m.pendingReady = make(map[int]bool)
	}
	m.pendingReady[a.Seat] = true
	reply(a, ActionResult{})

	for seat := range m.state.Players {
		if !m.pendingReady[seat] {
			return
		}
	}
	m.pendingReady = make(map[int]bool)
	m.startRound(false)
}
