package room

import "liap-tui-server/internal/eventlog"

// handleDeclare applies a DECLARE action. Only the seat whose turn it is
// in DeclareOrder may act; the final declarer of the round is forbidden
// from choosing a value that would make the four declarations sum to 8.
func (m *Machine) handleDeclare(a Action) {
	if m.state.Phase != PhaseDeclaration {
		reply(a, ActionResult{Err: ErrWrongPhase})
		return
	}
	if m.state.DeclareIdx >= len(m.state.DeclareOrder) || m.state.DeclareOrder[m.state.DeclareIdx] != a.Seat {
		reply(a, ActionResult{Err: ErrNotYourTurn})
		return
	}
	if a.Declared < 0 || a.Declared > 8 {
		reply(a, ActionResult{Err: ErrIllegalDeclaration})
		return
	}

	isLast := m.state.DeclareIdx == len(m.state.DeclareOrder)-1
	if isLast {
		sum := a.Declared
		for _, seat := range m.state.DeclareOrder[:m.state.DeclareIdx] {
			sum += m.state.Players[seat].Declared
		}
		if sum == 8 {
			reply(a, ActionResult{Err: ErrIllegalDeclaration})
			return
		}
	}

	m.state.Players[a.Seat].Declared = a.Declared
	m.state.DeclareIdx++
	m.emit(eventlog.KindDeclarationMade, map[string]any{"seat": a.Seat, "value": a.Declared})
	reply(a, ActionResult{})

	if m.state.DeclareIdx >= len(m.state.DeclareOrder) {
		m.beginTurn()
		return
	}
	if m.bots != nil {
		next := m.state.DeclareOrder[m.state.DeclareIdx]
		m.bots.NotifyDeclareTurn(m.RoomID, next, m.snapshotLocked())
	}
}

func (m *Machine) beginTurn() {
	m.state.Phase = PhaseTurn
	m.state.TurnLeader = m.state.StarterSeat
	m.state.TurnSeat = m.state.StarterSeat
	m.state.TricksPlayed = 0
	m.state.CurrentTrick = Trick{Leader: m.state.StarterSeat}
	m.emitPhaseChange()
	if m.bots != nil {
		m.bots.NotifyTurnStarted(m.RoomID, m.state.TurnSeat, m.snapshotLocked())
	}
}
