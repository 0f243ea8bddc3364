package room

import "time"

// tickTurnResults returns to TURN for the next trick once the display
// interval has elapsed, or moves to SCORING once every hand is empty.
func (m *Machine) tickTurnResults() {
	if time.Now().Before(m.turnResultsUntil) {
		return
	}

	anyCards := false
	for _, p := range m.state.Players {
		if !p.Hand.Empty() {
			anyCards = true
			break
		}
	}

	if anyCards {
		m.state.Phase = PhaseTurn
		m.state.CurrentTrick = Trick{Leader: m.state.TurnLeader}
		m.emitPhaseChange()
		if m.bots != nil {
			m.bots.NotifyTurnStarted(m.RoomID, m.state.TurnSeat, m.snapshotLocked())
		}
		return
	}

	m.beginScoring()
}
