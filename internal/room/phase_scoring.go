package room

import (
	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/metrics"
)

func (m *Machine) beginScoring() {
	m.state.Phase = PhaseScoring
	// Next round's starter is this round's last trick winner; round 1 alone
	// uses the RED GENERAL holder (set in startRound).
	m.state.StarterSeat = m.state.CurrentTrick.Winner

	type seatScore struct {
		Seat     int    `json:"seat"`
		PlayerID string `json:"player_id"`
		Declared int    `json:"declared"`
		Captured int    `json:"captured"`
		Delta    int    `json:"delta"`
		Total    int    `json:"total"`
	}
	breakdown := make([]seatScore, 0, len(m.state.Players))
	for i := range m.state.Players {
		p := &m.state.Players[i]
		delta := cards.ScoreRound(p.Declared, p.Captured)
		p.Score += delta
		breakdown = append(breakdown, seatScore{
			Seat: i, PlayerID: p.PlayerID, Declared: p.Declared,
			Captured: p.Captured, Delta: delta, Total: p.Score,
		})
	}
	m.emit(eventlog.KindRoundScored, map[string]any{"round": m.state.RoundNumber, "scores": breakdown})
	metrics.RoundsPlayedTotal.Inc()
	m.emitPhaseChange()

	if winner, ok := m.checkWin(); ok {
		m.endGame(winner)
	}
}

func (m *Machine) checkWin() (int, bool) {
	threshold := m.cfg.WinThreshold
	if threshold == 0 {
		threshold = 50
	}
	best := -1
	bestScore := threshold - 1
	for i, p := range m.state.Players {
		if p.Score >= threshold && p.Score > bestScore {
			bestScore = p.Score
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (m *Machine) endGame(winner int) {
	var finals map[int]int = make(map[int]int)
	for i, p := range m.state.Players {
		finals[i] = p.Score
	}
	m.emit(eventlog.KindGameEnded, map[string]any{"winner": winner, "final_scores": finals})
	m.state.Phase = PhaseGameOver
	m.emitPhaseChange()
	m.runCompletionHook()
}
