package room

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"liap-tui-server/internal/cards"
)

func TestBeginScoringAppliesDeltaAndSetsNextStarter(t *testing.T) {
	m, _, _ := newTestMachine(t)
	seatFourPlayers(m)
	m.state.Players[0].Declared = 3
	m.state.Players[0].Captured = 3
	m.state.Players[1].Declared = 2
	m.state.Players[1].Captured = 0
	m.state.Players[2].Declared = 0
	m.state.Players[2].Captured = 1
	m.state.Players[3].Declared = 1
	m.state.Players[3].Captured = 4
	m.state.CurrentTrick.Winner = 3
	m.state.RoundNumber = 1

	m.beginScoring()

	assert.Equal(t, PhaseScoring, m.state.Phase)
	assert.Equal(t, 3, m.state.StarterSeat)
	assert.Equal(t, cards.ScoreRound(3, 3), m.state.Players[0].Score)
	assert.Equal(t, cards.ScoreRound(2, 0), m.state.Players[1].Score)
	assert.Equal(t, cards.ScoreRound(0, 1), m.state.Players[2].Score)
	assert.Equal(t, cards.ScoreRound(1, 4), m.state.Players[3].Score)
}

func TestCheckWinPicksHighestScorerAtOrAboveThreshold(t *testing.T) {
	m, _, _ := newTestMachine(t)
	seatFourPlayers(m)
	m.state.Players[0].Score = 49
	m.state.Players[1].Score = 50
	m.state.Players[2].Score = 12
	m.state.Players[3].Score = 30

	winner, ok := m.checkWin()

	assert.True(t, ok)
	assert.Equal(t, 1, winner)
}

func TestCheckWinFalseBelowThreshold(t *testing.T) {
	m, _, _ := newTestMachine(t)
	seatFourPlayers(m)
	m.state.Players[0].Score = 49

	_, ok := m.checkWin()

	assert.False(t, ok)
}

func TestBeginScoringEndsGameWhenThresholdReached(t *testing.T) {
	m, _, hook := newTestMachine(t)
	seatFourPlayers(m)
	m.state.Players[0].Declared = 0
	m.state.Players[0].Captured = 0
	m.state.Players[0].Score = 50
	m.state.CurrentTrick.Winner = 0

	m.beginScoring()

	assert.Equal(t, PhaseGameOver, m.state.Phase)
	if assert.Len(t, hook.summaries, 1) {
		assert.Equal(t, 0, hook.summaries[0].Winner)
		assert.Equal(t, m.state.Players[0].Score, hook.summaries[0].FinalScores[0])
	}
}

func TestBeginScoringContinuesGameBelowThreshold(t *testing.T) {
	m, _, hook := newTestMachine(t)
	seatFourPlayers(m)
	m.state.CurrentTrick.Winner = 1

	m.beginScoring()

	assert.Equal(t, PhaseScoring, m.state.Phase)
	assert.Empty(t, hook.summaries)
}
