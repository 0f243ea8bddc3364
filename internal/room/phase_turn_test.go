package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liap-tui-server/internal/cards"
)

// filler pads a hand out to HandSize with pieces irrelevant to the test.
func filler(n int) []cards.Piece {
	out := make([]cards.Piece, n)
	for i := range out {
		out[i] = cards.Piece{Kind: cards.ELEPHANT, Color: cards.RED}
	}
	return out
}

func handOf(first cards.Piece) cards.Hand {
	pieces := append([]cards.Piece{first}, filler(cards.HandSize-1)...)
	return cards.NewHand(pieces)
}

func prepareTurn(m *Machine, hands [4]cards.Hand, leader int) {
	seatFourPlayers(m)
	m.state.StarterSeat = leader
	m.state.Phase = PhaseTurn
	m.state.TurnLeader = leader
	m.state.TurnSeat = leader
	m.state.TricksPlayed = 0
	m.state.CurrentTrick = Trick{Leader: leader}
	for i := range m.state.Players {
		m.state.Players[i].Hand = hands[i]
	}
}

func TestHandlePlayRejectsOutOfTurnSeat(t *testing.T) {
	m, _, _ := newTestMachine(t)
	blackSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK}
	prepareTurn(m, [4]cards.Hand{handOf(blackSoldier), handOf(blackSoldier), handOf(blackSoldier), handOf(blackSoldier)}, 0)

	reply := make(chan ActionResult, 1)
	m.dispatch(Action{Kind: ActionPlay, Seat: 1, Play: cards.NewPlay([]cards.Piece{blackSoldier}), Reply: reply})
	res := <-reply

	assert.ErrorIs(t, res.Err, ErrNotYourTurn)
}

func TestHandlePlayRejectsPieceNotInHand(t *testing.T) {
	m, _, _ := newTestMachine(t)
	blackSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK}
	redGeneral := cards.Piece{Kind: cards.GENERAL, Color: cards.RED}
	prepareTurn(m, [4]cards.Hand{handOf(blackSoldier), handOf(blackSoldier), handOf(blackSoldier), handOf(blackSoldier)}, 0)

	reply := make(chan ActionResult, 1)
	m.dispatch(Action{Kind: ActionPlay, Seat: 0, Play: cards.NewPlay([]cards.Piece{redGeneral}), Reply: reply})
	res := <-reply

	assert.ErrorIs(t, res.Err, ErrIllegalPlay)
}

func TestHandlePlayRejectsUnclassifiableLead(t *testing.T) {
	m, _, _ := newTestMachine(t)
	blackSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK}
	redHorse := cards.Piece{Kind: cards.HORSE, Color: cards.RED}
	hand := cards.NewHand(append([]cards.Piece{blackSoldier, redHorse}, filler(cards.HandSize-2)...))
	prepareTurn(m, [4]cards.Hand{hand, hand, hand, hand}, 0)

	reply := make(chan ActionResult, 1)
	m.dispatch(Action{Kind: ActionPlay, Seat: 0, Play: cards.NewPlay([]cards.Piece{blackSoldier, redHorse}), Reply: reply})
	res := <-reply

	assert.ErrorIs(t, res.Err, ErrIllegalPlay, "a SOLDIER+HORSE pair classifies as INVALID")
}

func TestHandlePlayFollowMustMatchLeadPieceCount(t *testing.T) {
	m, _, _ := newTestMachine(t)
	blackSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK}
	redSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.RED}
	pair := cards.NewHand(append([]cards.Piece{blackSoldier, blackSoldier}, filler(cards.HandSize-2)...))
	single := handOf(redSoldier)
	prepareTurn(m, [4]cards.Hand{pair, single, single, single}, 0)

	m.dispatch(Action{Kind: ActionPlay, Seat: 0, Play: cards.NewPlay([]cards.Piece{blackSoldier, blackSoldier})})
	require.Equal(t, 1, m.state.TurnSeat)

	reply := make(chan ActionResult, 1)
	m.dispatch(Action{Kind: ActionPlay, Seat: 1, Play: cards.NewPlay([]cards.Piece{redSoldier}), Reply: reply})
	res := <-reply

	assert.ErrorIs(t, res.Err, ErrIllegalPlay, "a single can't follow a led pair")
}

func TestResolveTrickAwardsHighestStrengthOfLeadType(t *testing.T) {
	m, bots, _ := newTestMachine(t)
	blackSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK} // 2
	redSoldier := cards.Piece{Kind: cards.SOLDIER, Color: cards.RED}     // 3
	redGeneral := cards.Piece{Kind: cards.GENERAL, Color: cards.RED}     // 15
	blackGeneral := cards.Piece{Kind: cards.GENERAL, Color: cards.BLACK} // 14
	prepareTurn(m, [4]cards.Hand{
		handOf(blackSoldier),
		handOf(redSoldier),
		handOf(redGeneral),
		handOf(blackGeneral),
	}, 0)

	m.dispatch(Action{Kind: ActionPlay, Seat: 0, Play: cards.NewPlay([]cards.Piece{blackSoldier})})
	m.dispatch(Action{Kind: ActionPlay, Seat: 1, Play: cards.NewPlay([]cards.Piece{redSoldier})})
	m.dispatch(Action{Kind: ActionPlay, Seat: 2, Play: cards.NewPlay([]cards.Piece{redGeneral})})
	m.dispatch(Action{Kind: ActionPlay, Seat: 3, Play: cards.NewPlay([]cards.Piece{blackGeneral})})

	assert.Equal(t, PhaseTurnResults, m.state.Phase)
	assert.Equal(t, 2, m.state.CurrentTrick.Winner, "seat 2's RED GENERAL is the strongest single played")
	assert.Equal(t, 1, m.state.Players[2].Captured)
	assert.Equal(t, 1, m.state.TricksPlayed)
	assert.Equal(t, 2, m.state.TurnLeader)
	assert.Contains(t, bots.phaseChanges, PhaseTurnResults)
}

func TestTickTurnResultsReturnsToTurnWhileHandsRemain(t *testing.T) {
	m, bots, _ := newTestMachine(t)
	piece := cards.Piece{Kind: cards.SOLDIER, Color: cards.BLACK}
	// seat 0's hand still holds filler pieces after this trick, so the next
	// tick should return to TURN rather than advance to SCORING.
	hand := cards.NewHand(append([]cards.Piece{piece}, filler(cards.HandSize-1)...))
	prepareTurn(m, [4]cards.Hand{hand, hand, hand, hand}, 0)
	m.state.Phase = PhaseTurnResults
	m.state.CurrentTrick.Winner = 1
	m.state.TurnLeader = 1
	m.state.TurnSeat = 1
	m.turnResultsUntil = time.Now().Add(-time.Millisecond)

	m.tick()

	assert.Equal(t, PhaseTurn, m.state.Phase)
	assert.Equal(t, 1, m.state.CurrentTrick.Leader)
	assert.Contains(t, bots.turnsStarted, 1)
}

func TestTickTurnResultsAdvancesToScoringWhenAllHandsEmpty(t *testing.T) {
	m, _, hook := newTestMachine(t)
	empty := cards.NewHand(nil)
	prepareTurn(m, [4]cards.Hand{empty, empty, empty, empty}, 0)
	m.state.Phase = PhaseTurnResults
	m.state.CurrentTrick.Winner = 2
	m.turnResultsUntil = time.Now().Add(-time.Millisecond)

	m.tick()

	assert.Equal(t, PhaseScoring, m.state.Phase)
	assert.Empty(t, hook.summaries, "a single round ending shouldn't by itself finish the game")
}
