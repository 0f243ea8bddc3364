package room

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/pkg/rng"
)

// fakeBots records every notification the Machine pushes so tests can
// assert on phase transitions without a real bot.Driver.
type fakeBots struct {
	phaseChanges []Phase
	turnsStarted []int
	declareTurns []int
	redealTurns  []int
}

func (f *fakeBots) NotifyPhaseChanged(roomID string, phase Phase, view RoomView) {
	f.phaseChanges = append(f.phaseChanges, phase)
}

func (f *fakeBots) NotifyTurnStarted(roomID string, seat int, view RoomView) {
	f.turnsStarted = append(f.turnsStarted, seat)
}

func (f *fakeBots) NotifyDeclareTurn(roomID string, seat int, view RoomView) {
	f.declareTurns = append(f.declareTurns, seat)
}

func (f *fakeBots) NotifyRedealTurn(roomID string, seat int, view RoomView) {
	f.redealTurns = append(f.redealTurns, seat)
}

// fakeHook records the summaries a Machine hands to CompletionHook.OnGameOver.
type fakeHook struct {
	summaries []RoomSummary
}

func (f *fakeHook) OnGameOver(summary RoomSummary, events []eventlog.Event) {
	f.summaries = append(f.summaries, summary)
}

// newTestMachine builds a Machine with a deterministic shuffler and no
// gameLoop goroutine running — tests call dispatch/tick directly so
// assertions never race the actor.
func newTestMachine(t *testing.T) (*Machine, *fakeBots, *fakeHook) {
	t.Helper()
	cfg := config.Default()
	bots := &fakeBots{}
	hook := &fakeHook{}
	deal := 0
	newShuffler := func() cards.Shuffler {
		deal++
		s, err := rng.NewSourceWithSeed([]byte(fmt.Sprintf("test-seed-%d", deal)))
		require.NoError(t, err)
		return s
	}
	return NewMachine("room-1", "ABCD", cfg, newShuffler, bots, hook), bots, hook
}

// seatFourPlayers puts four connected human players into seats 0-3 via
// handleJoin, bypassing the channel since dispatch is called directly.
func seatFourPlayers(m *Machine) {
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		m.dispatch(Action{Kind: ActionJoin, PlayerID: name + "-id", Name: name})
	}
}

// startGame seats four players and starts the game, leaving the room in
// PREPARATION (and past it into DECLARATION if every hand happens to be
// strong enough under the deterministic shuffler, which callers should not
// assume either way — use declineAllRedeals to force DECLARATION).
func startGame(m *Machine) {
	seatFourPlayers(m)
	m.dispatch(Action{Kind: ActionStartGame})
}

// declineAllRedeals drives PREPARATION to DECLARATION by declining on
// behalf of every weak-hand seat currently pending a decision, looping
// until the phase advances or a safety bound is hit.
func declineAllRedeals(m *Machine) {
	for i := 0; i < 8 && m.state.Phase == PhasePreparation; i++ {
		acted := false
		for seat := 0; seat < 4; seat++ {
			if cards.IsWeak(m.state.Players[seat].Hand) && !m.state.RedealRequests[seat] {
				m.dispatch(Action{Kind: ActionDeclineRedeal, Seat: seat})
				acted = true
				break
			}
		}
		if !acted {
			break
		}
	}
}

// declareAllZero drives DECLARATION to TURN by having every seat in
// DeclareOrder declare 0, except the last seat, which declares 1.
func declareAllZero(m *Machine) {
	for m.state.Phase == PhaseDeclaration && m.state.DeclareIdx < len(m.state.DeclareOrder) {
		seat := m.state.DeclareOrder[m.state.DeclareIdx]
		isLast := m.state.DeclareIdx == len(m.state.DeclareOrder)-1
		val := 0
		if isLast {
			val = 1
		}
		m.dispatch(Action{Kind: ActionDeclare, Seat: seat, Declared: val})
	}
}
