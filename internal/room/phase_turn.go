package room

import (
	"time"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/eventlog"
)

// handlePlay applies a PLAY action from the current turn seat. The lead
// play fixes the piece count for the trick; followers must match that
// count and hold every piece they offer, but need not match the lead's
// classified type — only trick resolution cares about type.
func (m *Machine) handlePlay(a Action) {
	if m.state.Phase != PhaseTurn {
		reply(a, ActionResult{Err: ErrWrongPhase})
		return
	}
	if m.state.TurnSeat != a.Seat {
		reply(a, ActionResult{Err: ErrNotYourTurn})
		return
	}
	player := &m.state.Players[a.Seat]
	if !player.Hand.Contains(a.Play.Pieces) {
		reply(a, ActionResult{Err: ErrIllegalPlay})
		return
	}

	trick := &m.state.CurrentTrick
	isLead := !trick.Played[trick.Leader]
	if isLead {
		if cards.Classify(a.Play) == cards.INVALID {
			reply(a, ActionResult{Err: ErrIllegalPlay})
			return
		}
	} else {
		lead := trick.Plays[trick.Leader]
		if !cards.LegalFollow(a.Play, lead, player.Hand) {
			reply(a, ActionResult{Err: ErrIllegalPlay})
			return
		}
	}

	player.Hand = player.Hand.Remove(a.Play.Pieces)
	trick.Plays[a.Seat] = a.Play
	trick.Played[a.Seat] = true

	m.emit(eventlog.KindPlayMade, map[string]any{"seat": a.Seat, "pieces": a.Play.Pieces})
	reply(a, ActionResult{})

	if m.allPlayed(trick) {
		m.resolveTrick()
		return
	}
	m.state.TurnSeat = (m.state.TurnSeat + 1) % 4
}

func (m *Machine) allPlayed(t *Trick) bool {
	for _, p := range t.Played {
		if !p {
			return false
		}
	}
	return true
}

// resolveTrick picks the winner among same-typed plays matching the
// lead's type (non-matching types lose outright regardless of strength),
// breaking ties by strength then by seat distance from the leader.
func (m *Machine) resolveTrick() {
	trick := &m.state.CurrentTrick
	leadType := cards.Classify(trick.Plays[trick.Leader])

	winner := trick.Leader
	bestStrength := -1
	for off := 0; off < 4; off++ {
		seat := (trick.Leader + off) % 4
		play := trick.Plays[seat]
		if cards.Classify(play) != leadType {
			continue
		}
		s := cards.Strength(play)
		if s > bestStrength {
			bestStrength = s
			winner = seat
		}
	}
	trick.Winner = winner

	pilesWon := len(trick.Plays[winner].Pieces)
	m.state.Players[winner].Captured += pilesWon
	m.state.TricksPlayed++

	perSeat := make(map[int]int)
	perSeat[winner] = pilesWon

	m.emit(eventlog.KindTurnResolved, map[string]any{
		"winner":              winner,
		"winning_play":        trick.Plays[winner].Pieces,
		"piles_won_this_turn": perSeat,
		"next_starter":        winner,
		"turn_number":         m.state.TricksPlayed,
	})

	m.state.TurnLeader = winner
	m.state.TurnSeat = winner
	m.state.Phase = PhaseTurnResults
	m.turnResultsUntil = time.Now().Add(m.cfg.TurnResultsDisplay)
	m.emitPhaseChange()
}
