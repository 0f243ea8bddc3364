package room

import (
	"strconv"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/metrics"
)

// startRound deals a fresh set of hands and enters PREPARATION. On the
// very first round the starter is the RED GENERAL holder; on later rounds
// it is whoever startRound was last told to use via state.StarterSeat
// (set by the previous round's TURN_RESULTS winner).
func (m *Machine) startRound(firstRound bool) {
	m.state.RoundNumber++
	m.state.RedealRequests = make(map[int]bool)
	m.state.RedealCount = 0

	m.deal()

	if firstRound {
		if holder := cards.RedGeneralHolder(handsOf(m.state.Players)); holder >= 0 {
			m.state.StarterSeat = holder
		} else {
			m.state.StarterSeat = 0
		}
	}

	m.state.Phase = PhasePreparation
	m.emitPhaseChange()

	m.offerNextRedeal()
}

func handsOf(players [4]Player) []cards.Hand {
	hands := make([]cards.Hand, 4)
	for i, p := range players {
		hands[i] = p.Hand
	}
	return hands
}

func (m *Machine) deal() {
	shuffler := m.newShuffler()
	hands := cards.Deal(shuffler)
	for seat := range m.state.Players {
		m.state.Players[seat].Hand = hands[seat]
		m.state.Players[seat].Declared = 0
		m.state.Players[seat].Captured = 0
		m.emitHandDealtTo(seat, hands[seat])
	}
}

func (m *Machine) emitHandDealtTo(seat int, hand cards.Hand) {
	m.Log.AppendPrivate(eventlog.KindHandDealt, map[string]any{"seat": seat, "hand": hand.Pieces}, seat)
}

func (m *Machine) weakSeats() []int {
	return m.weakSeatsLocked()
}

// offerNextRedeal finds the next weak-hand seat (in seat order from the
// starter) that hasn't yet decided, and waits for its ACCEPT/DECLINE. If
// none remain, or the redeal cap has been hit, DECLARATION begins.
func (m *Machine) offerNextRedeal() {
	if m.state.RedealCount >= m.redealCap() {
		m.beginDeclaration()
		return
	}
	weak := m.weakSeats()
	for _, seat := range rotateFrom(m.state.StarterSeat, weak) {
		if !m.state.RedealRequests[seat] {
			if m.bots != nil {
				m.bots.NotifyRedealTurn(m.RoomID, seat, m.snapshotLocked())
			}
			return // awaiting this seat's decision; handled by handleRedealDecision
		}
	}
	m.beginDeclaration()
}

func (m *Machine) redealCap() int {
	if m.cfg.RedealCap > 0 {
		return m.cfg.RedealCap
	}
	return 3
}

func rotateFrom(start int, seats []int) []int {
	out := make([]int, 0, len(seats))
	for off := 0; off < 4; off++ {
		s := (start + off) % 4
		for _, seat := range seats {
			if seat == s {
				out = append(out, seat)
			}
		}
	}
	return out
}

func (m *Machine) handleRedealDecision(a Action, accept bool) {
	if m.state.Phase != PhasePreparation {
		reply(a, ActionResult{Err: ErrWrongPhase})
		return
	}
	weak := m.weakSeats()
	isWeak := false
	for _, s := range weak {
		if s == a.Seat {
			isWeak = true
		}
	}
	if !isWeak || m.state.RedealRequests[a.Seat] {
		reply(a, ActionResult{Err: ErrWrongPhase})
		return
	}
	m.state.RedealRequests[a.Seat] = true
	m.emit(eventlog.KindPhaseChange, map[string]any{"redeal_decided": true, "seat": a.Seat, "accepted": accept})
	reply(a, ActionResult{})

	if accept {
		m.state.RedealCount++
		metrics.RedealsTotal.WithLabelValues(strconv.Itoa(m.state.RoundNumber)).Inc()
		m.state.RedealRequests = make(map[int]bool)
		m.deal()
		m.emitPhaseChange()
		m.offerNextRedeal()
		return
	}
	m.offerNextRedeal()
}

func (m *Machine) beginDeclaration() {
	m.state.Phase = PhaseDeclaration
	m.state.DeclareOrder = rotateFrom(m.state.StarterSeat, []int{0, 1, 2, 3})
	m.state.DeclareIdx = 0
	m.state.DeclaredCount = 0
	m.emitPhaseChange()
}
