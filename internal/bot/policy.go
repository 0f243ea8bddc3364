package bot

import (
	"sort"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/room"
)

// actDeclareIfTurn implements the DECLARATION policy: declare a value
// close to the hand's expected pile count, clamped so the final declarer
// never produces a sum of exactly 8.
func (d *Driver) actDeclareIfTurn(h RoomHandle, roomID string, seat int) {
	if !h.IsBot(seat) {
		return
	}
	yourTurn, isLast, sumSoFar := h.DeclareContext(seat)
	if !yourTurn {
		return
	}
	hand := h.Hand(seat)
	value := expectedPiles(hand)

	if isLast && sumSoFar+value == 8 {
		if value > 0 {
			value--
		} else {
			value++
		}
	}

	h.Enqueue(room.Action{Kind: room.ActionDeclare, Seat: seat, Declared: value})
}

// expectedPiles estimates how many tricks a hand can plausibly win: one
// per piece worth 7 points or more.
func expectedPiles(hand cards.Hand) int {
	count := 0
	for _, p := range hand.Pieces {
		if p.Point() >= 7 {
			count++
		}
	}
	if count > 8 {
		count = 8
	}
	return count
}

// actRedealIfPending implements the REDEAL policy: accept only while the
// hand remains below the weak-hand threshold.
func (d *Driver) actRedealIfPending(h RoomHandle, roomID string, seat int) {
	if !h.IsBot(seat) {
		return
	}
	if !h.WeakRedealPending(seat) {
		return
	}
	hand := h.Hand(seat)
	kind := room.ActionDeclineRedeal
	if cards.HandStrength(hand) < cards.HandStrengthThreshold {
		kind = room.ActionRequestRedeal
	}
	h.Enqueue(room.Action{Kind: kind, Seat: seat})
}

// actTurn implements both the TURN-leading and TURN-following policies.
func (d *Driver) actTurn(h RoomHandle, roomID string, seat int) {
	if !h.IsBot(seat) {
		return
	}
	yourTurn, lead, hasLead := h.TrickContext(seat)
	if !yourTurn {
		return
	}
	hand := h.Hand(seat)

	var play cards.Play
	if !hasLead {
		play = leadPlay(hand)
	} else {
		play = followPlay(hand, lead)
	}
	h.Enqueue(room.Action{Kind: room.ActionPlay, Seat: seat, Play: play})
}

// leadPlay picks the smallest valid combination, preferring a low-value
// SINGLE so strong pieces are held back for later tricks.
func leadPlay(hand cards.Hand) cards.Play {
	pieces := append([]cards.Piece(nil), hand.Pieces...)
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].Point() < pieces[j].Point() })
	if len(pieces) == 0 {
		return cards.Play{}
	}
	return cards.NewPlay(pieces[:1])
}

// followPlay plays the weakest legal follow if the trick looks already
// lost, or the strongest legal follow otherwise — but never reaches for a
// stronger play than necessary to win.
func followPlay(hand cards.Hand, lead cards.Play) cards.Play {
	need := len(lead.Pieces)
	candidates := combinationsOfSize(hand.Pieces, need)

	var legal []cards.Play
	for _, c := range candidates {
		play := cards.NewPlay(c)
		if cards.LegalFollow(play, lead, hand) {
			legal = append(legal, play)
		}
	}
	if len(legal) == 0 {
		// Cannot produce the required length legally in theory (hand too
		// small); forfeit with whatever is left.
		return cards.NewPlay(hand.Pieces)
	}

	sort.Slice(legal, func(i, j int) bool { return cards.Strength(legal[i]) < cards.Strength(legal[j]) })

	leadType := cards.Classify(lead)
	leadStrength := cards.Strength(lead)

	var winning []cards.Play
	for _, p := range legal {
		if cards.Classify(p) == leadType && cards.Strength(p) > leadStrength {
			winning = append(winning, p)
		}
	}
	if len(winning) > 0 {
		// Weakest play that still wins — never overspends a stronger set.
		return winning[0]
	}
	// Trick looks lost: shed the weakest legal combination.
	return legal[0]
}

// combinationsOfSize enumerates every n-piece subset of pieces. Hands are
// at most 8 pieces and n is at most 6, so this stays small (<=70 subsets).
func combinationsOfSize(pieces []cards.Piece, n int) [][]cards.Piece {
	if n <= 0 || n > len(pieces) {
		return nil
	}
	var out [][]cards.Piece
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]cards.Piece, n)
		for i, p := range idx {
			combo[i] = pieces[p]
		}
		out = append(out, combo)

		i := n - 1
		for i >= 0 && idx[i] == len(pieces)-n+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < n; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}
