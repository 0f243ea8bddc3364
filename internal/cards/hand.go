package cards

// Hand is an unordered multiset of up to HandSize pieces held by one seat
// for the current round.
type Hand struct {
	Pieces []Piece
}

// NewHand copies pieces into a fresh Hand.
func NewHand(pieces []Piece) Hand {
	cp := make([]Piece, len(pieces))
	copy(cp, pieces)
	return Hand{Pieces: cp}
}

// Contains reports whether every piece in want is present in the hand,
// respecting multiplicity (a hand with one SOLDIER does not contain two).
func (h Hand) Contains(want []Piece) bool {
	available := make([]Piece, len(h.Pieces))
	copy(available, h.Pieces)

	for _, w := range want {
		found := false
		for i, a := range available {
			if a.Equal(w) {
				available = append(available[:i], available[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Remove returns a new Hand with the given pieces removed (one occurrence
// each). Callers must have already validated Contains(pieces).
func (h Hand) Remove(pieces []Piece) Hand {
	remaining := make([]Piece, len(h.Pieces))
	copy(remaining, h.Pieces)

	for _, p := range pieces {
		for i, r := range remaining {
			if r.Equal(p) {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return Hand{Pieces: remaining}
}

// Len returns the number of pieces currently in the hand.
func (h Hand) Len() int {
	return len(h.Pieces)
}

// Empty reports whether the hand holds no pieces.
func (h Hand) Empty() bool {
	return len(h.Pieces) == 0
}

// HandStrengthThreshold is the rules-defined weakness threshold: a hand at
// or below this total point value is weak and eligible for a redeal offer.
const HandStrengthThreshold = 16

// HandStrength sums the fixed point value of every piece in the hand.
func HandStrength(h Hand) int {
	total := 0
	for _, p := range h.Pieces {
		total += p.Point()
	}
	return total
}

// IsWeak reports whether the hand's strength is at or below the threshold.
func IsWeak(h Hand) bool {
	return HandStrength(h) <= HandStrengthThreshold
}

// RedGeneralHolder returns the index of the seat holding the RED GENERAL,
// or -1 if no hand in hands contains it (should not occur with a full
// 4-hand deal of the full deck).
func RedGeneralHolder(hands []Hand) int {
	for seat, h := range hands {
		for _, p := range h.Pieces {
			if p.Kind == GENERAL && p.Color == RED {
				return seat
			}
		}
	}
	return -1
}
