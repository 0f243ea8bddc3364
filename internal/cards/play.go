package cards

import "sort"

// PlayType is the computed shape of a Play. INVALID is the zero value —
// classify returns it explicitly, it is never a valid type.
type PlayType int8

const (
	INVALID PlayType = iota
	SINGLE
	PAIR
	THREE_OF_KIND
	STRAIGHT
	FOUR_OF_KIND
	EXTENDED_STRAIGHT
	FIVE_OF_KIND
	EXTENDED_STRAIGHT_5
	DOUBLE_STRAIGHT
)

func (t PlayType) String() string {
	switch t {
	case SINGLE:
		return "SINGLE"
	case PAIR:
		return "PAIR"
	case THREE_OF_KIND:
		return "THREE_OF_KIND"
	case STRAIGHT:
		return "STRAIGHT"
	case FOUR_OF_KIND:
		return "FOUR_OF_KIND"
	case EXTENDED_STRAIGHT:
		return "EXTENDED_STRAIGHT"
	case FIVE_OF_KIND:
		return "FIVE_OF_KIND"
	case EXTENDED_STRAIGHT_5:
		return "EXTENDED_STRAIGHT_5"
	case DOUBLE_STRAIGHT:
		return "DOUBLE_STRAIGHT"
	default:
		return "INVALID"
	}
}

// Play is an ordered tuple of 1-6 pieces declared by a player on their turn.
type Play struct {
	Pieces []Piece
}

// NewPlay copies pieces into a fresh Play.
func NewPlay(pieces []Piece) Play {
	cp := make([]Piece, len(pieces))
	copy(cp, pieces)
	return Play{Pieces: cp}
}

// groupA is the {GENERAL, ADVISOR, ELEPHANT} straight group.
var groupA = map[Kind]bool{GENERAL: true, ADVISOR: true, ELEPHANT: true}

// groupB is the {CHARIOT, HORSE, CANNON} straight group.
var groupB = map[Kind]bool{CHARIOT: true, HORSE: true, CANNON: true}

// sameColor reports whether every piece in pieces shares one color.
func sameColor(pieces []Piece) (Color, bool) {
	if len(pieces) == 0 {
		return 0, false
	}
	c := pieces[0].Color
	for _, p := range pieces[1:] {
		if p.Color != c {
			return 0, false
		}
	}
	return c, true
}

// kindCounts tallies occurrences of each kind in pieces.
func kindCounts(pieces []Piece) map[Kind]int {
	counts := make(map[Kind]int, len(pieces))
	for _, p := range pieces {
		counts[p.Kind]++
	}
	return counts
}

// allSoldiers reports whether every piece is a SOLDIER.
func allSoldiers(pieces []Piece) bool {
	for _, p := range pieces {
		if p.Kind != SOLDIER {
			return false
		}
	}
	return true
}

// inOneStraightGroup reports whether every kind present belongs to the same
// one of groupA/groupB, and returns which group.
func inOneStraightGroup(counts map[Kind]int) (map[Kind]bool, bool) {
	inA, inB := true, true
	for k := range counts {
		if !groupA[k] {
			inA = false
		}
		if !groupB[k] {
			inB = false
		}
	}
	if inA {
		return groupA, true
	}
	if inB {
		return groupB, true
	}
	return nil, false
}

// Classify decides the play's type by exact combinatorial rule, or returns
// INVALID if no rule matches. Only Plays of length 1-6 can ever classify.
func Classify(play Play) PlayType {
	pieces := play.Pieces
	n := len(pieces)
	if n < 1 || n > 6 {
		return INVALID
	}

	color, ok := sameColor(pieces)
	_ = color
	if !ok {
		return INVALID
	}

	counts := kindCounts(pieces)

	switch n {
	case 1:
		return SINGLE

	case 2:
		if len(counts) == 1 {
			for _, c := range counts {
				if c == 2 {
					return PAIR
				}
			}
		}
		return INVALID

	case 3:
		if allSoldiers(pieces) && len(counts) == 1 {
			return THREE_OF_KIND
		}
		if group, ok := inOneStraightGroup(counts); ok {
			if len(counts) == 3 && len(group) >= 3 {
				allOne := true
				for _, c := range counts {
					if c != 1 {
						allOne = false
					}
				}
				if allOne {
					return STRAIGHT
				}
			}
		}
		return INVALID

	case 4:
		if allSoldiers(pieces) && len(counts) == 1 {
			return FOUR_OF_KIND
		}
		if _, ok := inOneStraightGroup(counts); ok {
			if len(counts) == 3 {
				doubled := 0
				for _, c := range counts {
					switch c {
					case 2:
						doubled++
					case 1:
					default:
						return INVALID
					}
				}
				if doubled == 1 {
					return EXTENDED_STRAIGHT
				}
			}
		}
		return INVALID

	case 5:
		if allSoldiers(pieces) && len(counts) == 1 {
			return FIVE_OF_KIND
		}
		if _, ok := inOneStraightGroup(counts); ok {
			if len(counts) == 3 {
				pattern := countMultiset(counts)
				if equalSorted(pattern, []int{1, 2, 2}) {
					return EXTENDED_STRAIGHT_5
				}
			}
		}
		return INVALID

	case 6:
		if len(counts) == 3 && counts[CHARIOT] == 2 && counts[HORSE] == 2 && counts[CANNON] == 2 {
			return DOUBLE_STRAIGHT
		}
		return INVALID
	}

	return INVALID
}

func countMultiset(counts map[Kind]int) []int {
	out := make([]int, 0, len(counts))
	for _, c := range counts {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func equalSorted(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pieceSum is the secondary tie-break: sum of point values in the play.
func pieceSum(pieces []Piece) int {
	total := 0
	for _, p := range pieces {
		total += p.Point()
	}
	return total
}

// primaryRank returns the type-specific rank used as the dominant strength
// comparator: the point value of the deciding piece(s) in the play. Defined
// only for classifiable plays; callers must check Classify first.
func primaryRank(t PlayType, pieces []Piece) int {
	switch t {
	case SINGLE, PAIR, THREE_OF_KIND, FOUR_OF_KIND, FIVE_OF_KIND:
		return pieces[0].Point()
	case STRAIGHT, EXTENDED_STRAIGHT, EXTENDED_STRAIGHT_5, DOUBLE_STRAIGHT:
		max := 0
		for _, p := range pieces {
			if p.Point() > max {
				max = p.Point()
			}
		}
		return max
	default:
		return 0
	}
}

// Strength returns the play's comparison value: higher beats lower within
// plays of the same type and piece count. It is defined only for non-INVALID
// plays and is a pure, deterministic function of the pieces. The secondary
// tie-break (piece-point sum) is folded into the low-order digits; seat-order
// tie-breaking, when even that is equal, is the trick-resolution layer's
// responsibility, not this function's.
func Strength(play Play) int {
	t := Classify(play)
	if t == INVALID {
		return -1
	}
	rank := primaryRank(t, play.Pieces)
	sum := pieceSum(play.Pieces)
	return rank*1000 + sum
}

// LegalFollow reports whether play is a legal follow to lead given hand: the
// piece count must match lead's, and every piece in play must be present in
// hand. Plays need not match lead's type — a player unable to produce the
// lead's type may follow with any pieces of the required length.
func LegalFollow(play Play, lead Play, hand Hand) bool {
	if len(play.Pieces) != len(lead.Pieces) {
		return false
	}
	return hand.Contains(play.Pieces)
}
