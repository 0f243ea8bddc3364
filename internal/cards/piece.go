// Package cards implements the Rules Engine: pure evaluation of Liap Tui
// pieces, hands and plays. Nothing in this package performs I/O, holds
// mutable shared state, or schedules anything — every function is
// deterministic given its inputs.
package cards

import (
	"encoding/json"
	"fmt"
)

// Kind is a piece identity, one of seven borrowed from Chinese chess.
type Kind int8

const (
	GENERAL Kind = iota
	ADVISOR
	ELEPHANT
	CHARIOT
	HORSE
	CANNON
	SOLDIER
)

func (k Kind) String() string {
	switch k {
	case GENERAL:
		return "GENERAL"
	case ADVISOR:
		return "ADVISOR"
	case ELEPHANT:
		return "ELEPHANT"
	case CHARIOT:
		return "CHARIOT"
	case HORSE:
		return "HORSE"
	case CANNON:
		return "CANNON"
	case SOLDIER:
		return "SOLDIER"
	default:
		return "UNKNOWN"
	}
}

// Color is one of two piece colors.
type Color int8

const (
	RED Color = iota
	BLACK
)

func (c Color) String() string {
	if c == RED {
		return "RED"
	}
	return "BLACK"
}

// Piece is an immutable value object: a (kind, color) pair with a fixed
// point value.
type Piece struct {
	Kind  Kind
	Color Color
}

// kindBasePoints is fixed per kind; a piece's point value is fixed per (kind, color); color breaks ties between
// otherwise-equal kinds (RED outranks BLACK), and kind rank descends
// GENERAL > ADVISOR > ELEPHANT > CHARIOT > HORSE > CANNON > SOLDIER.
var kindBasePoints = map[Kind]int{
	GENERAL:  14,
	ADVISOR:  11,
	ELEPHANT: 10,
	CHARIOT:  7,
	HORSE:    6,
	CANNON:   5,
	SOLDIER:  2,
}

// Point returns the piece's fixed integer point value.
func (p Piece) Point() int {
	v := kindBasePoints[p.Kind]
	if p.Color == RED {
		v++
	}
	return v
}

func (p Piece) String() string {
	return fmt.Sprintf("%s_%s", p.Color, p.Kind)
}

// Equal reports whether two pieces have the same kind and color.
func (p Piece) Equal(o Piece) bool {
	return p.Kind == o.Kind && p.Color == o.Color
}

// pieceWire is the over-the-wire piece format: { "kind": "GENERAL", "color": "RED" }.
type pieceWire struct {
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

func kindFromString(s string) Kind {
	switch s {
	case "GENERAL":
		return GENERAL
	case "ADVISOR":
		return ADVISOR
	case "ELEPHANT":
		return ELEPHANT
	case "CHARIOT":
		return CHARIOT
	case "HORSE":
		return HORSE
	case "CANNON":
		return CANNON
	default:
		return SOLDIER
	}
}

// MarshalJSON renders a Piece in the wire format rather than as its raw
// int8 fields.
func (p Piece) MarshalJSON() ([]byte, error) {
	return json.Marshal(pieceWire{Kind: p.Kind.String(), Color: p.Color.String()})
}

// UnmarshalJSON parses the wire format back into a Piece.
func (p *Piece) UnmarshalJSON(data []byte) error {
	var w pieceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Kind = kindFromString(w.Kind)
	if w.Color == "RED" {
		p.Color = RED
	} else {
		p.Color = BLACK
	}
	return nil
}

// deckOrder fixes the iteration order used to build a fresh deck, so
// FullDeck is reproducible before any shuffle is applied. Counts are the
// standard Chinese dark-chess (banqi) split: one GENERAL, two each of
// ADVISOR/ELEPHANT/CHARIOT/HORSE/CANNON, five SOLDIERs, times two colors.
var deckOrder = []struct {
	kind  Kind
	count int
}{
	{GENERAL, 1},
	{ADVISOR, 2},
	{ELEPHANT, 2},
	{CHARIOT, 2},
	{HORSE, 2},
	{CANNON, 2},
	{SOLDIER, 5},
}

// FullDeck returns the fixed 32-piece multiset, freshly allocated, in a
// deterministic pre-shuffle order.
func FullDeck() []Piece {
	deck := make([]Piece, 0, 32)
	for _, color := range []Color{RED, BLACK} {
		for _, kc := range deckOrder {
			for i := 0; i < kc.count; i++ {
				deck = append(deck, Piece{Kind: kc.kind, Color: color})
			}
		}
	}
	return deck
}

// DeckSize is the fixed total number of pieces in a deck.
const DeckSize = 32

// HandSize is the number of pieces dealt to each of the four seats.
const HandSize = 8
