package room

import "fmt"

var (
	ErrRoomFull           = fmt.Errorf("room is full")
	ErrSeatTaken          = fmt.Errorf("seat is taken")
	ErrPlayerNotFound     = fmt.Errorf("player not found in room")
	ErrNotYourTurn        = fmt.Errorf("not your turn")
	ErrWrongPhase         = fmt.Errorf("action not valid in current phase")
	ErrIllegalPlay        = fmt.Errorf("play is not legal")
	ErrIllegalDeclaration = fmt.Errorf("declared value out of range or would sum to 8")
	ErrGameAlreadyStarted = fmt.Errorf("game already started")
)

// InvariantError marks a violation of a core room invariant: the Machine
// raises one when an action handler panics (e.g. on a corrupted trick
// index). Rejected client actions use the sentinel errors above instead.
// Three of these in one room force the room into GAME_OVER rather than
// leaving it stuck.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "room invariant violated: " + e.Reason
}
