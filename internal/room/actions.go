package room

import "liap-tui-server/internal/cards"

// ActionKind tags the variant carried by Action. Gameplay kinds originate
// from a connected seat; admin kinds originate from the room manager
// (join/leave/bot assignment). Both travel through the same inbound queue
// so the room's Machine remains the sole mutator of State.
type ActionKind string

const (
	ActionDeclare       ActionKind = "DECLARE"
	ActionPlay          ActionKind = "PLAY"
	ActionRequestRedeal ActionKind = "REQUEST_REDEAL"
	ActionDeclineRedeal ActionKind = "DECLINE_REDEAL"

	ActionJoin         ActionKind = "JOIN"
	ActionAddBot       ActionKind = "ADD_BOT"
	ActionRemovePlayer ActionKind = "REMOVE_PLAYER"
	ActionLeave        ActionKind = "LEAVE"
	ActionSetConnected ActionKind = "SET_CONNECTED"
	ActionStartGame    ActionKind = "START_GAME"
	ActionPlayerReady  ActionKind = "PLAYER_READY"
)

// Action is a single unit of inbound work for a room's Machine.
type Action struct {
	Kind ActionKind
	Seat int

	// Gameplay payloads
	Declared int
	Play     cards.Play

	// Admin payloads
	PlayerID  string
	Name      string
	Connected bool

	// Reply, when non-nil, is closed (after Result is set) once the
	// Machine has applied the action. This lets RoomManager's
	// synchronous-looking API (join_room returning a seat index) be
	// backed by actor-serialized mutation instead of reaching into
	// State directly.
	Reply chan ActionResult
}

// ActionResult is delivered back over Action.Reply.
type ActionResult struct {
	Seat int
	Err  error
}

func reply(a Action, res ActionResult) {
	if a.Reply == nil {
		return
	}
	a.Reply <- res
	close(a.Reply)
}
