// Package eventlog implements per-room append-only event publication with
// at-least-once delivery, per-connection ack tracking and resend, and a
// bounded offline buffer per disconnected seat.
package eventlog

import "time"

// Kind discriminates the closed set of outbound event payloads.
type Kind string

const (
	KindRoomCreated     Kind = "room_created"
	KindRoomJoined      Kind = "room_joined"
	KindRoomUpdate      Kind = "room_update"
	KindRoomListUpdate  Kind = "room_list_update"
	KindRoomClosed      Kind = "room_closed"
	KindPhaseChange     Kind = "phase_change"
	KindHandDealt       Kind = "hand_dealt"
	KindDeclarationMade Kind = "declaration_made"
	KindPlayMade        Kind = "play_made"
	KindTurnResolved    Kind = "turn_resolved"
	KindRoundScored     Kind = "round_scored"
	KindGameEnded       Kind = "game_ended"
	KindPong            Kind = "pong"
	KindActionRejected  Kind = "action_rejected"
	KindResyncResponse  Kind = "resync_response"
	KindRoomSnapshot    Kind = "room_snapshot"
	KindRoomError       Kind = "room_error"
	KindError           Kind = "error"
)

// Critical event kinds are never dropped from an offline queue on overflow.
var criticalKinds = map[Kind]bool{
	KindPhaseChange:  true,
	KindRoundScored:  true,
	KindGameEnded:    true,
	KindTurnResolved: true,
}

// IsCritical reports whether a kind must be retained preferentially in a
// bounded offline queue.
func IsCritical(k Kind) bool {
	return criticalKinds[k]
}

// Event is one append-only record in a room's totally ordered log.
type Event struct {
	RoomID    string
	Sequence  uint64
	Kind      Kind
	Payload   any
	Timestamp time.Time
}
