package gateway

import (
	"encoding/json"

	"liap-tui-server/internal/cards"
)

// Envelope is the wire format for both inbound and outbound messages, per
// the transport message envelope contract: { event, data, seq?, ack? }.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Seq   uint64          `json:"seq,omitempty"`
	Ack   *uint64         `json:"ack,omitempty"`
}

// Inbound event names, matching the spec's client->server vocabulary.
const (
	InCreateRoom    = "create_room"
	InJoinRoom      = "join_room"
	InLeaveRoom     = "leave_room"
	InAddBot        = "add_bot"
	InRemovePlayer  = "remove_player"
	InStartGame     = "start_game"
	InDeclare       = "declare"
	InPlay          = "play"
	InAcceptRedeal  = "accept_redeal"
	InDeclineRedeal = "decline_redeal"
	InPlayerReady   = "player_ready"
	InLeaveGame     = "leave_game"
	InPing          = "ping"
	InAck           = "ack"
	InRequestResync = "request_resync"
	InClientReady   = "client_ready"
)

type joinRoomData struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type removePlayerData struct {
	Seat int `json:"seat"`
}

type declareData struct {
	Value int `json:"value"`
}

// playData decodes straight into cards.Piece since Piece implements
// json.Unmarshaler for the wire {kind,color} shape.
type playData struct {
	Pieces []cards.Piece `json:"pieces"`
}

type ackData struct {
	Seq uint64 `json:"seq"`
}

type resyncData struct {
	FromSeq uint64 `json:"from_seq"`
}
