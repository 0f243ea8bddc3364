package gateway

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/metrics"
	"liap-tui-server/internal/room"
	"liap-tui-server/internal/roommgr"
)

// Connection is one client's session: its transport Channel, its binding
// to a room seat (if any), its outbox, heartbeat state, and rate limiter.
type Connection struct {
	ID      string
	channel Channel
	mgr     *roommgr.Manager
	limiter *tokenBucket
	cfg     config.Config

	mu         sync.Mutex
	roomID     string
	seat       int
	bound      bool
	playerName string

	outbox *eventlog.Outbox

	lastPong time.Time
	closed   chan struct{}
	once     sync.Once
}

func newConnID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// NewConnection wraps channel in a Connection bound to mgr's room fleet.
func NewConnection(channel Channel, mgr *roommgr.Manager, cfg config.Config) *Connection {
	c := &Connection{
		ID:      newConnID(),
		channel: channel,
		mgr:     mgr,
		limiter: newTokenBucket(cfg.RateLimitTokensPerSec, cfg.RateLimitBurst),
		cfg:     cfg,
		seat:    -1,
		closed:  make(chan struct{}),
	}
	c.outbox = eventlog.NewOutbox(c.send)
	c.outbox.SetRetransmitPolicy(cfg.RetransmitTimeout, cfg.RetransmitLimit)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	return c
}

// Run drives the connection until its channel closes: a reader loop plus
// a heartbeat/retransmit ticker, mirroring the teacher's per-connection
// read loop in cmd/game-server/main.go generalized with timers.
func (c *Connection) Run() {
	defer c.onClose()

	go c.heartbeatLoop()

	for {
		msg, err := c.channel.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Connection) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	retransmitTicker := time.NewTicker(c.cfg.RetransmitTimeout)
	defer retransmitTicker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			_ = c.send(eventlog.Event{Kind: eventlog.KindPong})
			c.mu.Lock()
			idle := time.Since(c.lastPong) > c.cfg.IdleDisconnect
			c.mu.Unlock()
			if idle {
				_ = c.channel.Close()
				return
			}
		case <-retransmitTicker.C:
			metrics.RetransmitsTotal.Inc()
			if c.outbox.Retransmit(time.Now()) {
				log.Printf("gateway: connection %s exceeded retransmit limit, closing", c.ID)
				_ = c.channel.Close()
				return
			}
		}
	}
}

func (c *Connection) send(ev eventlog.Event) error {
	var ackPtr *uint64
	env := Envelope{Event: string(ev.Kind), Seq: ev.Sequence, Ack: ackPtr}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	env.Data = data
	out, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.channel.WriteMessage(out)
}

func (c *Connection) reject(reason string) {
	metrics.MessagesRejectedTotal.WithLabelValues(reason).Inc()
	env := Envelope{Event: string(eventlog.KindActionRejected)}
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	env.Data = payload
	out, _ := json.Marshal(env)
	_ = c.channel.WriteMessage(out)
}

func (c *Connection) handleMessage(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.reject("MALFORMED")
		return
	}

	if env.Event != InAck && env.Event != InPing {
		if !c.limiter.Allow() {
			c.reject("RATE_LIMITED")
			return
		}
	}

	switch env.Event {
	case InPing:
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		_ = c.send(eventlog.Event{Kind: eventlog.KindPong})
	case InAck:
		var d ackData
		if json.Unmarshal(env.Data, &d) == nil {
			c.outbox.Ack(d.Seq)
		}
	case InRequestResync, InClientReady:
		c.handleResync(env)
	case InCreateRoom:
		c.handleCreateRoom(env)
	case InJoinRoom:
		c.handleJoinRoom(env)
	case InAddBot:
		c.handleAddBot()
	case InRemovePlayer:
		c.handleRemovePlayer(env)
	case InStartGame:
		c.handleStartGame()
	case InLeaveRoom, InLeaveGame:
		c.handleLeave()
	case InDeclare:
		c.handleDeclare(env)
	case InPlay:
		c.handlePlay(env)
	case InAcceptRedeal:
		c.dispatchSimple(room.ActionRequestRedeal)
	case InDeclineRedeal:
		c.dispatchSimple(room.ActionDeclineRedeal)
	case InPlayerReady:
		c.dispatchSimple(room.ActionPlayerReady)
	default:
		c.reject("UNKNOWN_EVENT")
	}
}

func (c *Connection) boundRoom() (string, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.seat, c.bound
}

func (c *Connection) bind(roomID string, seat int, name string) {
	c.mu.Lock()
	c.roomID = roomID
	c.seat = seat
	c.bound = true
	c.playerName = name
	c.mu.Unlock()

	mach, ok := c.mgr.Machine(roomID)
	if !ok {
		return
	}
	mach.Log.Subscribe(c.ID, seat, c.outbox)
	// Reconnect case: flush whatever queued while this seat was offline,
	// in order, before any new broadcast event can interleave ahead of it.
	for _, ev := range mach.Log.DrainOffline(seat) {
		_ = c.outbox.Push(ev)
	}
}

func (c *Connection) handleCreateRoom(env Envelope) {
	var d joinRoomData // reuses player_name field
	_ = json.Unmarshal(env.Data, &d)
	roomID, code, err := c.mgr.CreateRoom(c.ID, d.PlayerName)
	if err != nil {
		c.reject(err.Error())
		return
	}
	c.bind(roomID, 0, d.PlayerName)
	_ = c.send(eventlog.Event{Kind: eventlog.KindRoomCreated, Payload: map[string]string{"room_id": roomID, "room_code": code}})
}

func (c *Connection) handleJoinRoom(env Envelope) {
	var d joinRoomData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		c.reject("MALFORMED")
		return
	}
	roomID, seat, err := c.mgr.JoinRoom(d.RoomCode, c.ID, d.PlayerName)
	if err != nil {
		c.reject(mapErr(err))
		return
	}
	c.bind(roomID, seat, d.PlayerName)
	_ = c.send(eventlog.Event{Kind: eventlog.KindRoomJoined, Payload: map[string]int{"seat": seat}})
}

func (c *Connection) handleAddBot() {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	if _, err := c.mgr.AddBot(roomID, seat); err != nil {
		c.reject(mapErr(err))
	}
}

func (c *Connection) handleRemovePlayer(env Envelope) {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	var d removePlayerData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		c.reject("MALFORMED")
		return
	}
	if err := c.mgr.RemovePlayer(roomID, d.Seat, seat); err != nil {
		c.reject(mapErr(err))
	}
}

func (c *Connection) handleStartGame() {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	if err := c.mgr.StartGame(roomID, seat); err != nil {
		c.reject(mapErr(err))
	}
}

func (c *Connection) handleLeave() {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		return
	}
	_ = c.mgr.LeaveRoom(roomID, seat)
}

func (c *Connection) handleDeclare(env Envelope) {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	var d declareData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		c.reject("MALFORMED")
		return
	}
	res := make(chan room.ActionResult, 1)
	if err := c.mgr.Dispatch(roomID, room.Action{Kind: room.ActionDeclare, Seat: seat, Declared: d.Value, Reply: res}); err != nil {
		c.reject(mapErr(err))
		return
	}
	if r := <-res; r.Err != nil {
		c.reject(mapErr(r.Err))
	}
}

func (c *Connection) handlePlay(env Envelope) {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	var d playData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		c.reject("MALFORMED")
		return
	}
	play := cards.NewPlay(d.Pieces)
	res := make(chan room.ActionResult, 1)
	if err := c.mgr.Dispatch(roomID, room.Action{Kind: room.ActionPlay, Seat: seat, Play: play, Reply: res}); err != nil {
		c.reject(mapErr(err))
		return
	}
	if r := <-res; r.Err != nil {
		c.reject(mapErr(r.Err))
	}
}

func (c *Connection) dispatchSimple(kind room.ActionKind) {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	res := make(chan room.ActionResult, 1)
	if err := c.mgr.Dispatch(roomID, room.Action{Kind: kind, Seat: seat, Reply: res}); err != nil {
		c.reject(mapErr(err))
		return
	}
	if r := <-res; r.Err != nil {
		c.reject(mapErr(r.Err))
	}
}

func (c *Connection) handleResync(env Envelope) {
	roomID, seat, bound := c.boundRoom()
	if !bound {
		c.reject("NOT_IN_ROOM")
		return
	}
	var d resyncData
	_ = json.Unmarshal(env.Data, &d)

	mach, ok := c.mgr.Machine(roomID)
	if !ok {
		c.reject("ROOM_NOT_FOUND")
		return
	}
	events, err := mach.Log.Resync(d.FromSeq)
	if err != nil {
		// too old: lead with a room_snapshot of the current state, then
		// every event appended after the snapshot's sequence
		seq := mach.Log.Sequence()
		snap := eventlog.Event{RoomID: roomID, Sequence: seq, Kind: eventlog.KindRoomSnapshot, Payload: mach.Snapshot(), Timestamp: time.Now()}
		tail, _ := mach.Log.Resync(seq)
		events = append([]eventlog.Event{snap}, tail...)
		metrics.ResyncRequestsTotal.WithLabelValues("full_fallback").Inc()
	} else {
		metrics.ResyncRequestsTotal.WithLabelValues("incremental").Inc()
	}
	// hand_dealt is private: other seats' hands are left out of the response.
	visible := make([]eventlog.Event, 0, len(events))
	for _, ev := range events {
		if p, ok := ev.Payload.(map[string]any); ok && ev.Kind == eventlog.KindHandDealt && p["seat"] != seat {
			continue
		}
		visible = append(visible, ev)
	}
	_ = c.send(eventlog.Event{Kind: eventlog.KindResyncResponse, Payload: map[string]any{"events": visible}})
}

func mapErr(err error) string {
	switch err {
	case roommgr.ErrRoomNotFound:
		return "ROOM_NOT_FOUND"
	case roommgr.ErrNotHost:
		return "NOT_HOST"
	case room.ErrRoomFull:
		return "ROOM_FULL"
	case room.ErrNotYourTurn:
		return "NOT_YOUR_TURN"
	case room.ErrWrongPhase:
		return "WRONG_PHASE"
	case room.ErrIllegalPlay:
		return "ILLEGAL_PLAY"
	case room.ErrIllegalDeclaration:
		return "ILLEGAL_DECLARATION"
	case room.ErrGameAlreadyStarted:
		return "ROOM_NOT_FOUND"
	default:
		return "ERROR"
	}
}

func (c *Connection) onClose() {
	c.once.Do(func() {
		metrics.ConnectionsActive.Dec()
		close(c.closed)
		roomID, seat, bound := c.boundRoom()
		if bound {
			mach, ok := c.mgr.Machine(roomID)
			if ok {
				mach.Log.Unsubscribe(c.ID)
			}
			_ = c.mgr.SetConnected(roomID, seat, false)
		}
	})
}
