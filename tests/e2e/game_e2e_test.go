// Package e2e exercises full game flows against the in-process room stack
// (roommgr.Manager + room.Machine), the way the teacher's own e2e package
// drove full hands directly against game.Table rather than a live
// transport: no websocket round-trip, but every layer below the wire
// format is real, single-writer Machine goroutine included.
package e2e

import (
	"testing"
	"time"

	"liap-tui-server/internal/bot"
	"liap-tui-server/internal/cards"
	"liap-tui-server/internal/config"
	"liap-tui-server/internal/eventlog"
	"liap-tui-server/internal/room"
	"liap-tui-server/internal/roommgr"
)

func testConfig() config.Config {
	c := config.Default()
	c.RoomEmptyGrace = 50 * time.Millisecond
	c.InboundQueueSize = 64
	c.EventRingSize = 256
	c.OfflineQueueSize = 64
	c.BotDelayMin = 2 * time.Millisecond
	c.BotDelayMax = 8 * time.Millisecond
	return c
}

// dispatchSync enqueues a onto mach and blocks for its result. Manager.Dispatch
// is fire-and-forget (it only calls Enqueue), so any assertion that depends on
// an action's effect being visible must go through a reply channel like this
// one instead.
func dispatchSync(t *testing.T, mach *room.Machine, a room.Action) room.ActionResult {
	t.Helper()
	reply := make(chan room.ActionResult, 1)
	a.Reply = reply
	if !mach.Enqueue(a) {
		t.Fatal("Enqueue rejected the action: room is gone")
	}
	return <-reply
}

// TestE2ERoomCreationAndBotFill covers S1: a host creates a room and three
// bots fill the remaining seats.
func TestE2ERoomCreationAndBotFill(t *testing.T) {
	cfg := testConfig()
	mgr := roommgr.New(cfg, bot.New(cfg), nil)
	defer mgr.Stop()

	roomID, code, err := mgr.CreateRoom("alice-conn", "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if code == "" {
		t.Fatal("expected a non-empty room code")
	}

	for i := 0; i < 3; i++ {
		if _, err := mgr.AddBot(roomID, 0); err != nil {
			t.Fatalf("AddBot %d: %v", i, err)
		}
	}

	mach, ok := mgr.Machine(roomID)
	if !ok {
		t.Fatal("expected room to exist")
	}
	view := mach.Snapshot()
	if view.Phase != room.PhaseLobby {
		t.Fatalf("expected LOBBY before start_game, got %v", view.Phase)
	}
	for seat, p := range view.Players {
		if p.PlayerID == "" {
			t.Errorf("seat %d is still vacant after filling with bots", seat)
		}
	}
	if view.Players[0].Bot {
		t.Error("host seat should not be bot controlled")
	}
}

// TestE2EGameStartDealsHands covers S2: start_game deals a full hand to
// every seat and enters PREPARATION (falling straight through to
// DECLARATION if no hand is weak enough to offer a redeal).
func TestE2EGameStartDealsHands(t *testing.T) {
	roomID, mgr := startFullRoom(t)
	defer mgr.Stop()

	mach, _ := mgr.Machine(roomID)
	view := mach.Snapshot()
	if view.Phase != room.PhasePreparation && view.Phase != room.PhaseDeclaration {
		t.Fatalf("expected PREPARATION or DECLARATION after start_game, got %v", view.Phase)
	}
	for seat := 0; seat < 4; seat++ {
		if got := mach.Hand(seat).Len(); got != cards.HandSize {
			t.Errorf("seat %d: expected %d-piece hand, got %d", seat, cards.HandSize, got)
		}
	}
}

// startFullRoom creates a room, fills it with three bots, and starts the
// game, returning the roomID and the Manager driving it.
func startFullRoom(t *testing.T) (string, *roommgr.Manager) {
	t.Helper()
	cfg := testConfig()
	mgr := roommgr.New(cfg, bot.New(cfg), nil)

	roomID, _, err := mgr.CreateRoom("alice-conn", "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := mgr.AddBot(roomID, 0); err != nil {
			t.Fatalf("AddBot %d: %v", i, err)
		}
	}
	if err := mgr.StartGame(roomID, 0); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return roomID, mgr
}

// declineToDeclaration drives a freshly started room through PREPARATION
// (declining every redeal offer) to DECLARATION, returning the Machine.
func declineToDeclaration(t *testing.T, mgr *roommgr.Manager, roomID string) *room.Machine {
	t.Helper()
	mach, ok := mgr.Machine(roomID)
	if !ok {
		t.Fatal("room not found")
	}
	deadline := time.Now().Add(2 * time.Second)
	for mach.Snapshot().Phase == room.PhasePreparation {
		if time.Now().After(deadline) {
			t.Fatal("PREPARATION never resolved to DECLARATION")
		}
		acted := false
		for seat := 0; seat < 4; seat++ {
			if mach.WeakRedealPending(seat) {
				if res := dispatchSync(t, mach, room.Action{Kind: room.ActionDeclineRedeal, Seat: seat}); res.Err != nil {
					t.Fatalf("decline redeal seat %d: %v", seat, res.Err)
				}
				acted = true
				break
			}
		}
		if !acted {
			time.Sleep(5 * time.Millisecond)
		}
	}
	return mach
}

// waitForPhase polls until mach reaches phase, for assertions that depend on
// a transition (e.g. beginTurn, offerNextRedeal's cascade into
// beginDeclaration) that a handler applies after it has already replied to
// the action that triggered it.
func waitForPhase(t *testing.T, mach *room.Machine, phase room.Phase, timeout time.Duration) room.RoomView {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		view := mach.Snapshot()
		if view.Phase == phase {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for phase %v, still in %v", phase, view.Phase)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// nextDeclarer finds the seat DeclareContext reports is on turn, or -1 if
// declaration has finished.
func nextDeclarer(mach *room.Machine) int {
	for seat := 0; seat < 4; seat++ {
		if yourTurn, _, _ := mach.DeclareContext(seat); yourTurn {
			return seat
		}
	}
	return -1
}

// TestE2EDeclarationSumRuleRejectsEight covers S3: the final declarer may
// not choose a value that would make the round's declarations sum to 8.
func TestE2EDeclarationSumRuleRejectsEight(t *testing.T) {
	roomID, mgr := startFullRoom(t)
	defer mgr.Stop()
	mach := declineToDeclaration(t, mgr, roomID)

	declared := make(map[int]int)
	for i := 0; i < 3; i++ {
		seat := nextDeclarer(mach)
		if seat < 0 {
			t.Fatal("expected three more seats to declare before the last")
		}
		_, isLast, sum := mach.DeclareContext(seat)
		if isLast {
			t.Fatalf("seat %d unexpectedly reported as last declarer", seat)
		}
		value := 2
		if sum+value == 8 {
			value = 3 // keep the running sum off 8 until the forced final check
		}
		if res := dispatchSync(t, mach, room.Action{Kind: room.ActionDeclare, Seat: seat, Declared: value}); res.Err != nil {
			t.Fatalf("declare seat %d: %v", seat, res.Err)
		}
		declared[seat] = value
	}

	lastSeat := nextDeclarer(mach)
	if lastSeat < 0 {
		t.Fatal("expected exactly one declarer left")
	}
	_, isLast, sum := mach.DeclareContext(lastSeat)
	if !isLast {
		t.Fatalf("seat %d should be the last declarer", lastSeat)
	}
	forbidden := 8 - sum

	reply := make(chan room.ActionResult, 1)
	mach.Enqueue(room.Action{Kind: room.ActionDeclare, Seat: lastSeat, Declared: forbidden, Reply: reply})
	res := <-reply
	if res.Err != room.ErrIllegalDeclaration {
		t.Fatalf("expected ErrIllegalDeclaration for sum-to-8, got %v", res.Err)
	}

	// A value that avoids 8 is accepted and the round advances to TURN.
	allowed := forbidden + 1
	if allowed > 8 {
		allowed = forbidden - 1
	}
	if res := dispatchSync(t, mach, room.Action{Kind: room.ActionDeclare, Seat: lastSeat, Declared: allowed}); res.Err != nil {
		t.Fatalf("declare seat %d with legal value: %v", lastSeat, res.Err)
	}
	// handleDeclare replies before beginTurn() runs when it's the round's
	// final declaration, so the phase flip must be polled rather than read
	// straight off the reply.
	waitForPhase(t, mach, room.PhaseTurn, time.Second)
}

// declareAllZeroE2E drives DECLARATION to completion with every seat
// declaring 0, adjusting the last declarer's value by 1 if 0 would sum the
// round to 8.
func declareAllZeroE2E(t *testing.T, mach *room.Machine) {
	t.Helper()
	for {
		seat := nextDeclarer(mach)
		if seat < 0 {
			return
		}
		_, isLast, sum := mach.DeclareContext(seat)
		value := 0
		if isLast && sum+value == 8 {
			value = 1
		}
		if res := dispatchSync(t, mach, room.Action{Kind: room.ActionDeclare, Seat: seat, Declared: value}); res.Err != nil {
			t.Fatalf("declare seat %d: %v", seat, res.Err)
		}
	}
}

// absentPiece returns a (kind, color) pair not present in hand, which
// always exists since a hand holds at most 8 of the 14 distinct pieces.
func absentPiece(hand cards.Hand) cards.Piece {
	for _, color := range []cards.Color{cards.RED, cards.BLACK} {
		for kind := cards.GENERAL; kind <= cards.SOLDIER; kind++ {
			p := cards.Piece{Kind: kind, Color: color}
			if !hand.Contains([]cards.Piece{p}) {
				return p
			}
		}
	}
	panic("hand impossibly contains all 14 distinct pieces")
}

// TestE2ELegalAndIllegalFollow covers S4: a follower that offers the wrong
// piece count, or a piece it doesn't hold, is rejected; a legal single is
// accepted and advances the trick.
func TestE2ELegalAndIllegalFollow(t *testing.T) {
	roomID, mgr := startFullRoom(t)
	defer mgr.Stop()
	mach := declineToDeclaration(t, mgr, roomID)
	declareAllZeroE2E(t, mach)
	waitForPhase(t, mach, room.PhaseTurn, time.Second)

	leader := -1
	for seat := 0; seat < 4; seat++ {
		if yourTurn, _, hasLead := mach.TrickContext(seat); yourTurn && !hasLead {
			leader = seat
			break
		}
	}
	if leader < 0 {
		t.Fatal("expected exactly one leader seat")
	}
	leadHand := mach.Hand(leader)
	leadPiece := leadHand.Pieces[0]
	if res := dispatchSync(t, mach, room.Action{Kind: room.ActionPlay, Seat: leader, Play: cards.NewPlay([]cards.Piece{leadPiece})}); res.Err != nil {
		t.Fatalf("leader play: %v", res.Err)
	}

	follower := (leader + 1) % 4
	yourTurn, lead, hasLead := mach.TrickContext(follower)
	if !yourTurn || !hasLead {
		t.Fatalf("expected seat %d to be on turn following a lead", follower)
	}
	if len(lead.Pieces) != 1 {
		t.Fatalf("expected a single-piece lead, got %d pieces", len(lead.Pieces))
	}

	followerHand := mach.Hand(follower)
	if followerHand.Len() < 2 {
		t.Skip("follower hand too small to test a too-many-pieces follow")
	}

	// Wrong piece count: two pieces can't follow a single-piece lead.
	reply := make(chan room.ActionResult, 1)
	mach.Enqueue(room.Action{Kind: room.ActionPlay, Seat: follower, Play: cards.NewPlay(followerHand.Pieces[:2]), Reply: reply})
	if res := <-reply; res.Err != room.ErrIllegalPlay {
		t.Fatalf("expected ErrIllegalPlay for a 2-piece follow of a 1-piece lead, got %v", res.Err)
	}

	// Piece not in hand.
	reply = make(chan room.ActionResult, 1)
	mach.Enqueue(room.Action{Kind: room.ActionPlay, Seat: follower, Play: cards.NewPlay([]cards.Piece{absentPiece(followerHand)}), Reply: reply})
	if res := <-reply; res.Err != room.ErrIllegalPlay {
		t.Fatalf("expected ErrIllegalPlay for a piece not in hand, got %v", res.Err)
	}

	// A legal single from the follower's actual hand is accepted.
	reply = make(chan room.ActionResult, 1)
	mach.Enqueue(room.Action{Kind: room.ActionPlay, Seat: follower, Play: cards.NewPlay(followerHand.Pieces[:1]), Reply: reply})
	if res := <-reply; res.Err != nil {
		t.Fatalf("expected the legal single follow to be accepted, got %v", res.Err)
	}
	if got, _, _ := mach.TrickContext(follower); got {
		t.Error("follower should no longer be on turn after a successful play")
	}
}

// TestE2EDisconnectBotTakeoverAndReconnect covers S5: a disconnected seat
// is taken over by a bot, and reconnecting under the same name restores
// human control and cancels any bot timer still outstanding for it.
func TestE2EDisconnectBotTakeoverAndReconnect(t *testing.T) {
	roomID, mgr := startFullRoom(t)
	defer mgr.Stop()
	mach, _ := mgr.Machine(roomID)

	if err := mgr.SetConnected(roomID, 0, false); err != nil {
		t.Fatalf("SetConnected(false): %v", err)
	}
	if !mach.IsBot(0) {
		t.Fatal("expected seat 0 to become bot controlled on disconnect")
	}

	// Reconnect under the same name, as the gateway's join_room handler
	// does for a returning player.
	gotRoomID, seat, err := mgr.JoinRoom(mustRoomCode(t, mgr, roomID), "alice-conn-2", "Alice")
	if err != nil {
		t.Fatalf("reconnect JoinRoom: %v", err)
	}
	if gotRoomID != roomID || seat != 0 {
		t.Fatalf("expected reconnect to restore seat 0 of %s, got seat %d of %s", roomID, seat, gotRoomID)
	}
	if mach.IsBot(0) {
		t.Fatal("expected seat 0 to return to human control after reconnect")
	}
}

func mustRoomCode(t *testing.T, mgr *roommgr.Manager, roomID string) string {
	t.Helper()
	for _, s := range mgr.ListRooms(false) {
		if s.RoomID == roomID {
			return s.RoomCode
		}
	}
	t.Fatalf("room %s not found in ListRooms", roomID)
	return ""
}

// TestE2EResyncTooOldFallsBackToFullReplay covers S6: once a connection's
// acked sequence predates the ring's retained floor, Resync reports
// ErrTooOld, while Resync(0) still returns the ring's retained tail. (The
// gateway answers such a client with a room_snapshot instead.)
func TestE2EResyncTooOldFallsBackToFullReplay(t *testing.T) {
	cfg := testConfig()
	cfg.EventRingSize = 5
	mgr := roommgr.New(cfg, bot.New(cfg), nil)
	defer mgr.Stop()

	roomID, _, err := mgr.CreateRoom("alice-conn", "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	mach, _ := mgr.Machine(roomID)

	oldSeq := mach.Log.Sequence()
	for i := 0; i < 50; i++ {
		mach.Log.Append(eventlog.KindPong, nil)
	}

	if _, err := mach.Log.Resync(oldSeq); err != eventlog.ErrTooOld {
		t.Fatalf("expected ErrTooOld resyncing from a sequence the ring no longer retains, got %v", err)
	}

	events, err := mach.Log.Resync(0)
	if err != nil {
		t.Fatalf("fallback Resync(0): %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected the fallback replay to return the retained tail of events")
	}
	if len(events) > cfg.EventRingSize {
		t.Fatalf("fallback replay returned more events than the ring retains: %d > %d", len(events), cfg.EventRingSize)
	}
}
