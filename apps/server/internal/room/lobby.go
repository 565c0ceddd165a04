package room

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"slaphard/apps/server/internal/codec"
	"slaphard/apps/server/internal/journal"
	"slaphard/engine"
)

// CreateRoom mints a room with the caller as host and first member.
func (h *Hub) CreateRoom(c Conn, p codec.CreateRoomPayload) {
	userID := uuid.NewString()
	roomID := uuid.NewString()

	code, err := h.mintRoomCode()
	if err != nil {
		h.sendError(c, codec.CodeInternalError, "could not allocate a room code")
		return
	}

	now := time.Now().UnixMilli()
	room := &RoomState{
		RoomID:     roomID,
		RoomCode:   code,
		Status:     StatusLobby,
		HostUserID: userID,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	room.AddMember(userID, p.DisplayName)

	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := h.saveRoom(room); err != nil {
		h.dropRuntime(rt)
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}
	h.setUserRoom(userID, roomID)
	h.reg.bind(c, userID, roomID)
	h.journalTransition(room, journal.TransitionCreate)
	c.Send(codec.NewRoomState(room.PublicView(), userID))
}

// mintRoomCode retries generation until the code is free in the store.
func (h *Hub) mintRoomCode() (string, error) {
	for i := 0; i < codeRetries; i++ {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		ctx, cancel := storeCtx()
		_, err = h.store.GetRoomByCode(ctx, code)
		cancel()
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("room code space exhausted")
}

// JoinRoom seats a new member, or reattaches a known userId to its seat.
func (h *Hub) JoinRoom(c Conn, p codec.JoinRoomPayload) {
	ctx, cancel := storeCtx()
	found, err := h.store.GetRoomByCode(ctx, p.RoomCode)
	cancel()
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "no room with that code")
		return
	}

	rt := h.runtimeFor(found.RoomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	// Reload under the lock; the lookup above raced other mutations.
	room, err := h.loadRoom(found.RoomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}

	if p.UserID != "" {
		if m := room.MemberByUserID(p.UserID); m != nil {
			h.reconnect(rt, c, room, m, p.DisplayName)
			return
		}
	}

	if room.Status != StatusLobby {
		h.sendError(c, codec.CodeNotInLobby, "game already started")
		return
	}
	if len(room.Members) >= engine.MaxPlayers {
		h.sendError(c, codec.CodeRoomFull, "room is full")
		return
	}

	userID := uuid.NewString()
	room.AddMember(userID, p.DisplayName)
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}
	h.setUserRoom(userID, room.RoomID)
	h.reg.bind(c, userID, room.RoomID)
	h.journalTransition(room, journal.TransitionJoin)
	h.broadcastRoomState(room)
}

// reconnect reattaches an existing member, works in any room status.
func (h *Hub) reconnect(rt *runtime, c Conn, room *RoomState, m *Member, displayName string) {
	m.Connected = true
	m.DisplayName = displayName
	if room.Game != nil {
		if pl := room.Game.PlayerByUserID(m.UserID); pl != nil {
			pl.Connected = true
			pl.DisplayName = displayName
			room.Game.Version++
		}
	}
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}
	h.setUserRoom(m.UserID, room.RoomID)
	h.reg.bind(c, m.UserID, room.RoomID)
	h.broadcastRoomState(room)
	if room.Game != nil {
		h.broadcastGameState(room)
	}
	h.scheduleTimers(rt, room)
}

// LeaveRoom is the explicit room.leave command.
func (h *Hub) LeaveRoom(c Conn) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	h.reg.unbindUser(userID)
	h.clearUserRoom(userID)

	room, err := h.loadRoom(roomID)
	if err != nil {
		return
	}

	if room.Status == StatusLobby {
		room.RemoveMember(userID)
		if len(room.Members) == 0 {
			h.deleteRoom(rt, room)
			return
		}
		if room.HostUserID == userID {
			room.HostUserID = room.Members[0].UserID
		}
		room.Version++
		if err := h.saveRoom(room); err != nil {
			return
		}
		h.journalTransition(room, journal.TransitionLeave)
		h.broadcastRoomState(room)
		return
	}

	// Mid-game and post-game leavers keep their seat; the engine plays
	// their flips via timeout until the match ends.
	h.markDisconnected(rt, room, userID)
	h.journalTransition(room, journal.TransitionLeave)
}

// Disconnect handles a socket close from the gateway. The registry is
// only mutated under the room lock so it stays consistent with the room
// state other handlers observe.
func (h *Hub) Disconnect(c Conn) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	_, _, last := h.reg.unbind(c.ID())
	if !last {
		return
	}
	room, err := h.loadRoom(roomID)
	if err != nil {
		return
	}
	h.markDisconnected(rt, room, userID)
}

// markDisconnected flips the connected bit in the room and, when a game
// is running, in the engine state too. Called with rt.mu held.
func (h *Hub) markDisconnected(rt *runtime, room *RoomState, userID string) {
	m := room.MemberByUserID(userID)
	if m == nil {
		return
	}
	m.Connected = false
	if room.Game != nil {
		if pl := room.Game.PlayerByUserID(userID); pl != nil {
			pl.Connected = false
			room.Game.Version++
		}
	}
	room.Version++
	if err := h.saveRoom(room); err != nil {
		return
	}
	h.broadcastRoomState(room)

	// A window waiting on the departed player may now have every remaining
	// connected player's slap; count-gated windows carry no deadline timer,
	// so resolve it here or it stays open forever.
	if room.Game != nil && room.Game.WindowResolvableByCount() {
		h.applyGameEvent(rt, nil, "", engine.Event{Type: engine.EventResolveSlapWindow})
		return
	}
	h.scheduleTimers(rt, room)
}

// deleteRoom removes an emptied room everywhere. Called with rt.mu held.
func (h *Hub) deleteRoom(rt *runtime, room *RoomState) {
	ctx, cancel := storeCtx()
	if err := h.store.DeleteRoom(ctx, room); err != nil {
		h.log.Error().Err(err).Str("room", room.RoomID).Msg("delete room failed")
	}
	cancel()
	rec := h.journalRecord(room)
	go func() {
		ctx, cancel := storeCtx()
		defer cancel()
		_ = h.journal.WriteRoomSnapshot(ctx, rec, journal.TransitionDelete)
		_ = h.journal.MarkRoomDeleted(ctx, rec.RoomID)
	}()
	h.dropRuntime(rt)
}

// SetReady toggles the caller's lobby ready flag.
func (h *Hub) SetReady(c Conn, p codec.ReadyPayload) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, err := h.loadRoom(roomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}
	if room.Status != StatusLobby {
		h.sendError(c, codec.CodeNotInLobby, "ready only applies in the lobby")
		return
	}
	m := room.MemberByUserID(userID)
	if m == nil {
		h.sendError(c, codec.CodeRoomNotFound, "not a member")
		return
	}
	if m.Ready == p.Ready {
		// Idempotent; nothing to broadcast.
		return
	}
	m.Ready = p.Ready
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}
	h.broadcastRoomState(room)
}

// Kick removes a lobby member. Host only; ready members and the host
// itself are off limits.
func (h *Hub) Kick(c Conn, p codec.KickPayload) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, err := h.loadRoom(roomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}
	if room.Status != StatusLobby {
		h.sendError(c, codec.CodeNotInLobby, "kick only applies in the lobby")
		return
	}
	if room.HostUserID != userID {
		h.sendError(c, codec.CodeNotHost, "only the host can kick")
		return
	}
	target := room.MemberByUserID(p.UserID)
	switch {
	case target == nil:
		h.sendError(c, codec.CodeInvalidTarget, "no such member")
		return
	case target.UserID == userID:
		h.sendError(c, codec.CodeInvalidTarget, "cannot kick yourself")
		return
	case target.Ready:
		h.sendError(c, codec.CodeInvalidTarget, "cannot kick a ready player")
		return
	}

	room.RemoveMember(p.UserID)
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}
	h.clearUserRoom(p.UserID)

	kicked := codec.NewRoomKicked(room.RoomCode, userID)
	for _, tc := range h.reg.connsOf(p.UserID) {
		tc.Send(kicked)
	}
	h.reg.unbindUser(p.UserID)

	h.journalTransition(room, journal.TransitionLeave)
	h.broadcastRoomState(room)
}

// StartGame deals a fresh match. Host only, lobby only, two players
// minimum.
func (h *Hub) StartGame(c Conn) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, err := h.loadRoom(roomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}
	if room.Status != StatusLobby {
		h.sendError(c, codec.CodeNotInLobby, "game already started")
		return
	}
	if room.HostUserID != userID {
		h.sendError(c, codec.CodeNotHost, "only the host can start")
		return
	}
	if len(room.Members) < engine.MinPlayers {
		h.sendError(c, codec.CodeNotInLobby, "need at least 2 players")
		return
	}

	seats := make([]engine.SeatedPlayer, len(room.Members))
	for i, m := range room.Members {
		seats[i] = engine.SeatedPlayer{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Connected:   m.Connected,
		}
	}
	game, err := engine.NewGame(seats, engine.NewGameOptions{
		Seed:    uuid.NewString(),
		Shuffle: true,
		Config:  h.cfg,
	})
	if err != nil {
		h.sendError(c, codec.CodeInternalError, err.Error())
		return
	}

	room.Status = StatusInGame
	room.Game = game
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}

	// The match id gates event journaling, so this one call is sync.
	ctx, cancel := storeCtx()
	matchID, err := h.journal.StartMatch(ctx, room.RoomID)
	cancel()
	if err != nil {
		h.log.Error().Err(err).Str("room", room.RoomID).Msg("start match journal failed")
	}
	rt.matchID = matchID

	h.journalTransition(room, journal.TransitionStart)
	h.broadcastRoomState(room)
	h.broadcastGameState(room)
	h.scheduleTimers(rt, room)
}

// StopGame ends the current match without a winner and returns the room
// to the lobby. Mid-game this is host only; once the game finished any
// member can reset.
func (h *Hub) StopGame(c Conn) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, err := h.loadRoom(roomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}
	if room.MemberByUserID(userID) == nil {
		h.sendError(c, codec.CodeRoomNotFound, "not a member")
		return
	}
	switch room.Status {
	case StatusInGame:
		if room.HostUserID != userID {
			h.sendError(c, codec.CodeNotHost, "only the host can stop a running game")
			return
		}
	case StatusFinished:
		// Any member can return the table to the lobby.
	default:
		h.sendError(c, codec.CodeNotInGame, "no game to stop")
		return
	}

	stopped := room.Status == StatusInGame
	rt.stopTimerLocked()
	matchID := rt.matchID
	rt.matchID = ""
	rt.resolved = nil

	room.Status = StatusLobby
	room.Game = nil
	for i := range room.Members {
		room.Members[i].Ready = false
	}
	room.Version++
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}

	if stopped && matchID != "" {
		summary := map[string]any{"reason": "GAME_STOPPED", "byUserId": userID}
		go func() {
			ctx, cancel := storeCtx()
			defer cancel()
			_ = h.journal.FinishMatch(ctx, matchID, "", summary)
		}()
	}
	h.journalTransition(room, journal.TransitionStop)
	h.broadcastRoomState(room)
}

// --- user-room index helpers ---

func (h *Hub) setUserRoom(userID, roomID string) {
	ctx, cancel := storeCtx()
	defer cancel()
	if err := h.store.SetUserRoom(ctx, userID, roomID); err != nil {
		h.log.Warn().Err(err).Str("user", userID).Msg("user-room index write failed")
	}
}

func (h *Hub) clearUserRoom(userID string) {
	ctx, cancel := storeCtx()
	defer cancel()
	if err := h.store.ClearUserRoom(ctx, userID); err != nil {
		h.log.Warn().Err(err).Str("user", userID).Msg("user-room index clear failed")
	}
}
