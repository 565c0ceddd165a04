package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slaphard/apps/server/internal/codec"
	"slaphard/apps/server/internal/journal"
	"slaphard/apps/server/internal/metrics"
	"slaphard/engine"
)

const (
	// Late slaps against an already-resolved window are dropped without a
	// penalty for this long after resolution.
	dedupGraceMs = 250
	// How many resolved windows each room remembers for dedup.
	dedupKeep = 8

	storeTimeout = 3 * time.Second
)

// Hub is the room orchestrator: it serializes every mutation per room,
// drives the engine, persists through the store and journal, fans out
// snapshots and manages timers.
type Hub struct {
	store   Store
	journal journal.Service
	met     *metrics.Metrics
	log     zerolog.Logger
	cfg     engine.Config

	mu    sync.Mutex
	rooms map[string]*runtime
	reg   *registry
}

// runtime is the per-room serialization point. Everything that mutates a
// room runs under rt.mu; distinct rooms proceed in parallel.
type runtime struct {
	mu       sync.Mutex
	roomID   string
	timer    *time.Timer
	timerGen uint64
	matchID  string
	resolved []resolvedSlap
}

type resolvedSlap struct {
	eventID      string
	resolvedAt   int64
	participants map[string]bool
}

func NewHub(store Store, jn journal.Service, met *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		store:   store,
		journal: jn,
		met:     met,
		log:     log.With().Str("component", "hub").Logger(),
		cfg:     engine.DefaultConfig(),
		rooms:   make(map[string]*runtime),
		reg:     newRegistry(),
	}
}

func (h *Hub) runtimeFor(roomID string) *runtime {
	h.mu.Lock()
	defer h.mu.Unlock()
	rt := h.rooms[roomID]
	if rt == nil {
		rt = &runtime{roomID: roomID}
		h.rooms[roomID] = rt
		if h.met != nil {
			h.met.RoomsActive.Set(float64(len(h.rooms)))
		}
	}
	return rt
}

// dropRuntime is called with rt.mu held, after the room is gone from the
// store.
func (h *Hub) dropRuntime(rt *runtime) {
	rt.stopTimerLocked()
	h.mu.Lock()
	delete(h.rooms, rt.roomID)
	if h.met != nil {
		h.met.RoomsActive.Set(float64(len(h.rooms)))
	}
	h.mu.Unlock()
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// --- wire helpers ---

func (h *Hub) sendError(c Conn, code, msg string) {
	if c == nil {
		return
	}
	if h.met != nil {
		h.met.CommandErrors.WithLabelValues(code).Inc()
	}
	c.Send(codec.NewError(code, msg))
}

func recoverableCode(code string) bool {
	switch code {
	case codec.CodeNotYourTurn, codec.CodeSlapWindowActive, codec.CodeNoSlapWindow,
		codec.CodeInvalidEventID, codec.CodeAlreadySlapped:
		return true
	}
	return false
}

// broadcastRoomState sends a per-recipient room.state to every socket of
// every member.
func (h *Hub) broadcastRoomState(room *RoomState) {
	view := room.PublicView()
	for _, userID := range room.MemberUserIDs() {
		frame := codec.NewRoomState(view, userID)
		for _, c := range h.reg.connsOf(userID) {
			c.Send(frame)
		}
	}
}

// broadcastGameState projects and sends game.state per member.
func (h *Hub) broadcastGameState(room *RoomState) {
	if room.Game == nil {
		return
	}
	for _, userID := range room.MemberUserIDs() {
		snap := engine.ProjectFor(room.Game, userID)
		frame := codec.NewGameState(snap, room.Game.Version)
		for _, c := range h.reg.connsOf(userID) {
			c.Send(frame)
		}
	}
}

// sendSnapshots resyncs one socket with fresh room and game state.
func (h *Hub) sendSnapshots(c Conn, room *RoomState, userID string) {
	c.Send(codec.NewRoomState(room.PublicView(), userID))
	if room.Game != nil {
		snap := engine.ProjectFor(room.Game, userID)
		c.Send(codec.NewGameState(snap, room.Game.Version))
	}
}

// broadcastFrame sends one prebuilt frame to every member socket.
func (h *Hub) broadcastFrame(room *RoomState, frame []byte) {
	for _, userID := range room.MemberUserIDs() {
		for _, c := range h.reg.connsOf(userID) {
			c.Send(frame)
		}
	}
}

// --- journal helpers (fire-and-forget) ---

func (h *Hub) journalRecord(room *RoomState) journal.RoomRecord {
	rec := journal.RoomRecord{
		RoomID:     room.RoomID,
		RoomCode:   room.RoomCode,
		Status:     string(room.Status),
		HostUserID: room.HostUserID,
		Version:    room.Version,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
	snapshot := struct {
		Room View `json:"room"`
		Game any  `json:"game,omitempty"`
	}{Room: room.PublicView()}
	if room.Game != nil {
		// Spectator projection: hands and slap internals stay out of the
		// journal.
		snapshot.Game = engine.ProjectFor(room.Game, "")
	}
	rec.Snapshot = snapshot
	return rec
}

func (h *Hub) journalTransition(room *RoomState, transition string) {
	rec := h.journalRecord(room)
	go func() {
		ctx, cancel := storeCtx()
		defer cancel()
		_ = h.journal.UpsertRoomMetadata(ctx, rec)
		_ = h.journal.WriteRoomSnapshot(ctx, rec, transition)
	}()
}

func (h *Hub) journalMatchEvent(matchID, eventType string, payload any) {
	if matchID == "" {
		return
	}
	go func() {
		ctx, cancel := storeCtx()
		defer cancel()
		_ = h.journal.AppendMatchEvent(ctx, matchID, eventType, payload)
	}()
}

// --- store helpers ---

func (h *Hub) loadRoom(roomID string) (*RoomState, error) {
	ctx, cancel := storeCtx()
	defer cancel()
	return h.store.GetRoomByID(ctx, roomID)
}

func (h *Hub) saveRoom(room *RoomState) error {
	room.UpdatedAt = time.Now().UnixMilli()
	ctx, cancel := storeCtx()
	defer cancel()
	if err := h.store.SaveRoom(ctx, room); err != nil {
		h.log.Error().Err(err).Str("room", room.RoomID).Msg("save room failed")
		return err
	}
	return nil
}

// --- timers ---

func (rt *runtime) stopTimerLocked() {
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
	rt.timerGen++
}

// scheduleTimers enforces the one-timer-per-room discipline. Called with
// rt.mu held after every mutation.
func (h *Hub) scheduleTimers(rt *runtime, room *RoomState) {
	rt.stopTimerLocked()
	if room.Status != StatusInGame || room.Game == nil || room.Game.Status != engine.StatusInGame {
		return
	}
	g := room.Game
	gen := rt.timerGen
	if g.SlapWindow.Active {
		// SAME_CARD, and ACTION at a big table, resolve only by slap
		// count: every connected player must slap.
		if g.SlapWindow.Reason == engine.WindowReasonSameCard {
			return
		}
		if g.SlapWindow.Reason == engine.WindowReasonAction && len(g.Players) >= 5 {
			return
		}
		delay := time.Duration(g.SlapWindow.DeadlineServerTime-time.Now().UnixMilli()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		rt.timer = time.AfterFunc(delay, func() {
			h.onTimer(rt, gen, engine.Event{Type: engine.EventResolveSlapWindow})
		})
		return
	}
	delay := time.Duration(g.Config.TurnTimeoutMs) * time.Millisecond
	rt.timer = time.AfterFunc(delay, func() {
		h.onTimer(rt, gen, engine.Event{Type: engine.EventTurnTimeout})
	})
}

// onTimer validates the generation captured at scheduling time, so a
// stale callback racing a reschedule is dropped.
func (h *Hub) onTimer(rt *runtime, gen uint64, ev engine.Event) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.timerGen != gen {
		return
	}
	h.applyGameEvent(rt, nil, "", ev)
}

// --- dedup ring ---

func (rt *runtime) rememberResolved(eventID string, participants []string, nowMs int64) {
	set := make(map[string]bool, len(participants))
	for _, id := range participants {
		set[id] = true
	}
	rt.resolved = append(rt.resolved, resolvedSlap{
		eventID:      eventID,
		resolvedAt:   nowMs,
		participants: set,
	})
	if len(rt.resolved) > dedupKeep {
		rt.resolved = rt.resolved[len(rt.resolved)-dedupKeep:]
	}
}

// isLateSlap reports whether a slap targets a just-resolved window from a
// player who already participated in it.
func (rt *runtime) isLateSlap(eventID, userID string, nowMs int64) bool {
	for i := len(rt.resolved) - 1; i >= 0; i-- {
		r := rt.resolved[i]
		if r.eventID != eventID {
			continue
		}
		return r.participants[userID] && nowMs-r.resolvedAt <= dedupGraceMs
	}
	return false
}

// --- engine funnel ---

// applyGameEvent runs one engine event under the room lock: load, apply,
// persist, broadcast effects then snapshots, reschedule. c is the origin
// socket for error reporting, nil for timer-driven events.
func (h *Hub) applyGameEvent(rt *runtime, c Conn, userID string, ev engine.Event) {
	room, err := h.loadRoom(rt.roomID)
	if err != nil {
		h.sendError(c, codec.CodeRoomNotFound, "room is gone")
		return
	}
	if room.Status != StatusInGame || room.Game == nil {
		h.sendError(c, codec.CodeNotInGame, "no game in progress")
		return
	}

	nowMs := time.Now().UnixMilli()
	next, effects, err := engine.Apply(room.Game, ev, nowMs)
	if err != nil {
		code := string(engine.CodeOf(err))
		// ALREADY_SLAPPED is deduped silently; everything else surfaces.
		if code != codec.CodeAlreadySlapped {
			h.sendError(c, code, err.Error())
		}
		if c != nil && recoverableCode(code) {
			h.sendSnapshots(c, room, userID)
		}
		return
	}

	room.Game = next
	room.Version++
	finished := next.Status == engine.StatusFinished
	if finished {
		room.Status = StatusFinished
	}
	if err := h.saveRoom(room); err != nil {
		h.sendError(c, codec.CodeInternalError, "room save failed")
		return
	}

	// Cause before state: effect frames go out before the snapshots.
	for _, eff := range effects {
		h.emitEffect(rt, room, eff, nowMs)
	}
	h.broadcastGameState(room)

	if finished {
		h.finishMatch(rt, room)
		h.broadcastRoomState(room)
	}
	h.scheduleTimers(rt, room)
}

func (h *Hub) emitEffect(rt *runtime, room *RoomState, eff engine.Effect, nowMs int64) {
	switch e := eff.(type) {
	case engine.SlapWindowOpenEffect:
		payload := codec.SlapWindowOpenPayload{
			EventID:            e.EventID,
			Reason:             engine.WindowReasonDictionary[e.Reason],
			StartServerTime:    e.StartServerTime,
			DeadlineServerTime: e.DeadlineServerTime,
			SlapWindowMs:       e.SlapWindowMs,
		}
		if e.Reason == engine.WindowReasonAction {
			payload.ActionCard = e.ActionCard.String()
		}
		h.broadcastFrame(room, codec.NewSlapWindowOpen(payload))

	case engine.SlapResultEffect:
		payload := codec.SlapResultPayload{
			EventID:        e.EventID,
			OrderedUserIDs: e.OrderedUserIDs,
			LoserUserID:    e.LoserUserID,
			Reason:         engine.SlapResultReasonDictionary[e.Reason],
			PileTaken:      codec.CardNames(e.PileTaken),
		}
		h.broadcastFrame(room, codec.NewSlapResult(payload))
		rt.rememberResolved(e.EventID, e.OrderedUserIDs, nowMs)
		h.journalMatchEvent(rt.matchID, journal.MatchEventSlapResult, payload)

	case engine.PenaltyEffect:
		payload := codec.PenaltyPayload{
			UserID:    e.UserID,
			Type:      engine.PenaltyTypeDictionary[e.PenaltyType],
			PileTaken: codec.CardNames(e.PileTaken),
		}
		h.broadcastFrame(room, codec.NewPenalty(payload))
		eventType := journal.MatchEventPenalty
		if e.PenaltyType == engine.PenaltyTurnTimeout {
			eventType = journal.MatchEventTimeout
		}
		h.journalMatchEvent(rt.matchID, eventType, payload)

	case engine.GameFinishedEffect:
		h.journalMatchEvent(rt.matchID, journal.MatchEventWin, map[string]any{
			"winnerUserId": e.WinnerUserID,
		})
	}
}

// finishMatch closes the journal match and writes the FINISH snapshot.
// Called with rt.mu held once the room reached FINISHED.
func (h *Hub) finishMatch(rt *runtime, room *RoomState) {
	rt.stopTimerLocked()
	matchID := rt.matchID
	rt.matchID = ""
	winner := ""
	if room.Game != nil {
		winner = room.Game.WinnerUserID
	}
	h.journalTransition(room, journal.TransitionFinish)
	if matchID == "" {
		return
	}
	summary := map[string]any{
		"roomId":       room.RoomID,
		"winnerUserId": winner,
		"players":      room.MemberUserIDs(),
	}
	go func() {
		ctx, cancel := storeCtx()
		defer cancel()
		_ = h.journal.FinishMatch(ctx, matchID, winner, summary)
	}()
}

// --- gameplay commands ---

// Flip handles game.flip from one socket.
func (h *Hub) Flip(c Conn, p codec.FlipPayload) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	h.applyGameEvent(rt, c, userID, engine.Event{
		Type:       engine.EventFlip,
		UserID:     userID,
		ClientSeq:  p.ClientSeq,
		ClientTime: p.ClientTime,
	})
}

// Slap handles game.slap from one socket.
func (h *Hub) Slap(c Conn, p codec.SlapPayload) {
	userID, roomID, ok := h.reg.identity(c.ID())
	if !ok {
		h.sendError(c, codec.CodeRoomNotFound, "not in a room")
		return
	}
	rt := h.runtimeFor(roomID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	if rt.isLateSlap(p.EventID, userID, nowMs) {
		// The window just resolved with this player in it; dropping the
		// packet beats charging a FALSE_SLAP for a race they lost by
		// milliseconds.
		return
	}
	if h.met != nil {
		h.observeReaction(rt, p, nowMs)
	}
	h.applyGameEvent(rt, c, userID, engine.Event{
		Type:       engine.EventSlap,
		UserID:     userID,
		EventID:    p.EventID,
		Gesture:    p.GestureCard(),
		ClientSeq:  p.ClientSeq,
		ClientTime: p.ClientTime,
		OffsetMs:   p.OffsetMs,
		RttMs:      p.RttMs,
	})
}

// observeReaction samples how far into the window the slap landed.
func (h *Hub) observeReaction(rt *runtime, p codec.SlapPayload, nowMs int64) {
	room, err := h.loadRoom(rt.roomID)
	if err != nil || room.Game == nil {
		return
	}
	w := room.Game.SlapWindow
	if !w.Active || w.EventID != p.EventID {
		return
	}
	h.met.SlapReactionMs.Observe(float64(nowMs - w.StartServerTime))
}
