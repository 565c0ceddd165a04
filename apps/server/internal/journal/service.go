package journal

import "context"

// Room transition types recorded in room_snapshots.
const (
	TransitionCreate = "CREATE"
	TransitionJoin   = "JOIN"
	TransitionLeave  = "LEAVE"
	TransitionStart  = "START"
	TransitionStop   = "STOP"
	TransitionFinish = "FINISH"
	TransitionDelete = "DELETE"
)

// Match event types recorded in match_events.
const (
	MatchEventSlapResult = "SLAP_RESULT"
	MatchEventPenalty    = "PENALTY"
	MatchEventTimeout    = "TIMEOUT"
	MatchEventWin        = "WIN"
)

// RoomRecord is the journal's own view of a room so the package does not
// depend on the live room types. Snapshot is a spectator-safe projection
// (no hands, no slap bookkeeping).
type RoomRecord struct {
	RoomID     string
	RoomCode   string
	Status     string
	HostUserID string
	Version    uint64
	CreatedAt  int64
	UpdatedAt  int64
	Snapshot   any
}

// Service is the append-only journal of room transitions and match
// events. Implementations must tolerate being called concurrently; the
// orchestrator never awaits success on the gameplay path.
type Service interface {
	UpsertRoomMetadata(ctx context.Context, room RoomRecord) error
	WriteRoomSnapshot(ctx context.Context, room RoomRecord, transition string) error
	MarkRoomDeleted(ctx context.Context, roomID string) error

	StartMatch(ctx context.Context, roomID string) (string, error)
	FinishMatch(ctx context.Context, matchID, winnerUserID string, summary any) error
	AppendMatchEvent(ctx context.Context, matchID, eventType string, payload any) error

	Close() error
}
