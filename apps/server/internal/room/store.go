package room

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown room ids, room codes, and user
// bindings.
var ErrNotFound = errors.New("room not found")

// DefaultTTL bounds how long an untouched room survives in the store.
const DefaultTTL = 3600 * time.Second

// Store is the room persistence contract. Saves establish three indexes
// atomically (by id, by code, by each member userId), all TTL-bound.
// Reads return deep copies; callers never observe each other's mutations.
type Store interface {
	GetRoomByID(ctx context.Context, roomID string) (*RoomState, error)
	GetRoomByCode(ctx context.Context, roomCode string) (*RoomState, error)
	SaveRoom(ctx context.Context, room *RoomState) error
	DeleteRoom(ctx context.Context, room *RoomState) error

	SetUserRoom(ctx context.Context, userID, roomID string) error
	GetUserRoom(ctx context.Context, userID string) (string, error)
	ClearUserRoom(ctx context.Context, userID string) error

	Close() error
}
