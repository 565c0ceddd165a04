package room

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process store. It honors the same TTL and
// copy-on-read contract as the Redis store; expired entries are evicted
// lazily when a read touches them, so the maps stay bounded by the set
// of live rooms.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	rooms    map[string]*memoryEntry // roomID -> room
	byCode   map[string]string       // roomCode -> roomID
	userRoom map[string]*memoryEntry // userID -> roomID
	now      func() time.Time
}

type memoryEntry struct {
	room      *RoomState
	roomID    string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ttl:      DefaultTTL,
		rooms:    make(map[string]*memoryEntry),
		byCode:   make(map[string]string),
		userRoom: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetRoomByID(ctx context.Context, roomID string) (*RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.roomEntryLocked(roomID)
	if e == nil {
		return nil, ErrNotFound
	}
	return e.room.Clone(), nil
}

func (s *MemoryStore) GetRoomByCode(ctx context.Context, roomCode string) (*RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[roomCode]
	if !ok {
		return nil, ErrNotFound
	}
	e := s.roomEntryLocked(id)
	if e == nil {
		return nil, ErrNotFound
	}
	return e.room.Clone(), nil
}

func (s *MemoryStore) SaveRoom(ctx context.Context, room *RoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(s.ttl)
	s.rooms[room.RoomID] = &memoryEntry{room: room.Clone(), roomID: room.RoomID, expiresAt: exp}
	s.byCode[room.RoomCode] = room.RoomID
	for _, userID := range room.MemberUserIDs() {
		s.userRoom[userID] = &memoryEntry{roomID: room.RoomID, expiresAt: exp}
	}
	return nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, room *RoomState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room.RoomID)
	delete(s.byCode, room.RoomCode)
	for _, userID := range room.MemberUserIDs() {
		if e := s.userRoom[userID]; e != nil && e.roomID == room.RoomID {
			delete(s.userRoom, userID)
		}
	}
	return nil
}

func (s *MemoryStore) SetUserRoom(ctx context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRoom[userID] = &memoryEntry{roomID: roomID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetUserRoom(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.userRoom[userID]
	if e == nil {
		return "", ErrNotFound
	}
	if s.expired(e) {
		delete(s.userRoom, userID)
		return "", ErrNotFound
	}
	return e.roomID, nil
}

func (s *MemoryStore) ClearUserRoom(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userRoom, userID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// roomEntryLocked returns the live entry for roomID, evicting it and its
// derived index entries when the TTL has lapsed.
func (s *MemoryStore) roomEntryLocked(roomID string) *memoryEntry {
	e := s.rooms[roomID]
	if e == nil {
		return nil
	}
	if !s.expired(e) {
		return e
	}
	delete(s.rooms, roomID)
	delete(s.byCode, e.room.RoomCode)
	for _, userID := range e.room.MemberUserIDs() {
		if ue := s.userRoom[userID]; ue != nil && ue.roomID == roomID {
			delete(s.userRoom, userID)
		}
	}
	return nil
}

func (s *MemoryStore) expired(e *memoryEntry) bool {
	return s.now().After(e.expiresAt)
}
