package room

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"slaphard/apps/server/internal/codec"
)

func testRoom(id, code string, users ...string) *RoomState {
	r := &RoomState{
		RoomID:   id,
		RoomCode: code,
		Status:   StatusLobby,
		Version:  1,
	}
	for i, u := range users {
		r.AddMember(u, "Player"+u)
		if i == 0 {
			r.HostUserID = u
		}
	}
	return r
}

func TestMemoryStoreIndexes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	room := testRoom("r1", "ABCDEF", "u1", "u2")
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	byID, err := s.GetRoomByID(ctx, "r1")
	if err != nil || byID.RoomCode != "ABCDEF" {
		t.Fatalf("GetRoomByID: %v %+v", err, byID)
	}
	byCode, err := s.GetRoomByCode(ctx, "ABCDEF")
	if err != nil || byCode.RoomID != "r1" {
		t.Fatalf("GetRoomByCode: %v %+v", err, byCode)
	}
	for _, u := range []string{"u1", "u2"} {
		roomID, err := s.GetUserRoom(ctx, u)
		if err != nil || roomID != "r1" {
			t.Fatalf("GetUserRoom(%s): %v %q", u, err, roomID)
		}
	}
}

func TestMemoryStoreCopyOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.SaveRoom(ctx, testRoom("r1", "ABCDEF", "u1")); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	got, err := s.GetRoomByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoomByID: %v", err)
	}
	got.Members[0].DisplayName = "mutated"
	got.Status = StatusInGame

	again, err := s.GetRoomByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoomByID: %v", err)
	}
	if again.Members[0].DisplayName != "Playeru1" || again.Status != StatusLobby {
		t.Fatalf("stored room aliased a read: %+v", again)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()
	if err := s.SaveRoom(ctx, testRoom("r1", "ABCDEF", "u1")); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	s.now = func() time.Time { return base.Add(DefaultTTL - time.Second) }
	if _, err := s.GetRoomByID(ctx, "r1"); err != nil {
		t.Fatalf("room expired early: %v", err)
	}

	s.now = func() time.Time { return base.Add(DefaultTTL + time.Second) }
	if _, err := s.GetRoomByID(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired room still readable: %v", err)
	}
	if _, err := s.GetRoomByCode(ctx, "ABCDEF"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired code still readable: %v", err)
	}
	if _, err := s.GetUserRoom(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired user binding still readable: %v", err)
	}
}

func TestMemoryStoreEvictsExpiredOnRead(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()
	if err := s.SaveRoom(ctx, testRoom("r1", "ABCDEF", "u1", "u2")); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	s.now = func() time.Time { return base.Add(DefaultTTL + time.Second) }
	if _, err := s.GetRoomByID(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired read: %v", err)
	}

	s.mu.Lock()
	rooms, codes, users := len(s.rooms), len(s.byCode), len(s.userRoom)
	s.mu.Unlock()
	if rooms != 0 || codes != 0 || users != 0 {
		t.Fatalf("expired entries retained: rooms=%d codes=%d users=%d", rooms, codes, users)
	}
}

func TestMemoryStoreEvictsExpiredUserBinding(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()
	if err := s.SetUserRoom(ctx, "u1", "r1"); err != nil {
		t.Fatalf("SetUserRoom: %v", err)
	}

	s.now = func() time.Time { return base.Add(DefaultTTL + time.Second) }
	if _, err := s.GetUserRoom(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired read: %v", err)
	}

	s.mu.Lock()
	users := len(s.userRoom)
	s.mu.Unlock()
	if users != 0 {
		t.Fatalf("expired binding retained: %d entries", users)
	}
}

func TestMemoryStoreSaveRefreshesTTL(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()
	room := testRoom("r1", "ABCDEF", "u1")
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	s.now = func() time.Time { return base.Add(70 * time.Minute) }
	if _, err := s.GetRoomByID(ctx, "r1"); err != nil {
		t.Fatalf("refreshed room expired: %v", err)
	}
}

func TestDeleteRoomClearsIndexes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	room := testRoom("r1", "ABCDEF", "u1")
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	if err := s.DeleteRoom(ctx, room); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if _, err := s.GetRoomByID(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted room still readable: %v", err)
	}
	if _, err := s.GetRoomByCode(ctx, "ABCDEF"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted code still readable: %v", err)
	}
	if _, err := s.GetUserRoom(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted user binding still readable: %v", err)
	}
}

func TestNewRoomCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := newRoomCode()
		if err != nil {
			t.Fatalf("newRoomCode: %v", err)
		}
		if len(code) != codec.RoomCodeLen {
			t.Fatalf("code %q has wrong length", code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codec.RoomCodeAlphabet, ch) {
				t.Fatalf("code %q uses %q outside the alphabet", code, ch)
			}
		}
	}
}

func TestRemoveMemberCompactsSeats(t *testing.T) {
	room := testRoom("r1", "ABCDEF", "u1", "u2", "u3")
	if !room.RemoveMember("u2") {
		t.Fatal("RemoveMember returned false")
	}
	if len(room.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(room.Members))
	}
	for i, m := range room.Members {
		if m.SeatIndex != i {
			t.Fatalf("seat %d holds index %d after compaction", i, m.SeatIndex)
		}
	}
}
