package room

import (
	"crypto/rand"
	"fmt"

	"slaphard/apps/server/internal/codec"
	"slaphard/engine"
)

// Status is the room lifecycle phase.
type Status string

const (
	StatusLobby    Status = "LOBBY"
	StatusInGame   Status = "IN_GAME"
	StatusFinished Status = "FINISHED"
)

const (
	// How many times code generation retries on a collision.
	codeRetries = 20
)

// Member is a room occupant as the lobby sees them. Seat indexes stay a
// dense prefix [0, n); compactSeats restores the property after removals.
type Member struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	SeatIndex   int    `json:"seatIndex"`
	Connected   bool   `json:"connected"`
	Ready       bool   `json:"ready"`
}

// RoomState is the full room record kept in the store.
type RoomState struct {
	RoomID     string            `json:"roomId"`
	RoomCode   string            `json:"roomCode"`
	Status     Status            `json:"status"`
	HostUserID string            `json:"hostUserId"`
	Members    []Member          `json:"members"`
	Game       *engine.GameState `json:"game,omitempty"`
	Version    uint64            `json:"version"`
	CreatedAt  int64             `json:"createdAt"`
	UpdatedAt  int64             `json:"updatedAt"`
}

// Clone returns a deep copy so store readers never alias live state.
func (r *RoomState) Clone() *RoomState {
	out := *r
	out.Members = append([]Member{}, r.Members...)
	if r.Game != nil {
		out.Game = r.Game.Clone()
	}
	return &out
}

func (r *RoomState) MemberByUserID(userID string) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

// AddMember seats a new member at the next dense seat index.
func (r *RoomState) AddMember(userID, displayName string) *Member {
	r.Members = append(r.Members, Member{
		UserID:      userID,
		DisplayName: displayName,
		SeatIndex:   len(r.Members),
		Connected:   true,
	})
	return &r.Members[len(r.Members)-1]
}

// RemoveMember drops a member and re-compacts seat indexes.
func (r *RoomState) RemoveMember(userID string) bool {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			r.compactSeats()
			return true
		}
	}
	return false
}

func (r *RoomState) compactSeats() {
	for i := range r.Members {
		r.Members[i].SeatIndex = i
	}
}

func (r *RoomState) MemberUserIDs() []string {
	ids := make([]string, len(r.Members))
	for i := range r.Members {
		ids[i] = r.Members[i].UserID
	}
	return ids
}

// View is the public wire shape of a room, same for every recipient.
type View struct {
	RoomID     string   `json:"roomId"`
	RoomCode   string   `json:"roomCode"`
	Status     Status   `json:"status"`
	HostUserID string   `json:"hostUserId"`
	Players    []Member `json:"players"`
	Version    uint64   `json:"version"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

func (r *RoomState) PublicView() View {
	return View{
		RoomID:     r.RoomID,
		RoomCode:   r.RoomCode,
		Status:     r.Status,
		HostUserID: r.HostUserID,
		Players:    append([]Member{}, r.Members...),
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// newRoomCode draws 6 characters from the restricted alphabet.
func newRoomCode() (string, error) {
	var buf [codec.RoomCodeLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("room code entropy: %w", err)
	}
	for i := range buf {
		buf[i] = codec.RoomCodeAlphabet[int(buf[i])%len(codec.RoomCodeAlphabet)]
	}
	return string(buf[:]), nil
}
