package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"slaphard/card"
)

// Inbound command names.
const (
	CmdRoomCreate = "room.create"
	CmdRoomJoin   = "room.join"
	CmdRoomLeave  = "room.leave"
	CmdLobbyReady = "lobby.ready"
	CmdLobbyKick  = "lobby.kick"
	CmdLobbyStart = "lobby.start"
	CmdGameStop   = "game.stop"
	CmdGameFlip   = "game.flip"
	CmdGameSlap   = "game.slap"
	CmdPing       = "ping"
)

// Outbound event names.
const (
	EvtRoomState      = "room.state"
	EvtRoomKicked     = "room.kicked"
	EvtGameState      = "game.state"
	EvtGameDelta      = "game.delta" // reserved for incremental patches
	EvtSlapWindowOpen = "game.slapWindowOpen"
	EvtSlapResult     = "game.slapResult"
	EvtPenalty        = "penalty"
	EvtError          = "error"
	EvtPong           = "pong"
)

// Wire-stable error codes. The engine package owns the gameplay subset;
// the values here must stay in sync with it.
const (
	CodeInvalidName      = "INVALID_NAME"
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeRoomFull         = "ROOM_FULL"
	CodeNotInLobby       = "NOT_IN_LOBBY"
	CodeNotInGame        = "NOT_IN_GAME"
	CodeNotHost          = "NOT_HOST"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeSlapWindowActive = "SLAP_WINDOW_ACTIVE"
	CodeNoSlapWindow     = "NO_SLAP_WINDOW"
	CodeInvalidEventID   = "INVALID_EVENT_ID"
	CodeAlreadySlapped   = "ALREADY_SLAPPED"
	CodeInvalidTarget    = "INVALID_TARGET"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternalError    = "INTERNAL_ERROR"
)

const (
	DisplayNameMin = 2
	DisplayNameMax = 24
	RoomCodeLen    = 6
)

// RoomCodeAlphabet excludes the visually ambiguous I, O, 1 and 0.
const RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ClientEnvelope is one inbound frame: a command name plus its payload.
type ClientEnvelope struct {
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClient parses a raw websocket frame.
func DecodeClient(data []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Cmd == "" {
		return nil, fmt.Errorf("envelope missing cmd")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into dst. A missing
// payload decodes as the zero value.
func (e *ClientEnvelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Cmd, err)
	}
	return nil
}

// ValidationError carries the wire code a schema violation maps to.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

func invalid(code, format string, args ...any) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NormalizeDisplayName trims and checks the 2-24 char contract.
func NormalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if len(name) < DisplayNameMin || len(name) > DisplayNameMax {
		return "", invalid(CodeInvalidName, "display name must be %d-%d chars", DisplayNameMin, DisplayNameMax)
	}
	return name, nil
}

// NormalizeRoomCode upcases and checks length and alphabet.
func NormalizeRoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != RoomCodeLen {
		return "", invalid(CodeRoomNotFound, "room code must be %d chars", RoomCodeLen)
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(RoomCodeAlphabet, rune(code[i])) {
			return "", invalid(CodeRoomNotFound, "room code has invalid character %q", code[i])
		}
	}
	return code, nil
}

type CreateRoomPayload struct {
	DisplayName string `json:"displayName"`
}

func (p *CreateRoomPayload) Validate() error {
	name, err := NormalizeDisplayName(p.DisplayName)
	if err != nil {
		return err
	}
	p.DisplayName = name
	return nil
}

type JoinRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId,omitempty"`
}

func (p *JoinRoomPayload) Validate() error {
	code, err := NormalizeRoomCode(p.RoomCode)
	if err != nil {
		return err
	}
	p.RoomCode = code
	name, err := NormalizeDisplayName(p.DisplayName)
	if err != nil {
		return err
	}
	p.DisplayName = name
	return nil
}

type ReadyPayload struct {
	Ready bool `json:"ready"`
}

type KickPayload struct {
	UserID string `json:"userId"`
}

func (p *KickPayload) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return invalid(CodeInvalidTarget, "kick target userId required")
	}
	return nil
}

type FlipPayload struct {
	ClientSeq  uint64 `json:"clientSeq"`
	ClientTime int64  `json:"clientTime"`
}

func (p *FlipPayload) Validate() error {
	if p.ClientTime < 0 {
		return invalid(CodeInternalError, "clientTime must be non-negative")
	}
	return nil
}

type SlapPayload struct {
	EventID    string `json:"eventId"`
	Gesture    string `json:"gesture,omitempty"`
	ClientSeq  uint64 `json:"clientSeq"`
	ClientTime int64  `json:"clientTime"`
	OffsetMs   int64  `json:"offsetMs"`
	RttMs      int64  `json:"rttMs"`
}

func (p *SlapPayload) Validate() error {
	if strings.TrimSpace(p.EventID) == "" || len(p.EventID) > 64 {
		return invalid(CodeInvalidEventID, "malformed eventId")
	}
	if p.Gesture != "" {
		c, err := card.ParseCard(p.Gesture)
		if err != nil || !c.IsAction() {
			return invalid(CodeInternalError, "gesture must be an action card")
		}
	}
	return nil
}

// GestureCard returns the parsed gesture, or CardInvalid when absent.
// Validate must have accepted the payload first.
func (p *SlapPayload) GestureCard() card.Card {
	if p.Gesture == "" {
		return card.CardInvalid
	}
	c, err := card.ParseCard(p.Gesture)
	if err != nil {
		return card.CardInvalid
	}
	return c
}

type PingPayload struct {
	ClientTime int64 `json:"clientTime"`
}

// ServerEnvelope is one outbound frame.
type ServerEnvelope struct {
	Event      string `json:"event"`
	ServerTsMs int64  `json:"serverTsMs"`
	Payload    any    `json:"payload,omitempty"`
}

// Encode wraps a payload in an envelope stamped with the current server
// time and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(ServerEnvelope{
		Event:      event,
		ServerTsMs: time.Now().UnixMilli(),
		Payload:    payload,
	})
}

// MustEncode is Encode for payloads built from our own types; a marshal
// failure is a programming error.
func MustEncode(event string, payload any) []byte {
	data, err := Encode(event, payload)
	if err != nil {
		panic(fmt.Sprintf("codec: encode %s: %v", event, err))
	}
	return data
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func NewError(code, message string) []byte {
	return MustEncode(EvtError, ErrorPayload{Code: code, Message: message})
}

type PongPayload struct {
	ServerTime     int64 `json:"serverTime"`
	ClientTimeEcho int64 `json:"clientTimeEcho"`
}

func NewPong(clientTime int64) []byte {
	return MustEncode(EvtPong, PongPayload{
		ServerTime:     time.Now().UnixMilli(),
		ClientTimeEcho: clientTime,
	})
}

type RoomKickedPayload struct {
	RoomCode string `json:"roomCode"`
	ByUserID string `json:"byUserId"`
}

func NewRoomKicked(roomCode, byUserID string) []byte {
	return MustEncode(EvtRoomKicked, RoomKickedPayload{RoomCode: roomCode, ByUserID: byUserID})
}

// RoomStatePayload wraps the per-recipient public room view.
type RoomStatePayload struct {
	Room     any    `json:"room"`
	MeUserID string `json:"meUserId"`
}

func NewRoomState(room any, meUserID string) []byte {
	return MustEncode(EvtRoomState, RoomStatePayload{Room: room, MeUserID: meUserID})
}

type GameStatePayload struct {
	Snapshot   any    `json:"snapshot"`
	ServerTime int64  `json:"serverTime"`
	Version    uint64 `json:"version"`
}

func NewGameState(snapshot any, version uint64) []byte {
	return MustEncode(EvtGameState, GameStatePayload{
		Snapshot:   snapshot,
		ServerTime: time.Now().UnixMilli(),
		Version:    version,
	})
}

type SlapWindowOpenPayload struct {
	EventID            string `json:"eventId"`
	Reason             string `json:"reason"`
	ActionCard         string `json:"actionCard,omitempty"`
	StartServerTime    int64  `json:"startServerTime"`
	DeadlineServerTime int64  `json:"deadlineServerTime"`
	SlapWindowMs       int64  `json:"slapWindowMs"`
}

func NewSlapWindowOpen(p SlapWindowOpenPayload) []byte {
	return MustEncode(EvtSlapWindowOpen, p)
}

type SlapResultPayload struct {
	EventID        string   `json:"eventId"`
	OrderedUserIDs []string `json:"orderedUserIds"`
	LoserUserID    string   `json:"loserUserId,omitempty"`
	Reason         string   `json:"reason"`
	PileTaken      []string `json:"pileTaken"`
}

func NewSlapResult(p SlapResultPayload) []byte {
	return MustEncode(EvtSlapResult, p)
}

type PenaltyPayload struct {
	UserID    string   `json:"userId"`
	Type      string   `json:"type"`
	PileTaken []string `json:"pileTaken"`
}

func NewPenalty(p PenaltyPayload) []byte {
	return MustEncode(EvtPenalty, p)
}

// CardNames renders cards for wire payloads.
func CardNames(cards []card.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
