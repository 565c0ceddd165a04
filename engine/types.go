package engine

import (
	"slaphard/card"
)

const InvalidSeat = -1

// Status is the game lifecycle phase.
type Status byte

const (
	StatusInGame   Status = 1
	StatusFinished Status = 2
)

var StatusDictionary = map[Status]string{
	StatusInGame:   "IN_GAME",
	StatusFinished: "FINISHED",
}

// WindowReason says why a slap window opened.
type WindowReason byte

const (
	WindowReasonNone     WindowReason = 0
	WindowReasonMatch    WindowReason = 1 // flip equals the current chant word
	WindowReasonAction   WindowReason = 2 // flip is an action card
	WindowReasonSameCard WindowReason = 3 // flip equals the previous reveal
)

var WindowReasonDictionary = map[WindowReason]string{
	WindowReasonMatch:    "MATCH",
	WindowReasonAction:   "ACTION",
	WindowReasonSameCard: "SAME_CARD",
}

// PenaltyType classifies why a player takes the pile.
type PenaltyType byte

const (
	PenaltyFalseSlap    PenaltyType = 1
	PenaltyWrongGesture PenaltyType = 2
	PenaltyTurnTimeout  PenaltyType = 3
	PenaltyNoSlaps      PenaltyType = 4
)

var PenaltyTypeDictionary = map[PenaltyType]string{
	PenaltyFalseSlap:    "FALSE_SLAP",
	PenaltyWrongGesture: "WRONG_GESTURE",
	PenaltyTurnTimeout:  "TURN_TIMEOUT",
	PenaltyNoSlaps:      "NO_SLAPS",
}

// SlapResultReason classifies how a window resolution picked its loser.
type SlapResultReason byte

const (
	SlapResultNoSlaps           SlapResultReason = 1
	SlapResultNonSlapper        SlapResultReason = 2
	SlapResultLastSlapper       SlapResultReason = 3
	SlapResultFirstValidSlapWin SlapResultReason = 4
)

var SlapResultReasonDictionary = map[SlapResultReason]string{
	SlapResultNoSlaps:           "NO_SLAPS",
	SlapResultNonSlapper:        "NON_SLAPPER",
	SlapResultLastSlapper:       "LAST_SLAPPER",
	SlapResultFirstValidSlapWin: "FIRST_VALID_SLAP_WIN",
}

// Player is the engine's view of a seat.
type Player struct {
	UserID      string
	DisplayName string
	SeatIndex   int
	Connected   bool
	Ready       bool
	Hand        card.CardList // front (index 0) is the next card to flip
}

// SlapAttempt is one slap submission inside a window, in insertion order.
type SlapAttempt struct {
	UserID               string
	EventID              string
	Gesture              card.Card // CardInvalid when absent
	ClientSeq            uint64
	ClientTime           int64
	OffsetMs             int64
	RttMs                int64
	ReceivedAtServerTime int64
}

// SlapWindow is the server-only bookkeeping for one slap race.
type SlapWindow struct {
	Active             bool
	Resolved           bool
	EventID            string
	Reason             WindowReason
	ActionCard         card.Card // set iff Reason == ACTION
	StartServerTime    int64
	DeadlineServerTime int64
	SlapWindowMs       int64
	FlipperSeat        int
	Attempts           []SlapAttempt
}

func (w SlapWindow) ReceivedSlapsCount() int {
	return len(w.Attempts)
}

func (w SlapWindow) hasAttemptFrom(userID string) bool {
	for _, a := range w.Attempts {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// RevealedCard records the most recent flip.
type RevealedCard struct {
	Card card.Card
	Seat int
}

// GameState is the full authoritative match state. It is a plain value;
// Apply never mutates its input, it works on a Clone.
type GameState struct {
	Status             Status
	Players            []Player
	CurrentTurnSeat    int
	ChantIndex         int
	Pile               card.CardList
	LastRevealed       *RevealedCard
	SlapWindow         SlapWindow
	WinnerUserID       string
	Version            uint64
	NextSlapEventNonce uint64
	Config             Config
}

// PileTopCard returns the last flipped card still on the pile.
func (s *GameState) PileTopCard() card.Card {
	return s.Pile.Top()
}

// PlayerByUserID exposes seat lookup to the orchestrator, which flips
// the Connected bit on reconnects and leaves.
func (s *GameState) PlayerByUserID(userID string) *Player {
	return s.playerByUserID(userID)
}

func (s *GameState) playerByUserID(userID string) *Player {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *GameState) playerBySeat(seat int) *Player {
	if seat < 0 || seat >= len(s.Players) {
		return nil
	}
	for i := range s.Players {
		if s.Players[i].SeatIndex == seat {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *GameState) connectedCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].Connected {
			n++
		}
	}
	return n
}

// Clone returns a deep copy. Callers of Apply keep their state untouched.
func (s *GameState) Clone() *GameState {
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i := range s.Players {
		out.Players[i] = s.Players[i]
		out.Players[i].Hand = s.Players[i].Hand.Clone()
	}
	out.Pile = s.Pile.Clone()
	if s.LastRevealed != nil {
		lr := *s.LastRevealed
		out.LastRevealed = &lr
	}
	if s.SlapWindow.Attempts != nil {
		out.SlapWindow.Attempts = append([]SlapAttempt{}, s.SlapWindow.Attempts...)
	}
	return &out
}
