package engine

import "slaphard/card"

// EventType enumerates the inputs the reducer accepts.
type EventType byte

const (
	EventFlip              EventType = 1
	EventSlap              EventType = 2
	EventResolveSlapWindow EventType = 3
	EventTurnTimeout       EventType = 4
	EventSkipSlapWindow    EventType = 5
)

var EventTypeDictionary = map[EventType]string{
	EventFlip:              "FLIP",
	EventSlap:              "SLAP",
	EventResolveSlapWindow: "RESOLVE_SLAP_WINDOW",
	EventTurnTimeout:       "TURN_TIMEOUT",
	EventSkipSlapWindow:    "SKIP_SLAP_WINDOW",
}

// Event is one input to Apply. Only the fields relevant to the Type are
// read; SLAP uses all of them.
type Event struct {
	Type   EventType
	UserID string

	// SLAP fields
	EventID    string
	Gesture    card.Card // CardInvalid when the client sent none
	ClientSeq  uint64
	ClientTime int64
	OffsetMs   int64
	RttMs      int64
}
