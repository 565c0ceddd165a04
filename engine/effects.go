package engine

import "slaphard/card"

// Effect is a record of something the orchestrator must announce or
// journal. Effects carry only public fields; the engine performs no I/O.
type Effect interface {
	effect()
}

// SlapWindowOpenEffect announces a new slap race.
type SlapWindowOpenEffect struct {
	EventID            string
	Reason             WindowReason
	ActionCard         card.Card // CardInvalid unless Reason == ACTION
	StartServerTime    int64
	DeadlineServerTime int64
	SlapWindowMs       int64
}

// SlapResultEffect announces a resolved window.
type SlapResultEffect struct {
	EventID        string
	OrderedUserIDs []string
	LoserUserID    string
	Reason         SlapResultReason
	PileTaken      []card.Card
}

// PenaltyEffect announces a pile handed to a player outside of a ranked
// resolution.
type PenaltyEffect struct {
	UserID      string
	PenaltyType PenaltyType
	PileTaken   []card.Card
}

// GameFinishedEffect announces the winner.
type GameFinishedEffect struct {
	WinnerUserID string
}

func (SlapWindowOpenEffect) effect() {}
func (SlapResultEffect) effect()     {}
func (PenaltyEffect) effect()        {}
func (GameFinishedEffect) effect()   {}
