package engine

import "slaphard/card"

// Views are the only shapes that leave the server. They carry other
// players' hand sizes but never their hand contents, and they strip the
// slap window's server-side bookkeeping.

type PlayerView struct {
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName"`
	SeatIndex   int         `json:"seatIndex"`
	Connected   bool        `json:"connected"`
	Ready       bool        `json:"ready"`
	HandCount   int         `json:"handCount"`
	Hand        []card.Card `json:"hand,omitempty"` // recipient only
}

type SlapWindowView struct {
	Active             bool      `json:"active"`
	EventID            string    `json:"eventId,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	ActionCard         card.Card `json:"actionCard,omitempty"`
	StartServerTime    int64     `json:"startServerTime,omitempty"`
	DeadlineServerTime int64     `json:"deadlineServerTime,omitempty"`
	SlapWindowMs       int64     `json:"slapWindowMs,omitempty"`
	SlappedUserIDs     []string  `json:"slappedUserIds"`
	ReceivedSlapsCount int       `json:"receivedSlapsCount"`
}

type RevealedCardView struct {
	Card card.Card `json:"card"`
	Seat int       `json:"seat"`
}

type GameStateView struct {
	Status          string            `json:"status"`
	Players         []PlayerView      `json:"players"`
	CurrentTurnSeat int               `json:"currentTurnSeat"`
	ChantIndex      int               `json:"chantIndex"`
	PileCount       int               `json:"pileCount"`
	PileTopCard     card.Card         `json:"pileTopCard,omitempty"`
	LastRevealed    *RevealedCardView `json:"lastRevealed,omitempty"`
	SlapWindow      SlapWindowView    `json:"slapWindow"`
	WinnerUserID    string            `json:"winnerUserId,omitempty"`
	Version         uint64            `json:"version"`
}

// ProjectFor builds the snapshot meUserID is allowed to see.
func ProjectFor(s *GameState, meUserID string) GameStateView {
	view := GameStateView{
		Status:          StatusDictionary[s.Status],
		Players:         make([]PlayerView, len(s.Players)),
		CurrentTurnSeat: s.CurrentTurnSeat,
		ChantIndex:      s.ChantIndex,
		PileCount:       s.Pile.Count(),
		PileTopCard:     s.PileTopCard(),
		WinnerUserID:    s.WinnerUserID,
		Version:         s.Version,
	}
	for i := range s.Players {
		p := &s.Players[i]
		pv := PlayerView{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			SeatIndex:   p.SeatIndex,
			Connected:   p.Connected,
			Ready:       p.Ready,
			HandCount:   p.Hand.Count(),
		}
		if p.UserID == meUserID {
			pv.Hand = append([]card.Card{}, p.Hand...)
		}
		view.Players[i] = pv
	}
	if s.LastRevealed != nil {
		view.LastRevealed = &RevealedCardView{Card: s.LastRevealed.Card, Seat: s.LastRevealed.Seat}
	}

	w := s.SlapWindow
	wv := SlapWindowView{
		Active:         w.Active,
		SlappedUserIDs: []string{},
	}
	if w.Active {
		wv.EventID = w.EventID
		wv.Reason = WindowReasonDictionary[w.Reason]
		wv.ActionCard = w.ActionCard
		wv.StartServerTime = w.StartServerTime
		wv.DeadlineServerTime = w.DeadlineServerTime
		wv.SlapWindowMs = w.SlapWindowMs
		for _, a := range w.Attempts {
			wv.SlappedUserIDs = append(wv.SlappedUserIDs, a.UserID)
		}
		wv.ReceivedSlapsCount = w.ReceivedSlapsCount()
	}
	view.SlapWindow = wv
	return view
}
