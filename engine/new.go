package engine

import (
	"fmt"

	"slaphard/card"
)

// SeatedPlayer describes one participant at game start. Seats are assigned
// in slice order.
type SeatedPlayer struct {
	UserID      string
	DisplayName string
	Connected   bool
}

// NewGameOptions tunes initial state construction. The zero value means
// default deck, no shuffle, default config.
type NewGameOptions struct {
	Seed    string
	Deck    []card.Card
	Shuffle bool
	Config  Config
}

// NewGame validates players and deck, optionally shuffles, deals round-robin
// and returns the initial state with seat 0 to act.
func NewGame(players []SeatedPlayer, opts NewGameOptions) (*GameState, error) {
	n := len(players)
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("player count %d out of range [%d, %d]", n, MinPlayers, MaxPlayers)
	}
	seen := make(map[string]bool, n)
	for _, p := range players {
		if p.UserID == "" {
			return nil, fmt.Errorf("player with empty userId")
		}
		if seen[p.UserID] {
			return nil, fmt.Errorf("duplicate userId %q", p.UserID)
		}
		seen[p.UserID] = true
	}

	deck := opts.Deck
	if deck == nil {
		deck = card.DefaultDeck()
	}
	for _, c := range deck {
		if !c.IsValid() {
			return nil, fmt.Errorf("invalid card 0x%02x in deck", byte(c))
		}
	}
	if opts.Shuffle {
		deck = ShuffleDeck(deck, opts.Seed)
	}

	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	state := &GameState{
		Status:             StatusInGame,
		Players:            make([]Player, n),
		CurrentTurnSeat:    0,
		ChantIndex:         0,
		SlapWindow:         SlapWindow{FlipperSeat: InvalidSeat},
		Version:            1,
		NextSlapEventNonce: 1,
		Config:             cfg,
	}
	for i, p := range players {
		state.Players[i] = Player{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			SeatIndex:   i,
			Connected:   p.Connected,
			Ready:       true,
		}
	}
	for i, c := range deck {
		state.Players[i%n].Hand.Add(c)
	}
	return state, nil
}
