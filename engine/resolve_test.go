package engine

import (
	"testing"

	"slaphard/card"
)

func TestResolveWithoutWindow(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardGoat, card.CardCheese, card.CardPizza})
	_, _, err := Apply(s, Event{Type: EventResolveSlapWindow}, 1000)
	if CodeOf(err) != CodeNoSlapWindow {
		t.Fatalf("err = %v, want NO_SLAP_WINDOW", err)
	}
	_, _, err = Apply(s, Event{Type: EventSkipSlapWindow}, 1000)
	if CodeOf(err) != CodeNoSlapWindow {
		t.Fatalf("skip err = %v, want NO_SLAP_WINDOW", err)
	}
}

func TestNoSlapsPenalizesFlipper(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardTaco, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)

	s, effects := mustApply(t, s, Event{Type: EventResolveSlapWindow}, 3100)
	if len(effects) != 2 {
		t.Fatalf("effects = %v", effects)
	}
	pen, ok := effects[0].(PenaltyEffect)
	if !ok || pen.PenaltyType != PenaltyNoSlaps || pen.UserID != "u1" {
		t.Fatalf("first effect = %+v", effects[0])
	}
	res, ok := effects[1].(SlapResultEffect)
	if !ok || res.Reason != SlapResultNoSlaps || res.LoserUserID != "u1" {
		t.Fatalf("second effect = %+v", effects[1])
	}
	if s.CurrentTurnSeat != 0 {
		t.Fatalf("turn = %d, want 0", s.CurrentTurnSeat)
	}
	// TACO went to the bottom of u1's hand.
	if got := s.Players[0].Hand; got.Count() != 2 || got[1] != card.CardTaco {
		t.Fatalf("u1 hand = %v", got)
	}
	if s.Pile.Count() != 0 {
		t.Fatalf("pile not cleared")
	}
}

func TestReceivedAtBreaksReactionTie(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardTaco, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)
	eventID := s.SlapWindow.EventID

	// Identical corrected reaction (60 ms); u2 arrived first.
	s, _ = mustApply(t, s, slapEvent("u2", eventID, card.CardInvalid, 1, 1060, 0), 1020)
	s, effects := mustApply(t, s, slapEvent("u1", eventID, card.CardInvalid, 1, 1060, 0), 1030)

	res := effects[0].(SlapResultEffect)
	if len(res.OrderedUserIDs) != 2 || res.OrderedUserIDs[0] != "u2" || res.OrderedUserIDs[1] != "u1" {
		t.Fatalf("ordered = %v, want [u2 u1]", res.OrderedUserIDs)
	}
	if res.LoserUserID != "u1" || res.Reason != SlapResultLastSlapper {
		t.Fatalf("result = %+v", res)
	}
	if s.CurrentTurnSeat != 0 {
		t.Fatalf("turn = %d, want loser seat 0", s.CurrentTurnSeat)
	}
}

func TestReactionClamping(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardTaco, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)

	// Client clock behind the window start: negative raw reaction floors
	// to the minimum human reaction.
	a := SlapAttempt{ClientTime: 500, OffsetMs: 0}
	if got := reactionMs(s, a); got != s.Config.MinHumanReactionMs {
		t.Fatalf("negative reaction = %d, want %d", got, s.Config.MinHumanReactionMs)
	}
	// Far beyond the window: capped at slapWindowMs + 2000.
	b := SlapAttempt{ClientTime: 99999, OffsetMs: 0}
	if got := reactionMs(s, b); got != s.SlapWindow.SlapWindowMs+2000 {
		t.Fatalf("late reaction = %d, want %d", got, s.SlapWindow.SlapWindowMs+2000)
	}
	// Offset correction applies before the clamp.
	c := SlapAttempt{ClientTime: 1100, OffsetMs: 100}
	if got := reactionMs(s, c); got != 200 {
		t.Fatalf("offset reaction = %d, want 200", got)
	}
}

func TestNonSlapperLoses(t *testing.T) {
	s := &GameState{
		Status: StatusInGame,
		Players: []Player{
			{UserID: "u1", SeatIndex: 0, Connected: true, Hand: card.CardList{card.CardTaco, card.CardGoat}},
			{UserID: "u2", SeatIndex: 1, Connected: true, Hand: card.CardList{card.CardCat}},
			{UserID: "u3", SeatIndex: 2, Connected: true, Hand: card.CardList{card.CardCheese}},
		},
		SlapWindow:         SlapWindow{FlipperSeat: InvalidSeat},
		Version:            1,
		NextSlapEventNonce: 1,
		Config:             DefaultConfig(),
	}
	s, _ = mustApply(t, s, flipEvent("u1"), 1000) // TACO at chant 0 opens MATCH
	eventID := s.SlapWindow.EventID

	s, _ = mustApply(t, s, slapEvent("u1", eventID, card.CardInvalid, 1, 1100, 0), 1100)
	s, effects := mustApply(t, s, Event{Type: EventResolveSlapWindow}, 3100)

	res := effects[0].(SlapResultEffect)
	if res.Reason != SlapResultNonSlapper {
		t.Fatalf("reason = %v, want NON_SLAPPER", res.Reason)
	}
	// u2 and u3 both sat out; the later seat loses.
	if res.LoserUserID != "u3" {
		t.Fatalf("loser = %q, want u3", res.LoserUserID)
	}
	if s.CurrentTurnSeat != 2 {
		t.Fatalf("turn = %d, want 2", s.CurrentTurnSeat)
	}
}

func TestSameCardLastSlapperLoses(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)
	s, _ = mustApply(t, s, flipEvent("u2"), 1100) // repeat CAT opens SAME_CARD
	eventID := s.SlapWindow.EventID

	// Arrival order decides for SAME_CARD even if u1's corrected reaction
	// would have been faster.
	s, _ = mustApply(t, s, slapEvent("u2", eventID, card.CardInvalid, 1, 2000, 0), 1150)
	s, effects := mustApply(t, s, slapEvent("u1", eventID, card.CardInvalid, 1, 1110, 0), 1160)

	res := effects[0].(SlapResultEffect)
	if res.Reason != SlapResultLastSlapper {
		t.Fatalf("reason = %v, want LAST_SLAPPER", res.Reason)
	}
	if res.OrderedUserIDs[0] != "u2" || res.LoserUserID != "u1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestEmptyHandedFirstSlapperWinsOnResolve(t *testing.T) {
	s := &GameState{
		Status: StatusInGame,
		Players: []Player{
			{UserID: "u1", SeatIndex: 0, Connected: true, Hand: card.CardList{card.CardTaco, card.CardGoat}},
			{UserID: "u2", SeatIndex: 1, Connected: true},
			{UserID: "u3", SeatIndex: 2, Connected: true, Hand: card.CardList{card.CardCheese}},
		},
		SlapWindow:         SlapWindow{FlipperSeat: InvalidSeat},
		Version:            1,
		NextSlapEventNonce: 1,
		Config:             DefaultConfig(),
	}
	s, _ = mustApply(t, s, flipEvent("u1"), 1000) // MATCH
	eventID := s.SlapWindow.EventID

	// u1 slaps first, then the empty-handed u2 with a faster corrected
	// reaction; u2 ranks first and wins at resolution.
	s, _ = mustApply(t, s, slapEvent("u1", eventID, card.CardInvalid, 1, 1500, 0), 1500)
	s, _ = mustApply(t, s, slapEvent("u2", eventID, card.CardInvalid, 1, 1100, 0), 1510)
	s, effects := mustApply(t, s, Event{Type: EventResolveSlapWindow}, 3100)

	if s.Status != StatusFinished || s.WinnerUserID != "u2" {
		t.Fatalf("status=%v winner=%q", s.Status, s.WinnerUserID)
	}
	res := effects[0].(SlapResultEffect)
	if res.Reason != SlapResultFirstValidSlapWin || res.OrderedUserIDs[0] != "u2" {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := effects[1].(GameFinishedEffect); !ok {
		t.Fatalf("missing GAME_FINISHED: %v", effects)
	}
}

func TestWindowResolvableByCountTracksConnections(t *testing.T) {
	s := &GameState{
		Status: StatusInGame,
		Players: []Player{
			{UserID: "u1", SeatIndex: 0, Connected: true, Hand: card.CardList{card.CardCat, card.CardGoat}},
			{UserID: "u2", SeatIndex: 1, Connected: true, Hand: card.CardList{card.CardCat, card.CardCheese}},
			{UserID: "u3", SeatIndex: 2, Connected: true, Hand: card.CardList{card.CardPizza, card.CardTaco}},
		},
		SlapWindow:         SlapWindow{FlipperSeat: InvalidSeat},
		Version:            1,
		NextSlapEventNonce: 1,
		Config:             DefaultConfig(),
	}
	if s.WindowResolvableByCount() {
		t.Fatal("no window yet")
	}

	s, _ = mustApply(t, s, flipEvent("u1"), 1000)
	s, _ = mustApply(t, s, flipEvent("u2"), 1100) // repeat CAT opens SAME_CARD
	eventID := s.SlapWindow.EventID

	s, _ = mustApply(t, s, slapEvent("u1", eventID, card.CardInvalid, 1, 1200, 0), 1200)
	s, _ = mustApply(t, s, slapEvent("u2", eventID, card.CardInvalid, 1, 1210, 0), 1210)
	if !s.SlapWindow.Active {
		t.Fatal("window resolved early")
	}
	if s.WindowResolvableByCount() {
		t.Fatal("two of three connected players slapped; threshold not met")
	}

	// The player everyone is waiting on drops: the two attempts now cover
	// every connected player.
	s.Players[2].Connected = false
	if !s.WindowResolvableByCount() {
		t.Fatal("threshold must shrink with the connected count")
	}

	s, _ = mustApply(t, s, Event{Type: EventResolveSlapWindow}, 1300)
	if s.SlapWindow.Active || s.WindowResolvableByCount() {
		t.Fatal("resolved window must not report resolvable")
	}
}

func TestEventIDStableAcrossReplays(t *testing.T) {
	// Deals u1=[TACO,GOAT,CHEESE], u2=[GORILLA,CAT,PIZZA]. The first flip
	// (TACO at chant TACO) opens a MATCH window; after the NO_SLAPS
	// resolution the turn stays with u1, whose GOAT flip passes it to u2,
	// whose GORILLA flip opens an ACTION window.
	deck := []card.Card{card.CardTaco, card.CardGorilla, card.CardGoat, card.CardCat, card.CardCheese, card.CardPizza}
	run := func() []string {
		s := mustGame(t, deck)
		var ids []string
		s, _ = mustApply(t, s, flipEvent("u1"), 1000)
		ids = append(ids, s.SlapWindow.EventID)
		s, _ = mustApply(t, s, Event{Type: EventResolveSlapWindow}, 3100)
		s, _ = mustApply(t, s, flipEvent("u1"), 4000)
		s, _ = mustApply(t, s, flipEvent("u2"), 5000)
		if !s.SlapWindow.Active || s.SlapWindow.Reason != WindowReasonAction {
			t.Fatalf("expected a second window, got %+v", s.SlapWindow)
		}
		ids = append(ids, s.SlapWindow.EventID)
		return ids
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("eventId %d diverged: %q vs %q", i, a[i], b[i])
		}
	}
	if a[0] == a[1] {
		t.Fatalf("nonce reused: %q", a[0])
	}
}

func TestTurnTimeoutPenalty(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardGoat, card.CardCheese, card.CardPizza})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000) // turn to u2

	s, effects := mustApply(t, s, Event{Type: EventTurnTimeout}, 6100)
	pen, ok := effects[0].(PenaltyEffect)
	if !ok || pen.PenaltyType != PenaltyTurnTimeout || pen.UserID != "u2" {
		t.Fatalf("effect = %+v", effects[0])
	}
	if s.CurrentTurnSeat != 1 {
		t.Fatalf("turn = %d, want 1", s.CurrentTurnSeat)
	}
	// The flipped CAT moved to u2's hand.
	if got := s.Players[1].Hand; got.Count() != 3 || got[2] != card.CardCat {
		t.Fatalf("u2 hand = %v", got)
	}
}

func TestTurnTimeoutRejectedDuringWindow(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardTaco, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)

	_, _, err := Apply(s, Event{Type: EventTurnTimeout}, 6100)
	if CodeOf(err) != CodeSlapWindowActive {
		t.Fatalf("err = %v, want SLAP_WINDOW_ACTIVE", err)
	}
}
