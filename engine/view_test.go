package engine

import (
	"testing"

	"slaphard/card"
)

func TestProjectionHidesOtherHands(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardGoat, card.CardCheese, card.CardPizza})

	view := ProjectFor(s, "u1")
	if view.Players[0].Hand == nil || len(view.Players[0].Hand) != 2 {
		t.Fatalf("recipient hand missing: %+v", view.Players[0])
	}
	if view.Players[1].Hand != nil {
		t.Fatalf("other player's hand leaked: %v", view.Players[1].Hand)
	}
	if view.Players[1].HandCount != 2 {
		t.Fatalf("handCount = %d, want 2", view.Players[1].HandCount)
	}
}

func TestProjectionStripsWindowInternals(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardTaco, card.CardCat, card.CardGoat, card.CardCheese})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)
	eventID := s.SlapWindow.EventID
	s, _ = mustApply(t, s, slapEvent("u2", eventID, card.CardInvalid, 1, 1060, 0), 1020)

	view := ProjectFor(s, "u1")
	w := view.SlapWindow
	if !w.Active || w.EventID != eventID || w.Reason != "MATCH" {
		t.Fatalf("window view = %+v", w)
	}
	if len(w.SlappedUserIDs) != 1 || w.SlappedUserIDs[0] != "u2" {
		t.Fatalf("slappedUserIds = %v", w.SlappedUserIDs)
	}
	if w.ReceivedSlapsCount != 1 {
		t.Fatalf("receivedSlapsCount = %d", w.ReceivedSlapsCount)
	}
}

func TestProjectionCarriesPileAndReveal(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardGoat, card.CardCheese, card.CardPizza})
	s, _ = mustApply(t, s, flipEvent("u1"), 1000)

	view := ProjectFor(s, "u2")
	if view.PileCount != 1 || view.PileTopCard != card.CardCat {
		t.Fatalf("pile view = count %d top %v", view.PileCount, view.PileTopCard)
	}
	if view.LastRevealed == nil || view.LastRevealed.Card != card.CardCat || view.LastRevealed.Seat != 0 {
		t.Fatalf("lastRevealed = %+v", view.LastRevealed)
	}
	if view.Status != "IN_GAME" {
		t.Fatalf("status = %q", view.Status)
	}
	if view.Version != s.Version {
		t.Fatalf("version = %d, want %d", view.Version, s.Version)
	}
}

func TestProjectionIndependentOfState(t *testing.T) {
	s := mustGame(t, []card.Card{card.CardCat, card.CardGoat, card.CardCheese, card.CardPizza})
	view := ProjectFor(s, "u1")
	view.Players[0].Hand[0] = card.CardPizza
	if s.Players[0].Hand[0] != card.CardCat {
		t.Fatalf("projection aliases the live hand")
	}
}
