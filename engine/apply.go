package engine

import (
	"fmt"
	"sort"

	"slaphard/card"
)

// Apply is the reducer for one engine event. It never mutates state; the
// returned next state is a fresh value (or the input pointer unchanged when
// the event is rejected). All nondeterminism enters through ev and nowMs.
func Apply(state *GameState, ev Event, nowMs int64) (*GameState, []Effect, error) {
	switch ev.Type {
	case EventFlip:
		return applyFlip(state, ev, nowMs)
	case EventSlap:
		return applySlap(state, ev, nowMs)
	case EventResolveSlapWindow, EventSkipSlapWindow:
		return applyResolve(state, nowMs)
	case EventTurnTimeout:
		return applyTurnTimeout(state)
	default:
		return state, nil, errCode(CodeInternalError, fmt.Sprintf("unknown event type %d", ev.Type))
	}
}

func applyFlip(state *GameState, ev Event, nowMs int64) (*GameState, []Effect, error) {
	if state.Status != StatusInGame {
		return state, nil, errCode(CodeNotInGame, "game is not running")
	}
	if state.SlapWindow.Active && !state.SlapWindow.Resolved {
		return state, nil, errCode(CodeSlapWindowActive, "slap window is open")
	}

	s := state.Clone()
	normalizeTurnSeat(s)
	flipper := s.playerBySeat(s.CurrentTurnSeat)
	if flipper == nil {
		return state, nil, errCode(CodeInternalError, fmt.Sprintf("no player at seat %d", s.CurrentTurnSeat))
	}
	if flipper.UserID != ev.UserID {
		return state, nil, errCode(CodeNotYourTurn, fmt.Sprintf("turn belongs to seat %d", s.CurrentTurnSeat))
	}

	prevCard := card.CardInvalid
	if s.LastRevealed != nil {
		prevCard = s.LastRevealed.Card
	}
	chantWord := card.ChantWord(s.ChantIndex)

	flipped := flipper.Hand.PopFront()
	if flipped == card.CardInvalid {
		return state, nil, errCode(CodeInternalError, "flip from empty hand")
	}
	s.Pile.Add(flipped)
	s.LastRevealed = &RevealedCard{Card: flipped, Seat: flipper.SeatIndex}

	// Emptying the hand wins immediately, even on a card that would have
	// opened a window.
	if flipper.Hand.Count() == 0 {
		s.Status = StatusFinished
		s.WinnerUserID = flipper.UserID
		resetSlapWindow(s)
		advanceChant(s)
		s.Version++
		return s, []Effect{GameFinishedEffect{WinnerUserID: flipper.UserID}}, nil
	}

	reason := WindowReasonNone
	switch {
	case flipped.IsAction():
		reason = WindowReasonAction
	case flipped == prevCard:
		reason = WindowReasonSameCard
	case flipped == chantWord:
		reason = WindowReasonMatch
	}

	var effects []Effect
	if reason != WindowReasonNone {
		dur := s.Config.windowDuration(reason)
		w := SlapWindow{
			Active:             true,
			EventID:            nextSlapEventID(s),
			Reason:             reason,
			StartServerTime:    nowMs,
			DeadlineServerTime: nowMs + dur,
			SlapWindowMs:       dur,
			FlipperSeat:        flipper.SeatIndex,
		}
		if reason == WindowReasonAction {
			w.ActionCard = flipped
		}
		s.SlapWindow = w
		effects = append(effects, SlapWindowOpenEffect{
			EventID:            w.EventID,
			Reason:             w.Reason,
			ActionCard:         w.ActionCard,
			StartServerTime:    w.StartServerTime,
			DeadlineServerTime: w.DeadlineServerTime,
			SlapWindowMs:       w.SlapWindowMs,
		})
	} else {
		s.CurrentTurnSeat = (s.CurrentTurnSeat + 1) % len(s.Players)
		normalizeTurnSeat(s)
	}
	advanceChant(s)
	s.Version++
	return s, effects, nil
}

func applySlap(state *GameState, ev Event, nowMs int64) (*GameState, []Effect, error) {
	if state.Status != StatusInGame {
		return state, nil, errCode(CodeNotInGame, "game is not running")
	}
	if state.playerByUserID(ev.UserID) == nil {
		return state, nil, errCode(CodeInternalError, fmt.Sprintf("unknown user %q", ev.UserID))
	}

	w := &state.SlapWindow
	if !w.Active || w.Resolved || ev.EventID != w.EventID {
		s := state.Clone()
		eff := applyPenalty(s, s.playerByUserID(ev.UserID), PenaltyFalseSlap)
		return s, eff, nil
	}
	if w.hasAttemptFrom(ev.UserID) {
		return state, nil, errCode(CodeAlreadySlapped, "duplicate slap for event "+ev.EventID)
	}

	s := state.Clone()
	slapper := s.playerByUserID(ev.UserID)

	if s.SlapWindow.Reason == WindowReasonAction && ev.Gesture != s.SlapWindow.ActionCard {
		eff := applyPenalty(s, slapper, PenaltyWrongGesture)
		return s, eff, nil
	}

	s.SlapWindow.Attempts = append(s.SlapWindow.Attempts, SlapAttempt{
		UserID:               ev.UserID,
		EventID:              ev.EventID,
		Gesture:              ev.Gesture,
		ClientSeq:            ev.ClientSeq,
		ClientTime:           ev.ClientTime,
		OffsetMs:             ev.OffsetMs,
		RttMs:                ev.RttMs,
		ReceivedAtServerTime: nowMs,
	})

	// First valid slap from an empty-handed player wins outright.
	if len(s.SlapWindow.Attempts) == 1 && slapper.Hand.Count() == 0 {
		eventID := s.SlapWindow.EventID
		s.Status = StatusFinished
		s.WinnerUserID = slapper.UserID
		resetSlapWindow(s)
		s.Version++
		return s, []Effect{
			SlapResultEffect{
				EventID:        eventID,
				OrderedUserIDs: []string{slapper.UserID},
				Reason:         SlapResultFirstValidSlapWin,
			},
			GameFinishedEffect{WinnerUserID: slapper.UserID},
		}, nil
	}

	if s.SlapWindow.ReceivedSlapsCount() >= requiredSlapCount(s) {
		eff := resolveWindow(s)
		return s, eff, nil
	}
	s.Version++
	return s, nil, nil
}

func applyResolve(state *GameState, nowMs int64) (*GameState, []Effect, error) {
	_ = nowMs
	if state.Status != StatusInGame {
		return state, nil, errCode(CodeNotInGame, "game is not running")
	}
	if !state.SlapWindow.Active || state.SlapWindow.Resolved {
		return state, nil, errCode(CodeNoSlapWindow, "no slap window to resolve")
	}
	s := state.Clone()
	eff := resolveWindow(s)
	return s, eff, nil
}

func applyTurnTimeout(state *GameState) (*GameState, []Effect, error) {
	if state.Status != StatusInGame {
		return state, nil, errCode(CodeNotInGame, "game is not running")
	}
	if state.SlapWindow.Active && !state.SlapWindow.Resolved {
		return state, nil, errCode(CodeSlapWindowActive, "slap window is open")
	}
	s := state.Clone()
	normalizeTurnSeat(s)
	p := s.playerBySeat(s.CurrentTurnSeat)
	if p == nil {
		return state, nil, errCode(CodeInternalError, fmt.Sprintf("no player at seat %d", s.CurrentTurnSeat))
	}
	eff := applyPenalty(s, p, PenaltyTurnTimeout)
	return s, eff, nil
}

// WindowResolvableByCount reports whether the open window already holds
// enough attempts to auto-resolve. The threshold depends on the connected
// player count, so the orchestrator re-checks it when a player drops: a
// window waiting on the departed player must not stay open forever.
func (s *GameState) WindowResolvableByCount() bool {
	w := s.SlapWindow
	return s.Status == StatusInGame && w.Active && !w.Resolved &&
		w.ReceivedSlapsCount() >= requiredSlapCount(s)
}

// requiredSlapCount is the attempt count that auto-resolves the window.
// SAME_CARD and ACTION wait for every connected player; MATCH waits for the
// full table, flipper included.
func requiredSlapCount(s *GameState) int {
	switch s.SlapWindow.Reason {
	case WindowReasonSameCard, WindowReasonAction:
		n := s.connectedCount()
		if n < 1 {
			n = 1
		}
		return n
	default:
		return len(s.Players)
	}
}

// resolveWindow ranks the attempts, picks a loser, hands over the pile and
// advances the turn. The caller owns s (already cloned).
func resolveWindow(s *GameState) []Effect {
	w := s.SlapWindow
	ordered := orderAttempts(s)
	pileTaken := append([]card.Card{}, s.Pile...)

	if len(ordered) == 0 {
		flipper := s.playerBySeat(w.FlipperSeat)
		if flipper == nil {
			resetSlapWindow(s)
			s.Version++
			return nil
		}
		takePile(s, flipper)
		resetSlapWindow(s)
		s.Version++
		normalizeTurnSeat(s)
		return []Effect{
			PenaltyEffect{UserID: flipper.UserID, PenaltyType: PenaltyNoSlaps, PileTaken: pileTaken},
			SlapResultEffect{
				EventID:     w.EventID,
				LoserUserID: flipper.UserID,
				Reason:      SlapResultNoSlaps,
				PileTaken:   pileTaken,
			},
		}
	}

	orderedIDs := make([]string, len(ordered))
	for i, a := range ordered {
		orderedIDs[i] = a.UserID
	}

	// An empty-handed player who ranked first wins the game.
	if first := s.playerByUserID(ordered[0].UserID); first != nil && first.Hand.Count() == 0 {
		s.Status = StatusFinished
		s.WinnerUserID = first.UserID
		resetSlapWindow(s)
		s.Version++
		return []Effect{
			SlapResultEffect{
				EventID:        w.EventID,
				OrderedUserIDs: orderedIDs,
				Reason:         SlapResultFirstValidSlapWin,
			},
			GameFinishedEffect{WinnerUserID: first.UserID},
		}
	}

	var loser *Player
	var reason SlapResultReason
	if w.Reason == WindowReasonSameCard {
		loser = s.playerByUserID(ordered[len(ordered)-1].UserID)
		reason = SlapResultLastSlapper
	} else {
		slapped := make(map[string]bool, len(ordered))
		for _, a := range ordered {
			slapped[a.UserID] = true
		}
		for i := range s.Players {
			if !slapped[s.Players[i].UserID] {
				loser = &s.Players[i]
				reason = SlapResultNonSlapper
			}
		}
		if loser == nil {
			loser = s.playerByUserID(ordered[len(ordered)-1].UserID)
			reason = SlapResultLastSlapper
		}
	}

	takePile(s, loser)
	resetSlapWindow(s)
	s.Version++
	normalizeTurnSeat(s)
	return []Effect{
		SlapResultEffect{
			EventID:        w.EventID,
			OrderedUserIDs: orderedIDs,
			LoserUserID:    loser.UserID,
			Reason:         reason,
			PileTaken:      pileTaken,
		},
	}
}

// orderAttempts ranks the window's attempts. SAME_CARD races on arrival
// order; everything else races on the estimated reaction time.
func orderAttempts(s *GameState) []SlapAttempt {
	w := s.SlapWindow
	out := append([]SlapAttempt{}, w.Attempts...)
	if w.Reason == WindowReasonSameCard {
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.ReceivedAtServerTime != b.ReceivedAtServerTime {
				return a.ReceivedAtServerTime < b.ReceivedAtServerTime
			}
			if a.ClientSeq != b.ClientSeq {
				return a.ClientSeq < b.ClientSeq
			}
			return a.UserID < b.UserID
		})
		return out
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ra, rb := reactionMs(s, a), reactionMs(s, b)
		if ra != rb {
			return ra < rb
		}
		if a.ReceivedAtServerTime != b.ReceivedAtServerTime {
			return a.ReceivedAtServerTime < b.ReceivedAtServerTime
		}
		if a.ClientSeq != b.ClientSeq {
			return a.ClientSeq < b.ClientSeq
		}
		return a.UserID < b.UserID
	})
	return out
}

// reactionMs estimates how fast the slapper reacted: the offset-corrected
// client timestamp relative to the window start, floored to the minimum
// human reaction time and capped a little past the window length.
func reactionMs(s *GameState, a SlapAttempt) int64 {
	r := (a.ClientTime + a.OffsetMs) - s.SlapWindow.StartServerTime
	if r < 0 {
		r = 0
	}
	if r < s.Config.MinHumanReactionMs {
		r = s.Config.MinHumanReactionMs
	}
	if ceil := s.SlapWindow.SlapWindowMs + 2000; r > ceil {
		r = ceil
	}
	return r
}

// applyPenalty hands the pile to the penalized player and gives them the
// turn. The caller owns s (already cloned).
func applyPenalty(s *GameState, p *Player, pt PenaltyType) []Effect {
	pileTaken := append([]card.Card{}, s.Pile...)
	takePile(s, p)
	resetSlapWindow(s)
	s.Version++
	normalizeTurnSeat(s)
	return []Effect{PenaltyEffect{UserID: p.UserID, PenaltyType: pt, PileTaken: pileTaken}}
}

// takePile moves the pile to the bottom of p's hand and gives p the turn.
func takePile(s *GameState, p *Player) {
	p.Hand.Add(s.Pile...)
	s.Pile = nil
	s.CurrentTurnSeat = p.SeatIndex
}

// normalizeTurnSeat keeps the turn on a seat with cards: if the current
// seat is empty-handed, walk forward to the next nonempty seat.
func normalizeTurnSeat(s *GameState) {
	n := len(s.Players)
	if n == 0 {
		return
	}
	if p := s.playerBySeat(s.CurrentTurnSeat); p != nil && p.Hand.Count() > 0 {
		return
	}
	for i := 1; i <= n; i++ {
		seat := (s.CurrentTurnSeat + i) % n
		if p := s.playerBySeat(seat); p != nil && p.Hand.Count() > 0 {
			s.CurrentTurnSeat = seat
			return
		}
	}
}

func advanceChant(s *GameState) {
	s.ChantIndex = (s.ChantIndex + 1) % len(card.ChantOrder)
}

func resetSlapWindow(s *GameState) {
	s.SlapWindow = SlapWindow{FlipperSeat: InvalidSeat}
}

func nextSlapEventID(s *GameState) string {
	id := fmt.Sprintf("slap-%08x", s.NextSlapEventNonce)
	s.NextSlapEventNonce++
	return id
}
