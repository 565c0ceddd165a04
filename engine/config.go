package engine

import "fmt"

const (
	MinPlayers = 2
	MaxPlayers = 8
)

// Config carries every tunable the reducer reads. It is injected at game
// start and never read from process-wide state.
type Config struct {
	// Slap window durations, milliseconds.
	SlapWindowMs       int64 // MATCH and SAME_CARD windows
	ActionSlapWindowMs int64 // ACTION windows

	// Turn timer, milliseconds. The engine never schedules it; the
	// orchestrator does and feeds TURN_TIMEOUT back in.
	TurnTimeoutMs int64

	// Floor for the estimated reaction time, milliseconds.
	MinHumanReactionMs int64
}

// DefaultConfig returns the tournament defaults.
func DefaultConfig() Config {
	return Config{
		SlapWindowMs:       2000,
		ActionSlapWindowMs: 3200,
		TurnTimeoutMs:      5000,
		MinHumanReactionMs: 60,
	}
}

func (c Config) validate() error {
	if c.SlapWindowMs <= 0 || c.ActionSlapWindowMs <= 0 {
		return fmt.Errorf("slap windows must be > 0: match=%d action=%d", c.SlapWindowMs, c.ActionSlapWindowMs)
	}
	if c.TurnTimeoutMs <= 0 {
		return fmt.Errorf("TurnTimeoutMs must be > 0")
	}
	if c.MinHumanReactionMs < 0 {
		return fmt.Errorf("MinHumanReactionMs must be >= 0")
	}
	return nil
}

// windowDuration returns the slap window length for a window reason.
func (c Config) windowDuration(reason WindowReason) int64 {
	if reason == WindowReasonAction {
		return c.ActionSlapWindowMs
	}
	return c.SlapWindowMs
}
