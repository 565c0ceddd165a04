package journal

import (
	"context"

	"github.com/rs/zerolog"
)

// RetryService wraps another Service with the retry-once-then-log policy:
// every call gets a single retry, and a second failure is logged and
// swallowed so gameplay never stalls on persistence.
type RetryService struct {
	inner Service
	log   zerolog.Logger

	// Optional counters, wired by main.
	OnRetry   func()
	OnFailure func()
}

func WithRetry(inner Service, log zerolog.Logger) *RetryService {
	return &RetryService{inner: inner, log: log.With().Str("component", "journal").Logger()}
}

func (s *RetryService) attempt(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if s.OnRetry != nil {
		s.OnRetry()
	}
	s.log.Warn().Err(err).Str("op", op).Msg("journal write failed, retrying")
	if err = fn(); err == nil {
		return nil
	}
	if s.OnFailure != nil {
		s.OnFailure()
	}
	s.log.Error().Err(err).Str("op", op).Msg("journal write dropped after retry")
	return nil
}

func (s *RetryService) UpsertRoomMetadata(ctx context.Context, room RoomRecord) error {
	return s.attempt(ctx, "upsertRoomMetadata", func() error {
		return s.inner.UpsertRoomMetadata(ctx, room)
	})
}

func (s *RetryService) WriteRoomSnapshot(ctx context.Context, room RoomRecord, transition string) error {
	return s.attempt(ctx, "writeRoomSnapshot", func() error {
		return s.inner.WriteRoomSnapshot(ctx, room, transition)
	})
}

func (s *RetryService) MarkRoomDeleted(ctx context.Context, roomID string) error {
	return s.attempt(ctx, "markRoomDeleted", func() error {
		return s.inner.MarkRoomDeleted(ctx, roomID)
	})
}

// StartMatch is the one call whose result gameplay uses (the match id).
// It still retries once, but a second failure surfaces as an empty id so
// the room simply plays without a bound match.
func (s *RetryService) StartMatch(ctx context.Context, roomID string) (string, error) {
	matchID, err := s.inner.StartMatch(ctx, roomID)
	if err == nil {
		return matchID, nil
	}
	if s.OnRetry != nil {
		s.OnRetry()
	}
	s.log.Warn().Err(err).Str("room", roomID).Msg("startMatch failed, retrying")
	matchID, err = s.inner.StartMatch(ctx, roomID)
	if err == nil {
		return matchID, nil
	}
	if s.OnFailure != nil {
		s.OnFailure()
	}
	s.log.Error().Err(err).Str("room", roomID).Msg("startMatch dropped after retry")
	return "", nil
}

func (s *RetryService) FinishMatch(ctx context.Context, matchID, winnerUserID string, summary any) error {
	return s.attempt(ctx, "finishMatch", func() error {
		return s.inner.FinishMatch(ctx, matchID, winnerUserID, summary)
	})
}

func (s *RetryService) AppendMatchEvent(ctx context.Context, matchID, eventType string, payload any) error {
	return s.attempt(ctx, "appendMatchEvent", func() error {
		return s.inner.AppendMatchEvent(ctx, matchID, eventType, payload)
	})
}

func (s *RetryService) Close() error {
	return s.inner.Close()
}
