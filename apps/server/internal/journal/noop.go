package journal

import "context"

// NoopService satisfies Service when persistence is disabled.
type NoopService struct{}

func NewNoopService() *NoopService { return &NoopService{} }

func (*NoopService) UpsertRoomMetadata(context.Context, RoomRecord) error { return nil }

func (*NoopService) WriteRoomSnapshot(context.Context, RoomRecord, string) error { return nil }

func (*NoopService) MarkRoomDeleted(context.Context, string) error { return nil }

func (*NoopService) StartMatch(ctx context.Context, roomID string) (string, error) {
	return "", nil
}

func (*NoopService) FinishMatch(context.Context, string, string, any) error { return nil }

func (*NoopService) AppendMatchEvent(context.Context, string, string, any) error { return nil }

func (*NoopService) Close() error { return nil }
