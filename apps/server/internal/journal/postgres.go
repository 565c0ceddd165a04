package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresService is the production journal backend.
type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(databaseURL string) (*PostgresService, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := ensurePostgresSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresService{db: db}, nil
}

func ensurePostgresSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			room_code TEXT NOT NULL,
			status TEXT NOT NULL,
			host_user_id TEXT NOT NULL,
			version BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			deleted_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS room_snapshots (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			transition_type TEXT NOT NULL,
			version BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			winner_user_id TEXT,
			started_at BIGINT NOT NULL,
			ended_at BIGINT,
			summary JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS match_events (
			id BIGSERIAL PRIMARY KEY,
			match_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_room_snapshots_room ON room_snapshots(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) UpsertRoomMetadata(ctx context.Context, room RoomRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rooms (id, room_code, status, host_user_id, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	room_code = EXCLUDED.room_code,
	status = EXCLUDED.status,
	host_user_id = EXCLUDED.host_user_id,
	version = EXCLUDED.version,
	updated_at = EXCLUDED.updated_at`,
		room.RoomID, room.RoomCode, room.Status, room.HostUserID,
		room.Version, room.CreatedAt, room.UpdatedAt)
	return err
}

func (s *PostgresService) WriteRoomSnapshot(ctx context.Context, room RoomRecord, transition string) error {
	payload, err := json.Marshal(room.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO room_snapshots (room_id, transition_type, version, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		room.RoomID, transition, room.Version, payload, time.Now().UnixMilli())
	return err
}

func (s *PostgresService) MarkRoomDeleted(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET deleted_at = $1 WHERE id = $2`,
		time.Now().UnixMilli(), roomID)
	return err
}

func (s *PostgresService) StartMatch(ctx context.Context, roomID string) (string, error) {
	matchID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO matches (id, room_id, started_at) VALUES ($1, $2, $3)`,
		matchID, roomID, time.Now().UnixMilli())
	if err != nil {
		return "", err
	}
	return matchID, nil
}

func (s *PostgresService) FinishMatch(ctx context.Context, matchID, winnerUserID string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	var winner sql.NullString
	if winnerUserID != "" {
		winner = sql.NullString{String: winnerUserID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE matches SET winner_user_id = $1, ended_at = $2, summary = $3 WHERE id = $4`,
		winner, time.Now().UnixMilli(), raw, matchID)
	return err
}

func (s *PostgresService) AppendMatchEvent(ctx context.Context, matchID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO match_events (match_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4)`,
		matchID, eventType, raw, time.Now().UnixMilli())
	return err
}

func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
