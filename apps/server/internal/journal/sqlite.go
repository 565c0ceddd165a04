package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "slaphard_local.db"

// SQLiteService journals to a local database file for development runs.
type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath := strings.TrimSpace(os.Getenv("SLAPHARD_DB"))
	if dbPath == "" {
		dbPath = defaultLocalDBName
	}
	return NewSQLiteService(dbPath)
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			room_code TEXT NOT NULL,
			status TEXT NOT NULL,
			host_user_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			deleted_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS room_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			transition_type TEXT NOT NULL,
			version INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			winner_user_id TEXT,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			summary TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS match_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			match_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_room_snapshots_room ON room_snapshots(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_match ON match_events(match_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteService) UpsertRoomMetadata(ctx context.Context, room RoomRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rooms (id, room_code, status, host_user_id, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	room_code = excluded.room_code,
	status = excluded.status,
	host_user_id = excluded.host_user_id,
	version = excluded.version,
	updated_at = excluded.updated_at`,
		room.RoomID, room.RoomCode, room.Status, room.HostUserID,
		room.Version, room.CreatedAt, room.UpdatedAt)
	return err
}

func (s *SQLiteService) WriteRoomSnapshot(ctx context.Context, room RoomRecord, transition string) error {
	payload, err := json.Marshal(room.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO room_snapshots (room_id, transition_type, version, payload, created_at)
VALUES (?, ?, ?, ?, ?)`,
		room.RoomID, transition, room.Version, string(payload), time.Now().UnixMilli())
	return err
}

func (s *SQLiteService) MarkRoomDeleted(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET deleted_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), roomID)
	return err
}

func (s *SQLiteService) StartMatch(ctx context.Context, roomID string) (string, error) {
	matchID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO matches (id, room_id, started_at) VALUES (?, ?, ?)`,
		matchID, roomID, time.Now().UnixMilli())
	if err != nil {
		return "", err
	}
	return matchID, nil
}

func (s *SQLiteService) FinishMatch(ctx context.Context, matchID, winnerUserID string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	var winner sql.NullString
	if winnerUserID != "" {
		winner = sql.NullString{String: winnerUserID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE matches SET winner_user_id = ?, ended_at = ?, summary = ? WHERE id = ?`,
		winner, time.Now().UnixMilli(), string(raw), matchID)
	return err
}

func (s *SQLiteService) AppendMatchEvent(ctx context.Context, matchID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO match_events (match_id, event_type, payload, created_at)
VALUES (?, ?, ?, ?)`,
		matchID, eventType, string(raw), time.Now().UnixMilli())
	return err
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
