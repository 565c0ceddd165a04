package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRoomPrefix = "slaphard:room:"
	redisCodePrefix = "slaphard:code:"
	redisUserPrefix = "slaphard:user:"
)

// RedisStore keeps rooms in Redis so several server processes can share
// them. Indexes: room JSON by id, code->id, userID->roomID, each with the
// store TTL refreshed on every save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: DefaultTTL}, nil
}

func (s *RedisStore) GetRoomByID(ctx context.Context, roomID string) (*RoomState, error) {
	raw, err := s.client.Get(ctx, redisRoomPrefix+roomID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get room %s: %w", roomID, err)
	}
	var room RoomState
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *RedisStore) GetRoomByCode(ctx context.Context, roomCode string) (*RoomState, error) {
	roomID, err := s.client.Get(ctx, redisCodePrefix+roomCode).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get code %s: %w", roomCode, err)
	}
	return s.GetRoomByID(ctx, roomID)
}

func (s *RedisStore) SaveRoom(ctx context.Context, room *RoomState) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.RoomID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisRoomPrefix+room.RoomID, raw, s.ttl)
	pipe.Set(ctx, redisCodePrefix+room.RoomCode, room.RoomID, s.ttl)
	for _, userID := range room.MemberUserIDs() {
		pipe.Set(ctx, redisUserPrefix+userID, room.RoomID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, room *RoomState) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisRoomPrefix+room.RoomID)
	pipe.Del(ctx, redisCodePrefix+room.RoomCode)
	for _, userID := range room.MemberUserIDs() {
		pipe.Del(ctx, redisUserPrefix+userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete room %s: %w", room.RoomID, err)
	}
	return nil
}

func (s *RedisStore) SetUserRoom(ctx context.Context, userID, roomID string) error {
	return s.client.Set(ctx, redisUserPrefix+userID, roomID, s.ttl).Err()
}

func (s *RedisStore) GetUserRoom(ctx context.Context, userID string) (string, error) {
	roomID, err := s.client.Get(ctx, redisUserPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get user %s: %w", userID, err)
	}
	return roomID, nil
}

func (s *RedisStore) ClearUserRoom(ctx context.Context, userID string) error {
	return s.client.Del(ctx, redisUserPrefix+userID).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
