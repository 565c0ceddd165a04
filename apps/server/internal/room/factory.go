package room

import (
	"fmt"
	"os"
	"strings"
)

const (
	StoreModeMemory = "memory"
	StoreModeRedis  = "redis"
)

// NewStoreFromEnv picks the store backend: REDIS_URL when set, otherwise
// the in-memory store. In production the in-memory fallback must be opted
// into with ALLOW_IN_MEMORY_ROOM_STORE=true.
func NewStoreFromEnv() (Store, string, error) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL != "" {
		store, err := NewRedisStore(redisURL)
		if err != nil {
			return nil, StoreModeRedis, err
		}
		return store, StoreModeRedis, nil
	}

	if isProduction() && !envBool("ALLOW_IN_MEMORY_ROOM_STORE") {
		return nil, StoreModeMemory, fmt.Errorf("REDIS_URL unset; set ALLOW_IN_MEMORY_ROOM_STORE=true to run single-process")
	}
	return NewMemoryStore(), StoreModeMemory, nil
}

func isProduction() bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	return env == "production" || env == "prod"
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
