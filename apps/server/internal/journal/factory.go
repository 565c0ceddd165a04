package journal

import (
	"fmt"
	"os"
	"strings"
)

const (
	ModeNoop     = "noop"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

// NewServiceFromEnv selects the journal backend. Persistence is opt-in via
// ENABLE_DB_PERSISTENCE; DATABASE_URL selects postgres, otherwise a local
// sqlite file (SLAPHARD_DB, default slaphard_local.db).
func NewServiceFromEnv() (Service, string, error) {
	if !envBool("ENABLE_DB_PERSISTENCE") {
		return NewNoopService(), ModeNoop, nil
	}

	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		svc, err := NewPostgresService(url)
		if err != nil {
			return nil, ModePostgres, fmt.Errorf("init postgres journal: %w", err)
		}
		return svc, ModePostgres, nil
	}

	svc, err := NewSQLiteServiceFromEnv()
	if err != nil {
		return nil, ModeSQLite, fmt.Errorf("init sqlite journal: %w", err)
	}
	return svc, ModeSQLite, nil
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
