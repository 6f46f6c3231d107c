package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL          string
	ServerAddr           string
	Store                string
	LeaseDuration        time.Duration
	IdentityClaim        string
	ParticipantContextID string
	ParticipantID        string
	ManagementAPIKeyHash string
	MigrationsDir        string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "dataspace_hub")
		pass := getenv("POSTGRES_PASSWORD", "dataspace_hub_pass")
		db := getenv("POSTGRES_DB", "dataspace_hub")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	addr := getenv("SERVER_ADDR", "0.0.0.0:8080")
	store := getenv("STORE", "postgres")
	if store != "postgres" && store != "memory" {
		return nil, fmt.Errorf("unknown STORE %q, want postgres or memory", store)
	}
	lease := parseDuration(getenv("LEASE_DURATION", "60s"), 60*time.Second)
	pctxID := getenv("PARTICIPANT_CONTEXT_ID", "default")
	participantID := os.Getenv("PARTICIPANT_ID")
	if participantID == "" {
		return nil, fmt.Errorf("PARTICIPANT_ID is required")
	}

	return &Config{
		DatabaseURL:          dsn,
		ServerAddr:           addr,
		Store:                store,
		LeaseDuration:        lease,
		IdentityClaim:        getenv("IDENTITY_CLAIM", "client_id"),
		ParticipantContextID: pctxID,
		ParticipantID:        participantID,
		ManagementAPIKeyHash: os.Getenv("MANAGEMENT_API_KEY_HASH"),
		MigrationsDir:        getenv("MIGRATIONS_DIR", "internal/migrations"),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}
