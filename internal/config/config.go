package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; nothing is strictly required — without
// DATABASE_URL the queue snapshots to local files instead of PostgreSQL.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database (optional; selects the PostgreSQL snapshot store when set)
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// File snapshot store location, used when DatabaseURL is empty
	SnapshotDir string

	// Queue
	QueueMaxSize    int
	DefaultTTL      time.Duration
	PersistenceKey  string // empty disables persistence entirely
	AutoPersist     bool
	PersistInterval time.Duration
	SweepInterval   time.Duration

	// Directory reconciliation
	ReconcileInterval time.Duration

	// Per-connection inbound event rate limit (events per second)
	EventRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		SnapshotDir: getEnv("SNAPSHOT_DIR", "data"),

		QueueMaxSize:    getInt("QUEUE_MAX_SIZE", 1000),
		DefaultTTL:      getDuration("DEFAULT_TTL", 24*time.Hour),
		PersistenceKey:  getEnv("PERSISTENCE_KEY", "notifications"),
		AutoPersist:     getBool("AUTO_PERSIST", true),
		PersistInterval: getDuration("PERSIST_INTERVAL", 5*time.Second),
		SweepInterval:   getDuration("SWEEP_INTERVAL", 60*time.Second),

		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 60*time.Second),

		EventRateLimit: getInt("EVENT_RATE_LIMIT", 20),
	}

	if cfg.QueueMaxSize <= 0 {
		return nil, fmt.Errorf("QUEUE_MAX_SIZE must be positive, got %d", cfg.QueueMaxSize)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
