// Package fcpconfig loads process configuration from the environment:
// os.Getenv with defaults, no viper/cobra.
package fcpconfig

import (
	"os"
	"strconv"

	"github.com/flywheel-sh/fcpcore/pkg/supervisor"
)

// Config holds fcpcore's process-wide configuration.
type Config struct {
	LogLevel  string
	LogFormat string // "json" (default) or "text"
	ZoneID    string

	BundlePath     string
	ZoneDefPath    string
	CheckpointPath string

	CursorStoreBackend string // "memory" (default), "postgres", "sqlite", "redis", "s3", "gcs"
	CursorStoreDSN     string

	OTLPEndpoint string

	Supervisor supervisor.Config
}

// Load reads configuration from the environment, applying the normative
// supervisor defaults and plain fallbacks for everything else.
func Load() Config {
	cfg := Config{
		LogLevel:           getenv("LOG_LEVEL", "INFO"),
		LogFormat:          getenv("LOG_FORMAT", "json"),
		ZoneID:             getenv("FCP_ZONE_ID", "default"),
		BundlePath:         getenv("FCP_BUNDLE_PATH", ""),
		ZoneDefPath:        getenv("FCP_ZONE_DEF_PATH", ""),
		CheckpointPath:     getenv("FCP_CHECKPOINT_PATH", "./fcpcore-checkpoint.json"),
		CursorStoreBackend: getenv("FCP_CURSOR_STORE_BACKEND", "memory"),
		CursorStoreDSN:     getenv("FCP_CURSOR_STORE_DSN", ""),
		OTLPEndpoint:       getenv("FCP_OTLP_ENDPOINT", ""),
		Supervisor:         supervisor.DefaultConfig(),
	}

	cfg.Supervisor.BaseBackoffMs = getenvInt64("FCP_BASE_BACKOFF_MS", cfg.Supervisor.BaseBackoffMs)
	cfg.Supervisor.MaxBackoffMs = getenvInt64("FCP_MAX_BACKOFF_MS", cfg.Supervisor.MaxBackoffMs)
	cfg.Supervisor.JitterEnabled = getenvBool("FCP_JITTER_ENABLED", cfg.Supervisor.JitterEnabled)
	cfg.Supervisor.MaxConsecutiveFailures = int(getenvInt64("FCP_MAX_CONSECUTIVE_FAILURES", int64(cfg.Supervisor.MaxConsecutiveFailures)))
	cfg.Supervisor.CooldownAfterFailureMs = getenvInt64("FCP_COOLDOWN_AFTER_FAILURE_MS", cfg.Supervisor.CooldownAfterFailureMs)
	cfg.Supervisor.ShutdownTimeoutMs = getenvInt64("FCP_SHUTDOWN_TIMEOUT_MS", cfg.Supervisor.ShutdownTimeoutMs)
	cfg.Supervisor.HeartbeatIntervalMs = getenvInt64("FCP_HEARTBEAT_INTERVAL_MS", cfg.Supervisor.HeartbeatIntervalMs)

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
