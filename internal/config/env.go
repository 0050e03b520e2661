// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings for portcullisd.
type EnvConfig struct {
	// Network
	ListenAddress string
	Port          int

	// Auth
	AuthEnabled bool
	CredDBPath  string

	// Request log
	RequestLogDir           string
	RequestLogDBMaxMB       int
	RequestLogDBRetainCount int

	// Timeouts. HeadReadTimeout is loaded and validated but not passed to
	// the proxy; the dispatcher's head read uses its own fixed 30s bound.
	HeadReadTimeout time.Duration
	DialTimeout     time.Duration
	TunnelIdleTimeout time.Duration

	// Observability
	SnapshotSchedule string
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error if any value is malformed or out of range
// (spec.md §7 config_invalid).
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.ListenAddress = strings.TrimSpace(envStr("PORTCULLIS_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("PORTCULLIS_PORT", 8080, &errs)

	cfg.AuthEnabled = envBool("PORTCULLIS_AUTH_ENABLED", true)
	cfg.CredDBPath = envStr("PORTCULLIS_CREDSTORE_PATH", "/var/lib/portcullis/users.db")

	cfg.RequestLogDir = envStr("PORTCULLIS_REQUEST_LOG_DIR", "/var/log/portcullis")
	cfg.RequestLogDBMaxMB = envInt("PORTCULLIS_REQUEST_LOG_DB_MAX_MB", 512, &errs)
	cfg.RequestLogDBRetainCount = envInt("PORTCULLIS_REQUEST_LOG_DB_RETAIN_COUNT", 5, &errs)

	cfg.HeadReadTimeout = envDuration("PORTCULLIS_HEAD_READ_TIMEOUT", 30*time.Second, &errs)
	cfg.DialTimeout = envDuration("PORTCULLIS_DIAL_TIMEOUT", 10*time.Second, &errs)
	cfg.TunnelIdleTimeout = envDuration("PORTCULLIS_TUNNEL_IDLE_TIMEOUT", 300*time.Second, &errs)

	cfg.SnapshotSchedule = envStr("PORTCULLIS_SNAPSHOT_SCHEDULE", "*/5 * * * *")

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "PORTCULLIS_LISTEN_ADDRESS must not be empty")
	}
	validatePort("PORTCULLIS_PORT", cfg.Port, &errs)
	if cfg.CredDBPath == "" {
		errs = append(errs, "PORTCULLIS_CREDSTORE_PATH must not be empty")
	}
	if cfg.RequestLogDir == "" {
		errs = append(errs, "PORTCULLIS_REQUEST_LOG_DIR must not be empty")
	}
	validatePositive("PORTCULLIS_REQUEST_LOG_DB_MAX_MB", cfg.RequestLogDBMaxMB, &errs)
	validatePositive("PORTCULLIS_REQUEST_LOG_DB_RETAIN_COUNT", cfg.RequestLogDBRetainCount, &errs)
	if cfg.HeadReadTimeout <= 0 {
		errs = append(errs, "PORTCULLIS_HEAD_READ_TIMEOUT must be positive")
	}
	if cfg.DialTimeout <= 0 {
		errs = append(errs, "PORTCULLIS_DIAL_TIMEOUT must be positive")
	}
	if cfg.TunnelIdleTimeout <= 0 {
		errs = append(errs, "PORTCULLIS_TUNNEL_IDLE_TIMEOUT must be positive")
	}
	if _, err := cron.ParseStandard(cfg.SnapshotSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("PORTCULLIS_SNAPSHOT_SCHEDULE: invalid cron expression %q: %v", cfg.SnapshotSchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
