package api

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/shelf/internal/serverdb"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	DBDriver        string // "sqlite" (default, pure Go) or "sqlite3" (cgo)
	ShutdownTimeout time.Duration
	AllowSignup     bool
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	SessionTTL     time.Duration // active period before renewal (default: 24h)
	SessionIdleTTL time.Duration // idle period after the active one (default: 14 days)
	SecureCookies  bool

	RateLimitAuth  int // /v1/auth/*, /sign-in, /sign-up per IP per minute (default: 10)
	RateLimitOther int // all other per session user per minute (default: 300)

	CORSAllowedOrigins []string // allowed origins for /api, /rpc and /v1/auth; empty = disabled

	AuthEventRetention      time.Duration // retention period for auth events (default: 90 days)
	RateLimitEventRetention time.Duration // retention period for rate limit events (default: 30 days)
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/shelf.db",
		DBDriver:        serverdb.DriverModernc,
		ShutdownTimeout: 30 * time.Second,
		AllowSignup:     true,
		LogFormat:       "json",
		LogLevel:        "info",

		SessionTTL:     serverdb.SessionActiveTTL,
		SessionIdleTTL: serverdb.SessionIdleTTL,

		RateLimitAuth:  10,
		RateLimitOther: 300,

		AuthEventRetention:      90 * 24 * time.Hour,
		RateLimitEventRetention: 30 * 24 * time.Hour,
	}

	if v := os.Getenv("SHELF_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SHELF_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SHELF_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("SHELF_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("SHELF_ALLOW_SIGNUP"); v == "false" || v == "0" {
		cfg.AllowSignup = false
	}
	if v := os.Getenv("SHELF_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SHELF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("SHELF_SESSION_TTL"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("SHELF_SESSION_IDLE_TTL"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.SessionIdleTTL = d
		}
	}
	if v := os.Getenv("SHELF_SECURE_COOKIES"); v == "true" || v == "1" {
		cfg.SecureCookies = true
	}

	if v := os.Getenv("SHELF_RATE_LIMIT_AUTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitAuth = n
		}
	}
	if v := os.Getenv("SHELF_RATE_LIMIT_OTHER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitOther = n
		}
	}

	if v := os.Getenv("SHELF_AUTH_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.AuthEventRetention = d
		}
	}
	if v := os.Getenv("SHELF_RATE_LIMIT_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.RateLimitEventRetention = d
		}
	}

	if v := os.Getenv("SHELF_CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg
}

// sessionTTL converts the configured lifetimes for the store.
func (c Config) sessionTTL() serverdb.SessionTTL {
	return serverdb.SessionTTL{Active: c.SessionTTL, Idle: c.SessionIdleTTL}
}

// parseDaysDuration parses a string like "90d", "30d" into a time.Duration.
// Falls back to time.ParseDuration for standard Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}
