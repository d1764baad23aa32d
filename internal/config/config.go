package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default except the database URL and the OAuth
// credentials.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database (ticket store)
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Redis (delivery channel + import lock)
	RedisURL string

	// Gateway auth
	JWTSecret string

	// OAuth2 credential broker
	OAuthTenantID     string
	OAuthClientID     string
	OAuthRefreshToken string

	// Mailbox
	MailHost    string // host:port of the IMAP server
	MailUser    string
	MailboxName string // operator-created mailbox record to import into
	MailFolder  string // folder override; empty = mailbox record / INBOX
	IMAPTimeout time.Duration

	// Import pipeline
	MarkSeen    bool
	ImportLimit int // 0 = no limit
	FetchRate   int // max message fetches per second within a run

	// Scheduler
	PollEnabled  bool
	PollInterval time.Duration
	RetryCount   int
	RetryDelay   time.Duration
	LockName     string
	LockTTL      time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OAuthTenantID:     os.Getenv("OAUTH_TENANT_ID"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthRefreshToken: os.Getenv("OAUTH_REFRESH_TOKEN"),

		MailHost:    getEnv("MAIL_HOST", "outlook.office365.com:993"),
		MailUser:    os.Getenv("MAIL_USER"),
		MailboxName: getEnv("MAILBOX_NAME", "Support"),
		MailFolder:  getEnv("MAIL_FOLDER", ""),
		IMAPTimeout: getDuration("IMAP_TIMEOUT", 30*time.Second),

		MarkSeen:    getBool("MAIL_MARK_SEEN", true),
		ImportLimit: getInt("MAIL_IMPORT_LIMIT", 0),
		FetchRate:   getInt("MAIL_FETCH_RATE", 20),

		PollEnabled:  getBool("MAIL_POLL_ENABLED", true),
		PollInterval: getDuration("MAIL_POLL_INTERVAL", 5*time.Minute),
		RetryCount:   getInt("MAIL_RETRY_COUNT", 3),
		RetryDelay:   getDuration("MAIL_RETRY_DELAY", 30*time.Second),
		LockName:     getEnv("MAIL_LOCK_NAME", "mail-poll"),
		LockTTL:      getDuration("MAIL_LOCK_TTL", 4*time.Minute),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PollEnabled {
		if cfg.OAuthTenantID == "" || cfg.OAuthClientID == "" || cfg.OAuthRefreshToken == "" {
			return nil, fmt.Errorf("OAUTH_TENANT_ID, OAUTH_CLIENT_ID and OAUTH_REFRESH_TOKEN are required when MAIL_POLL_ENABLED is true")
		}
		if cfg.MailUser == "" {
			return nil, fmt.Errorf("MAIL_USER is required when MAIL_POLL_ENABLED is true")
		}
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
