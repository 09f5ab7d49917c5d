package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultLockTime is midnight Eastern on Dec 26 2025.
const DefaultLockTime = "2025-12-26T05:00:00Z"

// Config holds all configuration for the application. Values come from an
// optional YAML file named by CONFIG_FILE, then environment variables, which
// win over the file.
type Config struct {
	// --- Server & Paths ---
	ServerAddr     string        `yaml:"server_addr"`
	DataPath       string        `yaml:"data_path"`
	DbPath         string        `yaml:"db_path"`
	FrontendURL    string        `yaml:"frontend_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// --- Contest ---
	// LockTime is the single instant after which picks can no longer change.
	LockTime time.Time `yaml:"lock_time"`

	// --- Security ---
	JwtSecret          string        `yaml:"jwt_secret"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	SignInTTL          time.Duration `yaml:"sign_in_ttl"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`

	// --- Email (SMTP) ---
	// Mail is logged instead of sent when SmtpHost is empty.
	SmtpHost   string `yaml:"smtp_host"`
	SmtpPort   int    `yaml:"smtp_port"`
	SmtpUser   string `yaml:"smtp_user"`
	SmtpPass   string `yaml:"smtp_pass"`
	SmtpSender string `yaml:"smtp_sender"`

	// --- Google OAuth 2.0 (optional) ---
	GoogleOauthClientID     string `yaml:"google_oauth_client_id"`
	GoogleOauthClientSecret string `yaml:"google_oauth_client_secret"`
	GoogleOauthRedirectURL  string `yaml:"google_oauth_redirect_url"`

	// --- NATS (optional) ---
	NatsURL   string `yaml:"nats_url"`
	NatsToken string `yaml:"nats_token"`

	// --- Logging ---
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Parsed version of FrontendURL, used for CORS and SSE origin headers.
	ParsedFrontendURL *url.URL `yaml:"-"`
}

// New loads, defaults and validates the configuration. It fails fast on
// anything the server cannot start without.
func New() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	// --- Validate critical required values ---
	if cfg.JwtSecret == "" {
		return nil, errors.New("FATAL: JWT_SECRET environment variable is not set")
	}
	if cfg.FrontendURL == "" {
		return nil, errors.New("FATAL: FRONTEND_URL environment variable is not set")
	}
	if (cfg.GoogleOauthClientID == "") != (cfg.GoogleOauthClientSecret == "") {
		return nil, errors.New("FATAL: set both GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET, or neither")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("FATAL: LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("FATAL: invalid LOG_LEVEL: %w", err)
	}

	parsedURL, err := url.Parse(cfg.FrontendURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.New("FATAL: Invalid FRONTEND_URL format")
	}
	cfg.ParsedFrontendURL = parsedURL

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setString("SERVER_ADDR", &cfg.ServerAddr)
	setString("DATA_PATH", &cfg.DataPath)
	setString("DB_PATH", &cfg.DbPath)
	setString("FRONTEND_URL", &cfg.FrontendURL)
	setString("JWT_SECRET", &cfg.JwtSecret)
	setString("SMTP_HOST", &cfg.SmtpHost)
	setString("SMTP_USER", &cfg.SmtpUser)
	setString("SMTP_PASS", &cfg.SmtpPass)
	setString("SMTP_SENDER", &cfg.SmtpSender)
	setString("GOOGLE_OAUTH_CLIENT_ID", &cfg.GoogleOauthClientID)
	setString("GOOGLE_OAUTH_CLIENT_SECRET", &cfg.GoogleOauthClientSecret)
	setString("GOOGLE_OAUTH_REDIRECT_URL", &cfg.GoogleOauthRedirectURL)
	setString("NATS_URL", &cfg.NatsURL)
	setString("NATS_TOKEN", &cfg.NatsToken)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FORMAT", &cfg.LogFormat)

	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FATAL: invalid SMTP_PORT: %w", err)
		}
		cfg.SmtpPort = port
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FATAL: invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = n
	}
	if v := os.Getenv("LOCK_TIME"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("FATAL: LOCK_TIME must be RFC3339: %w", err)
		}
		cfg.LockTime = t
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":     &cfg.SessionTTL,
		"SIGN_IN_TTL":     &cfg.SignInTTL,
		"REQUEST_TIMEOUT": &cfg.RequestTimeout,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("FATAL: invalid %s: %w", name, err)
			}
			*dst = d
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataPath == "" {
		cfg.DataPath = "./data"
	}
	if cfg.DbPath == "" {
		cfg.DbPath = filepath.Join(cfg.DataPath, "bowlpickem.db")
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.LockTime.IsZero() {
		cfg.LockTime, _ = time.Parse(time.RFC3339, DefaultLockTime)
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.SignInTTL == 0 {
		cfg.SignInTTL = time.Hour
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 120
	}
	if cfg.SmtpPort == 0 {
		cfg.SmtpPort = 587
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleOauthClientID != "" && c.GoogleOauthClientSecret != ""
}

// Logging configures the standard logrus logger from cfg.
func Logging(cfg *Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
