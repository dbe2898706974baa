// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment names accepted by BUILDSTATUS_ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	Env           string
	DBPath        string
	SecretKey     []byte // 32-byte AES key for stored tokens; nil disables the token store.
	SessionSecret []byte
	GitHubToken   string // Fallback token used when no stored token matches.
	GitHubAPIURL  string // GitHub Enterprise base URL; empty means api.github.com.
	CORSOrigins   []string
	LogLevel      slog.Level
	LogFormat     string
}

// IsDevelopment reports whether error responses may carry diagnostic details.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// HasFallbackToken reports whether BUILDSTATUS_GITHUB_TOKEN is set.
func (c *Config) HasFallbackToken() bool {
	return c.GitHubToken != ""
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the process environment take precedence.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// BUILDSTATUS_SESSION_SECRET is required. Optional variables with defaults:
// BUILDSTATUS_LISTEN_ADDR (127.0.0.1:8080), BUILDSTATUS_ENV (production),
// BUILDSTATUS_DB_PATH (buildstatus.db), BUILDSTATUS_LOG_LEVEL (info),
// BUILDSTATUS_LOG_FORMAT (text).
func Load() (*Config, error) {
	sessionSecret := os.Getenv("BUILDSTATUS_SESSION_SECRET")
	if sessionSecret == "" {
		return nil, errors.New("BUILDSTATUS_SESSION_SECRET is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("BUILDSTATUS_LISTEN_ADDR"); ok && v != "" {
		listenAddr = v
	}

	env := EnvProduction
	if v, ok := os.LookupEnv("BUILDSTATUS_ENV"); ok && v != "" {
		env = strings.ToLower(strings.TrimSpace(v))
	}
	if env != EnvProduction && env != EnvDevelopment {
		return nil, fmt.Errorf("BUILDSTATUS_ENV must be %q or %q, got %q", EnvProduction, EnvDevelopment, env)
	}

	storage, err := LoadStorage()
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(os.Getenv("BUILDSTATUS_LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	logFormat := "text"
	if v, ok := os.LookupEnv("BUILDSTATUS_LOG_FORMAT"); ok && v != "" {
		logFormat = strings.ToLower(v)
	}
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("BUILDSTATUS_LOG_FORMAT must be text or json, got %q", logFormat)
	}

	return &Config{
		ListenAddr:    listenAddr,
		Env:           env,
		DBPath:        storage.DBPath,
		SecretKey:     storage.SecretKey,
		SessionSecret: []byte(sessionSecret),
		GitHubToken:   os.Getenv("BUILDSTATUS_GITHUB_TOKEN"),
		GitHubAPIURL:  os.Getenv("BUILDSTATUS_GITHUB_API_URL"),
		CORSOrigins:   splitList(os.Getenv("BUILDSTATUS_CORS_ORIGINS")),
		LogLevel:      level,
		LogFormat:     logFormat,
	}, nil
}

// Storage holds the token store settings. The token admin commands need only
// these, so they load without the server's required variables.
type Storage struct {
	DBPath    string
	SecretKey []byte
}

// LoadStorage reads BUILDSTATUS_DB_PATH (buildstatus.db) and
// BUILDSTATUS_SECRET_KEY, a hex-encoded 32-byte key.
func LoadStorage() (*Storage, error) {
	dbPath := "buildstatus.db"
	if v, ok := os.LookupEnv("BUILDSTATUS_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("BUILDSTATUS_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("BUILDSTATUS_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("BUILDSTATUS_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		secretKey = key
	}

	return &Storage{DBPath: dbPath, SecretKey: secretKey}, nil
}

// NewLogger builds the slog.Logger selected by LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLogLevel(v string) (slog.Level, error) {
	if v == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("BUILDSTATUS_LOG_LEVEL has invalid level %q: %w", v, err)
	}
	return level, nil
}

func splitList(v string) []string {
	items := []string{}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
