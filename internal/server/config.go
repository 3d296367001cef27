// Package server implements the chat broadcast engine: connection registry,
// flood control, liveness sweeping, the per-connection protocol state machine,
// and the WebSocket/HTTP surface that exposes them.
package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds every runtime knob of the engine. It is loaded from the
// environment in cmd/server and handed to constructors; nothing in this
// package reads it ambiently.
type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=8080"`
	AdminName       string        `env:"ADMIN_NAME,default=admin"`
	AdminHiddenName string        `env:"ADMIN_HIDDEN_NAME,default=superuser"`
	AllowedTags     []string      `env:"ALLOWED_TAGS"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"`
	DBPath          string        `env:"DB_PATH,default=talkroom.db"`
	MaxFrameSize    int           `env:"MAX_FRAME_SIZE,default=4096"`
	FloodWindow     int           `env:"FLOOD_WINDOW,default=10"`
	FloodInterval   time.Duration `env:"FLOOD_INTERVAL,default=5s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=10s"`
	StaleThreshold  time.Duration `env:"STALE_THRESHOLD,default=30s"`
	HistoryPage     int           `env:"HISTORY_PAGE,default=100"`
	MaxMessageRunes int           `env:"MAX_MESSAGE_RUNES,default=1000"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
}

// NewConfig returns a Config populated with the same defaults the env tags
// declare, for callers that wire the engine without an environment (tests).
func NewConfig() Config {
	cfg := Config{}
	cfg.normalize()
	return cfg
}

// normalize backfills zero values so a partially populated Config never
// produces a degenerate engine.
func (c *Config) normalize() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.AdminName == "" {
		c.AdminName = "admin"
	}
	if c.AdminHiddenName == "" {
		c.AdminHiddenName = "superuser"
	}
	if c.DBPath == "" {
		c.DBPath = "talkroom.db"
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 4096
	}
	if c.FloodWindow <= 0 {
		c.FloodWindow = 10
	}
	if c.FloodInterval <= 0 {
		c.FloodInterval = 5 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Second
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 30 * time.Second
	}
	if c.HistoryPage <= 0 {
		c.HistoryPage = 100
	}
	if c.MaxMessageRunes <= 0 {
		c.MaxMessageRunes = 1000
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if len(c.AllowedTags) == 0 {
		c.AllowedTags = []string{"b", "i", "em", "strong"}
	}
}

// Addr returns the host:port pair the HTTP server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps the configured log level string onto a slog.Level,
// defaulting to info for unknown values.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
