// Package config loads settings for the server and the codeshot CLI.
//
// Every value is resolved the same way: an explicit option (usually a CLI
// flag) wins, then the environment, then the built-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server defaults
const (
	DefaultPort            = 5000
	DefaultHistoryLimit    = 100
	DefaultGracePeriod     = 30 * time.Second
	DefaultSweepInterval   = 10 * time.Minute
	DefaultStaleAfter      = time.Hour
	DefaultStatsInterval   = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the signaling server configuration.
type Config struct {
	Port            int
	HistoryLimit    int
	GracePeriod     time.Duration
	SweepInterval   time.Duration
	StaleAfter      time.Duration
	StatsInterval   time.Duration
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Options for loading config with CLI flag overrides. Zero values fall
// through to the environment.
type Options struct {
	Port int
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{Port: opts.Port}

	if cfg.Port == 0 {
		port, err := envInt("PORT", DefaultPort)
		if err != nil {
			return nil, err
		}
		cfg.Port = port
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}

	var err error
	if cfg.HistoryLimit, err = envInt("CHAT_HISTORY_LIMIT", DefaultHistoryLimit); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"ROOM_GRACE_PERIOD", DefaultGracePeriod, &cfg.GracePeriod},
		{"ROOM_SWEEP_INTERVAL", DefaultSweepInterval, &cfg.SweepInterval},
		{"ROOM_STALE_AFTER", DefaultStaleAfter, &cfg.StaleAfter},
		{"STATS_INTERVAL", DefaultStatsInterval, &cfg.StatsInterval},
		{"SHUTDOWN_TIMEOUT", DefaultShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.AllowedOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
