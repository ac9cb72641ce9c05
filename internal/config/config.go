// Package config implements SessionConfig: a plain record loaded once
// from a TOML file plus environment overrides and threaded through
// constructors, never read from a package-level global.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// SessionConfig is the session-wide configuration record.
type SessionConfig struct {
	ParserConfigDir string `toml:"parser_config_dir"`
	MaxIndexWorkers int    `toml:"max_index_workers"`
	HistBuckets     int    `toml:"hist_buckets"`
	OffsetDelta     int64  `toml:"offset_delta"`
	SocketPath      string `toml:"socket_path"`
	LogLevel        string `toml:"log_level"`
	OffsetCache     bool   `toml:"offset_cache"`
}

// Default returns the documented defaults, before any file or
// environment override is applied.
func Default() SessionConfig {
	return SessionConfig{
		ParserConfigDir: defaultParserConfigDir(),
		MaxIndexWorkers: 0, // 0 => runtime.NumCPU() at the call site
		HistBuckets:     256,
		OffsetDelta:     32,
		SocketPath:      defaultSocketPath(),
		LogLevel:        "info",
		OffsetCache:     true,
	}
}

func defaultParserConfigDir() string {
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && dir != "" {
		return dir + "/logseer/regex"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.config/logseer/regex"
}

func defaultSocketPath() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && dir != "" {
		return dir + "/logseer-core.socket"
	}
	return os.TempDir() + "/logseer-core.socket"
}

// Load reads a TOML file at path (skipped silently if it does not
// exist, since a fresh install has no session config yet) on top of
// Default, then applies LOGSEER_*-prefixed environment overrides.
func Load(path string) (SessionConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return applyEnv(cfg), nil
			}
			return SessionConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return SessionConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	return applyEnv(cfg), nil
}

// applyEnv overrides fields from LOGSEER_* environment variables,
// letting a deployment tweak worker count/socket path without editing
// the file.
func applyEnv(cfg SessionConfig) SessionConfig {
	if v := os.Getenv("LOGSEER_PARSER_CONFIG_DIR"); v != "" {
		cfg.ParserConfigDir = v
	}
	if v := os.Getenv("LOGSEER_MAX_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIndexWorkers = n
		}
	}
	if v := os.Getenv("LOGSEER_HIST_BUCKETS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistBuckets = n
		}
	}
	if v := os.Getenv("LOGSEER_OFFSET_DELTA"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.OffsetDelta = n
		}
	}
	if v := os.Getenv("LOGSEER_SOCKET_PATH"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("LOGSEER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}
