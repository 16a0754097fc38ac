// Package config loads and validates the server-wide YAML configuration for
// cmd/pipelined (spec.md §3 "ServerConfig").
//
// Grounded on the teacher's pkg/config package: the same load sequence (read
// file -> expand env -> unmarshal YAML -> merge defaults -> validate) as
// pkg/config/loader.go's Initialize, the same error taxonomy shape as
// pkg/config/errors.go, and the same struct-tag validation convention as
// pkg/config/defaults.go (`validate:"omitempty,min=1"`), here exercised
// directly via github.com/go-playground/validator/v10 rather than left as
// unused tags.
package config

import "time"

// ServerConfig is the complete operator-facing configuration for the
// pipelined server process (spec.md §3 ambient addition).
type ServerConfig struct {
	// DataRoot is the directory containing pipeline-config/ and
	// pipeline-data/ (spec.md §6 "on-disk layout").
	DataRoot string `yaml:"data_root" validate:"required"`

	// HTTPPort is the port the Echo server listens on.
	HTTPPort int `yaml:"http_port" validate:"required,min=1,max=65535"`

	// HeartbeatMs is the SSE heartbeat interval (spec.md §4.4, default
	// 15000).
	HeartbeatMs int `yaml:"heartbeat_ms" validate:"omitempty,min=1"`

	// DebounceMs is the change-detector/enhancer coalescing window
	// (spec.md §4.4, default 200).
	DebounceMs int `yaml:"debounce_ms" validate:"omitempty,min=1"`

	// DefaultMaxRefinements is the server-wide fallback for a task's
	// critique/refine bound when pipeline.json's taskConfig doesn't
	// override it (spec.md §4.2, default 3).
	DefaultMaxRefinements int `yaml:"default_max_refinements" validate:"omitempty,min=0"`

	// ResumeOnStart enables the orchestrator's crash-resumption scan
	// (spec.md §9 Open Question, default false).
	ResumeOnStart bool `yaml:"resume_on_start"`

	// ShutdownGraceSeconds bounds how long pipelined waits for worker
	// processes to exit gracefully after SIGINT/SIGTERM before force-kill
	// (spec.md §6, default 5).
	ShutdownGraceSeconds int `yaml:"shutdown_grace_seconds" validate:"omitempty,min=0"`

	// WatcherBackoffMinMs/MaxMs bound the orchestrator's fsnotify-recreate
	// backoff (spec.md §4.1).
	WatcherBackoffMinMs int `yaml:"watcher_backoff_min_ms" validate:"omitempty,min=1"`
	WatcherBackoffMaxMs int `yaml:"watcher_backoff_max_ms" validate:"omitempty,min=1"`
}

func (c *ServerConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

func (c *ServerConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c *ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

func (c *ServerConfig) WatcherBackoffMin() time.Duration {
	return time.Duration(c.WatcherBackoffMinMs) * time.Millisecond
}

func (c *ServerConfig) WatcherBackoffMax() time.Duration {
	return time.Duration(c.WatcherBackoffMaxMs) * time.Millisecond
}

// Default returns the built-in defaults merged into every loaded config
// before validation (spec.md §9: maxRefinements default 3, confirmed).
func Default() *ServerConfig {
	return &ServerConfig{
		HTTPPort:              8080,
		HeartbeatMs:           15000,
		DebounceMs:            200,
		DefaultMaxRefinements: 3,
		ResumeOnStart:         false,
		ShutdownGraceSeconds:  5,
		WatcherBackoffMinMs:   250,
		WatcherBackoffMaxMs:   30000,
	}
}
