// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Store backend names accepted in the store field.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the event log backend: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath locates the database file when the sqlite store is used.
	SQLitePath string `koanf:"sqlite_path"`

	// QueueSize bounds the in-memory tally queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of tally workers.
	WorkerCount int `koanf:"worker_count"`

	// DebounceWindowMS suppresses identical detections arriving within the
	// window. Zero disables debouncing: every detection is logged.
	DebounceWindowMS int `koanf:"debounce_window_ms"`

	// Weights maps event kinds to per-occurrence deductions. Only kinds in
	// the fixed enumeration are honored.
	Weights map[string]int `koanf:"weights"`

	// ScoreFloor and ScoreCeiling clamp the integrity score.
	ScoreFloor   int `koanf:"score_floor"`
	ScoreCeiling int `koanf:"score_ceiling"`
}

// New creates a Config with defaults. The deduction schedule defaults to the
// scorer's built-in table; entries here only override it.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		Store:            StoreMemory,
		SQLitePath:       "vigil.db",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU() * 2,
		DebounceWindowMS: 0,
		Weights:          map[string]int{},
		ScoreFloor:       0,
		ScoreCeiling:     100,
	}
}
