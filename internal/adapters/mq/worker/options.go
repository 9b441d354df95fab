// Package worker runs the goroutines that fold recorded events into the
// live per-session tally.
package worker

import (
	"github.com/proctorkit/vigil/pkg/logger"
)

// Option applies a configuration option to the TallyWorker.
type Option func(*TallyWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *TallyWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *TallyWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
