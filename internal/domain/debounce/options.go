// Package debounce suppresses bursts of identical detections at the
// ingestion boundary.
package debounce

import "time"

// Option applies a configuration option to the windowDebouncer.
type Option func(*windowDebouncer)

// WithWindow sets the suppression window. A window of zero or less disables
// debouncing: every detection is stored as a distinct event.
func WithWindow(window time.Duration) Option {
	return func(d *windowDebouncer) {
		d.window = window
	}
}
