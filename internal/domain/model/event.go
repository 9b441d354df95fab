// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"time"
)

// EventKind classifies one detection outcome reported by the external detector.
type EventKind string

// Violation kinds. Each occurrence costs points in the scoring engine.
const (
	KindFocusLost      EventKind = "FOCUS_LOST"
	KindNoFace         EventKind = "NO_FACE"
	KindMultipleFaces  EventKind = "MULTIPLE_FACES"
	KindPhoneDetected  EventKind = "PHONE_DETECTED"
	KindNotesDetected  EventKind = "NOTES_DETECTED"
	KindDeviceDetected EventKind = "DEVICE_DETECTED"
	KindDrowsiness     EventKind = "DROWSINESS"
	KindAudioAnomaly   EventKind = "AUDIO_ANOMALY"
)

// Recovery kinds. Informational only; they appear in per-kind counts but
// never contribute a deduction.
const (
	KindFocusRestored EventKind = "FOCUS_RESTORED"
	KindFaceRestored  EventKind = "FACE_RESTORED"
)

// Sentinel kinds for event validation errors.
var (
	ErrInvalidEventKind  = errors.New("invalid event kind")
	ErrInvalidConfidence = errors.New("confidence out of [0,1]")
)

// kinds is the closed enumeration accepted at ingestion.
var kinds = map[EventKind]struct{}{
	KindFocusLost:      {},
	KindNoFace:         {},
	KindMultipleFaces:  {},
	KindPhoneDetected:  {},
	KindNotesDetected:  {},
	KindDeviceDetected: {},
	KindDrowsiness:     {},
	KindAudioAnomaly:   {},
	KindFocusRestored:  {},
	KindFaceRestored:   {},
}

// benign marks the kinds that carry no deduction.
var benign = map[EventKind]struct{}{
	KindFocusRestored: {},
	KindFaceRestored:  {},
}

// Kinds returns every recognized event kind in a stable order.
func Kinds() []EventKind {
	return []EventKind{
		KindFocusLost,
		KindNoFace,
		KindMultipleFaces,
		KindPhoneDetected,
		KindNotesDetected,
		KindDeviceDetected,
		KindDrowsiness,
		KindAudioAnomaly,
		KindFocusRestored,
		KindFaceRestored,
	}
}

// ParseKind validates a wire string against the closed enumeration.
func ParseKind(s string) (EventKind, error) {
	k := EventKind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
	}
	return k, nil
}

// Benign reports whether the kind is informational only.
func (k EventKind) Benign() bool {
	_, ok := benign[k]
	return ok
}

// String returns the wire representation of the kind.
func (k EventKind) String() string {
	return string(k)
}

// ValidConfidence reports whether c lies in the accepted [0,1] range.
func ValidConfidence(c float64) bool {
	return c >= 0 && c <= 1
}

// Event is one immutable, timestamped detection outcome attached to a
// session. Events are append-only: once logged they are never mutated or
// deleted.
type Event struct {
	EventID    string    // unique id assigned at ingestion
	SessionID  string    // owning session
	Kind       EventKind // classified outcome
	Confidence float64   // detector confidence in [0,1]
	TS         time.Time // detection instant; non-decreasing per session
}
