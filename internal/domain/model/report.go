package model

import "time"

// Deduction is one line item of a score breakdown: how many occurrences of a
// kind were counted and how many points they cost in total.
type Deduction struct {
	Kind   EventKind
	Count  int
	Points int // points per occurrence
	Total  int // Count * Points
}

// ScoreReport is a derived, immutable snapshot of a session's event log. It
// is a pure function of the log: recomputing it over the same events yields
// the same counts and score.
type ScoreReport struct {
	SessionID   string
	Subject     string
	GeneratedAt time.Time
	Duration    time.Duration
	Provisional bool // session still open; duration measured against now

	TotalEvents int
	Counts      map[EventKind]int
	Deductions  []Deduction // negative kinds only, stable order
	Events      []Event     // chronological listing
	Score       int         // clamped to [floor, ceiling]
}
