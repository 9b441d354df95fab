// Package types contains common read shapes shared between the service and
// the HTTP API.
package types

import "time"

// Session mirrors the session shape returned by session queries.
type Session struct {
	SessionID string     `json:"session_id"`
	Subject   string     `json:"subject"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Closed    bool       `json:"closed"`
}

// Deduction is one line of a report's score breakdown.
type Deduction struct {
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Points int    `json:"points_per_event"`
	Total  int    `json:"points_total"`
}

// ReportEvent is one event row in a report's chronological listing.
type ReportEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	Confidence float64   `json:"confidence"`
	TS         time.Time `json:"ts"`
}

// Report mirrors the score report shape returned by GET /sessions/{id}/report.
type Report struct {
	SessionID       string         `json:"session_id"`
	Subject         string         `json:"subject"`
	GeneratedAt     time.Time      `json:"generated_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Provisional     bool           `json:"provisional"`
	TotalEvents     int            `json:"total_events"`
	Counts          map[string]int `json:"counts"`
	Deductions      []Deduction    `json:"deductions"`
	Events          []ReportEvent  `json:"events"`
	Score           int            `json:"score"`
}

// LiveSummary mirrors the provisional tally returned by GET /sessions/{id}/live.
type LiveSummary struct {
	SessionID        string         `json:"session_id"`
	TotalEvents      int            `json:"total_events"`
	Counts           map[string]int `json:"counts"`
	ProvisionalScore int            `json:"provisional_score"`
}
