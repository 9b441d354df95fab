package detectorsim

import "time"

// Config holds configuration for the detector simulation.
type Config struct {
	BaseURL  string        // Base URL of the service
	Sessions int           // Number of proctoring sessions to simulate
	Ticks    int           // Number of detector ticks per session
	TickStep time.Duration // Simulated time between ticks
	Workers  int           // Number of concurrent session drivers
	Timeout  time.Duration // HTTP request timeout
	Seed     int64         // Random seed; 0 derives one from the clock
	LogFile  string        // Log file for simulation output
	Verbose  bool          // Enable verbose logging
}

// sessionResponse mirrors the session resource returned by the API.
type sessionResponse struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Closed    bool   `json:"closed"`
}

// ackResponse mirrors the event ingestion acknowledgement.
type ackResponse struct {
	Status     string `json:"status"`
	EventID    string `json:"event_id"`
	Suppressed bool   `json:"suppressed"`
}

// reportResponse mirrors the score report, trimmed to the fields the
// verification step needs.
type reportResponse struct {
	SessionID   string         `json:"session_id"`
	Score       int            `json:"score"`
	TotalEvents int            `json:"total_events"`
	Counts      map[string]int `json:"counts"`
	Provisional bool           `json:"provisional"`
}

// Stats holds simulation statistics.
type Stats struct {
	SessionsCreated  int
	SessionsClosed   int
	EventsSubmitted  int
	EventsRecorded   int
	EventsSuppressed int
	EventsFailed     int
	ReportsRetrieved int
	ScoreMismatches  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
