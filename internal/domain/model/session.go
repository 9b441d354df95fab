package model

import "time"

// Session identifies one proctoring interval being scored. A session is open
// from creation until it is closed; only open sessions accept events.
type Session struct {
	SessionID string     // unique id assigned at creation
	Subject   string     // free-form label for the proctored party
	StartedAt time.Time  // creation instant
	EndedAt   *time.Time // nil while the session is open
}

// Closed reports whether the session has ended.
func (s Session) Closed() bool {
	return s.EndedAt != nil
}

// Duration returns the session length. For an open session the duration is
// measured against now and the second return value is false (provisional).
func (s Session) Duration(now time.Time) (time.Duration, bool) {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt), true
	}
	return now.Sub(s.StartedAt), false
}
