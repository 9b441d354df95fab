package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already closed")
	ErrTimestampOrder  = errors.New("event timestamp older than last appended event")
)
