package model

import "time"

// RateLimitDecision is the outcome of counting one request against a client's
// window.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is the time left in the current window.
	ResetAfter time.Duration
}
