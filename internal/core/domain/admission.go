package domain

import "time"

// AdmissionDecision is the outcome of a single GCRA check.
type AdmissionDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}
