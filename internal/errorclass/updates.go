package errorclass

import "github.com/tributary-ai/llm-router/internal/statestore"

// ApplyFailure folds a tracked failure into the candidate's state. prior
// may be nil (no prior state). status is the upstream HTTP status
// observed, or 0 for a network error.
func ApplyFailure(prior *statestore.CandidateState, cls Classification, status int, now, failureThreshold, cooldownMs int64) *statestore.CandidateState {
	next := prior.Clone()
	if next == nil {
		next = &statestore.CandidateState{}
	}

	retryable := cls.RetryOrigin
	f := int64(next.ConsecutiveRetryableFailures)
	if retryable {
		next.ConsecutiveRetryableFailures = int(f + 1)
	} else {
		next.ConsecutiveRetryableFailures = 0
	}

	if cls.TrackCooldown {
		if failureThreshold > 0 && int64(next.ConsecutiveRetryableFailures) >= failureThreshold {
			candidate := now + cooldownMs
			if candidate > next.OpenUntil {
				next.OpenUntil = candidate
			}
		}
		if cls.RetryAfterMs > 0 {
			candidate := now + cls.RetryAfterMs
			if candidate > next.CooldownUntil {
				next.CooldownUntil = candidate
			}
		}
	}

	next.LastFailureAt = now
	next.LastFailureStatus = status
	next.LastFailureCategory = string(cls.Category)
	next.UpdatedAt = now
	return next
}

// ApplySuccess clears retry/cooldown bookkeeping after a successful call.
func ApplySuccess(now int64) *statestore.CandidateState {
	return &statestore.CandidateState{UpdatedAt: now}
}
