package forwarder

import "ssw-logs-capture/pkg/retry"

// classifyStatus maps a push response's status code (0 for a network
// error that never produced a response) to a retry outcome, per
// spec.md §4.5's failure semantics.
func classifyStatus(statusCode int) retry.Outcome {
	switch {
	case statusCode == 0:
		return retry.OutcomeRetryable
	case statusCode >= 200 && statusCode < 300:
		return retry.OutcomeSuccess
	case statusCode == 429:
		return retry.OutcomeRetryable
	case statusCode >= 500:
		return retry.OutcomeRetryable
	case statusCode >= 400:
		return retry.OutcomeFatal
	default:
		return retry.OutcomeRetryable
	}
}
