package reliability

import (
	"context"
	"errors"
	"time"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableProviderCode classifies retryable upstream realtime errors.
func IsRetryableProviderCode(code string) bool {
	switch code {
	case "rate_limited", "resource_exhausted", "queue_overflow", "transport", "error":
		return true
	default:
		return false
	}
}

// IsRetryableModelError reports whether a language-model call failure is
// worth another attempt. Caller-side cancellation is never retried;
// deadline overruns and transient transport failures are.
func IsRetryableModelError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
