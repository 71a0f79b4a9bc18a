// Package retryutil implements the bridge client's specific
// reconnection backoff curve, which does not match the generic
// jittered-multiplier schedule in pkg/retry: a plain doubling series
// clamped at 2^6, plus the special short-lived-connection wait.
package retryutil

import "time"

// MaxBackoffExponent is the point at which the doubling series stops
// growing: attempts beyond this are clamped to 2^6 = 64s.
const MaxBackoffExponent = 6

// ShortLivedWait is the fixed wait applied instead of the backoff
// curve when the connection that just dropped didn't last long enough
// to be considered a real session.
const ShortLivedWait = 10 * time.Second

// ShortLivedAuthenticatedThreshold and ShortLivedUnauthenticatedThreshold
// are the connection-duration cutoffs below which a disconnect is
// treated as short-lived: 2s if the connection had reached
// Authenticated, 5s otherwise.
const (
	ShortLivedAuthenticatedThreshold   = 2 * time.Second
	ShortLivedUnauthenticatedThreshold = 5 * time.Second
)

// Backoff returns the reconnect delay for the given 1-indexed attempt
// count: 2^min(attempt, 6) seconds. attempt <= 0 is treated as 1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := attempt
	if exp > MaxBackoffExponent {
		exp = MaxBackoffExponent
	}
	return (1 << uint(exp)) * time.Second
}

// ShortLivedWaitFor returns ShortLivedWait if connDuration fell below
// the relevant threshold for wasAuthenticated, and false otherwise —
// callers use the backoff curve in that case instead.
func ShortLivedWaitFor(connDuration time.Duration, wasAuthenticated bool) (time.Duration, bool) {
	threshold := ShortLivedUnauthenticatedThreshold
	if wasAuthenticated {
		threshold = ShortLivedAuthenticatedThreshold
	}
	if connDuration < threshold {
		return ShortLivedWait, true
	}
	return 0, false
}
