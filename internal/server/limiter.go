package server

import "golang.org/x/time/rate"

// AdmissionLimiter gates new-connection admission with a single global
// token bucket, generalized from the teacher's per-IP-plus-global
// ConnectionRateLimiter down to the global half only: this spec has no
// per-client identity beyond a transient TCP peer address, so the only
// meaningful defense is bounding the system-wide accept rate.
type AdmissionLimiter struct {
	limiter *rate.Limiter
}

// NewAdmissionLimiter builds a limiter sustaining ratePerSec connections
// per second with bursts up to burst. Values of zero fall back to
// generous built-in defaults (spec places no admission-control feature
// in scope; this is a purely defensive ambient concern).
func NewAdmissionLimiter(ratePerSec float64, burst int) *AdmissionLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 500
	}
	if burst <= 0 {
		burst = 1000
	}
	return &AdmissionLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow reports whether another connection may be admitted right now.
func (a *AdmissionLimiter) Allow() bool {
	return a.limiter.Allow()
}
