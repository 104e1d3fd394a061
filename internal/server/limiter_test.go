package server

import "testing"

func TestAdmissionLimiterAllowsWithinBurst(t *testing.T) {
	l := NewAdmissionLimiter(1, 3)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3 (the configured burst)", allowed)
	}
}

func TestAdmissionLimiterDefaults(t *testing.T) {
	l := NewAdmissionLimiter(0, 0)
	if !l.Allow() {
		t.Fatal("expected the default limiter to allow at least one connection")
	}
}
