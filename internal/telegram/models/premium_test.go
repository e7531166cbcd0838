package models

import (
	"testing"
	"time"
)

func TestPremiumDuration(t *testing.T) {
	day := 24 * time.Hour

	cases := []struct {
		amount int
		unit   string
		want   time.Duration
	}{
		{5, "min", 5 * time.Minute},
		{2, "hours", 2 * time.Hour},
		{3, "days", 3 * day},
		{2, "weeks", 14 * day},
		{1, "month", 30 * day},
		{1, "year", 365 * day},
		{1, "decades", 3650 * day},
	}

	for _, c := range cases {
		got, err := PremiumDuration(c.amount, c.unit)
		if err != nil {
			t.Fatalf("PremiumDuration(%d, %q) failed: %v", c.amount, c.unit, err)
		}
		if got != c.want {
			t.Errorf("PremiumDuration(%d, %q) = %v, want %v", c.amount, c.unit, got, c.want)
		}
	}
}

func TestPremiumDurationRejectsBadInput(t *testing.T) {
	if _, err := PremiumDuration(1, "fortnights"); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, err := PremiumDuration(0, "days"); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := PremiumDuration(-3, "days"); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestPremiumUserExpiry(t *testing.T) {
	now := time.Now()
	p := &PremiumUser{UserID: 1, ExpiresAt: now.Add(time.Hour)}

	if p.Expired(now) {
		t.Error("plan should still be active")
	}
	if p.Remaining(now) != time.Hour {
		t.Errorf("Remaining = %v, want 1h", p.Remaining(now))
	}

	if !p.Expired(now.Add(2 * time.Hour)) {
		t.Error("plan should have expired")
	}
	if p.Remaining(now.Add(2*time.Hour)) != 0 {
		t.Error("Remaining after expiry should be 0")
	}
}
