package models

import (
	"fmt"
	"time"
)

// PremiumUser marks a user as premium until ExpiresAt.
type PremiumUser struct {
	UserID      int64     `bson:"user_id"`
	ExpiresAt   time.Time `bson:"expires_at"`
	GrantedBy   int64     `bson:"granted_by,omitempty"`
	Transferred bool      `bson:"transferred,omitempty"` // plan already moved once
	CreatedAt   time.Time `bson:"created_at"`
}

// Expired reports whether the plan has lapsed.
func (p *PremiumUser) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// Remaining returns the time left on the plan, never negative.
func (p *PremiumUser) Remaining(now time.Time) time.Duration {
	if p.Expired(now) {
		return 0
	}
	return p.ExpiresAt.Sub(now)
}

// PremiumDuration converts an (amount, unit) pair into a duration.
// Supported units: min, hours, days, weeks, month (30d), year (365d),
// decades (3650d).
func PremiumDuration(amount int, unit string) (time.Duration, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %d", amount)
	}

	day := 24 * time.Hour
	var per time.Duration
	switch unit {
	case "min":
		per = time.Minute
	case "hours":
		per = time.Hour
	case "days":
		per = day
	case "weeks":
		per = 7 * day
	case "month":
		per = 30 * day
	case "year":
		per = 365 * day
	case "decades":
		per = 3650 * day
	default:
		return 0, fmt.Errorf("unknown unit %q", unit)
	}

	return time.Duration(amount) * per, nil
}
