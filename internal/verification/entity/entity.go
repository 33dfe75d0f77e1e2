package entity

import "time"

// Account tracks the verification lifecycle for a single email address.
//
// Counters and the lock flag are only ever changed through conditional
// writes so concurrent requests cannot exceed the configured ceilings.
type Account struct {
	ID                  int64
	Email               string
	MobileNumber        string
	VerificationAttempt int32
	ResendCount         int32
	IsValidated         bool
	IsLocked            bool
	CreateDate          time.Time
	UpdateDate          time.Time
}

// Challenge is the currently outstanding one-time code for an email.
// Only the HMAC of the code is stored, never the plaintext.
type Challenge struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
}

// Expired reports whether the challenge is no longer acceptable at the
// given instant. A code whose expiry equals now is already expired.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
