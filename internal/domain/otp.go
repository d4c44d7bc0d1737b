package domain

import "time"

// OTPCode is a short-lived one-time code bound to a voter. Codes are stored
// hashed; the plaintext exists only in transit to the mailer.
type OTPCode struct {
	ID         int64      `json:"id"`
	VoterID    int64      `json:"voter_id"`
	CodeHash   string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (o *OTPCode) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

func (o *OTPCode) Consumed() bool {
	return o.ConsumedAt != nil
}

type VerifyOTPRequest struct {
	Code string `json:"code"`
}
