package domain

import "errors"

// Sentinel errors for the election flow. Services return these wrapped with
// context; handlers map them onto HTTP statuses.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNationalIDTaken    = errors.New("national identity number already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrVoterNotApproved   = errors.New("voter registration is not approved")
	ErrDuplicateVote      = errors.New("duplicate vote")
	ErrInvalidCandidate   = errors.New("invalid candidate")
	ErrOTPInvalid         = errors.New("invalid or expired code")
	ErrOTPRequired        = errors.New("otp verification required")
)
