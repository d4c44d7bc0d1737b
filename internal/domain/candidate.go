package domain

import (
	"fmt"
	"strings"
	"time"
)

type Candidate struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"user_id"`
	Party        string         `json:"party"`
	Status       ApprovalStatus `json:"status"`
	RejectReason string         `json:"reject_reason,omitempty"`
	VoteCount    int64          `json:"vote_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type RegisterCandidateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Party    string `json:"party"`
	Phone    string `json:"phone"`
}

func (r *RegisterCandidateRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Party = strings.TrimSpace(r.Party)
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *RegisterCandidateRequest) Validate() error {
	if r.Email == "" || !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Party == "" {
		return fmt.Errorf("party is required")
	}
	if r.Phone != "" && (len(r.Phone) != 10 || !isAllDigits(r.Phone)) {
		return fmt.Errorf("phone number must be 10 digits")
	}
	return nil
}

// CandidateListing is the admin view of a nomination, joined with the account.
type CandidateListing struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Party     string         `json:"party"`
	Status    ApprovalStatus `json:"status"`
	VoteCount int64          `json:"vote_count"`
	AppliedAt time.Time      `json:"applied_at"`
}
