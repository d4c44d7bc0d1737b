package domain

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalStatus is the registration lifecycle of voters and candidate
// nominations. Transitions are pending→approved and pending→rejected only.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Voter struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"user_id"`
	NationalID   string         `json:"national_id"`
	VoterNo      *string        `json:"voter_no,omitempty"`
	DateOfBirth  time.Time      `json:"date_of_birth"`
	GuardianName string         `json:"guardian_name"`
	Phone        string         `json:"phone"`
	Occupation   string         `json:"occupation"`
	Status       ApprovalStatus `json:"status"`
	RejectReason string         `json:"reject_reason,omitempty"`
	HasVoted     bool           `json:"has_voted"`
	VotedAt      *time.Time     `json:"voted_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type RegisterVoterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	DateOfBirth  string `json:"date_of_birth"` // YYYY-MM-DD
	GuardianName string `json:"guardian_name"`
	Phone        string `json:"phone"`
	NationalID   string `json:"national_id"`
	Occupation   string `json:"occupation"`
}

func (r *RegisterVoterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.GuardianName = strings.TrimSpace(r.GuardianName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.Occupation = strings.TrimSpace(r.Occupation)
}

func (r *RegisterVoterRequest) Validate() error {
	if r.Email == "" || !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := r.BirthDate(); err != nil {
		return fmt.Errorf("invalid date of birth")
	}
	if r.GuardianName == "" {
		return fmt.Errorf("guardian name is required")
	}
	if len(r.Phone) != 10 || !isAllDigits(r.Phone) {
		return fmt.Errorf("phone number must be 10 digits")
	}
	if len(r.NationalID) != 12 || !isAllDigits(r.NationalID) {
		return fmt.Errorf("national identity number must be 12 digits")
	}
	if r.Occupation == "" {
		return fmt.Errorf("occupation is required")
	}
	return nil
}

func (r *RegisterVoterRequest) BirthDate() (time.Time, error) {
	return time.Parse("2006-01-02", r.DateOfBirth)
}

// VoterSummary is what a voter sees about their own registration.
type VoterSummary struct {
	VoterNo  *string        `json:"voter_no,omitempty"`
	Status   ApprovalStatus `json:"status"`
	HasVoted bool           `json:"has_voted"`
	VotedAt  *time.Time     `json:"voted_at,omitempty"`
	Vote     *Vote          `json:"vote,omitempty"`
}

func (v *Voter) Summary() *VoterSummary {
	return &VoterSummary{
		VoterNo:  v.VoterNo,
		Status:   v.Status,
		HasVoted: v.HasVoted,
		VotedAt:  v.VotedAt,
	}
}

// VoterListing is the admin view of a registration, joined with the account.
type VoterListing struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone"`
	NationalID string         `json:"national_id"`
	Occupation string         `json:"occupation"`
	Status     ApprovalStatus `json:"status"`
	VoterNo    *string        `json:"voter_no,omitempty"`
	HasVoted   bool           `json:"has_voted"`
	AppliedAt  time.Time      `json:"applied_at"`
}
