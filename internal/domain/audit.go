package domain

import (
	"net"
	"time"
)

// Audit actions recorded against the voting flow.
const (
	ActionOTPIssued     = "otp_issued"
	ActionOTPVerified   = "otp_verified"
	ActionOTPFailed     = "otp_failed"
	ActionVoteCast      = "vote_cast"
	ActionVoteRejected  = "vote_rejected"
	ActionVoterApproved = "voter_approved"
	ActionVoterRejected = "voter_rejected"
	ActionElectionReset = "election_reset"
)

// AuditEntry is an immutable log row. VoterID is zero for actions that are
// not tied to a single voter (e.g. an election reset).
type AuditEntry struct {
	ID        int64     `json:"id"`
	VoterID   int64     `json:"voter_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IP        net.IP    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
