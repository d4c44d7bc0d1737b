package domain

import "time"

// Vote is one immutable row of the vote ledger. At most one per voter, ever,
// backed by a UNIQUE constraint on voter_id.
type Vote struct {
	ID          int64     `json:"id"`
	VoterID     int64     `json:"voter_id"`
	CandidateID int64     `json:"candidate_id"`
	CastAt      time.Time `json:"cast_at"`
}

type CastVoteRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

// CandidateResult is one row of the public results board.
type CandidateResult struct {
	CandidateID int64  `json:"candidate_id"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Votes       int64  `json:"votes"`
}

type Results struct {
	Candidates []CandidateResult `json:"candidates"`
	TotalVotes int64             `json:"total_votes"`
}
