package domain

// ElectionStats is the admin dashboard summary.
type ElectionStats struct {
	TotalVoters        int64 `json:"total_voters"`
	PendingVoters      int64 `json:"pending_voters"`
	ApprovedVoters     int64 `json:"approved_voters"`
	RejectedVoters     int64 `json:"rejected_voters"`
	TotalCandidates    int64 `json:"total_candidates"`
	ApprovedCandidates int64 `json:"approved_candidates"`
	TotalVotes         int64 `json:"total_votes"`
}
