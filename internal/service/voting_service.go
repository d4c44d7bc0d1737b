package service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/events"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

type VotingService interface {
	// Eligibility reports the registration state of the voter behind the account.
	Eligibility(ctx context.Context, userID int64) (*domain.VoterSummary, error)
	// CastVote commits the single vote of the voter behind the account.
	// Requires an OTP verified inside the configured window.
	CastVote(ctx context.Context, userID, candidateID int64, ip net.IP) (*domain.Vote, error)
	// Results is the public tally board, highest count first.
	Results(ctx context.Context) (*domain.Results, error)
}

type votingService struct {
	voterRepo     postgres.VoterRepository
	candidateRepo postgres.CandidateRepository
	voteRepo      postgres.VoteRepository
	otpRepo       postgres.OTPRepository
	auditRepo     postgres.AuditRepository
	bus           events.Publisher
	cfg           *config.Config
}

func NewVotingService(
	voterRepo postgres.VoterRepository,
	candidateRepo postgres.CandidateRepository,
	voteRepo postgres.VoteRepository,
	otpRepo postgres.OTPRepository,
	auditRepo postgres.AuditRepository,
	bus events.Publisher,
	cfg *config.Config,
) VotingService {
	return &votingService{
		voterRepo:     voterRepo,
		candidateRepo: candidateRepo,
		voteRepo:      voteRepo,
		otpRepo:       otpRepo,
		auditRepo:     auditRepo,
		bus:           bus,
		cfg:           cfg,
	}
}

func (s *votingService) Eligibility(ctx context.Context, userID int64) (*domain.VoterSummary, error) {
	voter, err := s.voterRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return nil, domain.ErrNotFound
	}

	summary := voter.Summary()
	if voter.HasVoted {
		// The ledger entry is the authoritative receipt.
		vote, err := s.voteRepo.FindByVoterID(ctx, voter.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find vote: %w", err)
		}
		summary.Vote = vote
	}
	return summary, nil
}

func (s *votingService) CastVote(ctx context.Context, userID, candidateID int64, ip net.IP) (*domain.Vote, error) {
	voter, err := s.voterRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return nil, domain.ErrNotFound
	}

	verified, err := s.otpRepo.ConsumedWithin(ctx, voter.ID, s.cfg.Election.OTPCastWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to check otp verification: %w", err)
	}
	if !verified {
		s.audit(ctx, voter.ID, domain.ActionVoteRejected, "no recent otp verification", ip)
		return nil, domain.ErrOTPRequired
	}

	candidate, err := s.candidateRepo.FindByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	if candidate == nil || candidate.Status != domain.StatusApproved {
		s.audit(ctx, voter.ID, domain.ActionVoteRejected, fmt.Sprintf("invalid candidate %d", candidateID), ip)
		return nil, domain.ErrInvalidCandidate
	}

	vote, err := s.voteRepo.CastVote(ctx, voter.ID, candidateID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateVote):
			s.audit(ctx, voter.ID, domain.ActionVoteRejected, "duplicate vote", ip)
		case errors.Is(err, domain.ErrInvalidCandidate):
			s.audit(ctx, voter.ID, domain.ActionVoteRejected, fmt.Sprintf("invalid candidate %d", candidateID), ip)
		}
		return nil, err
	}

	s.audit(ctx, voter.ID, domain.ActionVoteCast, fmt.Sprintf("voted for candidate %d", candidateID), ip)

	if err := s.bus.Publish(ctx, events.SubjectVoteCast, map[string]any{
		"voter_id":     voter.ID,
		"candidate_id": candidateID,
		"cast_at":      vote.CastAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish vote cast event", "error", err)
	}

	return vote, nil
}

func (s *votingService) Results(ctx context.Context) (*domain.Results, error) {
	candidates, err := s.candidateRepo.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	total, err := s.voteRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	return &domain.Results{
		Candidates: candidates,
		TotalVotes: total,
	}, nil
}

func (s *votingService) audit(ctx context.Context, voterID int64, action, details string, ip net.IP) {
	if err := s.auditRepo.Record(ctx, voterID, action, details, ip); err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", action)
	}
}
