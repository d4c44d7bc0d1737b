package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/events"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

// voterNoAttempts bounds regeneration on voter number collisions.
const voterNoAttempts = 5

type AdminService interface {
	ApproveVoter(ctx context.Context, id int64, ip net.IP) (*domain.Voter, error)
	RejectVoter(ctx context.Context, id int64, reason string, ip net.IP) (*domain.Voter, error)
	ApproveCandidate(ctx context.Context, id int64) (*domain.Candidate, error)
	RejectCandidate(ctx context.Context, id int64, reason string) (*domain.Candidate, error)
	ListVoters(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.VoterListing, error)
	// VoterDetail returns the full registration record behind a listing.
	VoterDetail(ctx context.Context, id int64) (*domain.Voter, error)
	// FindVoterByNo looks a registration up by its assigned voter number.
	FindVoterByNo(ctx context.Context, voterNo string) (*domain.Voter, error)
	ListCandidates(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.CandidateListing, error)
	Stats(ctx context.Context) (*domain.ElectionStats, error)
	// ResetElection clears votes, flags and tallies; identities stay.
	ResetElection(ctx context.Context, ip net.IP) error
	Audit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type adminService struct {
	voterRepo     postgres.VoterRepository
	candidateRepo postgres.CandidateRepository
	voteRepo      postgres.VoteRepository
	auditRepo     postgres.AuditRepository
	bus           events.Publisher
	cfg           *config.Config
}

func NewAdminService(
	voterRepo postgres.VoterRepository,
	candidateRepo postgres.CandidateRepository,
	voteRepo postgres.VoteRepository,
	auditRepo postgres.AuditRepository,
	bus events.Publisher,
	cfg *config.Config,
) AdminService {
	return &adminService{
		voterRepo:     voterRepo,
		candidateRepo: candidateRepo,
		voteRepo:      voteRepo,
		auditRepo:     auditRepo,
		bus:           bus,
		cfg:           cfg,
	}
}

func (s *adminService) ApproveVoter(ctx context.Context, id int64, ip net.IP) (*domain.Voter, error) {
	var voter *domain.Voter
	for attempt := 0; attempt < voterNoAttempts; attempt++ {
		voterNo, err := generateVoterNo(s.cfg.Election.VoterNoPrefix, time.Now())
		if err != nil {
			return nil, err
		}

		voter, err = s.voterRepo.Approve(ctx, id, voterNo)
		if errors.Is(err, postgres.ErrVoterNoTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if voter == nil {
		return nil, fmt.Errorf("failed to assign a unique voter number after %d attempts", voterNoAttempts)
	}

	s.audit(ctx, voter.ID, domain.ActionVoterApproved, fmt.Sprintf("assigned %s", *voter.VoterNo), ip)

	if err := s.bus.Publish(ctx, events.SubjectVoterApproved, map[string]any{
		"voter_id": voter.ID,
		"voter_no": voter.VoterNo,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish voter approved event", "error", err)
	}

	return voter, nil
}

func (s *adminService) RejectVoter(ctx context.Context, id int64, reason string, ip net.IP) (*domain.Voter, error) {
	voter, err := s.voterRepo.Reject(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, voter.ID, domain.ActionVoterRejected, reason, ip)

	if err := s.bus.Publish(ctx, events.SubjectVoterRejected, map[string]any{
		"voter_id": voter.ID,
		"reason":   reason,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish voter rejected event", "error", err)
	}

	return voter, nil
}

func (s *adminService) ApproveCandidate(ctx context.Context, id int64) (*domain.Candidate, error) {
	candidate, err := s.candidateRepo.Approve(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, events.SubjectCandidateApproved, map[string]any{
		"candidate_id": candidate.ID,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish candidate approved event", "error", err)
	}

	return candidate, nil
}

func (s *adminService) RejectCandidate(ctx context.Context, id int64, reason string) (*domain.Candidate, error) {
	candidate, err := s.candidateRepo.Reject(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, events.SubjectCandidateRejected, map[string]any{
		"candidate_id": candidate.ID,
		"reason":       reason,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish candidate rejected event", "error", err)
	}

	return candidate, nil
}

func (s *adminService) ListVoters(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.VoterListing, error) {
	return s.voterRepo.List(ctx, status, limit, offset)
}

func (s *adminService) ListCandidates(ctx context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.CandidateListing, error) {
	return s.candidateRepo.List(ctx, status, limit, offset)
}

func (s *adminService) VoterDetail(ctx context.Context, id int64) (*domain.Voter, error) {
	voter, err := s.voterRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return nil, domain.ErrNotFound
	}
	return voter, nil
}

func (s *adminService) FindVoterByNo(ctx context.Context, voterNo string) (*domain.Voter, error) {
	voter, err := s.voterRepo.FindByVoterNo(ctx, voterNo)
	if err != nil {
		return nil, fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return nil, domain.ErrNotFound
	}
	return voter, nil
}

func (s *adminService) Stats(ctx context.Context) (*domain.ElectionStats, error) {
	voterCounts, err := s.voterRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count voters: %w", err)
	}

	candidateCounts, err := s.candidateRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}

	votes, err := s.voteRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	stats := &domain.ElectionStats{
		PendingVoters:      voterCounts[domain.StatusPending],
		ApprovedVoters:     voterCounts[domain.StatusApproved],
		RejectedVoters:     voterCounts[domain.StatusRejected],
		ApprovedCandidates: candidateCounts[domain.StatusApproved],
		TotalVotes:         votes,
	}
	for _, n := range voterCounts {
		stats.TotalVoters += n
	}
	for _, n := range candidateCounts {
		stats.TotalCandidates += n
	}

	return stats, nil
}

func (s *adminService) ResetElection(ctx context.Context, ip net.IP) error {
	if err := s.voteRepo.ResetElection(ctx); err != nil {
		return fmt.Errorf("failed to reset election: %w", err)
	}

	s.audit(ctx, 0, domain.ActionElectionReset, "votes, flags and tallies cleared", ip)

	if err := s.bus.Publish(ctx, events.SubjectElectionReset, map[string]any{
		"reset_at": time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish election reset event", "error", err)
	}

	return nil
}

func (s *adminService) Audit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.auditRepo.List(ctx, limit)
}

func (s *adminService) audit(ctx context.Context, voterID int64, action, details string, ip net.IP) {
	if err := s.auditRepo.Record(ctx, voterID, action, details, ip); err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", action)
	}
}
