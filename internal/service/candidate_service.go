package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
)

type CandidateService interface {
	// MyNomination returns the newest nomination for the account.
	MyNomination(ctx context.Context, userID int64) (*domain.Candidate, error)
	// Resubmit files a fresh pending nomination after a rejection.
	Resubmit(ctx context.Context, userID int64, party string) (*domain.Candidate, error)
	// CancelNomination withdraws a nomination that is still pending.
	CancelNomination(ctx context.Context, userID int64) error
}

type candidateService struct {
	candidateRepo postgres.CandidateRepository
}

func NewCandidateService(candidateRepo postgres.CandidateRepository) CandidateService {
	return &candidateService{candidateRepo: candidateRepo}
}

func (s *candidateService) MyNomination(ctx context.Context, userID int64) (*domain.Candidate, error) {
	candidate, err := s.candidateRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find nomination: %w", err)
	}
	if candidate == nil {
		return nil, domain.ErrNotFound
	}
	return candidate, nil
}

func (s *candidateService) Resubmit(ctx context.Context, userID int64, party string) (*domain.Candidate, error) {
	party = strings.TrimSpace(party)
	if party == "" {
		return nil, fmt.Errorf("%w: party is required", domain.ErrValidation)
	}
	return s.candidateRepo.CreateNomination(ctx, userID, party)
}

func (s *candidateService) CancelNomination(ctx context.Context, userID int64) error {
	return s.candidateRepo.CancelNomination(ctx, userID)
}
