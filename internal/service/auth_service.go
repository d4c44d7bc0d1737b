package service

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/pkg/auth"
	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/events"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

type AuthService interface {
	RegisterVoter(ctx context.Context, req *domain.RegisterVoterRequest) (*domain.Voter, *domain.User, error)
	RegisterCandidate(ctx context.Context, req *domain.RegisterCandidateRequest) (*domain.Candidate, *domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	ChangePassword(ctx context.Context, userID int64, req *domain.ChangePasswordRequest) error
}

type authService struct {
	userRepo      postgres.UserRepository
	voterRepo     postgres.VoterRepository
	candidateRepo postgres.CandidateRepository
	bus           events.Publisher
	cfg           *config.Config
}

func NewAuthService(
	userRepo postgres.UserRepository,
	voterRepo postgres.VoterRepository,
	candidateRepo postgres.CandidateRepository,
	bus events.Publisher,
	cfg *config.Config,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		voterRepo:     voterRepo,
		candidateRepo: candidateRepo,
		bus:           bus,
		cfg:           cfg,
	}
}

func (s *authService) RegisterVoter(ctx context.Context, req *domain.RegisterVoterRequest) (*domain.Voter, *domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	voter, user, err := s.voterRepo.CreateWithUser(ctx, req, passwordHash)
	if err != nil {
		return nil, nil, err
	}

	if err := s.bus.Publish(ctx, events.SubjectVoterRegistered, map[string]any{
		"voter_id": voter.ID,
		"user_id":  user.ID,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish voter registered event", "error", err)
	}

	return voter, user, nil
}

func (s *authService) RegisterCandidate(ctx context.Context, req *domain.RegisterCandidateRequest) (*domain.Candidate, *domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.candidateRepo.CreateWithUser(ctx, req, passwordHash)
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	accessToken, err := auth.NewAccessToken(
		user.ID,
		user.Email,
		user.Role,
		s.cfg.Auth.JWTSecret,
		s.cfg.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.cfg.Auth.AccessTokenTTL.Seconds()),
		User:        user.ToUserInfo(),
	}, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID int64, req *domain.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}

	valid, err := argon2id.ComparePasswordAndHash(req.OldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return domain.ErrInvalidCredentials
	}

	newHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, userID, newHash)
}
