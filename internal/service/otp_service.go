package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/mailer"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/pkg/config"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

type OTPService interface {
	// Issue generates a fresh code for the voter behind the account,
	// superseding any previous unconsumed one, and hands it to the mailer.
	// The returned plaintext is surfaced to the client only in dev mode.
	Issue(ctx context.Context, userID int64, ip net.IP) (code string, expiresAt time.Time, err error)
	// Verify consumes the voter's live code on an exact match. Failed
	// attempts never consume and are audited like successes.
	Verify(ctx context.Context, userID int64, code string, ip net.IP) error
}

type otpService struct {
	userRepo  postgres.UserRepository
	voterRepo postgres.VoterRepository
	otpRepo   postgres.OTPRepository
	auditRepo postgres.AuditRepository
	mail      mailer.Service
	cfg       *config.Config
}

func NewOTPService(
	userRepo postgres.UserRepository,
	voterRepo postgres.VoterRepository,
	otpRepo postgres.OTPRepository,
	auditRepo postgres.AuditRepository,
	mail mailer.Service,
	cfg *config.Config,
) OTPService {
	return &otpService{
		userRepo:  userRepo,
		voterRepo: voterRepo,
		otpRepo:   otpRepo,
		auditRepo: auditRepo,
		mail:      mail,
		cfg:       cfg,
	}
}

func (s *otpService) Issue(ctx context.Context, userID int64, ip net.IP) (string, time.Time, error) {
	voter, err := s.eligibleVoter(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}

	code, err := generateOTPCode()
	if err != nil {
		return "", time.Time{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash code: %w", err)
	}

	expiresAt := time.Now().Add(s.cfg.Election.OTPTTL)
	if _, err := s.otpRepo.Create(ctx, voter.ID, string(hash), expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store code: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load account for delivery: %w", err)
	}
	if user == nil {
		return "", time.Time{}, domain.ErrNotFound
	}
	if err := s.mail.SendOTP(user.Email, user.Name, code, s.cfg.Election.OTPTTL); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver OTP", "error", err, "voter_id", voter.ID)
		return "", time.Time{}, fmt.Errorf("failed to deliver code: %w", err)
	}

	s.audit(ctx, voter.ID, domain.ActionOTPIssued, "code issued", ip)

	return code, expiresAt, nil
}

func (s *otpService) Verify(ctx context.Context, userID int64, code string, ip net.IP) error {
	voter, err := s.eligibleVoter(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.otpRepo.Consume(ctx, voter.ID, code)
	if err != nil {
		return fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		s.audit(ctx, voter.ID, domain.ActionOTPFailed, "verification failed", ip)
		return domain.ErrOTPInvalid
	}

	s.audit(ctx, voter.ID, domain.ActionOTPVerified, "code verified", ip)
	return nil
}

// eligibleVoter loads the voter behind the account and refuses voters who
// cannot (yet, or anymore) take part in the OTP flow.
func (s *otpService) eligibleVoter(ctx context.Context, userID int64) (*domain.Voter, error) {
	voter, err := s.voterRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return nil, domain.ErrNotFound
	}
	if voter.Status != domain.StatusApproved {
		return nil, domain.ErrVoterNotApproved
	}
	if voter.HasVoted {
		return nil, domain.ErrDuplicateVote
	}
	return voter, nil
}

func (s *otpService) audit(ctx context.Context, voterID int64, action, details string, ip net.IP) {
	if err := s.auditRepo.Record(ctx, voterID, action, details, ip); err != nil {
		logger.WarnContext(ctx, "Failed to write audit entry", "error", err, "action", action)
	}
}
