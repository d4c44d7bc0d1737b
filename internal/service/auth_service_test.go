package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/service"
	"github.com/civiclabs/ballotbox/pkg/auth"
)

func newAuthService(e *testEnv) service.AuthService {
	return service.NewAuthService(e.users, e.voters, e.candidates, e.bus, e.cfg)
}

func voterRegistration() *domain.RegisterVoterRequest {
	return &domain.RegisterVoterRequest{
		Email:        "ravi@example.com",
		Password:     "Str0ng!pass",
		Name:         "Ravi Kumar",
		DateOfBirth:  "1990-05-20",
		GuardianName: "Mohan Kumar",
		Phone:        "9876543210",
		NationalID:   "123456789012",
		Occupation:   "Farmer",
	}
}

func TestRegisterVoter(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	voter, user, err := svc.RegisterVoter(ctx, voterRegistration())
	if err != nil {
		t.Fatalf("RegisterVoter failed: %v", err)
	}
	if voter.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", voter.Status)
	}
	if voter.VoterNo != nil {
		t.Error("voter number must not exist before approval")
	}
	if user.Role != domain.RoleVoter {
		t.Errorf("role = %s, want voter", user.Role)
	}
	if user.PasswordHash == "Str0ng!pass" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterVoterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.RegisterVoterRequest)
		want   string
	}{
		{"bad email", func(r *domain.RegisterVoterRequest) { r.Email = "not-an-email" }, "email"},
		{"short password", func(r *domain.RegisterVoterRequest) { r.Password = "Ab1!" }, "8 characters"},
		{"no uppercase", func(r *domain.RegisterVoterRequest) { r.Password = "weakpass1!" }, "uppercase"},
		{"no digit", func(r *domain.RegisterVoterRequest) { r.Password = "Weakpass!" }, "digit"},
		{"no special", func(r *domain.RegisterVoterRequest) { r.Password = "Weakpass1" }, "special"},
		{"short national id", func(r *domain.RegisterVoterRequest) { r.NationalID = "12345" }, "12 digits"},
		{"alpha national id", func(r *domain.RegisterVoterRequest) { r.NationalID = "12345678901a" }, "12 digits"},
		{"bad phone", func(r *domain.RegisterVoterRequest) { r.Phone = "12345" }, "10 digits"},
		{"bad birth date", func(r *domain.RegisterVoterRequest) { r.DateOfBirth = "20-05-1990" }, "date of birth"},
		{"missing guardian", func(r *domain.RegisterVoterRequest) { r.GuardianName = "" }, "guardian"},
	}

	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := voterRegistration()
			tt.mutate(req)
			_, _, err := svc.RegisterVoter(ctx, req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRegisterVoterDuplicates(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	if _, _, err := svc.RegisterVoter(ctx, voterRegistration()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	dup := voterRegistration()
	dup.NationalID = "999999999999"
	if _, _, err := svc.RegisterVoter(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate email: got %v, want ErrEmailTaken", err)
	}

	dup = voterRegistration()
	dup.Email = "other@example.com"
	if _, _, err := svc.RegisterVoter(ctx, dup); !errors.Is(err, domain.ErrNationalIDTaken) {
		t.Errorf("duplicate national id: got %v, want ErrNationalIDTaken", err)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	if _, _, err := svc.RegisterVoter(ctx, voterRegistration()); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	// Pending voters can log in; they just cannot vote yet.
	resp, err := svc.Login(ctx, &domain.LoginRequest{
		Email:    "Ravi@Example.com", // normalization folds case
		Password: "Str0ng!pass",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims, err := auth.Parse(resp.AccessToken, e.cfg.Auth.JWTSecret)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.Role != domain.RoleVoter || claims.Email != "ravi@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if resp.User == nil || resp.User.Role != domain.RoleVoter {
		t.Errorf("user info = %+v", resp.User)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	if _, _, err := svc.RegisterVoter(ctx, voterRegistration()); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, err := svc.Login(ctx, &domain.LoginRequest{Email: "ravi@example.com", Password: "Wrong1!pass"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}

	_, err = svc.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "Str0ng!pass"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	_, user, err := svc.RegisterVoter(ctx, voterRegistration())
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	err = svc.ChangePassword(ctx, user.ID, &domain.ChangePasswordRequest{
		OldPassword: "Wrong1!pass",
		NewPassword: "N3w!password",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong old password: got %v, want ErrInvalidCredentials", err)
	}

	err = svc.ChangePassword(ctx, user.ID, &domain.ChangePasswordRequest{
		OldPassword: "Str0ng!pass",
		NewPassword: "N3w!password",
	})
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "ravi@example.com", Password: "N3w!password"}); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestRegisterCandidate(t *testing.T) {
	e := newTestEnv()
	svc := newAuthService(e)
	ctx := context.Background()

	candidate, user, err := svc.RegisterCandidate(ctx, &domain.RegisterCandidateRequest{
		Email:    "alice@example.com",
		Password: "Str0ng!pass",
		Name:     "Alice",
		Party:    "Red Party",
	})
	if err != nil {
		t.Fatalf("RegisterCandidate failed: %v", err)
	}
	if candidate.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", candidate.Status)
	}
	if user.Role != domain.RoleCandidate {
		t.Errorf("role = %s, want candidate", user.Role)
	}
	if candidate.VoteCount != 0 {
		t.Errorf("vote_count = %d", candidate.VoteCount)
	}
}
