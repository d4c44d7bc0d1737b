package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civiclabs/ballotbox/internal/domain"
	mw "github.com/civiclabs/ballotbox/internal/http/middleware"
	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/internal/repo/redisrepo"
	"github.com/civiclabs/ballotbox/internal/service"
	"github.com/civiclabs/ballotbox/pkg/config"
)

type VoteHandler struct {
	votingService service.VotingService
	otpService    service.OTPService
	rateLimit     redisrepo.RateLimitRepository
	cfg           *config.Config
}

func NewVoteHandler(votingService service.VotingService, otpService service.OTPService, rateLimit redisrepo.RateLimitRepository, cfg *config.Config) *VoteHandler {
	return &VoteHandler{
		votingService: votingService,
		otpService:    otpService,
		rateLimit:     rateLimit,
		cfg:           cfg,
	}
}

func (h *VoteHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(domain.RoleVoter, h.cfg.Auth.JWTSecret))
	r.Get("/eligibility", h.Eligibility)
	r.With(mw.RateLimitByUser(h.rateLimit, "otp", 3, 5*time.Minute)).Post("/otp/request", h.RequestOTP)
	r.Post("/otp/verify", h.VerifyOTP)
	r.Post("/cast", h.CastVote)
	return r
}

// Eligibility reports the caller's approval and voting state.
func (h *VoteHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	summary, err := h.votingService.Eligibility(r.Context(), claims.Sub)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, summary)
}

// RequestOTP issues a fresh voting code and mails it to the voter. In dev
// mode the code is echoed back so local flows work without an inbox.
func (h *VoteHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	code, expiresAt, err := h.otpService.Issue(r.Context(), claims.Sub, mw.ClientIP(r))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	payload := map[string]any{
		"message":    "A voting code has been sent to your email.",
		"expires_at": expiresAt,
	}
	if h.cfg.Email.DevMode {
		payload["dev_code"] = code
	}

	response.WriteJSON(w, http.StatusOK, payload)
}

func (h *VoteHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	var req domain.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	if err := h.otpService.Verify(r.Context(), claims.Sub, req.Code, mw.ClientIP(r)); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Code verified. You may now cast your vote.",
	})
}

func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	var req domain.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.CandidateID <= 0 {
		response.BadRequest(w, "candidate_id is required")
		return
	}

	vote, err := h.votingService.CastVote(r.Context(), claims.Sub, req.CandidateID, mw.ClientIP(r))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Your vote has been recorded.",
		"vote":    vote,
	})
}
