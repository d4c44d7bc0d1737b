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

type AuthHandler struct {
	authService service.AuthService
	rateLimit   redisrepo.RateLimitRepository
	cfg         *config.Config
}

func NewAuthHandler(authService service.AuthService, rateLimit redisrepo.RateLimitRepository, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		rateLimit:   rateLimit,
		cfg:         cfg,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register/voter", h.RegisterVoter)
	r.Post("/register/candidate", h.RegisterCandidate)
	r.With(mw.RateLimitByIP(h.rateLimit, "login", 10, time.Minute)).Post("/login", h.Login)
	r.With(mw.RequireRole("", h.cfg.Auth.JWTSecret)).Post("/change-password", h.ChangePassword)
	return r
}

// RegisterVoter files a pending voter registration.
func (h *AuthHandler) RegisterVoter(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	voter, user, err := h.authService.RegisterVoter(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration submitted. Wait for admin approval.",
		"user":    user.ToUserInfo(),
		"voter":   voter.Summary(),
	})
}

// RegisterCandidate files a pending candidate nomination.
func (h *AuthHandler) RegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	candidate, user, err := h.authService.RegisterCandidate(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":   "Nomination submitted. Wait for admin approval.",
		"user":      user.ToUserInfo(),
		"candidate": candidate,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), claims.Sub, &req); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed",
	})
}
