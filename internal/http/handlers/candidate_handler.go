package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civiclabs/ballotbox/internal/domain"
	mw "github.com/civiclabs/ballotbox/internal/http/middleware"
	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/internal/service"
	"github.com/civiclabs/ballotbox/pkg/config"
)

type CandidateHandler struct {
	candidateService service.CandidateService
	cfg              *config.Config
}

func NewCandidateHandler(candidateService service.CandidateService, cfg *config.Config) *CandidateHandler {
	return &CandidateHandler{
		candidateService: candidateService,
		cfg:              cfg,
	}
}

func (h *CandidateHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(domain.RoleCandidate, h.cfg.Auth.JWTSecret))
	r.Get("/nomination", h.MyNomination)
	r.Post("/nomination", h.Resubmit)
	r.Delete("/nomination", h.CancelNomination)
	return r
}

// MyNomination returns the caller's latest nomination and its status.
func (h *CandidateHandler) MyNomination(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	candidate, err := h.candidateService.MyNomination(r.Context(), claims.Sub)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, candidate)
}

type resubmitRequest struct {
	Party string `json:"party"`
}

// Resubmit files a new nomination after a rejection.
func (h *CandidateHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	var req resubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	candidate, err := h.candidateService.Resubmit(r.Context(), claims.Sub, req.Party)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":   "Nomination resubmitted. Wait for admin approval.",
		"candidate": candidate,
	})
}

// CancelNomination withdraws the caller's pending nomination.
func (h *CandidateHandler) CancelNomination(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r)

	if err := h.candidateService.CancelNomination(r.Context(), claims.Sub); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Nomination cancelled",
	})
}
