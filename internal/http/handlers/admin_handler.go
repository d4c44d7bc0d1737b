package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/civiclabs/ballotbox/internal/domain"
	mw "github.com/civiclabs/ballotbox/internal/http/middleware"
	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/internal/service"
	"github.com/civiclabs/ballotbox/pkg/config"
)

type AdminHandler struct {
	adminService service.AdminService
	cfg          *config.Config
}

func NewAdminHandler(adminService service.AdminService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		cfg:          cfg,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(domain.RoleAdmin, h.cfg.Auth.JWTSecret))
	r.Get("/stats", h.Stats)
	r.Get("/voters", h.ListVoters)
	r.Get("/voters/lookup", h.LookupVoter)
	r.Get("/voters/{id}", h.VoterDetail)
	r.Post("/voters/{id}/approve", h.ApproveVoter)
	r.Post("/voters/{id}/reject", h.RejectVoter)
	r.Get("/candidates", h.ListCandidates)
	r.Post("/candidates/{id}/approve", h.ApproveCandidate)
	r.Post("/candidates/{id}/reject", h.RejectCandidate)
	r.Post("/election/reset", h.ResetElection)
	r.Get("/audit", h.Audit)
	return r
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to compute stats")
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListVoters(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(r)
	if !ok {
		response.BadRequest(w, "Invalid status filter")
		return
	}
	limit, offset := parsePagination(r)

	voters, err := h.adminService.ListVoters(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list voters")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"voters": voters,
		"count":  len(voters),
	})
}

func (h *AdminHandler) VoterDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "Invalid voter ID")
		return
	}

	voter, err := h.adminService.VoterDetail(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, voter)
}

// LookupVoter resolves an assigned voter number back to the registration.
func (h *AdminHandler) LookupVoter(w http.ResponseWriter, r *http.Request) {
	voterNo := r.URL.Query().Get("voter_no")
	if voterNo == "" {
		response.BadRequest(w, "voter_no is required")
		return
	}

	voter, err := h.adminService.FindVoterByNo(r.Context(), voterNo)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, voter)
}

func (h *AdminHandler) ApproveVoter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "Invalid voter ID")
		return
	}

	voter, err := h.adminService.ApproveVoter(r.Context(), id, mw.ClientIP(r))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Voter approved",
		"voter":   voter.Summary(),
	})
}

func (h *AdminHandler) RejectVoter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "Invalid voter ID")
		return
	}

	var req rejectRequest
	if r.Body != nil {
		// Reason is optional; a missing or empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	voter, err := h.adminService.RejectVoter(r.Context(), id, req.Reason, mw.ClientIP(r))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Voter rejected",
		"voter":   voter.Summary(),
	})
}

func (h *AdminHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	status, ok := statusFilter(r)
	if !ok {
		response.BadRequest(w, "Invalid status filter")
		return
	}
	limit, offset := parsePagination(r)

	candidates, err := h.adminService.ListCandidates(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list candidates")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

func (h *AdminHandler) ApproveCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "Invalid candidate ID")
		return
	}

	candidate, err := h.adminService.ApproveCandidate(r.Context(), id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Candidate approved",
		"candidate": candidate,
	})
}

func (h *AdminHandler) RejectCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.BadRequest(w, "Invalid candidate ID")
		return
	}

	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	candidate, err := h.adminService.RejectCandidate(r.Context(), id, req.Reason)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Candidate rejected",
		"candidate": candidate,
	})
}

// ResetElection wipes all votes and tallies. Voter registrations and
// candidate approvals survive.
func (h *AdminHandler) ResetElection(w http.ResponseWriter, r *http.Request) {
	if err := h.adminService.ResetElection(r.Context(), mw.ClientIP(r)); err != nil {
		response.InternalError(w, "Failed to reset election")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Election reset. All votes cleared.",
	})
}

func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePagination(r)

	entries, err := h.adminService.Audit(r.Context(), limit)
	if err != nil {
		response.InternalError(w, "Failed to read audit log")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
