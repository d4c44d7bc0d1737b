package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civiclabs/ballotbox/internal/http/response"
	"github.com/civiclabs/ballotbox/internal/service"
)

type ResultsHandler struct {
	votingService service.VotingService
}

func NewResultsHandler(votingService service.VotingService) *ResultsHandler {
	return &ResultsHandler{votingService: votingService}
}

func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Results)
	return r
}

// Results returns the public tally of approved candidates.
func (h *ResultsHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.votingService.Results(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to load results")
		return
	}

	response.WriteJSON(w, http.StatusOK, results)
}
