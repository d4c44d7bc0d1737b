package handlers

import (
	"net/http"
	"strconv"

	"github.com/civiclabs/ballotbox/internal/domain"
)

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

// statusFilter parses the optional ?status= query. The bool is false for an
// unparseable value.
func statusFilter(r *http.Request) (*domain.ApprovalStatus, bool) {
	v := r.URL.Query().Get("status")
	if v == "" {
		return nil, true
	}
	status := domain.ApprovalStatus(v)
	if !status.Valid() {
		return nil, false
	}
	return &status, true
}
