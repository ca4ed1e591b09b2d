package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type scoreRequest struct {
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
	Reason    string `json:"reason"`
}

// CorrectScore changes a final game's score.
// PATCH /v1/games/{id}/score
func (h *Handler) CorrectScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HomeScore == nil || req.AwayScore == nil {
		writeError(w, http.StatusBadRequest, "home_score and away_score are required")
		return
	}
	c, err := h.svc.CorrectGame(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"),
		*req.HomeScore, *req.AwayScore, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// VerifyGame marks a game as checked. Admin only.
// POST /v1/games/{id}/verify
func (h *Handler) VerifyGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.VerifyGame(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
