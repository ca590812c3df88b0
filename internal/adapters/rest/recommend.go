package rest

import (
	"net/http"

	"github.com/ewilliams-labs/moodmix/internal/core/services"
)

// RecommendByMood handles POST /recommendations/mood
func (h *Handler) RecommendByMood(w http.ResponseWriter, r *http.Request) {
	var req services.MoodRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.RecommendByMood(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// An empty result is still a successful request.
	writeJSON(w, http.StatusOK, res)
}

// DiscoverBySong handles POST /recommendations/similar
func (h *Handler) DiscoverBySong(w http.ResponseWriter, r *http.Request) {
	var req services.SongRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.DiscoverBySong(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
