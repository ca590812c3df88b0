package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
)

const defaultHistoryLimit = 50

type historyResponse struct {
	Entries []domain.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

type clearResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListHistory handles GET /history?kind=mood|song|all&limit=n
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	kind := domain.HistoryKind(r.URL.Query().Get("kind"))

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.svc.History(r.Context(), kind, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Entries: entries, Count: len(entries)})
}

// GetHistoryEntry handles GET /history/{kind}/{id}
func (h *Handler) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	kind := domain.HistoryKind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "id must be an integer")
		return
	}

	entry, err := h.svc.HistoryEntry(r.Context(), kind, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HistoryStats handles GET /history/stats
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.HistoryStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearHistory handles DELETE /history
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearHistory(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Deleted: n})
}
