package httpapi

import "net/http"

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.stats.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if err := h.stats.ResetAll(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info().Msg("stats reset")
	snapshot, err := h.stats.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
