package admin

import "net/http"

// handleStats returns message log statistics
func (h *AdminHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	rows, maxID, err := h.log.LogStats(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"group_id":      h.group.ID(),
		"rows":          rows,
		"max_id":        maxID,
		"subscriptions": h.group.SubscriptionCount(),
	}

	writeJSONResponse(w, response, false, 0)
}

// handleHealth reports whether the shared log is reachable
func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	rows, maxID, err := h.log.LogStats(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	response := map[string]interface{}{
		"healthy": true,
		"stats": map[string]interface{}{
			"rows":   rows,
			"max_id": maxID,
		},
	}

	writeJSONResponse(w, response, false, 0)
}
