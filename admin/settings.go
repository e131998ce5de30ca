package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetSetting returns the value stored under a key
func (h *AdminHandlers) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value interface{}
	found, err := h.group.LoadSetting(r.Context(), key, &value)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeErrorResponse(w, http.StatusNotFound, "setting not found")
		return
	}

	writeJSONResponse(w, map[string]interface{}{"key": key, "value": value}, false, 0)
}

// handlePutSetting stores the JSON request body under a key
func (h *AdminHandlers) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value interface{}
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := h.group.SaveSetting(r.Context(), key, value); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{"key": key}, false, 0)
}

// handleDeleteSetting removes a key
func (h *AdminHandlers) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.group.DeleteSetting(r.Context(), key); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{"key": key, "deleted": true}, false, 0)
}
