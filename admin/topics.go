package admin

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/group"
)

// maxPayloadBytes bounds a published payload read from a request body
const maxPayloadBytes = 1 << 20

// handlePublish appends the request body to a topic
func (h *AdminHandlers) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) > maxPayloadBytes {
		writeErrorResponse(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	id, err := h.group.Publish(r.Context(), topic, string(body))
	if err != nil {
		writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{"id": id, "topic": topic}, false, 0)
}

// handleMessages lists stored messages of a topic after an id
func (h *AdminHandlers) handleMessages(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	after, err := parseAfter(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// One extra row tells whether there is more
	messages, err := h.log.ReadAfter(r.Context(), topic, after, limit+1)
	if err != nil {
		writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	data := make([]map[string]interface{}, 0, len(messages))
	var lastID uint64
	for _, msg := range messages {
		data = append(data, map[string]interface{}{
			"id":      msg.ID,
			"topic":   msg.Topic,
			"payload": msg.Payload,
		})
		lastID = msg.ID
	}

	writeJSONResponse(w, data, hasMore, lastID)
}

// handleClear deletes every message of the group
func (h *AdminHandlers) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.group.Clear(r.Context()); err != nil {
		writeErrorResponse(w, statusFor(err), err.Error())
		return
	}

	writeJSONResponse(w, map[string]interface{}{"cleared": true}, false, 0)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrEmptyTopic):
		return http.StatusBadRequest
	case errors.Is(err, group.ErrTopicNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, group.ErrGroupClosed), errors.Is(err, db.ErrStoreClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
