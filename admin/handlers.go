package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/maxpert/groupbus/db"
	"github.com/rs/zerolog/log"
)

// Defaults for message listing
const (
	defaultLimit = 256
	maxLimit     = 1024
)

// Publisher is the Group surface the admin API drives
type Publisher interface {
	ID() string
	Publish(ctx context.Context, topic, payload string) (uint64, error)
	Clear(ctx context.Context) error
	SubscriptionCount() int
	SaveSetting(ctx context.Context, key string, value any) error
	LoadSetting(ctx context.Context, key string, out any) (bool, error)
	DeleteSetting(ctx context.Context, key string) error
}

// LogReader inspects the shared message log without touching any cursor
type LogReader interface {
	LogStats(ctx context.Context) (uint64, uint64, error)
	ReadAfter(ctx context.Context, topic string, cursor uint64, limit int) ([]db.Message, error)
}

// AdminHandlers handles admin API endpoints for one group
type AdminHandlers struct {
	group Publisher
	log   LogReader
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(group Publisher, reader LogReader) *AdminHandlers {
	return &AdminHandlers{
		group: group,
		log:   reader,
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}, hasMore bool, lastID uint64) {
	response := map[string]interface{}{
		"data": data,
	}

	if hasMore {
		response["has_more"] = true
		response["last_id"] = lastID
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// parseLimit parses limit parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}

	if limit > maxLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", maxLimit)
	}

	return limit, nil
}

// parseAfter parses the after parameter, the exclusive id to list from
func parseAfter(r *http.Request) (uint64, error) {
	afterStr := r.URL.Query().Get("after")
	if afterStr == "" {
		return db.CursorStart, nil
	}

	after, err := strconv.ParseUint(afterStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid after parameter: %w", err)
	}
	return after, nil
}
