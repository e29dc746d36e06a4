package changes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/pkg/logger"
)

const maxBodyBytes = 16 << 10

// Handler serves POST /api/v1/catalog/changes.
type Handler struct {
	publisher *Publisher
	logger    *slog.Logger
}

func NewHandler(pub *Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "changes-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/catalog/changes", h.Accept)
}

// Accept validates a change notification and queues it for every searcher.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var event cache.InvalidationEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := Validate(&event); err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Error("catalog change not published", "error", err, "kind", event.Kind, "id", event.ID)
		h.writeError(w, http.StatusServiceUnavailable, "change feed unavailable")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
