package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/logger"
)

type Handler struct {
	Feed      *Feed
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func NewHandler(feed *Feed, log *logger.Logger) *Handler {
	return &Handler{Feed: feed, Logger: log, Heartbeat: 25 * time.Second}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/shows/{showID}/sessions/{sessionID}/feed", h.StreamSession)
}

// StreamSession pushes every ledger change of one session to the client
// until it disconnects.
func (h *Handler) StreamSession(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	setupSSEHeaders(w)

	ctx := r.Context()
	key := FeedKey(showID, sessionID)
	events := h.Feed.Subscribe(ctx, key)

	fmt.Fprintf(w, "event: connected\ndata: {\"show_id\":%q,\"session_id\":%q}\n\n", showID, sessionID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to feed %s", key))

	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize %s: %v", evt.Type, err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client left feed %s", key))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
