package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/log-analyzer/internal/adapter/bus"
)

// SSEHandler streams analyzer events (aggregated metrics, incidents,
// progress) to connected clients over Server-Sent Events. Each connection
// gets its own bus subscription; a slow client only loses its own events.
type SSEHandler struct {
	bus    *bus.EventBus
	logger *slog.Logger
}

// NewSSEHandler creates the /events handler.
func NewSSEHandler(b *bus.EventBus, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{bus: b, logger: logger}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)
	h.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr)
	defer h.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr, "dropped", sub.Dropped())

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
