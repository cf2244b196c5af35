package api

import (
	"log/slog"
	"net/http"

	"github.com/user/log-analyzer/internal/adapter/api/handler"
	"github.com/user/log-analyzer/internal/adapter/api/middleware"
	"github.com/user/log-analyzer/internal/adapter/bus"
)

// NewRouter creates and configures the HTTP router for the analyzer service.
func NewRouter(
	logger *slog.Logger,
	analyzer handler.Analyzer,
	events *bus.EventBus,
) http.Handler {
	mux := http.NewServeMux()

	statusHandler := handler.NewStatusHandler(analyzer, logger)
	sseHandler := handler.NewSSEHandler(events, logger)

	mux.HandleFunc("GET /health", statusHandler.HealthCheck)
	mux.HandleFunc("GET /status", statusHandler.Status)
	mux.HandleFunc("POST /restart", statusHandler.Restart)
	mux.Handle("GET /events", sseHandler)

	return middleware.Logging(logger)(mux)
}
