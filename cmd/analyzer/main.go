package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/log-analyzer/internal/adapter/api"
	"github.com/user/log-analyzer/internal/adapter/bus"
	"github.com/user/log-analyzer/internal/adapter/checkpoint"
	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/adapter/parser"
	"github.com/user/log-analyzer/internal/adapter/redact"
	"github.com/user/log-analyzer/internal/adapter/reporter"
	"github.com/user/log-analyzer/internal/adapter/source"
	"github.com/user/log-analyzer/internal/domain"
	"github.com/user/log-analyzer/internal/pkg/config"
	"github.com/user/log-analyzer/internal/pkg/logger"
	"github.com/user/log-analyzer/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting log analyzer")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// --- Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Input Source ---
	factory, cleanup, err := buildSourceFactory(ctx, cfg, log)
	if err != nil {
		log.Error("failed to set up input source", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Incident Reporting Sink ---
	incidentReporter, err := buildReporter(ctx, cfg, log)
	if err != nil {
		log.Error("failed to set up incident reporter", "error", err)
		os.Exit(1)
	}

	// --- Parsing and Detection ---
	lineParser, err := parser.New(cfg.ParserFormat)
	if err != nil {
		log.Error("failed to build parser", "error", err)
		os.Exit(1)
	}
	detector := usecase.NewIncidentDetector(cfg.Keywords())

	var redactor *redact.Redactor
	if tokens := cfg.Redactions(); len(tokens) > 0 {
		redactor = redact.NewRedactor(tokens, log)
	}

	// --- Event Bus and Supervisor ---
	events := bus.New(log, m, cfg.SubscriberBuffer)

	supervisor := usecase.NewSupervisor(usecase.SupervisorConfig{
		Concurrency:         cfg.Concurrency,
		SnapshotInterval:    cfg.SnapshotInterval,
		AggregationInterval: cfg.AggregationInterval,
		HealthTimeout:       cfg.HealthTimeout,
		DrainTimeout:        cfg.DrainTimeout,
		MaxRestarts:         cfg.MaxRestarts,
		ReportRetries:       cfg.ReportRetries,
		ReportBackoff:       cfg.ReportBackoff,
		ReportQueue:         cfg.ReportQueue,
	}, factory, lineParser, detector, redactor, incidentReporter, events, log, m)

	// SIGHUP triggers a graceful rolling restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			log.Info("SIGHUP received, triggering rolling restart")
			supervisor.TriggerRestart()
		}
	}()

	// --- HTTP Server ---
	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     api.NewRouter(log, supervisor, events),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 15 * time.Second,
	}
	go func() {
		log.Info("starting http server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	// --- Run ---
	runErr := supervisor.Run(ctx)
	if runErr != nil && ctx.Err() == nil {
		log.Error("supervisor failed", "error", runErr)
	}

	log.Info("shutting down servers...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}

	if runErr != nil && ctx.Err() == nil {
		os.Exit(1)
	}
	log.Info("analyzer shut down gracefully")
}

// buildSourceFactory wires the configured input: a fixed file analyzed in
// parallel byte ranges, live-tailed files, or a redis stream consumer group.
func buildSourceFactory(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.SourceFactory, func(), error) {
	noop := func() {}

	switch cfg.SourceType {
	case "file":
		checkpoints, err := checkpoint.NewStore(cfg.CheckpointPath, log)
		if err != nil {
			return nil, noop, err
		}
		return source.NewFileFactory(cfg.SourcePath, cfg.ChunkSize, checkpoints, log), noop, nil

	case "tail":
		checkpoints, err := checkpoint.NewStore(cfg.CheckpointPath, log)
		if err != nil {
			return nil, noop, err
		}
		paths := strings.Split(cfg.SourcePath, ",")
		return source.NewTailFactory(paths, checkpoints, log), noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, noop, err
		}
		log.Info("connected to redis", "addr", cfg.RedisAddr, "stream", cfg.RedisStream)
		return source.NewRedisFactory(client, cfg.RedisStream, log), func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown source type %q", cfg.SourceType)
	}
}

// buildReporter selects the incident sink: postgres when configured, the
// structured log otherwise.
func buildReporter(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.IncidentReporter, error) {
	if cfg.PostgresURL == "" {
		return reporter.NewLogReporter(log), nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to postgres")

	pg := reporter.NewPostgresReporter(db, log)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
