package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/callboard-service/internal/backend"
	"qms/callboard-service/internal/config"
	"qms/callboard-service/internal/httpapi"
	"qms/callboard-service/internal/notes"
	"qms/callboard-service/internal/queue"
	"qms/callboard-service/internal/stats"
	"qms/callboard-service/internal/store"
	"qms/callboard-service/internal/telemetry"
	"qms/callboard-service/internal/users"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := newLogger(cfg, os.Stderr)
	log.Logger = logger

	logger.Info().
		Str("port", cfg.Port).
		Str("store_mode", cfg.StoreMode).
		Str("stats_timezone", cfg.StatsLocation.String()).
		Bool("admin_enabled", cfg.AdminSecret != "").
		Msg("starting callboard-service")
	if cfg.AdminSecret == "" {
		logger.Warn().Msg("ADMIN_SECRET is empty, admin operations are disabled")
	}

	shutdownTelemetry := telemetry.Setup(cfg.ServiceName, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	docs, closeStore, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open document store")
	}
	defer closeStore()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(buildRouter(cfg, docs, logger), cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("callboard-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func buildRouter(cfg *config.Config, docs store.DocumentStore, logger zerolog.Logger) http.Handler {
	state := queue.New(queue.Options{
		GeneralCapacity: cfg.GeneralHistorySize,
		MenCapacity:     cfg.MenHistorySize,
		WomenCapacity:   cfg.WomenHistorySize,
	})
	aggregator := stats.NewAggregator(docs, stats.Options{Location: cfg.StatsLocation}, logger)
	directory := users.NewDirectory(docs, users.BcryptVerifier{}, users.Options{}, logger)

	handler := httpapi.NewHandler(httpapi.Services{
		Queue: state,
		Notes: notes.NewStore(),
		Stats: aggregator,
		Users: directory,
	}, httpapi.NewAdminGate(cfg.AdminSecret), httpapi.Options{
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMinute,
		IPBurst:     cfg.RateLimitBurst,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpapi.LoggingMiddleware(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(httpapi.CORS(cfg.AllowedOrigins))
	r.Use(limiter.Middleware)
	r.Mount("/", handler.Routes())
	return r
}
