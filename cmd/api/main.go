// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/waveform-labs/trackduel/internal/api"
	"github.com/waveform-labs/trackduel/internal/auth"
	"github.com/waveform-labs/trackduel/internal/comparison"
	"github.com/waveform-labs/trackduel/internal/config"
	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/health"
	"github.com/waveform-labs/trackduel/internal/idempotency"
	"github.com/waveform-labs/trackduel/internal/matchup"
	"github.com/waveform-labs/trackduel/internal/middleware"
	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/storage"
	"github.com/waveform-labs/trackduel/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("TrackDuel API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "trackduel-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporterType,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	cancelPing()

	// Redis is optional. Without it rate limits fall back to a
	// per-process store.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Object storage. Playback URLs are signed against R2, so the API
	// cannot serve matchups without it.
	if cfg.R2BucketName == "" {
		logger.Error("object storage is not configured; set the R2_* environment variables")
		os.Exit(1)
	}
	storageService, err := storage.NewService(storage.ServiceConfig{
		BucketName:      cfg.R2BucketName,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		Endpoint:        cfg.R2Endpoint,
		MaxSizeMB:       cfg.R2MaxUploadSizeMB,
	})
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Repositories
	songRepo := song.NewPostgresRepository(db)
	formRepo := feedback.NewPostgresRepository(db)
	comparisonStore := comparison.NewPostgresStore(db, logger)
	idempotencyRepo := idempotency.NewPostgresRepository(db)

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	comparisonMetrics := comparison.NewMetrics()
	if err := comparisonMetrics.Register(registry); err != nil {
		logger.Error("failed to register comparison metrics", "error", err)
		os.Exit(1)
	}

	// Services
	recorder := comparison.NewRecorder(comparisonStore, comparisonMetrics, logger)
	selector := matchup.NewSelector(songRepo, formRepo, storageService, nil)
	feedbackService := feedback.NewService(songRepo, formRepo)

	var jwtService *auth.JWTService
	if cfg.JWTSecretPrevious != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTSecretPrevious)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	// Handlers
	songHandlers := api.NewSongHandlers(songRepo, storageService)
	compareHandlers := api.NewCompareHandlers(selector)
	comparisonHandlers := api.NewComparisonHandlers(recorder, comparisonStore)
	feedbackHandlers := api.NewFeedbackHandlers(feedbackService, formRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:    health.NewDBChecker(db),
		RedisChecker: redisChecker(redisClient),
	})

	// Rate limit stores
	var globalStore, compareStore middleware.RateLimitStore
	if redisClient != nil {
		redisStore := middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		globalStore = redisStore.Store()
		compareStore = redisStore.Store()
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Cleanup()
			}
		}()
		globalStore = memStore
		compareStore = memStore
	}

	// Idempotency key cleanup
	cleanupStop := make(chan struct{})
	defer close(cleanupStop)
	go idempotency.RunPeriodicCleanup(idempotencyRepo, 1*time.Hour, idempotency.DefaultExpiry, cleanupStop)

	authRequired := middleware.Auth(jwtService)
	compareLimiter := middleware.RateLimiter(compareStore, middleware.DefaultCompareLimit(), middleware.IPKeyFunc())

	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.Handle("/compare", compareLimiter(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: compareHandlers.NextAdaptivePair,
	})))

	mux.Handle("/comparisons", compareLimiter(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: comparisonHandlers.RecordComparison,
	})))

	mux.Handle("/songs", authRequired(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet:  songHandlers.ListSongs,
		http.MethodPost: songHandlers.CreateSong,
	})))
	mux.Handle("/songs/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && hasSubresource(r.URL.Path, "/songs/", "url"):
			songHandlers.PlaybackURL(w, r)
		case r.Method == http.MethodGet && hasSubresource(r.URL.Path, "/songs/", "comparisons"):
			comparisonHandlers.SongHistory(w, r)
		case r.Method == http.MethodDelete:
			authRequired(http.HandlerFunc(songHandlers.DeleteSong)).ServeHTTP(w, r)
		default:
			writeNotFound(w, r)
		}
	}))

	mux.Handle("/feedback", authRequired(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet:  feedbackHandlers.ListForms,
		http.MethodPost: feedbackHandlers.CreateForm,
	})))
	mux.Handle("/feedback/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && hasSubresource(r.URL.Path, "/feedback/", "next-pair"):
			compareLimiter(http.HandlerFunc(compareHandlers.NextScriptedPair)).ServeHTTP(w, r)
		case r.Method == http.MethodGet:
			feedbackHandlers.GetForm(w, r)
		default:
			writeNotFound(w, r)
		}
	}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			writeNotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"trackduel-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain, outermost first:
	// RequestID -> Tracing -> Logging -> HTTPMetrics -> RateLimiter -> Idempotency
	var handler http.Handler = mux
	handler = middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
		"/comparisons": true,
	})(handler)
	handler = middleware.RateLimiter(globalStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc())(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("trackduel-api")(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// methodHandler dispatches by HTTP method, returning a structured 404
// for anything unhandled.
func methodHandler(handlers map[string]http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		writeNotFound(w, r)
	})
}

// hasSubresource reports whether the path is {prefix}{id}/{sub}.
func hasSubresource(path, prefix, sub string) bool {
	rest := path[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return i > 0 && rest[i+1:] == sub
		}
	}
	return false
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
}

// redisChecker returns a health checker for the redis client, or nil
// when redis is not configured so readiness skips the check.
func redisChecker(client *redis.Client) api.HealthChecker {
	if client == nil {
		return nil
	}
	return health.NewRedisChecker(client)
}
