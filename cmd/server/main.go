package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"llmarena/internal/auth"
	"llmarena/internal/capabilities"
	"llmarena/internal/config"
	"llmarena/internal/domain/repositories"
	"llmarena/internal/handler"
	"llmarena/internal/handler/sse"
	"llmarena/internal/middleware"
	"llmarena/internal/observability"
	"llmarena/internal/repository/memory"
	"llmarena/internal/repository/postgres"
	serviceLLM "llmarena/internal/service/llm"
	"llmarena/internal/service/llm/debate"
	"llmarena/internal/service/llm/streaming"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	// Debate persistence: Postgres when configured, otherwise process memory
	var debateRepo repositories.DebateRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		pgRepo := postgres.NewDebateRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		})
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare debate tables: %v", err)
		}
		debateRepo = pgRepo
		logger.Info("database connected", "store", "postgres")
	} else {
		debateRepo = memory.NewDebateRepository()
		logger.Warn("DATABASE_URL not set, debate sessions are kept in memory")
	}

	catalog, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	providerRegistry, err := serviceLLM.SetupProviders(cfg, catalog, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to setup LLM providers: %v", err)
	}

	debateEngine := debate.NewEngine(debateRepo, providerRegistry, cfg.DebateMaxTurns, logger)

	claims, err := streaming.NewClaimStore(cfg.StreamSessionTTL, logger)
	if err != nil {
		log.Fatalf("Failed to open stream session store: %v", err)
	}
	defer claims.Close()

	streamingService := streaming.NewService(claims, providerRegistry, debateEngine, cfg.DebateMaxTurns, metrics, logger)

	var verifier auth.JWTVerifier
	if cfg.AuthJWKSURL != "" {
		jwks, err := auth.NewJWTVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwks.Close()
		verifier = jwks
	} else {
		logger.Warn("AUTH_JWKS_URL not set, model routes are unauthenticated")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go sweepRateLimiter(ctx, limiter)

	modelsHandler := handler.NewModelsHandler(providerRegistry, logger)
	debateHandler := handler.NewDebateHandler(
		streamingService,
		debateEngine,
		sse.Config{HeartbeatInterval: cfg.SSEHeartbeatInterval},
		metrics,
		logger,
	)

	logger.Info("services initialized", "providers", providerRegistry.Providers())

	// Routes that spend provider credits are authenticated and rate limited
	requireAuth := middleware.RequireAuth(verifier, logger)
	rateLimit := middleware.RateLimit(limiter)
	guarded := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, requireAuth, rateLimit)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Model routes
	mux.HandleFunc("GET /api/models", modelsHandler.ListModels)
	mux.HandleFunc("GET /api/models/status", modelsHandler.GetStatus)
	mux.Handle("POST /api/models/respond", guarded(modelsHandler.Respond))
	mux.Handle("POST /api/models/compare", guarded(modelsHandler.Compare))

	// Debate routes
	mux.Handle("POST /api/debate/session", guarded(debateHandler.CreateSession))
	mux.HandleFunc("GET /api/debate/session/{id}", debateHandler.GetSession)
	mux.Handle("POST /api/debate/stream/init", guarded(debateHandler.InitStream))
	mux.Handle("GET /api/debate/stream/{taskId}/{modelKey}/{sessionId}", requireAuth(http.HandlerFunc(debateHandler.Stream)))
	mux.HandleFunc("POST /api/debate/stream", debateHandler.LegacyStream)

	// CORS must be outermost to answer OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: middleware.Chain(mux,
			corsHandler.Handler,
			middleware.Recovery(logger),
			middleware.RequestLogger(logger),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
		// Open SSE streams see the shutdown signal through their request context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// sweepRateLimiter drops idle clients until ctx ends
func sweepRateLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(10 * time.Minute)
		}
	}
}
