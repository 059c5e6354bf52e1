package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/policydesk/internal/bootstrap"
	"github.com/yourorg/policydesk/internal/featureflags"
	"github.com/yourorg/policydesk/internal/handler"
	"github.com/yourorg/policydesk/internal/infrastructure/logger"
	"github.com/yourorg/policydesk/internal/infrastructure/redis"
	"github.com/yourorg/policydesk/internal/observability/metrics"
	"github.com/yourorg/policydesk/internal/observability/tracing"
	"github.com/yourorg/policydesk/internal/repository"
	"github.com/yourorg/policydesk/internal/security"
	"github.com/yourorg/policydesk/internal/security/audit"
	"github.com/yourorg/policydesk/internal/security/auth"
	"github.com/yourorg/policydesk/internal/security/credentials"
	"github.com/yourorg/policydesk/internal/security/middleware"
	"github.com/yourorg/policydesk/internal/security/ratelimit"
	"github.com/yourorg/policydesk/internal/service"
	"github.com/yourorg/policydesk/internal/worker"
	"github.com/yourorg/policydesk/pkg/config"
	"github.com/yourorg/policydesk/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting PolicyDesk server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, log, "policydesk", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to Postgres and apply migrations. No degraded mode: a server
	// that cannot reach its tenancy store refuses to start.
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DatabaseURL()); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 6. Initialize repositories
	tenantRepo := repository.NewPostgresTenantRepository(pool.GetDB(), log)
	agencyRepo := repository.NewPostgresAgencyRepository(pool.GetDB(), log)
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	docRepo := repository.NewDocumentRepository(redisClient, log)

	// 7. Initialize security components
	credStore := credentials.NewStore(cfg.BcryptCost)
	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, "policydesk")
	if err != nil {
		log.Error("failed to initialize token manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	policy := security.NewAuthorizationPolicy(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Seed default tenant and admin on first start
	if err := bootstrap.Run(ctx, bootstrap.Config{
		TenantName:    cfg.BootstrapTenant,
		AdminEmail:    cfg.BootstrapEmail,
		AdminPassword: cfg.BootstrapPassword,
	}, tenantRepo, userRepo, credStore, log); err != nil {
		log.Error("bootstrap failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Initialize services
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	authService := service.NewAuthService(userRepo, credStore, tokenManager, sessionTTL, log)
	provisioningService := service.NewProvisioningService(tenantRepo, agencyRepo, userRepo, credStore, policy, log)
	documentService := service.NewDocumentService(docRepo, log)

	// 10. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, log)
	accountsHandler := handler.NewAccountsHandler(provisioningService, auditLogger, log)
	agenciesHandler := handler.NewAgenciesHandler(provisioningService, auditLogger, log)
	documentsHandler := handler.NewDocumentsHandler(documentService, auditLogger, log)
	docStreamHandler := handler.NewDocStreamHandler(documentService, log, cfg.CORSAllowedOrigins)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)

	// 11. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("POST /api/accounts", accountsHandler.Create)
	mux.HandleFunc("GET /api/accounts", accountsHandler.List)
	mux.HandleFunc("POST /api/agencies", agenciesHandler.Create)
	mux.HandleFunc("GET /api/agencies", agenciesHandler.List)
	mux.HandleFunc("POST /api/documents", documentsHandler.Upload)
	mux.HandleFunc("GET /api/documents", documentsHandler.List)
	mux.HandleFunc("GET /api/documents/{id}", documentsHandler.Status)
	mux.Handle("GET /ws/documents/{id}", docStreamHandler)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> JWT -> rate limit -> audit.
	// JWT runs before the tenant rate limiter and audit so both see the
	// verified claims.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(tokenManager, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
				),
			),
		),
		log,
	)

	// 12. Start extraction workers in background
	if cfg.ExtractionWorkers > 0 && !featureflags.Enabled("EXTRACTION_WORKER_DISABLED") {
		extractor := service.NewStubExtractor(2 * time.Second)
		for i := 0; i < cfg.ExtractionWorkers; i++ {
			w := worker.NewExtractionWorker(docRepo, extractor, log.With(slog.Int("worker", i)))
			go w.Start(ctx)
		}
	}

	// 13. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "http.server"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
		slog.Int("session_ttl_minutes", cfg.SessionTTLMinutes),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop extraction workers
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
