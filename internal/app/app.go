package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-gateway/internal/audit"
	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/config"
	"go-auth-gateway/internal/database"
	"go-auth-gateway/internal/handler"
	"go-auth-gateway/internal/middleware"
	"go-auth-gateway/internal/ratelimit"
	"go-auth-gateway/internal/repository"
	"go-auth-gateway/internal/router"
	"go-auth-gateway/internal/service"
	"go-auth-gateway/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	clk := clock.System()

	userRepo := repository.NewUserRepository(db.Pool, cfg.LockoutMaxAttempts, cfg.LockoutDuration, cfg.BcryptCost, clk)
	auditRepo := repository.NewAuditRepository(db.Pool)
	recorder := audit.NewRecorder(auditRepo, cfg.AuditBufferSize, clk)
	slog.Info("database ready")

	tokens, err := token.NewEngine(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, clk)
	if err != nil {
		recorder.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize token engine: %w", err)
	}

	authService := service.NewAuthService(userRepo, tokens, recorder, clk)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService)
	healthHandler := handler.NewHealthHandler(db)
	docsHandler := handler.NewDocsHandler(cfg.OpenAPIPath)

	limiter := ratelimit.NewLimiter(clk, time.Minute)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, recorder, middleware.RateLimitConfig{
		GeneralWindow: cfg.RateLimitWindow,
		GeneralMax:    cfg.RateLimitMax,
		AuthWindow:    cfg.AuthRateWindow,
		AuthMax:       cfg.AuthRateMax,
	})

	appRouter := router.New(cfg, rateLimitMiddleware, authMiddleware, router.Handlers{
		Auth:   authHandler,
		Health: healthHandler,
		Docs:   docsHandler,
	})

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	go limiter.Run(backgroundCtx)
	go runAuditRetention(backgroundCtx, auditRepo, cfg.AuditRetention, clk)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			backgroundCancel,
			recorder.Close,
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}

// runAuditRetention prunes audit events past the retention horizon once a
// day.
func runAuditRetention(ctx context.Context, repo *repository.AuditRepository, retention time.Duration, clk clock.Clock) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
			pruned, err := repo.DeleteOlderThan(pruneCtx, clk.Now().Add(-retention))
			cancel()
			if err != nil {
				slog.Error("audit retention prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				slog.Info("audit events pruned", "count", pruned)
			}
		}
	}
}
