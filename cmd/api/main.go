package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/georgemunganga/shopledger/internal/modules/auth"
	"github.com/georgemunganga/shopledger/internal/modules/catalog"
	"github.com/georgemunganga/shopledger/internal/modules/ledger"
	"github.com/georgemunganga/shopledger/internal/modules/receipt"
	"github.com/georgemunganga/shopledger/internal/modules/sales"
	"github.com/georgemunganga/shopledger/internal/modules/stock"
	"github.com/georgemunganga/shopledger/internal/platform/config"
	"github.com/georgemunganga/shopledger/internal/platform/database"
	"github.com/georgemunganga/shopledger/internal/platform/logging"
	"github.com/georgemunganga/shopledger/internal/platform/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("shopledger: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ── Observability ───────────────────────────────────────
	otelCore, shutdownLogs, err := observability.SetupLogs(ctx, cfg)
	if err != nil {
		return err
	}
	var cores []zapcore.Core
	if otelCore != nil {
		cores = append(cores, otelCore)
	}
	logger, err := logging.New(cfg, cores...)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
		if err := shutdownLogs(sctx); err != nil {
			logger.Warn("log export shutdown", zap.Error(err))
		}
	}()

	// ── Storage ─────────────────────────────────────────────
	var (
		catalogRepo catalog.Repository
		ledgerRepo  ledger.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("connected to postgres, migrations applied")
		catalogRepo = catalog.NewPostgresRepository(db)
		ledgerRepo = ledger.NewPostgresRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		catalogRepo = catalog.NewMemoryRepository()
		ledgerRepo = ledger.NewMemoryRepository()
	}

	// ── Modules ─────────────────────────────────────────────
	catalogService := catalog.NewService(catalogRepo, ledgerRepo, logger)
	authService := auth.NewService(catalogRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	receiptService := receipt.NewService(ledgerRepo, catalogRepo, cfg.Oversell, logger)
	salesService := sales.NewService(ledgerRepo, catalogRepo, sales.Policies{
		Oversell:    cfg.Oversell,
		ForeignShop: cfg.ForeignShop,
	}, logger)
	stockService := stock.NewService(ledgerRepo, catalogRepo, logger)

	if cfg.BootstrapOwnerUsername != "" {
		created, err := catalogService.BootstrapOwner(ctx, cfg.BootstrapOwnerUsername, cfg.BootstrapOwnerPassword)
		if err != nil {
			return fmt.Errorf("bootstrap owner: %w", err)
		}
		if created {
			logger.Info("owner account created", zap.String("username", cfg.BootstrapOwnerUsername))
		}
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	auth.NewHandler(authService, logger).RegisterRoutes(router)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authService, logger))
		catalog.NewHandler(catalogService, logger).RegisterRoutes(r)
		receipt.NewHandler(receiptService, logger).RegisterRoutes(r)
		sales.NewHandler(salesService, logger).RegisterRoutes(r)
		stock.NewHandler(stockService, logger).RegisterRoutes(r)
	})

	// ── Serve ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("oversell_policy", string(cfg.Oversell)),
			zap.String("foreign_shop_policy", string(cfg.ForeignShop)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
