package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledger/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	accountinghttp "github.com/odyssey-erp/odyssey-ledger/internal/accounting/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(cli.Runtime{
		Serve: func(ctx context.Context) error {
			return serve(ctx, cfg, logger)
		},
		OpenJobs: func() (cli.JobOps, error) {
			return cli.NewJobsCLI(cfg.RedisAddr)
		},
		Seed: func(ctx context.Context, opts cli.SeedOptions) (accounts.SeedResult, error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return accounts.SeedResult{}, err
			}
			defer pool.Close()
			svc := accounts.NewService(accounts.NewRepository(pool), shared.NewAuditLogger(pool), nil, logger)
			return cli.RunSeed(ctx, svc, opts)
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("ledger", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var reportCache *reports.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports will not be cached", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo, auditLogger, reportCache, logger)

	periodManager := periods.NewManager(periods.NewRepository(pool), auditLogger, reportCache, logger)
	periodManager.WithObserver(metrics)

	journalService := journals.NewService(journals.NewRepository(pool), auditLogger, reportCache, logger)
	journalService.WithObserver(metrics)

	reportService := reports.NewService(accountRepo, reports.NewRepository(pool), reportCache, logger)

	ledgerHandler := accountinghttp.NewHandler(logger, accountinghttp.Services{
		Journals:    journalService,
		Periods:     periodManager,
		Accounts:    accountService,
		Reports:     reportService,
		Idempotency: shared.NewIdempotencyStore(pool),
	}, reports.NewFormatter(cfg.Currency))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		JobHandler:    jobs.NewHandler(inspector, logger),
		Database:      pool,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
