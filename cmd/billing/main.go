package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/app"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/catalog"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/customers"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/invoicing"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/ledger"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/observability"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/payments"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/cache"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/platform/db"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/internal/shared"
	"github.com/subhankar-das-phantom/Billing-Software-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	validate := validator.New()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	balanceCache := customers.NewBalanceCache(redisClient, cfg.BalanceCacheTTL)

	customerRepo := customers.NewRepository(dbpool)
	customerService := customers.NewService(customerRepo, balanceCache)
	customerHandler := customers.NewHandler(logger, customerService, validate)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, validate)

	seller := invoicing.SellerSnapshot{
		Name:    cfg.SellerName,
		Address: cfg.SellerAddress,
		GSTIN:   cfg.SellerGSTIN,
		Phone:   cfg.SellerPhone,
	}
	invoiceRepo := invoicing.NewRepository(dbpool)
	invoiceService := invoicing.NewService(logger, invoiceRepo, auditLogger, balanceCache, seller, metrics.BalanceClamps)
	invoiceHandler := invoicing.NewHandler(logger, invoiceService, validate, metrics.InvoicesCreated)

	paymentRepo := payments.NewRepository(dbpool)
	paymentService := payments.NewService(logger, paymentRepo, auditLogger, balanceCache, metrics.BalanceClamps)
	paymentHandler := payments.NewHandler(logger, paymentService, validate, idempotencyStore, metrics.PaymentsRecorded)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(logger, ledgerRepo, auditLogger, balanceCache, metrics.BalanceClamps)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, validate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewJobsHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		ProductHandler:  catalogHandler,
		CustomerHandler: customerHandler,
		InvoiceHandler:  invoiceHandler,
		PaymentHandler:  paymentHandler,
		LedgerHandler:   ledgerHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
