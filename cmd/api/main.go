package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arc-invoice/backend/internal/arbitration"
	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/db"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/fees"
	apphttp "github.com/arc-invoice/backend/internal/http"
	"github.com/arc-invoice/backend/internal/http/handlers"
	"github.com/arc-invoice/backend/internal/repositories"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	book, err := cfg.AddressBook()
	if err != nil {
		log.Fatal("failed to load contract address book", zap.Error(err))
	}

	// Database
	pools, err := db.OpenPools(ctx, cfg.PostgresDSN, cfg.PostgresAdminDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pools.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pools.Admin, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Chain (read-only: payers sign in their own wallets)
	rpc, err := chain.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer rpc.Close()
	if rpc.ChainID().Uint64() != cfg.ChainID {
		log.Warn("rpc chain id differs from CHAIN_ID",
			zap.Uint64("configured", cfg.ChainID),
			zap.String("rpc", rpc.ChainID().String()),
		)
	}
	driverDeps := escrow.Deps{
		Book:    book,
		Network: cfg.ChainID,
		Reader:  chain.NewReader(rpc, log),
		Fees:    fees.NewSchedule(cfg.PayerFeeBPS),
		Log:     log,
	}
	drivers := func(version int) (escrow.Driver, error) { return escrow.ForVersion(version, driverDeps) }

	// Repositories
	invoiceRepo := repositories.NewInvoiceRepo(pools.App)
	termsRepo := repositories.NewTermsRepo(pools.App)
	milestoneRepo := repositories.NewMilestoneRepo(pools.App)
	disputeRepo := repositories.NewDisputeRepo(pools.App)
	auditRepo := repositories.NewAuditRepo(pools.Admin)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	cache := services.NewRedisCache(rdb)

	// Services
	invoiceService := services.NewInvoiceService(invoiceRepo, termsRepo, milestoneRepo, auditRepo, publisher, log)
	signatureService := services.NewSignatureService(invoiceRepo, termsRepo, auditRepo, publisher, log)
	proofService := services.NewProofService(invoiceRepo, termsRepo, auditRepo, publisher, log)
	milestoneService := services.NewMilestoneService(invoiceRepo, milestoneRepo, auditRepo, publisher, log)
	arbitrationClient := arbitration.NewClient(cfg.ArbitrationAPIURL, cfg.ArbitrationRPS, log)
	disputeService := services.NewDisputeService(invoiceRepo, termsRepo, disputeRepo, arbitrationClient, auditRepo, publisher, log)
	escrowService := services.NewEscrowService(invoiceRepo, drivers, rpc.Eth(), cache, book, cfg.ChainID,
		cfg.EscrowPollInterval, auditRepo, publisher, log)
	authService := services.NewAuthService(cache, cfg.JWTSecret, cfg.JWTExpiration, cfg.LoginNonceTTL, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	h := apphttp.Handlers{
		Auth:      handlers.NewAuthHandler(authService, log),
		Invoice:   handlers.NewInvoiceHandler(invoiceService, log),
		Signature: handlers.NewSignatureHandler(signatureService, log),
		Proof:     handlers.NewProofHandler(proofService, log),
		Milestone: handlers.NewMilestoneHandler(milestoneService, log),
		Dispute:   handlers.NewDisputeHandler(disputeService, log),
		Escrow:    handlers.NewEscrowHandler(escrowService, log),
		WSHub:     wsHub,
	}

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(handlers.StatusFor(err)).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.Uint64("chain_id", cfg.ChainID))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
