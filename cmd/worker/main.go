package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arc-invoice/backend/internal/arbitration"
	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/db"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/fees"
	"github.com/arc-invoice/backend/internal/repositories"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

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

	// The worker acts as the system, outside any wallet's row access.
	pools, err := db.OpenPools(ctx, cfg.PostgresAdminDSN, "", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pools.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	rpc, err := chain.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		log.Fatal("failed to connect to rpc", zap.Error(err))
	}
	defer rpc.Close()

	driverDeps := escrow.Deps{
		Book:    book,
		Network: cfg.ChainID,
		Reader:  chain.NewReader(rpc, log),
		Fees:    fees.NewSchedule(cfg.PayerFeeBPS),
		Log:     log,
	}
	drivers := func(version int) (escrow.Driver, error) { return escrow.ForVersion(version, driverDeps) }

	// Repos
	invoiceRepo := repositories.NewInvoiceRepo(pools.Admin)
	termsRepo := repositories.NewTermsRepo(pools.Admin)
	disputeRepo := repositories.NewDisputeRepo(pools.Admin)
	auditRepo := repositories.NewAuditRepo(pools.Admin)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	arbitrationClient := arbitration.NewClient(cfg.ArbitrationAPIURL, cfg.ArbitrationRPS, log)
	disputeService := services.NewDisputeService(invoiceRepo, termsRepo, disputeRepo, arbitrationClient, auditRepo, publisher, log)
	escrowService := services.NewEscrowService(invoiceRepo, drivers, rpc.Eth(), services.NewRedisCache(rdb), book, cfg.ChainID,
		cfg.EscrowPollInterval, auditRepo, publisher, log)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	schedule(ctx, c, cfg.WorkerDisputeSpec, "dispute_rulings", disputeService.SyncRulings, log)
	schedule(ctx, c, cfg.WorkerAutoReleaseSpec, "auto_release_scan", escrowService.ScanAutoRelease, log)
	c.Start()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	go func() {
		if err := app.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("worker http server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.String("dispute_spec", cfg.WorkerDisputeSpec),
		zap.String("autorelease_spec", cfg.WorkerAutoReleaseSpec),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	<-c.Stop().Done()
	_ = app.Shutdown()
}

// schedule registers job under spec. A bad spec is fatal.
func schedule(ctx context.Context, c *cron.Cron, spec, name string, job func(context.Context) (int, error), log *zap.Logger) {
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()

		started := time.Now()
		n, err := job(jobCtx)
		if err != nil {
			log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("job done", zap.String("job", name), zap.Int("affected", n), zap.Duration("took", time.Since(started)))
		}
	})
	if err != nil {
		log.Fatal("invalid job schedule", zap.String("job", name), zap.String("spec", spec), zap.Error(err))
	}
}
