package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/db"
	"github.com/arc-invoice/backend/internal/events"
	"github.com/arc-invoice/backend/internal/repositories"
	"github.com/arc-invoice/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	book, err := cfg.AddressBook()
	if err != nil {
		log.Fatal("failed to load contract address book", zap.Error(err))
	}

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

	cache := services.NewRedisCache(rdb)
	escrowService := services.NewEscrowService(
		repositories.NewInvoiceRepo(pools.Admin), nil, rpc.Eth(), cache, book, cfg.ChainID,
		cfg.EscrowPollInterval, repositories.NewAuditRepo(pools.Admin), events.NewRedisPublisher(rdb, log), log,
	)

	ix, err := newIndexer(rpc.Eth(), escrowService, cache, book, cfg.ChainID, cfg.IndexerStartBlock, log)
	if err != nil {
		log.Fatal("failed to start indexer", zap.Error(err))
	}

	log.Info("escrow indexer started",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Int("factories", len(ix.watch)),
		zap.Duration("poll_interval", cfg.IndexerPollInterval),
	)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			n, err := ix.poll(ctx)
			if err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
			if n > 0 {
				log.Info("escrows bound", zap.Int("count", n))
			}
		case <-sigCh:
			log.Info("shutting down escrow indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
