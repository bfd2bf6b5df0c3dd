package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/config"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/metadata"
	"github.com/arc-market/arc-indexer/internal/projector"
	"github.com/arc-market/arc-indexer/internal/reconciler"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/uri"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	envPath     = flag.String("env", "config/", "Path to environment files")
	tokenNumber = flag.String("token", "", "Repair a single token instead of running a full backfill")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadBackfillConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context cancelled on interrupt so a long backfill can be stopped
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "backfill",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting backfill", zap.String("chain", string(cfg.Ledger.ChainID)))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Run schema migrations
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database schema", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(30 * time.Second)

	// Initialize ledger client over HTTP RPC, subscriptions are not needed here
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial ledger RPC", zap.Error(err), zap.String("rpc_url", cfg.Ledger.RPCURL))
	}
	defer adapterEthClient.Close()
	ledgerClient, err := ledger.NewClient(adapterEthClient, cfg.Ledger.NFTContract, cfg.Ledger.MarketplaceContract)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger client", zap.Error(err))
	}

	// Initialize metadata resolution
	uriResolver := uri.NewResolver(cfg.URI.IPFSGateways...)
	metadataResolver := metadata.NewResolver(httpClient, uriResolver, jsonAdapter)

	// Initialize projector and reconciler
	proj := projector.NewProjector(dataStore, ledgerClient, metadataResolver, clockAdapter, cfg.Ledger.NFTContract)
	rec := reconciler.NewReconciler(reconciler.Config{
		Chain:          cfg.Ledger.ChainID,
		PageSize:       cfg.Reconciler.PageSize,
		Workers:        cfg.Reconciler.Workers,
		ReadsPerSecond: cfg.Reconciler.ReadsPerSecond,
		ReplayChunk:    cfg.Reconciler.ReplayChunk,
	}, dataStore, ledgerClient, proj)

	// Run the requested repair
	if *tokenNumber != "" {
		logger.InfoCtx(ctx, "Repairing token", zap.String("token_number", *tokenNumber))
		err = rec.RepairToken(ctx, *tokenNumber)
	} else {
		err = rec.FullBackfill(ctx)
	}
	if err != nil {
		logger.FatalCtx(ctx, "Backfill failed", zap.Error(err))
	}

	logger.Info("Backfill completed")
}
