package main

import (
	"context"
	"errors"
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
	"github.com/arc-market/arc-indexer/internal/ingest"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/metadata"
	"github.com/arc-market/arc-indexer/internal/projector"
	"github.com/arc-market/arc-indexer/internal/providers/jetstream"
	"github.com/arc-market/arc-indexer/internal/reconciler"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/uri"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "indexer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Market Indexer", zap.String("chain", string(cfg.Ledger.ChainID)))

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
	natsJS := adapter.NewNatsJetStream()
	httpClient := adapter.NewHTTPClient(30 * time.Second)

	// Initialize ledger client
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ledger.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial ledger RPC", zap.Error(err), zap.String("websocket_url", cfg.Ledger.WebSocketURL))
	}
	defer adapterEthClient.Close()
	ledgerClient, err := ledger.NewClient(adapterEthClient, cfg.Ledger.NFTContract, cfg.Ledger.MarketplaceContract)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ledger client", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to ledger WebSocket")

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

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Create the live ingestion loop
	loop := ingest.NewLoop(ingest.Config{
		Chain:            cfg.Ledger.ChainID,
		CursorSaveFreq:   cfg.Ingest.CursorSaveFreq,
		CursorSaveDelay:  cfg.Ingest.CursorSaveDelay,
		ReconnectMaxWait: cfg.Ingest.ReconnectMaxWait,
		LogBuffer:        cfg.Ingest.LogBuffer,
	}, ledgerClient, proj, natsPublisher, dataStore, rec, clockAdapter)

	// Channel for loop errors
	errCh := make(chan error, 1)

	// Start the ingestion loop
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "ingest"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Market Indexer stopped")
}
