package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/domain"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/messaging"
	"github.com/arc-market/arc-indexer/internal/projector"
	"github.com/arc-market/arc-indexer/internal/store"
)

// Config holds the configuration for the live ingestion loop
type Config struct {
	Chain domain.Chain
	// CursorSaveFreq saves the cursor every N blocks
	CursorSaveFreq uint64
	// CursorSaveDelay saves the cursor at least every N seconds
	CursorSaveDelay time.Duration
	// ReconnectMaxWait caps the backoff between subscription attempts
	ReconnectMaxWait time.Duration
	// LogBuffer is the subscription channel depth
	LogBuffer int
}

func (c Config) withDefaults() Config {
	if c.CursorSaveFreq == 0 {
		c.CursorSaveFreq = 10
	}
	if c.CursorSaveDelay == 0 {
		c.CursorSaveDelay = 30 * time.Second
	}
	if c.ReconnectMaxWait == 0 {
		c.ReconnectMaxWait = time.Minute
	}
	if c.LogBuffer == 0 {
		c.LogBuffer = 256
	}
	return c
}

// Backfiller closes event gaps after a (re)connect
type Backfiller interface {
	FullBackfill(ctx context.Context) error
}

// Loop is the live ingestion loop: it holds a log subscription open,
// projects each event onto the cache, and republishes it. A lost
// subscription is reconnected with exponential backoff, and every time
// streaming resumes a backfill runs concurrently to close the gap.
type Loop struct {
	config     Config
	ledger     ledger.Client
	projector  *projector.Projector
	publisher  messaging.Publisher
	store      store.Store
	backfiller Backfiller
	clock      adapter.Clock

	lastSavedBlock uint64
	lastSaveTime   time.Time
}

// NewLoop creates a live ingestion loop. publisher and backfiller may be nil
// to disable republishing or gap recovery.
func NewLoop(
	cfg Config,
	l ledger.Client,
	p *projector.Projector,
	pub messaging.Publisher,
	s store.Store,
	b Backfiller,
	clock adapter.Clock,
) *Loop {
	return &Loop{
		config:     cfg.withDefaults(),
		ledger:     l,
		projector:  p,
		publisher:  pub,
		store:      s,
		backfiller: b,
		clock:      clock,
	}
}

// Run blocks until the context is cancelled, reconnecting as needed
func (l *Loop) Run(ctx context.Context) error {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = time.Second
	reconnect.MaxInterval = l.config.ReconnectMaxWait
	reconnect.MaxElapsedTime = 0 // retry until cancelled

	l.lastSaveTime = l.clock.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logs := make(chan types.Log, l.config.LogBuffer)
		sub, err := l.ledger.SubscribeMarketLogs(ctx, logs)
		if err != nil {
			wait := reconnect.NextBackOff()
			logger.WarnCtx(ctx, "subscription failed, reconnecting",
				zap.Duration("wait", wait),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(wait):
			}
			continue
		}

		reconnect.Reset()
		logger.InfoCtx(ctx, "streaming ledger logs", zap.String("chain", string(l.config.Chain)))

		// Whatever happened while disconnected is replayed concurrently;
		// double delivery is harmless because every projection is idempotent
		if l.backfiller != nil {
			go func() {
				if err := l.backfiller.FullBackfill(ctx); err != nil && ctx.Err() == nil {
					logger.ErrorCtx(ctx, errors.New("backfill failed"), zap.Error(err))
				}
			}()
		}

		if err := l.stream(ctx, sub.Err(), logs); err != nil {
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WarnCtx(ctx, "subscription lost, reconnecting", zap.Error(err))
			continue
		}

		sub.Unsubscribe()
		return ctx.Err()
	}
}

// stream consumes logs until the subscription errors or the context ends.
// A nil return means the context was cancelled; an error means reconnect.
func (l *Loop) stream(ctx context.Context, subErr <-chan error, logs <-chan types.Log) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-subErr:
			if err == nil {
				err = domain.ErrConnectionLost
			}
			return err
		case raw := <-logs:
			l.handleLog(ctx, raw)
		}
	}
}

// handleLog projects one raw log. Failures are logged and skipped; the
// reconciler repairs whatever a skipped event left behind.
func (l *Loop) handleLog(ctx context.Context, raw types.Log) {
	event, err := ledger.Normalize(raw)
	if err != nil {
		logger.WarnCtx(ctx, "skipping malformed log",
			zap.String("tx_hash", raw.TxHash.Hex()),
			zap.Uint("log_index", raw.Index),
			zap.Error(err))
		return
	}
	if event == nil {
		return
	}

	if err := l.projector.Apply(ctx, event); err != nil {
		logger.ErrorCtx(ctx, errors.New("failed to apply event"),
			zap.String("kind", string(event.Kind())),
			zap.String("tx_hash", event.Meta().TxHash),
			zap.Uint64("block", event.Meta().BlockNumber),
			zap.Error(err))
		return
	}

	logger.InfoCtx(ctx, "event applied",
		zap.String("kind", string(event.Kind())),
		zap.Uint64("block", event.Meta().BlockNumber),
		zap.String("tx_hash", event.Meta().TxHash))

	if l.publisher != nil {
		if err := l.publisher.PublishEvent(ctx, event); err != nil {
			logger.WarnCtx(ctx, "failed to publish event",
				zap.String("kind", string(event.Kind())),
				zap.Error(err))
		}
	}

	l.maybeSaveCursor(ctx, event.Meta().BlockNumber)
}

// maybeSaveCursor persists the block cursor every N blocks or N seconds,
// whichever comes first
func (l *Loop) maybeSaveCursor(ctx context.Context, blockNumber uint64) {
	shouldSave := blockNumber >= l.lastSavedBlock+l.config.CursorSaveFreq ||
		l.clock.Since(l.lastSaveTime) >= l.config.CursorSaveDelay

	if !shouldSave {
		return
	}

	if err := l.store.SetBlockCursor(ctx, string(l.config.Chain), blockNumber); err != nil {
		logger.ErrorCtx(ctx, errors.New("failed to save block cursor"),
			zap.Uint64("block", blockNumber),
			zap.Error(err))
		return
	}
	l.lastSavedBlock = blockNumber
	l.lastSaveTime = l.clock.Now()
}
