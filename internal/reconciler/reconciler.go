package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arc-market/arc-indexer/internal/domain"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/projector"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// Config holds the reconciliation settings
type Config struct {
	// Chain is the chain whose cursor the replay reads
	Chain domain.Chain
	// PageSize is how many assets one sweep page loads
	PageSize int
	// Workers bounds concurrent per-token repairs
	Workers int
	// ReadsPerSecond throttles ledger read-backs across all workers
	ReadsPerSecond float64
	// ReplayChunk is the block span of one historical log query
	ReplayChunk uint64
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ReadsPerSecond <= 0 {
		c.ReadsPerSecond = 10
	}
	if c.ReplayChunk == 0 {
		c.ReplayChunk = 5000
	}
	return c
}

// Reconciler brings the cache back in line with the ledger after missed
// events: a full backfill replays historical logs through the projector,
// then sweeps every cached asset against ledger state. The sweep only reads
// and repairs; it never deletes sale history or reactivates closed listings.
type Reconciler struct {
	config    Config
	store     store.Store
	ledger    ledger.Client
	projector *projector.Projector
	limiter   *rate.Limiter
}

// NewReconciler creates a reconciler
func NewReconciler(cfg Config, s store.Store, l ledger.Client, p *projector.Projector) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		config:    cfg,
		store:     s,
		ledger:    l,
		projector: p,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ReadsPerSecond), 1),
	}
}

// FullBackfill replays all marketplace logs from the persisted block cursor
// to the current head, then sweeps every cached asset. Safe to run while
// live ingestion is going: every write it triggers is idempotent.
func (r *Reconciler) FullBackfill(ctx context.Context) error {
	head, err := r.ledger.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to read head block: %w", err)
	}

	cursor, err := r.store.GetBlockCursor(ctx, string(r.config.Chain))
	if err != nil {
		return err
	}

	var fromBlock uint64
	if cursor > 0 {
		fromBlock = cursor + 1
	}

	if fromBlock <= head {
		if err := r.ReplayBlocks(ctx, fromBlock, head); err != nil {
			return err
		}
		if err := r.store.SetBlockCursor(ctx, string(r.config.Chain), head); err != nil {
			return err
		}
	}

	return r.SweepAssets(ctx)
}

// ReplayBlocks fetches historical logs in chunks and feeds them through the
// projector. Individual event failures are logged and skipped; the asset
// sweep catches whatever they left behind.
func (r *Reconciler) ReplayBlocks(ctx context.Context, fromBlock, toBlock uint64) error {
	logger.InfoCtx(ctx, "replaying ledger logs",
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock))

	for start := fromBlock; start <= toBlock; start += r.config.ReplayChunk {
		end := start + r.config.ReplayChunk - 1
		if end > toBlock {
			end = toBlock
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		logs, err := r.ledger.FilterMarketLogs(ctx, start, end)
		if err != nil {
			return fmt.Errorf("failed to fetch logs %d-%d: %w", start, end, err)
		}

		for _, raw := range logs {
			event, err := ledger.Normalize(raw)
			if err != nil {
				logger.WarnCtx(ctx, "skipping malformed log",
					zap.String("tx_hash", raw.TxHash.Hex()),
					zap.Uint("log_index", raw.Index),
					zap.Error(err))
				continue
			}
			if event == nil {
				continue
			}
			if err := r.projector.Apply(ctx, event); err != nil {
				if ctx.Err() != nil {
					return err
				}
				logger.ErrorCtx(ctx, errors.New("failed to replay event"),
					zap.String("kind", string(event.Kind())),
					zap.String("tx_hash", event.Meta().TxHash),
					zap.Error(err))
			}
		}
	}

	return nil
}

// SweepAssets pages through every cached asset and repairs each against
// ledger state with a bounded worker pool
func (r *Reconciler) SweepAssets(ctx context.Context) error {
	pool := pond.NewPool(r.config.Workers, pond.WithContext(ctx))

	var afterID uint64
	var swept int
	for {
		assets, err := r.store.ListAssetsAfter(ctx, afterID, r.config.PageSize)
		if err != nil {
			pool.StopAndWait()
			return err
		}
		if len(assets) == 0 {
			break
		}
		afterID = assets[len(assets)-1].ID
		swept += len(assets)

		for _, asset := range assets {
			asset := asset
			pool.Submit(func() {
				if err := r.repairAsset(ctx, asset); err != nil {
					logger.ErrorCtx(ctx, errors.New("failed to repair asset"),
						zap.String("token_number", asset.TokenNumber),
						zap.Error(err))
				}
			})
		}
	}

	pool.StopAndWait()
	logger.InfoCtx(ctx, "asset sweep finished", zap.Int("assets", swept))
	return ctx.Err()
}

// RepairToken reconciles a single token against ledger state, on demand
func (r *Reconciler) RepairToken(ctx context.Context, tokenNumber string) error {
	asset, err := r.projector.EnsureAsset(ctx, tokenNumber)
	if err != nil {
		return err
	}
	if asset == nil {
		return domain.ErrAssetNotFound
	}
	return r.repairAsset(ctx, asset)
}

func (r *Reconciler) repairAsset(ctx context.Context, asset *schema.Asset) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := r.projector.SyncOwnerFromLedger(ctx, asset); err != nil {
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := r.repairListing(ctx, asset); err != nil {
		return err
	}

	// An empty hash means metadata was unreachable when the asset was
	// indexed; retry now that time has passed
	if asset.MetadataHash == "" && asset.MetadataURI != "" {
		if err := r.projector.RefreshMetadata(ctx, asset); err != nil {
			return err
		}
	}

	return nil
}

// repairListing aligns the cached listing state of one asset with the
// marketplace contract. Sale rows are never touched and closed listings are
// never reopened; the only repairs are deactivation, price alignment, and
// the asset price mirror.
func (r *Reconciler) repairListing(ctx context.Context, asset *schema.Asset) error {
	truth, err := r.ledger.GetListing(ctx, asset.TokenNumber)
	if err != nil {
		return err
	}

	active, err := r.store.GetActiveListing(ctx, asset.ID)
	if err != nil {
		return err
	}

	if !truth.Active {
		if active != nil {
			logger.InfoCtx(ctx, "deactivating drifted listing",
				zap.String("token_number", asset.TokenNumber),
				zap.Uint64("listing_id", active.ID))
			if _, err := r.store.DeactivateListingsForAsset(ctx, asset.ID); err != nil {
				return err
			}
		}
		if asset.Price != nil {
			return r.store.SetAssetPrice(ctx, asset.ID, nil)
		}
		return nil
	}

	price := domain.FormatUnits(truth.PriceWei)

	if active != nil && active.LedgerID != nil {
		if active.Price != price {
			logger.InfoCtx(ctx, "repairing drifted listing price",
				zap.String("token_number", asset.TokenNumber),
				zap.String("cached", active.Price),
				zap.String("ledger", price))
			if _, err := r.store.UpdateListingPrice(ctx, *active.LedgerID, price); err != nil {
				return err
			}
		}
		if asset.Price == nil || *asset.Price != price {
			return r.store.SetAssetPrice(ctx, asset.ID, &price)
		}
		return nil
	}

	// The ledger holds an active listing the cache never saw a creation
	// event for. The ledger-assigned id only travels in events, so the row
	// cannot be conjured here; log replay is the repair path.
	logger.WarnCtx(ctx, "active ledger listing missing from cache",
		zap.String("token_number", asset.TokenNumber),
		zap.String("seller", truth.Seller),
		zap.String("price", price))
	return nil
}
