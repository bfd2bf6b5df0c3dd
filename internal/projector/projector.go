package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/domain"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/metadata"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// Projector applies normalized marketplace events to the cache. Every write
// path is idempotent: replaying a block range leaves the cache exactly as a
// single delivery would have.
type Projector struct {
	store       store.Store
	ledger      ledger.Client
	metadata    metadata.Resolver
	clock       adapter.Clock
	nftContract string
}

// NewProjector creates a projector writing to the given store. nftContract
// is the lowercased address of the asset contract; marketplace events carry
// only token numbers, so the projector scopes asset lookups to it.
func NewProjector(s store.Store, l ledger.Client, m metadata.Resolver, clock adapter.Clock, nftContract string) *Projector {
	return &Projector{
		store:       s,
		ledger:      l,
		metadata:    m,
		clock:       clock,
		nftContract: domain.NormalizeAddress(nftContract),
	}
}

// Apply projects a single event onto the cache
func (p *Projector) Apply(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.Minted:
		return p.applyMinted(ctx, e)
	case domain.Transferred:
		return p.applyTransferred(ctx, e)
	case domain.ListingCreated:
		return p.applyListingCreated(ctx, e)
	case domain.ListingUpdated:
		return p.applyListingUpdated(ctx, e)
	case domain.ListingCancelled:
		return p.applyListingCancelled(ctx, e)
	case domain.Sold:
		return p.applySold(ctx, e)
	default:
		return fmt.Errorf("unsupported event kind: %s", event.Kind())
	}
}

func (p *Projector) applyMinted(ctx context.Context, e domain.Minted) error {
	asset := &schema.Asset{
		ContractAddress: p.nftContract,
		TokenNumber:     e.TokenNumber,
		OwnerAddress:    e.Owner,
		CreatorAddress:  e.Owner,
		MetadataURI:     e.MetadataURI,
		MintedAt:        p.clock.Now(),
	}
	p.fillMetadata(ctx, asset, e.MetadataURI, e.TokenNumber)

	created, err := p.store.CreateAssetIfAbsent(ctx, asset)
	if err != nil {
		return err
	}
	if !created {
		logger.DebugCtx(ctx, "mint already indexed",
			zap.String("token_number", e.TokenNumber))
	}
	return nil
}

func (p *Projector) applyTransferred(ctx context.Context, e domain.Transferred) error {
	asset, err := p.EnsureAsset(ctx, e.TokenNumber)
	if err != nil {
		return err
	}
	if asset == nil {
		logger.WarnCtx(ctx, "transfer for unknown asset skipped",
			zap.String("token_number", e.TokenNumber),
			zap.String("tx_hash", e.TxHash))
		return nil
	}

	return p.store.UpdateAssetOwner(ctx, asset.ID, e.To, p.clock.Now())
}

func (p *Projector) applyListingCreated(ctx context.Context, e domain.ListingCreated) error {
	return p.SyncListingFromLedger(ctx, e.TokenNumber, e.LedgerID, e.BlockNumber)
}

func (p *Projector) applyListingUpdated(ctx context.Context, e domain.ListingUpdated) error {
	price := domain.FormatUnits(e.NewPriceWei)

	listing, err := p.store.UpdateListingPrice(ctx, e.LedgerID, price)
	if err != nil {
		return err
	}
	if listing == nil {
		logger.WarnCtx(ctx, "price update for unknown listing skipped",
			zap.Int64("ledger_id", e.LedgerID))
		return nil
	}

	if listing.Active {
		return p.store.SetAssetPrice(ctx, listing.AssetID, &price)
	}
	return nil
}

func (p *Projector) applyListingCancelled(ctx context.Context, e domain.ListingCancelled) error {
	listing, err := p.store.MarkListingCancelled(ctx, e.LedgerID, p.clock.Now())
	if err != nil {
		return err
	}
	if listing == nil {
		logger.WarnCtx(ctx, "cancellation for unknown listing skipped",
			zap.Int64("ledger_id", e.LedgerID))
		return nil
	}

	// A stray provisional row, left active when its confirming event fell
	// into a gap, closes with the cancellation
	if _, err := p.store.DeactivateListingsForAsset(ctx, listing.AssetID); err != nil {
		return err
	}

	return p.store.SetAssetPrice(ctx, listing.AssetID, nil)
}

func (p *Projector) applySold(ctx context.Context, e domain.Sold) error {
	asset, err := p.EnsureAsset(ctx, e.TokenNumber)
	if err != nil {
		return err
	}
	if asset == nil {
		logger.WarnCtx(ctx, "sale for unknown asset skipped",
			zap.String("token_number", e.TokenNumber),
			zap.Int64("ledger_id", e.LedgerID))
		return nil
	}

	now := p.clock.Now()
	price := domain.FormatUnits(e.PriceWei)

	// The sale closes the token's market state entirely, stray provisional
	// rows included
	if _, err := p.store.DeactivateListingsForAsset(ctx, asset.ID); err != nil {
		return err
	}

	// The listing row may be missing when the sale arrives before its
	// creation event was indexed; insert it closed so the sale has a parent
	listing, err := p.store.GetListingByLedgerID(ctx, e.LedgerID)
	if err != nil {
		return err
	}
	if listing == nil {
		ledgerID := e.LedgerID
		listing = &schema.Listing{
			LedgerID:      &ledgerID,
			Source:        schema.ListingSourceConfirmed,
			AssetID:       asset.ID,
			SellerAddress: e.Seller,
			Price:         price,
			Active:        false,
			BlockNumber:   e.BlockNumber,
		}
		if err := p.store.UpsertConfirmedListing(ctx, listing); err != nil {
			return err
		}
	}

	if _, err := p.store.MarkListingSold(ctx, e.LedgerID, now); err != nil {
		return err
	}

	created, err := p.store.CreateSaleIfAbsent(ctx, &schema.Sale{
		AssetID:         asset.ID,
		ListingID:       listing.ID,
		LedgerListingID: e.LedgerID,
		BuyerAddress:    e.Buyer,
		SellerAddress:   e.Seller,
		Price:           price,
		TxHash:          e.TxHash,
		Timestamp:       now,
	})
	if err != nil {
		return err
	}
	if !created {
		// Replay of an already indexed sale; ownership and price are settled
		return nil
	}

	if err := p.store.UpdateAssetOwner(ctx, asset.ID, e.Buyer, now); err != nil {
		return err
	}
	return p.store.SetAssetPrice(ctx, asset.ID, nil)
}

// SyncListingFromLedger reconciles the cached listing state of a token with
// what the marketplace contract reports right now. It is the single write
// path shared by live ListingCreated handling and drift repair: ledger truth
// wins over whatever the cache holds, including provisional rows.
func (p *Projector) SyncListingFromLedger(ctx context.Context, tokenNumber string, ledgerID int64, blockNumber uint64) error {
	asset, err := p.EnsureAsset(ctx, tokenNumber)
	if err != nil {
		return err
	}
	if asset == nil {
		logger.WarnCtx(ctx, "listing for unknown asset skipped",
			zap.String("token_number", tokenNumber),
			zap.Int64("ledger_id", ledgerID))
		return nil
	}

	truth, err := p.ledger.GetListing(ctx, tokenNumber)
	if err != nil {
		return err
	}

	// Confirmed state supersedes every open row, provisional ones included
	if _, err := p.store.DeactivateListingsForAsset(ctx, asset.ID); err != nil {
		return err
	}

	price := domain.FormatUnits(truth.PriceWei)
	listing := &schema.Listing{
		LedgerID:      &ledgerID,
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: truth.Seller,
		Price:         price,
		Active:        truth.Active,
		BlockNumber:   blockNumber,
	}
	if err := p.store.UpsertConfirmedListing(ctx, listing); err != nil {
		return err
	}

	if truth.Active {
		return p.store.SetAssetPrice(ctx, asset.ID, &price)
	}
	return p.store.SetAssetPrice(ctx, asset.ID, nil)
}

// SyncOwnerFromLedger refreshes the cached owner of an asset from the NFT
// contract, used by drift repair
func (p *Projector) SyncOwnerFromLedger(ctx context.Context, asset *schema.Asset) error {
	owner, err := p.ledger.OwnerOf(ctx, asset.TokenNumber)
	if err != nil {
		return err
	}
	if owner == asset.OwnerAddress {
		return nil
	}

	logger.InfoCtx(ctx, "repairing drifted owner",
		zap.String("token_number", asset.TokenNumber),
		zap.String("cached", asset.OwnerAddress),
		zap.String("ledger", owner))
	return p.store.UpdateAssetOwner(ctx, asset.ID, owner, p.clock.Now())
}

// EnsureAsset returns the cached asset for a token, fetching it from the
// ledger when the mint event was never indexed. A (nil, nil) return means
// the ledger rejected the lookup, i.e. the token does not exist.
func (p *Projector) EnsureAsset(ctx context.Context, tokenNumber string) (*schema.Asset, error) {
	asset, err := p.store.GetAsset(ctx, p.nftContract, tokenNumber)
	if err != nil {
		return nil, err
	}
	if asset != nil {
		return asset, nil
	}

	owner, err := p.ledger.OwnerOf(ctx, tokenNumber)
	if err != nil {
		if domain.IsTransientRPCError(err) {
			return nil, err
		}
		// Rejected call: the token genuinely does not exist on the ledger
		return nil, nil
	}

	metadataURI, err := p.ledger.TokenURI(ctx, tokenNumber)
	if err != nil {
		if domain.IsTransientRPCError(err) {
			return nil, err
		}
		metadataURI = ""
	}

	logger.InfoCtx(ctx, "backfilling asset missing from cache",
		zap.String("token_number", tokenNumber),
		zap.String("owner", owner))

	asset = &schema.Asset{
		ContractAddress: p.nftContract,
		TokenNumber:     tokenNumber,
		OwnerAddress:    owner,
		CreatorAddress:  owner,
		MetadataURI:     metadataURI,
		MintedAt:        p.clock.Now(),
	}
	p.fillMetadata(ctx, asset, metadataURI, tokenNumber)

	if _, err := p.store.CreateAssetIfAbsent(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// RefreshMetadata re-resolves the metadata document of an asset and persists
// the derived fields. Used by the reconciler when the stored hash is empty.
func (p *Projector) RefreshMetadata(ctx context.Context, asset *schema.Asset) error {
	doc := p.metadata.Resolve(ctx, asset.MetadataURI)
	if doc == nil {
		return nil
	}

	update := metadataUpdate(ctx, doc, asset.TokenNumber)
	return p.store.UpdateAssetMetadata(ctx, asset.ID, update)
}

// fillMetadata resolves the metadata document and writes the derived fields
// onto the asset row about to be inserted. Resolution failure leaves the
// defaults in place and an empty hash so a later pass retries.
func (p *Projector) fillMetadata(ctx context.Context, asset *schema.Asset, metadataURI, tokenNumber string) {
	asset.Name = fmt.Sprintf("NFT #%s", tokenNumber)

	if metadataURI == "" {
		return
	}
	doc := p.metadata.Resolve(ctx, metadataURI)
	if doc == nil {
		return
	}

	update := metadataUpdate(ctx, doc, tokenNumber)
	asset.Name = update.Name
	asset.Description = update.Description
	asset.ImageURL = update.ImageURL
	asset.MetadataHash = update.MetadataHash
	asset.MetadataRaw = update.MetadataRaw
	asset.RoyaltyBps = update.RoyaltyBps
}

func metadataUpdate(ctx context.Context, doc *metadata.Document, tokenNumber string) store.MetadataUpdate {
	update := store.MetadataUpdate{
		Name:        doc.Name,
		Description: doc.Description,
		ImageURL:    doc.Image,
		RoyaltyBps:  doc.RoyaltyBps(),
	}
	if update.Name == "" {
		update.Name = fmt.Sprintf("NFT #%s", tokenNumber)
	}

	if raw, err := json.Marshal(doc.Raw); err == nil {
		update.MetadataRaw = raw
	}
	hash, err := doc.CanonicalHash()
	if err != nil {
		logger.WarnCtx(ctx, "failed to hash metadata", zap.Error(err))
	} else {
		update.MetadataHash = hash
	}

	return update
}
