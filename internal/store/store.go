package store

import (
	"context"
	"time"

	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// AssetFilter narrows ListAssets queries
type AssetFilter struct {
	// OwnerAddress filters by current owner (lowercased)
	OwnerAddress string
	// TokenNumber filters by token id
	TokenNumber string
	// ContractAddress filters by asset contract (lowercased)
	ContractAddress string
	// Limit caps the page size (0 = default)
	Limit int
	// Offset skips rows for pagination
	Offset int
}

// MetadataUpdate carries the metadata-derived fields written onto an asset
type MetadataUpdate struct {
	Name         string
	Description  string
	ImageURL     string
	MetadataHash string
	MetadataRaw  []byte
	RoyaltyBps   int
}

// Store defines the interface for cache database operations.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	// CreateAssetIfAbsent inserts an asset keyed by (contract, token number);
	// duplicate delivery is a no-op. Returns whether a row was created.
	CreateAssetIfAbsent(ctx context.Context, asset *schema.Asset) (bool, error)
	// GetAsset retrieves an asset by its (contract, token number) key,
	// preloading its listings
	GetAsset(ctx context.Context, contractAddress, tokenNumber string) (*schema.Asset, error)
	// ListAssets retrieves assets matching the filter, preloading listings
	ListAssets(ctx context.Context, filter AssetFilter) ([]*schema.Asset, error)
	// ListAssetsAfter pages through all assets by ascending id, for reconciliation
	ListAssetsAfter(ctx context.Context, afterID uint64, limit int) ([]*schema.Asset, error)
	// UpdateAssetOwner sets the owner and last-transfer time
	UpdateAssetOwner(ctx context.Context, assetID uint64, owner string, at time.Time) error
	// SetAssetPrice sets or clears the denormalized price mirror
	SetAssetPrice(ctx context.Context, assetID uint64, price *string) error
	// UpdateAssetMetadata overwrites the metadata-derived asset fields
	UpdateAssetMetadata(ctx context.Context, assetID uint64, update MetadataUpdate) error

	// GetListingByID retrieves a listing by internal id
	GetListingByID(ctx context.Context, id uint64) (*schema.Listing, error)
	// GetListingByLedgerID retrieves a confirmed listing by ledger-assigned id
	GetListingByLedgerID(ctx context.Context, ledgerID int64) (*schema.Listing, error)
	// GetActiveListing retrieves the single active listing for an asset
	GetActiveListing(ctx context.Context, assetID uint64) (*schema.Listing, error)
	// DeactivateListingsForAsset flips every active listing for the asset
	// (confirmed or provisional) to inactive. Returns the number of rows touched.
	DeactivateListingsForAsset(ctx context.Context, assetID uint64) (int64, error)
	// CreateListing inserts a new listing row
	CreateListing(ctx context.Context, listing *schema.Listing) error
	// UpsertConfirmedListing inserts a confirmed listing or, on ledger id
	// conflict, refreshes seller/price/block. A listing already cancelled or
	// sold is never reactivated.
	UpsertConfirmedListing(ctx context.Context, listing *schema.Listing) error
	// UpdateListingPrice sets the price on a confirmed listing and returns
	// the updated row
	UpdateListingPrice(ctx context.Context, ledgerID int64, price string) (*schema.Listing, error)
	// MarkListingCancelled deactivates the listing and stamps the
	// cancellation time; idempotent. Returns the updated row.
	MarkListingCancelled(ctx context.Context, ledgerID int64, at time.Time) (*schema.Listing, error)
	// MarkListingSold deactivates the listing and stamps the sale time;
	// idempotent. Returns the updated row.
	MarkListingSold(ctx context.Context, ledgerID int64, at time.Time) (*schema.Listing, error)
	// DeactivateListing flips a single listing by internal id, for manual
	// cancellation requests from the storefront
	DeactivateListing(ctx context.Context, id uint64, at time.Time) error

	// CreateSaleIfAbsent appends a sale row; duplicate delivery of the same
	// (ledger listing id, tx hash) pair is a no-op. Returns whether a row
	// was created.
	CreateSaleIfAbsent(ctx context.Context, sale *schema.Sale) (bool, error)
	// ListSalesByAsset retrieves the sale history of an asset, newest first
	ListSalesByAsset(ctx context.Context, assetID uint64) ([]*schema.Sale, error)

	// GetBlockCursor retrieves the last processed block number for a chain
	GetBlockCursor(ctx context.Context, chain string) (uint64, error)
	// SetBlockCursor stores the last processed block number for a chain
	SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error
}
