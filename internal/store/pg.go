package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arc-market/arc-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// Migrate creates or updates the cache tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Asset{},
		&schema.Listing{},
		&schema.Sale{},
		&schema.KeyValueStore{},
	)
}

// CreateAssetIfAbsent inserts an asset; duplicate (contract, token number) is a no-op
func (s *pgStore) CreateAssetIfAbsent(ctx context.Context, asset *schema.Asset) (bool, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_address"}, {Name: "token_number"}},
		DoNothing: true,
	}).Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(asset).Error
	if err != nil {
		return false, fmt.Errorf("failed to create asset: %w", err)
	}

	// ID stays 0 when the conflict clause swallowed the insert
	if asset.ID == 0 {
		existing, err := s.GetAsset(ctx, asset.ContractAddress, asset.TokenNumber)
		if err != nil {
			return false, err
		}
		if existing != nil {
			*asset = *existing
		}
		return false, nil
	}

	return true, nil
}

// GetAsset retrieves an asset by its (contract, token number) key
func (s *pgStore) GetAsset(ctx context.Context, contractAddress, tokenNumber string) (*schema.Asset, error) {
	var asset schema.Asset
	err := s.db.WithContext(ctx).
		Preload("Listings").
		Where("contract_address = ? AND token_number = ?", contractAddress, tokenNumber).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

// ListAssets retrieves assets matching the filter
func (s *pgStore) ListAssets(ctx context.Context, filter AssetFilter) ([]*schema.Asset, error) {
	query := s.db.WithContext(ctx).Model(&schema.Asset{}).Preload("Listings")

	if filter.OwnerAddress != "" {
		query = query.Where("owner_address = ?", filter.OwnerAddress)
	}
	if filter.TokenNumber != "" {
		query = query.Where("token_number = ?", filter.TokenNumber)
	}
	if filter.ContractAddress != "" {
		query = query.Where("contract_address = ?", filter.ContractAddress)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var assets []*schema.Asset
	err := query.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return assets, nil
}

// ListAssetsAfter pages through all assets by ascending id
func (s *pgStore) ListAssetsAfter(ctx context.Context, afterID uint64, limit int) ([]*schema.Asset, error) {
	if limit <= 0 {
		limit = 100
	}

	var assets []*schema.Asset
	err := s.db.WithContext(ctx).
		Preload("Listings").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets after id %d: %w", afterID, err)
	}

	return assets, nil
}

// UpdateAssetOwner sets the owner and last-transfer time
func (s *pgStore) UpdateAssetOwner(ctx context.Context, assetID uint64, owner string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&schema.Asset{}).
		Where("id = ?", assetID).
		Updates(map[string]interface{}{
			"owner_address":    owner,
			"last_transfer_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update asset owner: %w", err)
	}
	return nil
}

// SetAssetPrice sets or clears the denormalized price mirror
func (s *pgStore) SetAssetPrice(ctx context.Context, assetID uint64, price *string) error {
	err := s.db.WithContext(ctx).Model(&schema.Asset{}).
		Where("id = ?", assetID).
		Update("price", price).Error
	if err != nil {
		return fmt.Errorf("failed to set asset price: %w", err)
	}
	return nil
}

// UpdateAssetMetadata overwrites the metadata-derived asset fields
func (s *pgStore) UpdateAssetMetadata(ctx context.Context, assetID uint64, update MetadataUpdate) error {
	err := s.db.WithContext(ctx).Model(&schema.Asset{}).
		Where("id = ?", assetID).
		Updates(map[string]interface{}{
			"name":          update.Name,
			"description":   update.Description,
			"image_url":     update.ImageURL,
			"metadata_hash": update.MetadataHash,
			"metadata_raw":  update.MetadataRaw,
			"royalty_bps":   update.RoyaltyBps,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update asset metadata: %w", err)
	}
	return nil
}

// GetListingByID retrieves a listing by internal id
func (s *pgStore) GetListingByID(ctx context.Context, id uint64) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// GetListingByLedgerID retrieves a confirmed listing by ledger-assigned id
func (s *pgStore) GetListingByLedgerID(ctx context.Context, ledgerID int64) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).Where("ledger_id = ?", ledgerID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing by ledger id: %w", err)
	}
	return &listing, nil
}

// GetActiveListing retrieves the single active listing for an asset
func (s *pgStore) GetActiveListing(ctx context.Context, assetID uint64) (*schema.Listing, error) {
	var listing schema.Listing
	err := s.db.WithContext(ctx).
		Where("asset_id = ? AND active = ?", assetID, true).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active listing: %w", err)
	}
	return &listing, nil
}

// DeactivateListingsForAsset flips every active listing for the asset to inactive
func (s *pgStore) DeactivateListingsForAsset(ctx context.Context, assetID uint64) (int64, error) {
	result := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Where("asset_id = ? AND active = ?", assetID, true).
		Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate listings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CreateListing inserts a new listing row
func (s *pgStore) CreateListing(ctx context.Context, listing *schema.Listing) error {
	err := s.db.WithContext(ctx).Create(listing).Error
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// UpsertConfirmedListing inserts a confirmed listing or refreshes it on
// ledger id conflict. Cancelled or sold listings are never reactivated,
// regardless of what the incoming row says.
func (s *pgStore) UpsertConfirmedListing(ctx context.Context, listing *schema.Listing) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ledger_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("ledger_id IS NOT NULL"),
		}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"seller_address": listing.SellerAddress,
			"price":          listing.Price,
			"block_number":   listing.BlockNumber,
			"active": gorm.Expr(
				"CASE WHEN listings.cancelled_at IS NULL AND listings.sold_at IS NULL THEN ? ELSE false END",
				listing.Active,
			),
		}),
	}).Create(listing).Error
	if err != nil {
		return fmt.Errorf("failed to upsert confirmed listing: %w", err)
	}
	return nil
}

// UpdateListingPrice sets the price on a confirmed listing
func (s *pgStore) UpdateListingPrice(ctx context.Context, ledgerID int64, price string) (*schema.Listing, error) {
	err := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Where("ledger_id = ?", ledgerID).
		Update("price", price).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update listing price: %w", err)
	}
	return s.GetListingByLedgerID(ctx, ledgerID)
}

// MarkListingCancelled deactivates the listing and stamps the cancellation time
func (s *pgStore) MarkListingCancelled(ctx context.Context, ledgerID int64, at time.Time) (*schema.Listing, error) {
	err := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Where("ledger_id = ?", ledgerID).
		Updates(map[string]interface{}{
			"active":       false,
			"cancelled_at": gorm.Expr("COALESCE(cancelled_at, ?)", at),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark listing cancelled: %w", err)
	}
	return s.GetListingByLedgerID(ctx, ledgerID)
}

// MarkListingSold deactivates the listing and stamps the sale time
func (s *pgStore) MarkListingSold(ctx context.Context, ledgerID int64, at time.Time) (*schema.Listing, error) {
	err := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Where("ledger_id = ?", ledgerID).
		Updates(map[string]interface{}{
			"active":  false,
			"sold_at": gorm.Expr("COALESCE(sold_at, ?)", at),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark listing sold: %w", err)
	}
	return s.GetListingByLedgerID(ctx, ledgerID)
}

// DeactivateListing flips a single listing by internal id
func (s *pgStore) DeactivateListing(ctx context.Context, id uint64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&schema.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":       false,
			"cancelled_at": gorm.Expr("COALESCE(cancelled_at, ?)", at),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate listing: %w", err)
	}
	return nil
}

// CreateSaleIfAbsent appends a sale row; duplicate delivery is a no-op
func (s *pgStore) CreateSaleIfAbsent(ctx context.Context, sale *schema.Sale) (bool, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ledger_listing_id"}, {Name: "tx_hash"}},
		DoNothing: true,
	}).Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(sale).Error
	if err != nil {
		return false, fmt.Errorf("failed to create sale: %w", err)
	}
	return sale.ID != 0, nil
}

// ListSalesByAsset retrieves the sale history of an asset, newest first
func (s *pgStore) ListSalesByAsset(ctx context.Context, assetID uint64) ([]*schema.Sale, error) {
	var sales []*schema.Sale
	err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("timestamp DESC, id DESC").
		Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

// GetBlockCursor retrieves the last processed block number for a chain
func (s *pgStore) GetBlockCursor(ctx context.Context, chain string) (uint64, error) {
	key := fmt.Sprintf("block_cursor:%s", chain)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a chain
func (s *pgStore) SetBlockCursor(ctx context.Context, chain string, blockNumber uint64) error {
	key := fmt.Sprintf("block_cursor:%s", chain)
	value := strconv.FormatUint(blockNumber, 10)

	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}
