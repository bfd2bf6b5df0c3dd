package schema

import (
	"time"
)

// Sale represents the sales table - append-only purchase history.
// Rows are immutable: never updated, never deleted, not even by the
// reconciler. The (ledger_listing_id, tx_hash) unique index absorbs
// duplicate delivery of the same Sold event.
type Sale struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// AssetID references the sold asset
	AssetID uint64 `gorm:"column:asset_id;not null;index"`
	// ListingID references the internal listing row
	ListingID uint64 `gorm:"column:listing_id;not null"`
	// LedgerListingID is the ledger-assigned id of the sold listing
	LedgerListingID int64 `gorm:"column:ledger_listing_id;not null;uniqueIndex:idx_sales_listing_tx,priority:1"`
	// BuyerAddress is the lowercased buyer address
	BuyerAddress string `gorm:"column:buyer_address;not null;type:text"`
	// SellerAddress is the lowercased seller address
	SellerAddress string `gorm:"column:seller_address;not null;type:text"`
	// Price is the settled price in 18-decimal units, formatted decimal
	Price string `gorm:"column:price;not null;type:numeric"`
	// TxHash is the settlement transaction reference
	TxHash string `gorm:"column:tx_hash;not null;type:text;uniqueIndex:idx_sales_listing_tx,priority:2"`
	// Timestamp is when the sale was observed
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	// CreatedAt is when this row was written
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for the Sale model
func (Sale) TableName() string {
	return "sales"
}
