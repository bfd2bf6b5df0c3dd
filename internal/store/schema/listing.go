package schema

import (
	"time"
)

// ListingSource tags where a listing row came from. The tagged union makes
// the provisional-vs-confirmed race machine-checkable instead of hiding it
// in the sign of an id.
type ListingSource string

const (
	// ListingSourceConfirmed is a listing derived from a ledger event
	ListingSourceConfirmed ListingSource = "confirmed"
	// ListingSourceProvisional is an optimistic row written by the
	// storefront before on-chain confirmation
	ListingSourceProvisional ListingSource = "provisional"
)

// Listing represents the listings table. LedgerID is the marketplace
// contract's monotonically increasing listing id; it is nil exactly when
// Source is provisional, so provisional rows can never collide with
// ledger-assigned ids.
type Listing struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// LedgerID is the ledger-assigned listing id, nil for provisional rows
	LedgerID *int64 `gorm:"column:ledger_id;uniqueIndex:idx_listings_ledger_id,where:ledger_id IS NOT NULL"`
	// Source tags the row as ledger-confirmed or provisional
	Source ListingSource `gorm:"column:source;not null;type:text"`
	// AssetID references the listed asset
	AssetID uint64 `gorm:"column:asset_id;not null;index;uniqueIndex:idx_listings_one_active_per_asset,where:active"`
	// SellerAddress is the lowercased seller address
	SellerAddress string `gorm:"column:seller_address;not null;type:text"`
	// Price is the listing price in 18-decimal units, formatted decimal
	Price string `gorm:"column:price;not null;type:numeric"`
	// Active is true while the listing is open
	Active bool `gorm:"column:active;not null;default:false"`
	// BlockNumber is the block the confirming event was observed in; zero
	// for provisional rows. Used for recency comparison between the live
	// path and reconciliation, never for locking.
	BlockNumber uint64 `gorm:"column:block_number;not null;default:0"`
	// CreatedAt is when the listing was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	// CancelledAt is set when a cancellation was observed
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	// SoldAt is set when a sale was observed
	SoldAt *time.Time `gorm:"column:sold_at"`
	// UpdatedAt is bumped on every write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for the Listing model
func (Listing) TableName() string {
	return "listings"
}

// Provisional reports whether the listing is an optimistic storefront write
func (l *Listing) Provisional() bool {
	return l.Source == ListingSourceProvisional
}
