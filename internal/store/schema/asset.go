package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Asset represents the assets table - one row per (contract, token) pair,
// mirroring ledger truth. Derived fields (owner, price) are only ever
// written by the projector; the price column is a maintained view of the
// single active listing.
type Asset struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ContractAddress is the lowercased address of the asset contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_assets_contract_token,priority:1"`
	// TokenNumber is the token ID within the contract (string to support very large numbers)
	TokenNumber string `gorm:"column:token_number;not null;type:text;uniqueIndex:idx_assets_contract_token,priority:2"`
	// OwnerAddress is the current owner, updated on every transfer
	OwnerAddress string `gorm:"column:owner_address;not null;type:text;index"`
	// CreatorAddress is the minter; never changes after insert
	CreatorAddress string `gorm:"column:creator_address;not null;type:text"`
	// Name from metadata, or the generated "NFT #<tokenNumber>" default
	Name string `gorm:"column:name;not null;type:text"`
	// Description from metadata, empty when unavailable
	Description string `gorm:"column:description;not null;default:'';type:text"`
	// ImageURL is the gateway-resolved image pointer
	ImageURL string `gorm:"column:image_url;not null;default:'';type:text"`
	// MetadataURI is the on-chain pointer as emitted by the mint event
	MetadataURI string `gorm:"column:metadata_uri;not null;default:'';type:text"`
	// MetadataRaw is the fetched document as-is, null when unavailable
	MetadataRaw datatypes.JSON `gorm:"column:metadata_raw;type:jsonb"`
	// MetadataHash is the canonical hash of MetadataRaw; empty signals the
	// reconciler to re-resolve on its next pass
	MetadataHash string `gorm:"column:metadata_hash;not null;default:'';type:text"`
	// RoyaltyBps is the royalty basis points declared in metadata
	RoyaltyBps int `gorm:"column:royalty_bps;not null;default:0"`
	// Price mirrors the active listing's price; null when not listed
	Price *string `gorm:"column:price;type:numeric"`
	// MintedAt is when the mint event was indexed
	MintedAt time.Time `gorm:"column:minted_at;not null"`
	// LastTransferAt is the last observed ownership change
	LastTransferAt *time.Time `gorm:"column:last_transfer_at"`
	// CreatedAt is when this row was first written
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	// UpdatedAt is bumped on every projector write
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`

	// Associations
	Listings []Listing `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
	Sales    []Sale    `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Asset model
func (Asset) TableName() string {
	return "assets"
}

// ActiveListing returns the single active listing among the preloaded
// associations, or nil
func (a *Asset) ActiveListing() *Listing {
	for i := range a.Listings {
		if a.Listings[i].Active {
			return &a.Listings[i]
		}
	}
	return nil
}
