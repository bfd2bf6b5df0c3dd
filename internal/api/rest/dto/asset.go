package dto

import (
	"encoding/json"
	"time"

	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// Listing is the API representation of a marketplace listing
type Listing struct {
	ID            uint64     `json:"id"`
	LedgerID      *int64     `json:"ledger_id"`
	Source        string     `json:"source"`
	SellerAddress string     `json:"seller_address"`
	Price         string     `json:"price"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	SoldAt        *time.Time `json:"sold_at,omitempty"`
}

// Sale is the API representation of a settled purchase
type Sale struct {
	BuyerAddress  string    `json:"buyer_address"`
	SellerAddress string    `json:"seller_address"`
	Price         string    `json:"price"`
	TxHash        string    `json:"tx_hash"`
	Timestamp     time.Time `json:"timestamp"`
}

// Asset is the API representation of a cached token
type Asset struct {
	ContractAddress string          `json:"contract_address"`
	TokenNumber     string          `json:"token_number"`
	OwnerAddress    string          `json:"owner_address"`
	CreatorAddress  string          `json:"creator_address"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	MetadataURI     string          `json:"metadata_uri,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	RoyaltyBps      int             `json:"royalty_bps"`
	Price           *string         `json:"price"`
	MintedAt        time.Time       `json:"minted_at"`
	LastTransferAt  *time.Time      `json:"last_transfer_at,omitempty"`
	ActiveListing   *Listing        `json:"active_listing,omitempty"`
	Sales           []Sale          `json:"sales,omitempty"`
}

// ListAssetsResponse is the paginated list envelope
type ListAssetsResponse struct {
	Assets []Asset `json:"assets"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ListSalesResponse is the sale history envelope
type ListSalesResponse struct {
	Sales []Sale `json:"sales"`
}

// CreateProvisionalListingRequest is the storefront's optimistic listing write
type CreateProvisionalListingRequest struct {
	ContractAddress string `json:"contract_address" binding:"required"`
	TokenNumber     string `json:"token_number" binding:"required"`
	SellerAddress   string `json:"seller_address" binding:"required"`
	Price           string `json:"price" binding:"required"`
}

// FromListing maps a schema listing onto its API representation
func FromListing(l *schema.Listing) *Listing {
	if l == nil {
		return nil
	}
	return &Listing{
		ID:            l.ID,
		LedgerID:      l.LedgerID,
		Source:        string(l.Source),
		SellerAddress: l.SellerAddress,
		Price:         l.Price,
		Active:        l.Active,
		CreatedAt:     l.CreatedAt,
		CancelledAt:   l.CancelledAt,
		SoldAt:        l.SoldAt,
	}
}

// FromSales maps schema sales onto their API representation
func FromSales(sales []*schema.Sale) []Sale {
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		out = append(out, Sale{
			BuyerAddress:  s.BuyerAddress,
			SellerAddress: s.SellerAddress,
			Price:         s.Price,
			TxHash:        s.TxHash,
			Timestamp:     s.Timestamp,
		})
	}
	return out
}

// FromAsset maps a schema asset onto its API representation
func FromAsset(a *schema.Asset) Asset {
	out := Asset{
		ContractAddress: a.ContractAddress,
		TokenNumber:     a.TokenNumber,
		OwnerAddress:    a.OwnerAddress,
		CreatorAddress:  a.CreatorAddress,
		Name:            a.Name,
		Description:     a.Description,
		ImageURL:        a.ImageURL,
		MetadataURI:     a.MetadataURI,
		RoyaltyBps:      a.RoyaltyBps,
		Price:           a.Price,
		MintedAt:        a.MintedAt,
		LastTransferAt:  a.LastTransferAt,
		ActiveListing:   FromListing(a.ActiveListing()),
	}
	if len(a.MetadataRaw) > 0 {
		out.Metadata = json.RawMessage(a.MetadataRaw)
	}
	return out
}
