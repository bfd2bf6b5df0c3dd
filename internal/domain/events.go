package domain

import (
	"math/big"
	"strings"
)

// EventKind identifies one of the closed set of domain events
type EventKind string

const (
	EventKindMinted           EventKind = "minted"
	EventKindTransferred      EventKind = "transferred"
	EventKindListingCreated   EventKind = "listing_created"
	EventKindListingUpdated   EventKind = "listing_updated"
	EventKindListingCancelled EventKind = "listing_cancelled"
	EventKindSold             EventKind = "sold"
)

// EventMeta carries the ledger provenance shared by every domain event
type EventMeta struct {
	ContractAddress string `json:"contract_address"`
	BlockNumber     uint64 `json:"block_number"`
	TxHash          string `json:"tx_hash"`
	LogIndex        uint   `json:"log_index"`
}

// Event is the closed set of domain events derived from ledger log entries.
// Implementations are the only types the projector accepts.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
}

// Minted indicates a new token was created on the asset contract
type Minted struct {
	EventMeta
	TokenNumber string
	Owner       string
	MetadataURI string
}

func (Minted) Kind() EventKind   { return EventKindMinted }
func (e Minted) Meta() EventMeta { return e.EventMeta }

// Transferred indicates token ownership changed hands. Transfers from the
// zero address never reach this type; the normalizer drops them as mint noise.
type Transferred struct {
	EventMeta
	TokenNumber string
	From        string
	To          string
}

func (Transferred) Kind() EventKind   { return EventKindTransferred }
func (e Transferred) Meta() EventMeta { return e.EventMeta }

// ListingCreated indicates a new marketplace listing was confirmed on-chain
type ListingCreated struct {
	EventMeta
	LedgerID     int64
	TokenNumber  string
	Seller       string
	PriceWei     *big.Int
	TokenAddress string
}

func (ListingCreated) Kind() EventKind   { return EventKindListingCreated }
func (e ListingCreated) Meta() EventMeta { return e.EventMeta }

// ListingUpdated indicates the price of an existing listing changed
type ListingUpdated struct {
	EventMeta
	LedgerID    int64
	NewPriceWei *big.Int
}

func (ListingUpdated) Kind() EventKind   { return EventKindListingUpdated }
func (e ListingUpdated) Meta() EventMeta { return e.EventMeta }

// ListingCancelled indicates the seller withdrew a listing
type ListingCancelled struct {
	EventMeta
	LedgerID int64
}

func (ListingCancelled) Kind() EventKind   { return EventKindListingCancelled }
func (e ListingCancelled) Meta() EventMeta { return e.EventMeta }

// Sold indicates a listing was bought out
type Sold struct {
	EventMeta
	LedgerID    int64
	TokenNumber string
	Buyer       string
	Seller      string
	PriceWei    *big.Int
}

func (Sold) Kind() EventKind   { return EventKindSold }
func (e Sold) Meta() EventMeta { return e.EventMeta }

// LedgerListing is the authoritative listing state read back from the
// marketplace contract via getListing(nftContract, tokenId)
type LedgerListing struct {
	Seller   string
	PriceWei *big.Int
	Active   bool
}

// NormalizeAddress lowercases a hex address so cache lookups are
// case-insensitive, matching how the storefront queries
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
