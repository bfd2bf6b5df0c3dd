package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// MemStore is an in-memory Store used by unit tests. It enforces the same
// uniqueness rules as the PostgreSQL schema (one asset per contract/token,
// one listing per ledger id, one active listing per asset, one sale per
// ledger listing id and tx hash).
type MemStore struct {
	mu sync.Mutex

	assets   map[uint64]*schema.Asset
	listings map[uint64]*schema.Listing
	sales    map[uint64]*schema.Sale
	kv       map[string]string

	nextAssetID   uint64
	nextListingID uint64
	nextSaleID    uint64
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		assets:   make(map[uint64]*schema.Asset),
		listings: make(map[uint64]*schema.Listing),
		sales:    make(map[uint64]*schema.Sale),
		kv:       make(map[string]string),
	}
}

func (m *MemStore) assetKey(contract, tokenNumber string) *schema.Asset {
	for _, a := range m.assets {
		if a.ContractAddress == contract && a.TokenNumber == tokenNumber {
			return a
		}
	}
	return nil
}

func (m *MemStore) cloneAsset(a *schema.Asset) *schema.Asset {
	cp := *a
	cp.Listings = nil
	cp.Sales = nil
	for _, l := range m.sortedListings() {
		if l.AssetID == a.ID {
			cp.Listings = append(cp.Listings, *l)
		}
	}
	return &cp
}

func (m *MemStore) sortedListings() []*schema.Listing {
	out := make([]*schema.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) CreateAssetIfAbsent(_ context.Context, asset *schema.Asset) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.assetKey(asset.ContractAddress, asset.TokenNumber); existing != nil {
		*asset = *m.cloneAsset(existing)
		return false, nil
	}

	m.nextAssetID++
	asset.ID = m.nextAssetID
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	cp := *asset
	m.assets[cp.ID] = &cp
	return true, nil
}

func (m *MemStore) GetAsset(_ context.Context, contractAddress, tokenNumber string) (*schema.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.assetKey(contractAddress, tokenNumber)
	if a == nil {
		return nil, nil
	}
	return m.cloneAsset(a), nil
}

func (m *MemStore) ListAssets(_ context.Context, filter AssetFilter) ([]*schema.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*schema.Asset
	for _, a := range m.assets {
		if filter.OwnerAddress != "" && !strings.EqualFold(a.OwnerAddress, filter.OwnerAddress) {
			continue
		}
		if filter.TokenNumber != "" && a.TokenNumber != filter.TokenNumber {
			continue
		}
		if filter.ContractAddress != "" && !strings.EqualFold(a.ContractAddress, filter.ContractAddress) {
			continue
		}
		matched = append(matched, m.cloneAsset(a))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(matched) {
		return []*schema.Asset{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemStore) ListAssetsAfter(_ context.Context, afterID uint64, limit int) ([]*schema.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	var matched []*schema.Asset
	for _, a := range m.assets {
		if a.ID > afterID {
			matched = append(matched, m.cloneAsset(a))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemStore) UpdateAssetOwner(_ context.Context, assetID uint64, owner string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.assets[assetID]; ok {
		a.OwnerAddress = owner
		a.LastTransferAt = &at
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) SetAssetPrice(_ context.Context, assetID uint64, price *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.assets[assetID]; ok {
		if price != nil {
			p := *price
			a.Price = &p
		} else {
			a.Price = nil
		}
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) UpdateAssetMetadata(_ context.Context, assetID uint64, update MetadataUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.assets[assetID]; ok {
		a.Name = update.Name
		a.Description = update.Description
		a.ImageURL = update.ImageURL
		a.MetadataHash = update.MetadataHash
		a.MetadataRaw = update.MetadataRaw
		a.RoyaltyBps = update.RoyaltyBps
		a.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) GetListingByID(_ context.Context, id uint64) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) getByLedgerID(ledgerID int64) *schema.Listing {
	for _, l := range m.listings {
		if l.LedgerID != nil && *l.LedgerID == ledgerID {
			return l
		}
	}
	return nil
}

func (m *MemStore) GetListingByLedgerID(_ context.Context, ledgerID int64) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.getByLedgerID(ledgerID)
	if l == nil {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) GetActiveListing(_ context.Context, assetID uint64) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.sortedListings() {
		if l.AssetID == assetID && l.Active {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) DeactivateListingsForAsset(_ context.Context, assetID uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, l := range m.listings {
		if l.AssetID == assetID && l.Active {
			l.Active = false
			l.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CreateListing(_ context.Context, listing *schema.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListingID++
	listing.ID = m.nextListingID
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	cp := *listing
	m.listings[cp.ID] = &cp
	return nil
}

func (m *MemStore) UpsertConfirmedListing(_ context.Context, listing *schema.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if listing.LedgerID != nil {
		if existing := m.getByLedgerID(*listing.LedgerID); existing != nil {
			existing.SellerAddress = listing.SellerAddress
			existing.Price = listing.Price
			existing.BlockNumber = listing.BlockNumber
			if existing.CancelledAt == nil && existing.SoldAt == nil {
				existing.Active = listing.Active
			} else {
				existing.Active = false
			}
			existing.UpdatedAt = time.Now()
			*listing = *existing
			return nil
		}
	}

	m.nextListingID++
	listing.ID = m.nextListingID
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	cp := *listing
	m.listings[cp.ID] = &cp
	return nil
}

func (m *MemStore) UpdateListingPrice(_ context.Context, ledgerID int64, price string) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.getByLedgerID(ledgerID)
	if l == nil {
		return nil, nil
	}
	l.Price = price
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

func (m *MemStore) MarkListingCancelled(_ context.Context, ledgerID int64, at time.Time) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.getByLedgerID(ledgerID)
	if l == nil {
		return nil, nil
	}
	l.Active = false
	if l.CancelledAt == nil {
		l.CancelledAt = &at
	}
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

func (m *MemStore) MarkListingSold(_ context.Context, ledgerID int64, at time.Time) (*schema.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.getByLedgerID(ledgerID)
	if l == nil {
		return nil, nil
	}
	l.Active = false
	if l.SoldAt == nil {
		l.SoldAt = &at
	}
	l.UpdatedAt = time.Now()
	cp := *l
	return &cp, nil
}

func (m *MemStore) DeactivateListing(_ context.Context, id uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.listings[id]; ok {
		l.Active = false
		if l.CancelledAt == nil {
			l.CancelledAt = &at
		}
		l.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) CreateSaleIfAbsent(_ context.Context, sale *schema.Sale) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sales {
		if s.LedgerListingID == sale.LedgerListingID && s.TxHash == sale.TxHash {
			return false, nil
		}
	}

	m.nextSaleID++
	sale.ID = m.nextSaleID
	sale.CreatedAt = time.Now()
	cp := *sale
	m.sales[cp.ID] = &cp
	return true, nil
}

func (m *MemStore) ListSalesByAsset(_ context.Context, assetID uint64) ([]*schema.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*schema.Sale
	for _, s := range m.sales {
		if s.AssetID == assetID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemStore) GetBlockCursor(_ context.Context, chain string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.kv["block_cursor:"+chain]
	if !ok {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

func (m *MemStore) SetBlockCursor(_ context.Context, chain string, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv["block_cursor:"+chain] = strconv.FormatUint(blockNumber, 10)
	return nil
}
