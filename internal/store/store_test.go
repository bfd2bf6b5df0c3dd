package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-market/arc-indexer/internal/store/schema"
)

// RunStoreTests runs the shared store test suite against any Store
// implementation
func RunStoreTests(t *testing.T, initStore func(*testing.T) Store) {
	t.Run("CreateAssetIfAbsent", func(t *testing.T) { testCreateAssetIfAbsent(t, initStore(t)) })
	t.Run("GetAssetMissing", func(t *testing.T) { testGetAssetMissing(t, initStore(t)) })
	t.Run("ListAssetsFilters", func(t *testing.T) { testListAssetsFilters(t, initStore(t)) })
	t.Run("ListAssetsAfter", func(t *testing.T) { testListAssetsAfter(t, initStore(t)) })
	t.Run("UpdateAssetOwner", func(t *testing.T) { testUpdateAssetOwner(t, initStore(t)) })
	t.Run("SetAssetPrice", func(t *testing.T) { testSetAssetPrice(t, initStore(t)) })
	t.Run("UpdateAssetMetadata", func(t *testing.T) { testUpdateAssetMetadata(t, initStore(t)) })
	t.Run("UpsertConfirmedListing", func(t *testing.T) { testUpsertConfirmedListing(t, initStore(t)) })
	t.Run("NoReactivationAfterSold", func(t *testing.T) { testNoReactivationAfterSold(t, initStore(t)) })
	t.Run("CancelAndSellIdempotent", func(t *testing.T) { testCancelAndSellIdempotent(t, initStore(t)) })
	t.Run("ProvisionalListing", func(t *testing.T) { testProvisionalListing(t, initStore(t)) })
	t.Run("DeactivateListingsForAsset", func(t *testing.T) { testDeactivateListingsForAsset(t, initStore(t)) })
	t.Run("SaleDeduplication", func(t *testing.T) { testSaleDeduplication(t, initStore(t)) })
	t.Run("BlockCursor", func(t *testing.T) { testBlockCursor(t, initStore(t)) })
}

func seedAsset(t *testing.T, s Store, contract, tokenNumber, owner string) *schema.Asset {
	t.Helper()
	asset := &schema.Asset{
		ContractAddress: contract,
		TokenNumber:     tokenNumber,
		OwnerAddress:    owner,
		CreatorAddress:  owner,
		Name:            "NFT #" + tokenNumber,
		MintedAt:        time.Now().UTC().Truncate(time.Second),
	}
	created, err := s.CreateAssetIfAbsent(context.Background(), asset)
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, asset.ID)
	return asset
}

func ledgerID(id int64) *int64 {
	return &id
}

func testCreateAssetIfAbsent(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xowner1")

	// Duplicate delivery of the same mint is a no-op
	dup := &schema.Asset{
		ContractAddress: "0xabc",
		TokenNumber:     "1",
		OwnerAddress:    "0xsomeoneelse",
		CreatorAddress:  "0xsomeoneelse",
		Name:            "NFT #1",
		MintedAt:        time.Now(),
	}
	created, err := s.CreateAssetIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, asset.ID, dup.ID)

	got, err := s.GetAsset(ctx, "0xabc", "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0xowner1", got.OwnerAddress)
}

func testGetAssetMissing(t *testing.T, s Store) {
	got, err := s.GetAsset(context.Background(), "0xabc", "404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testListAssetsFilters(t *testing.T, s Store) {
	ctx := context.Background()
	seedAsset(t, s, "0xabc", "1", "0xalice")
	seedAsset(t, s, "0xabc", "2", "0xbob")
	seedAsset(t, s, "0xdef", "1", "0xalice")

	byOwner, err := s.ListAssets(ctx, AssetFilter{OwnerAddress: "0xalice"})
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	byContract, err := s.ListAssets(ctx, AssetFilter{ContractAddress: "0xdef"})
	require.NoError(t, err)
	assert.Len(t, byContract, 1)

	byToken, err := s.ListAssets(ctx, AssetFilter{ContractAddress: "0xabc", TokenNumber: "2"})
	require.NoError(t, err)
	require.Len(t, byToken, 1)
	assert.Equal(t, "0xbob", byToken[0].OwnerAddress)

	paged, err := s.ListAssets(ctx, AssetFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
}

func testListAssetsAfter(t *testing.T, s Store) {
	ctx := context.Background()
	first := seedAsset(t, s, "0xabc", "1", "0xalice")
	seedAsset(t, s, "0xabc", "2", "0xbob")
	seedAsset(t, s, "0xabc", "3", "0xcarol")

	page, err := s.ListAssetsAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, first.ID, page[0].ID)

	next, err := s.ListAssetsAfter(ctx, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "3", next[0].TokenNumber)

	empty, err := s.ListAssetsAfter(ctx, next[0].ID, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUpdateAssetOwner(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateAssetOwner(ctx, asset.ID, "0xbob", at))

	got, err := s.GetAsset(ctx, "0xabc", "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0xbob", got.OwnerAddress)
	require.NotNil(t, got.LastTransferAt)
}

func testSetAssetPrice(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	price := "1.5"
	require.NoError(t, s.SetAssetPrice(ctx, asset.ID, &price))

	got, err := s.GetAsset(ctx, "0xabc", "1")
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, "1.5", *got.Price)

	require.NoError(t, s.SetAssetPrice(ctx, asset.ID, nil))

	got, err = s.GetAsset(ctx, "0xabc", "1")
	require.NoError(t, err)
	assert.Nil(t, got.Price)
}

func testUpdateAssetMetadata(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	require.NoError(t, s.UpdateAssetMetadata(ctx, asset.ID, MetadataUpdate{
		Name:         "Sunset",
		Description:  "A sunset over the bay",
		ImageURL:     "https://gateway.pinata.cloud/ipfs/QmImage",
		MetadataHash: "deadbeef",
		MetadataRaw:  []byte(`{"name":"Sunset"}`),
		RoyaltyBps:   250,
	}))

	got, err := s.GetAsset(ctx, "0xabc", "1")
	require.NoError(t, err)
	assert.Equal(t, "Sunset", got.Name)
	assert.Equal(t, "A sunset over the bay", got.Description)
	assert.Equal(t, "deadbeef", got.MetadataHash)
	assert.Equal(t, 250, got.RoyaltyBps)
}

func testUpsertConfirmedListing(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	listing := &schema.Listing{
		LedgerID:      ledgerID(7),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "1.0",
		Active:        true,
		BlockNumber:   100,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, listing))
	require.NotZero(t, listing.ID)

	// Replayed event refreshes in place instead of inserting a second row
	replay := &schema.Listing{
		LedgerID:      ledgerID(7),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "2.0",
		Active:        true,
		BlockNumber:   105,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, replay))

	got, err := s.GetListingByLedgerID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, listing.ID, got.ID)
	assert.Equal(t, "2.0", got.Price)
	assert.Equal(t, uint64(105), got.BlockNumber)
	assert.True(t, got.Active)
}

func testNoReactivationAfterSold(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	listing := &schema.Listing{
		LedgerID:      ledgerID(9),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "1.0",
		Active:        true,
		BlockNumber:   100,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, listing))

	_, err := s.MarkListingSold(ctx, 9, time.Now())
	require.NoError(t, err)

	// Out-of-order replay of the creation event must not resurrect the listing
	replay := &schema.Listing{
		LedgerID:      ledgerID(9),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "1.0",
		Active:        true,
		BlockNumber:   100,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, replay))

	got, err := s.GetListingByLedgerID(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	assert.NotNil(t, got.SoldAt)
}

func testCancelAndSellIdempotent(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	listing := &schema.Listing{
		LedgerID:      ledgerID(11),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "1.0",
		Active:        true,
		BlockNumber:   100,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, listing))

	first := time.Now().UTC().Truncate(time.Second)
	cancelled, err := s.MarkListingCancelled(ctx, 11, first)
	require.NoError(t, err)
	require.NotNil(t, cancelled)
	assert.False(t, cancelled.Active)
	require.NotNil(t, cancelled.CancelledAt)

	// Second delivery keeps the original timestamp
	again, err := s.MarkListingCancelled(ctx, 11, first.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, again.CancelledAt)
	assert.Equal(t, cancelled.CancelledAt.Unix(), again.CancelledAt.Unix())

	// Marking a missing ledger id is not an error, just a nil row
	missing, err := s.MarkListingSold(ctx, 404, time.Now())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testProvisionalListing(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	listing := &schema.Listing{
		Source:        schema.ListingSourceProvisional,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "0.5",
		Active:        true,
	}
	require.NoError(t, s.CreateListing(ctx, listing))
	require.NotZero(t, listing.ID)
	assert.Nil(t, listing.LedgerID)

	active, err := s.GetActiveListing(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.True(t, active.Provisional())

	require.NoError(t, s.DeactivateListing(ctx, listing.ID, time.Now()))

	active, err = s.GetActiveListing(ctx, asset.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func testDeactivateListingsForAsset(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	provisional := &schema.Listing{
		Source:        schema.ListingSourceProvisional,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "0.5",
		Active:        true,
	}
	require.NoError(t, s.CreateListing(ctx, provisional))

	// Confirmed event supersedes whatever was active before
	n, err := s.DeactivateListingsForAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	confirmed := &schema.Listing{
		LedgerID:      ledgerID(3),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "0.5",
		Active:        true,
		BlockNumber:   50,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, confirmed))

	active, err := s.GetActiveListing(ctx, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.False(t, active.Provisional())
	require.NotNil(t, active.LedgerID)
	assert.Equal(t, int64(3), *active.LedgerID)
}

func testSaleDeduplication(t *testing.T, s Store) {
	ctx := context.Background()
	asset := seedAsset(t, s, "0xabc", "1", "0xalice")

	listing := &schema.Listing{
		LedgerID:      ledgerID(5),
		Source:        schema.ListingSourceConfirmed,
		AssetID:       asset.ID,
		SellerAddress: "0xalice",
		Price:         "1.0",
		Active:        true,
		BlockNumber:   80,
	}
	require.NoError(t, s.UpsertConfirmedListing(ctx, listing))

	sale := &schema.Sale{
		AssetID:         asset.ID,
		ListingID:       listing.ID,
		LedgerListingID: 5,
		BuyerAddress:    "0xbob",
		SellerAddress:   "0xalice",
		Price:           "1.0",
		TxHash:          "0xdead",
		Timestamp:       time.Now().UTC().Truncate(time.Second),
	}
	created, err := s.CreateSaleIfAbsent(ctx, sale)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &schema.Sale{
		AssetID:         asset.ID,
		ListingID:       listing.ID,
		LedgerListingID: 5,
		BuyerAddress:    "0xbob",
		SellerAddress:   "0xalice",
		Price:           "1.0",
		TxHash:          "0xdead",
		Timestamp:       time.Now(),
	}
	created, err = s.CreateSaleIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	sales, err := s.ListSalesByAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "0xbob", sales[0].BuyerAddress)

	// Same listing sold again in a different transaction is a new row
	other := &schema.Sale{
		AssetID:         asset.ID,
		ListingID:       listing.ID,
		LedgerListingID: 5,
		BuyerAddress:    "0xcarol",
		SellerAddress:   "0xbob",
		Price:           "2.0",
		TxHash:          "0xbeef",
		Timestamp:       time.Now().UTC().Add(time.Minute).Truncate(time.Second),
	}
	created, err = s.CreateSaleIfAbsent(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)

	sales, err = s.ListSalesByAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "0xcarol", sales[0].BuyerAddress)
}

func testBlockCursor(t *testing.T, s Store) {
	ctx := context.Background()

	cursor, err := s.GetBlockCursor(ctx, "eip155:5042002")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cursor)

	require.NoError(t, s.SetBlockCursor(ctx, "eip155:5042002", 12345))

	cursor, err = s.GetBlockCursor(ctx, "eip155:5042002")
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), cursor)

	require.NoError(t, s.SetBlockCursor(ctx, "eip155:5042002", 12400))

	cursor, err = s.GetBlockCursor(ctx, "eip155:5042002")
	require.NoError(t, err)
	assert.Equal(t, uint64(12400), cursor)
}
