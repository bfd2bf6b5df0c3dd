package reconciler_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-market/arc-indexer/internal/domain"
	"github.com/arc-market/arc-indexer/internal/ledger"
	"github.com/arc-market/arc-indexer/internal/logger"
	"github.com/arc-market/arc-indexer/internal/metadata"
	"github.com/arc-market/arc-indexer/internal/mocks"
	"github.com/arc-market/arc-indexer/internal/projector"
	"github.com/arc-market/arc-indexer/internal/reconciler"
	"github.com/arc-market/arc-indexer/internal/store"
	"github.com/arc-market/arc-indexer/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const (
	testNFTContract = "0x1111111111111111111111111111111111111111"
	testChain       = domain.ChainArcTestnet
)

type reconcilerMocks struct {
	store    *store.MemStore
	ledger   *mocks.MockLedgerClient
	metadata *mocks.MockMetadataResolver
}

func newTestReconciler(t *testing.T) (*reconciler.Reconciler, *reconcilerMocks) {
	ctrl := gomock.NewController(t)
	rm := &reconcilerMocks{
		store:    store.NewMemStore(),
		ledger:   mocks.NewMockLedgerClient(ctrl),
		metadata: mocks.NewMockMetadataResolver(ctrl),
	}
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)).AnyTimes()

	p := projector.NewProjector(rm.store, rm.ledger, rm.metadata, clock, testNFTContract)
	r := reconciler.NewReconciler(reconciler.Config{
		Chain:          testChain,
		PageSize:       10,
		Workers:        1,
		ReadsPerSecond: 10000,
		ReplayChunk:    100,
	}, rm.store, rm.ledger, p)
	return r, rm
}

func seedAsset(t *testing.T, s *store.MemStore, tokenNumber, owner string) *schema.Asset {
	t.Helper()
	asset := &schema.Asset{
		ContractAddress: testNFTContract,
		TokenNumber:     tokenNumber,
		OwnerAddress:    owner,
		CreatorAddress:  owner,
		Name:            "NFT #" + tokenNumber,
		MetadataURI:     "ipfs://QmMeta" + tokenNumber,
		MetadataHash:    "settled",
		MintedAt:        time.Now(),
	}
	created, err := s.CreateAssetIfAbsent(context.Background(), asset)
	require.NoError(t, err)
	require.True(t, created)
	return asset
}

func seedActiveListing(t *testing.T, s *store.MemStore, assetID uint64, id int64, price string) *schema.Listing {
	t.Helper()
	listing := &schema.Listing{
		LedgerID:      &id,
		Source:        schema.ListingSourceConfirmed,
		AssetID:       assetID,
		SellerAddress: "0xalice",
		Price:         price,
		Active:        true,
		BlockNumber:   50,
	}
	require.NoError(t, s.UpsertConfirmedListing(context.Background(), listing))
	require.NoError(t, s.SetAssetPrice(context.Background(), assetID, &price))
	return listing
}

func inactiveLedgerListing() *domain.LedgerListing {
	return &domain.LedgerListing{Seller: "0xalice", PriceWei: big.NewInt(0), Active: false}
}

func TestRepairTokenDeactivatesDriftedListing(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	asset := seedAsset(t, rm.store, "7", "0xalice")
	seedActiveListing(t, rm.store, asset.ID, 1, "1.5")

	// Sale history must survive the repair untouched
	_, err := rm.store.CreateSaleIfAbsent(ctx, &schema.Sale{
		AssetID: asset.ID, ListingID: 1, LedgerListingID: 9,
		BuyerAddress: "0xbob", SellerAddress: "0xalice",
		Price: "1.0", TxHash: "0xold", Timestamp: time.Now(),
	})
	require.NoError(t, err)

	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return("0xalice", nil)
	rm.ledger.EXPECT().GetListing(gomock.Any(), "7").Return(inactiveLedgerListing(), nil)

	require.NoError(t, r.RepairToken(ctx, "7"))

	repaired, err := rm.store.GetAsset(ctx, testNFTContract, "7")
	require.NoError(t, err)
	assert.Nil(t, repaired.Price)
	assert.Nil(t, repaired.ActiveListing())

	sales, err := rm.store.ListSalesByAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

func TestRepairTokenAlignsPriceDrift(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	asset := seedAsset(t, rm.store, "7", "0xalice")
	seedActiveListing(t, rm.store, asset.ID, 1, "1.0")

	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return("0xalice", nil)
	rm.ledger.EXPECT().GetListing(gomock.Any(), "7").Return(&domain.LedgerListing{
		Seller:   "0xalice",
		PriceWei: big.NewInt(2000000000000000000),
		Active:   true,
	}, nil)

	require.NoError(t, r.RepairToken(ctx, "7"))

	repaired, err := rm.store.GetAsset(ctx, testNFTContract, "7")
	require.NoError(t, err)
	require.NotNil(t, repaired.Price)
	assert.Equal(t, "2.0", *repaired.Price)

	listing, err := rm.store.GetListingByLedgerID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2.0", listing.Price)
	assert.True(t, listing.Active)
}

func TestRepairTokenRepairsOwner(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	seedAsset(t, rm.store, "7", "0xalice")

	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return("0xbob", nil)
	rm.ledger.EXPECT().GetListing(gomock.Any(), "7").Return(inactiveLedgerListing(), nil)

	require.NoError(t, r.RepairToken(ctx, "7"))

	repaired, err := rm.store.GetAsset(ctx, testNFTContract, "7")
	require.NoError(t, err)
	assert.Equal(t, "0xbob", repaired.OwnerAddress)
}

func TestRepairTokenRetriesMetadata(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	asset := seedAsset(t, rm.store, "7", "0xalice")
	// Empty hash marks the asset for re-resolution
	require.NoError(t, rm.store.UpdateAssetMetadata(ctx, asset.ID, store.MetadataUpdate{Name: "NFT #7"}))

	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return("0xalice", nil)
	rm.ledger.EXPECT().GetListing(gomock.Any(), "7").Return(inactiveLedgerListing(), nil)
	rm.metadata.EXPECT().Resolve(gomock.Any(), "ipfs://QmMeta7").Return(&metadata.Document{
		Name: "Recovered",
		Raw:  map[string]interface{}{"name": "Recovered"},
	})

	require.NoError(t, r.RepairToken(ctx, "7"))

	repaired, err := rm.store.GetAsset(ctx, testNFTContract, "7")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", repaired.Name)
	assert.NotEmpty(t, repaired.MetadataHash)
}

func TestRepairTokenUnknownToken(t *testing.T) {
	r, rm := newTestReconciler(t)

	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "404").Return("", domain.ErrRPCRejected)

	err := r.RepairToken(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestSweepAssetsPagesEverything(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	for _, token := range []string{"1", "2", "3"} {
		seedAsset(t, rm.store, token, "0xalice")
		rm.ledger.EXPECT().OwnerOf(gomock.Any(), token).Return("0xalice", nil)
		rm.ledger.EXPECT().GetListing(gomock.Any(), token).Return(inactiveLedgerListing(), nil)
	}

	require.NoError(t, r.SweepAssets(ctx))
}

func TestReplayBlocksAppliesEvents(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	asset := seedAsset(t, rm.store, "7", "0xalice")
	seedActiveListing(t, rm.store, asset.ID, 1, "1.5")

	cancelLog := types.Log{
		Address:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Topics:      []common.Hash{ledger.ListingCancelledTopic, common.BigToHash(big.NewInt(1))},
		BlockNumber: 60,
		TxHash:      common.HexToHash("0xc1"),
	}
	transferLog := types.Log{
		Address: common.HexToAddress(testNFTContract),
		Topics: []common.Hash{
			ledger.TransferTopic,
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000a0").Bytes()),
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000b0").Bytes()),
			common.BigToHash(big.NewInt(7)),
		},
		BlockNumber: 61,
		TxHash:      common.HexToHash("0xc2"),
	}

	rm.ledger.EXPECT().FilterMarketLogs(gomock.Any(), uint64(0), uint64(99)).
		Return([]types.Log{cancelLog, transferLog}, nil)

	require.NoError(t, r.ReplayBlocks(ctx, 0, 99))

	repaired, err := rm.store.GetAsset(ctx, testNFTContract, "7")
	require.NoError(t, err)
	assert.Nil(t, repaired.Price)
	assert.Nil(t, repaired.ActiveListing())
	assert.Equal(t, "0x00000000000000000000000000000000000000b0", repaired.OwnerAddress)
}

func TestFullBackfillAdvancesCursor(t *testing.T) {
	r, rm := newTestReconciler(t)
	ctx := context.Background()

	seedAsset(t, rm.store, "7", "0xalice")
	require.NoError(t, rm.store.SetBlockCursor(ctx, string(testChain), 49))

	rm.ledger.EXPECT().LatestBlock(gomock.Any()).Return(uint64(120), nil)
	rm.ledger.EXPECT().FilterMarketLogs(gomock.Any(), uint64(50), uint64(120)).
		Return([]types.Log{}, nil)
	rm.ledger.EXPECT().OwnerOf(gomock.Any(), "7").Return("0xalice", nil)
	rm.ledger.EXPECT().GetListing(gomock.Any(), "7").Return(inactiveLedgerListing(), nil)

	require.NoError(t, r.FullBackfill(ctx))

	cursor, err := rm.store.GetBlockCursor(ctx, string(testChain))
	require.NoError(t, err)
	assert.Equal(t, uint64(120), cursor)
}
