package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-market/arc-indexer/internal/domain"
)

var (
	testNFTAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testMarketAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testSeller     = common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	testBuyer      = common.HexToAddress("0xBBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
)

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromBig(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func packData(t *testing.T, event string, args ...interface{}) []byte {
	t.Helper()
	data, err := eventsABI.Events[event].Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)
	return data
}

func baseLog(addr common.Address, topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     addr,
		Topics:      topics,
		Data:        data,
		BlockNumber: 420,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}
}

func TestNormalizeMinted(t *testing.T) {
	raw := baseLog(testNFTAddr,
		[]common.Hash{MintedTopic, topicFromBig(7), topicFromAddress(testSeller)},
		packData(t, "NFTMinted", "ipfs://QmMeta"))

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	minted, ok := event.(domain.Minted)
	require.True(t, ok)
	assert.Equal(t, domain.EventKindMinted, minted.Kind())
	assert.Equal(t, "7", minted.TokenNumber)
	assert.Equal(t, domain.NormalizeAddress(testSeller.Hex()), minted.Owner)
	assert.Equal(t, "ipfs://QmMeta", minted.MetadataURI)
	assert.Equal(t, uint64(420), minted.Meta().BlockNumber)
	assert.Equal(t, uint(3), minted.Meta().LogIndex)
}

func TestNormalizeTransferred(t *testing.T) {
	raw := baseLog(testNFTAddr,
		[]common.Hash{TransferTopic, topicFromAddress(testSeller), topicFromAddress(testBuyer), topicFromBig(7)},
		nil)

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	transferred, ok := event.(domain.Transferred)
	require.True(t, ok)
	assert.Equal(t, "7", transferred.TokenNumber)
	assert.Equal(t, domain.NormalizeAddress(testSeller.Hex()), transferred.From)
	assert.Equal(t, domain.NormalizeAddress(testBuyer.Hex()), transferred.To)
}

func TestNormalizeTransferFromZeroAddressSkipped(t *testing.T) {
	raw := baseLog(testNFTAddr,
		[]common.Hash{TransferTopic, topicFromAddress(common.Address{}), topicFromAddress(testBuyer), topicFromBig(7)},
		nil)

	event, err := Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestNormalizeERC20TransferSkipped(t *testing.T) {
	// ERC20 Transfer has the same signature but only two indexed topics
	raw := baseLog(testNFTAddr,
		[]common.Hash{TransferTopic, topicFromAddress(testSeller), topicFromAddress(testBuyer)},
		common.BigToHash(big.NewInt(1000)).Bytes())

	event, err := Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestNormalizeListingCreated(t *testing.T) {
	raw := baseLog(testMarketAddr,
		[]common.Hash{ListingCreatedTopic, topicFromBig(42), topicFromAddress(testSeller)},
		packData(t, "ListingCreated", big.NewInt(7), big.NewInt(1500000000000000000), testNFTAddr))

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	created, ok := event.(domain.ListingCreated)
	require.True(t, ok)
	assert.Equal(t, int64(42), created.LedgerID)
	assert.Equal(t, "7", created.TokenNumber)
	assert.Equal(t, domain.NormalizeAddress(testSeller.Hex()), created.Seller)
	assert.Equal(t, "1500000000000000000", created.PriceWei.String())
	assert.Equal(t, domain.NormalizeAddress(testNFTAddr.Hex()), created.TokenAddress)
}

func TestNormalizeListingUpdated(t *testing.T) {
	raw := baseLog(testMarketAddr,
		[]common.Hash{ListingUpdatedTopic, topicFromBig(42)},
		packData(t, "ListingUpdated", big.NewInt(2000000000000000000)))

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	updated, ok := event.(domain.ListingUpdated)
	require.True(t, ok)
	assert.Equal(t, int64(42), updated.LedgerID)
	assert.Equal(t, "2000000000000000000", updated.NewPriceWei.String())
}

func TestNormalizeListingCancelled(t *testing.T) {
	raw := baseLog(testMarketAddr,
		[]common.Hash{ListingCancelledTopic, topicFromBig(42)},
		nil)

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	cancelled, ok := event.(domain.ListingCancelled)
	require.True(t, ok)
	assert.Equal(t, int64(42), cancelled.LedgerID)
}

func TestNormalizeSold(t *testing.T) {
	raw := baseLog(testMarketAddr,
		[]common.Hash{SoldTopic, topicFromBig(42), topicFromAddress(testBuyer), topicFromAddress(testSeller)},
		packData(t, "NFTSold", big.NewInt(7), big.NewInt(1500000000000000000)))

	event, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, event)

	sold, ok := event.(domain.Sold)
	require.True(t, ok)
	assert.Equal(t, int64(42), sold.LedgerID)
	assert.Equal(t, "7", sold.TokenNumber)
	assert.Equal(t, domain.NormalizeAddress(testBuyer.Hex()), sold.Buyer)
	assert.Equal(t, domain.NormalizeAddress(testSeller.Hex()), sold.Seller)
	assert.Equal(t, "1500000000000000000", sold.PriceWei.String())
}

func TestNormalizeUnknownTopicSkipped(t *testing.T) {
	unknown := crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	raw := baseLog(testNFTAddr,
		[]common.Hash{unknown, topicFromAddress(testSeller), topicFromAddress(testBuyer), topicFromBig(7)},
		nil)

	event, err := Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestNormalizeEmptyLogSkipped(t *testing.T) {
	event, err := Normalize(types.Log{})
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestNormalizeMalformedMinted(t *testing.T) {
	// Missing the owner topic
	raw := baseLog(testNFTAddr,
		[]common.Hash{MintedTopic, topicFromBig(7)},
		packData(t, "NFTMinted", "ipfs://QmMeta"))

	event, err := Normalize(raw)
	require.Error(t, err)
	assert.Nil(t, event)
}
