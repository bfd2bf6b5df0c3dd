package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arc-market/arc-indexer/internal/domain"
)

// Event signatures emitted by the NFT and marketplace contracts
var (
	// MintedTopic is the NFTMinted event signature
	MintedTopic = crypto.Keccak256Hash([]byte("NFTMinted(uint256,address,string)"))
	// TransferTopic is the ERC721 Transfer event signature
	TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	// ListingCreatedTopic is the marketplace ListingCreated event signature
	ListingCreatedTopic = crypto.Keccak256Hash([]byte("ListingCreated(uint256,address,uint256,uint256,address)"))
	// ListingUpdatedTopic is the marketplace ListingUpdated event signature
	ListingUpdatedTopic = crypto.Keccak256Hash([]byte("ListingUpdated(uint256,uint256)"))
	// ListingCancelledTopic is the marketplace ListingCancelled event signature
	ListingCancelledTopic = crypto.Keccak256Hash([]byte("ListingCancelled(uint256)"))
	// SoldTopic is the marketplace NFTSold event signature
	SoldTopic = crypto.Keccak256Hash([]byte("NFTSold(uint256,address,address,uint256,uint256)"))
)

const eventsABIJSON = `[
	{"type":"event","name":"NFTMinted","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"metadataURI","type":"string","indexed":false}]},
	{"type":"event","name":"ListingCreated","inputs":[{"name":"listingId","type":"uint256","indexed":true},{"name":"seller","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":false},{"name":"price","type":"uint256","indexed":false},{"name":"tokenAddress","type":"address","indexed":false}]},
	{"type":"event","name":"ListingUpdated","inputs":[{"name":"listingId","type":"uint256","indexed":true},{"name":"newPrice","type":"uint256","indexed":false}]},
	{"type":"event","name":"ListingCancelled","inputs":[{"name":"listingId","type":"uint256","indexed":true}]},
	{"type":"event","name":"NFTSold","inputs":[{"name":"listingId","type":"uint256","indexed":true},{"name":"buyer","type":"address","indexed":true},{"name":"seller","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":false},{"name":"price","type":"uint256","indexed":false}]}
]`

var eventsABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(eventsABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse events ABI: %v", err))
	}
	return parsed
}()

// Normalize translates a raw log into a typed domain event. Logs that carry
// no marketplace meaning return (nil, nil): unknown topics, ERC20-style
// Transfer logs without an indexed token id, and Transfer from the zero
// address (the mint is indexed through NFTMinted instead). A recognized
// topic with a malformed payload returns an error.
func Normalize(raw types.Log) (domain.Event, error) {
	if len(raw.Topics) == 0 {
		return nil, nil
	}

	meta := domain.EventMeta{
		ContractAddress: domain.NormalizeAddress(raw.Address.Hex()),
		BlockNumber:     raw.BlockNumber,
		TxHash:          raw.TxHash.Hex(),
		LogIndex:        raw.Index,
	}

	switch raw.Topics[0] {
	case MintedTopic:
		if len(raw.Topics) != 3 {
			return nil, fmt.Errorf("malformed NFTMinted log: %d topics", len(raw.Topics))
		}
		data, err := eventsABI.Events["NFTMinted"].Inputs.NonIndexed().Unpack(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack NFTMinted data: %w", err)
		}
		metadataURI, ok := data[0].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected NFTMinted metadataURI type: %T", data[0])
		}
		return domain.Minted{
			EventMeta:   meta,
			TokenNumber: topicBigInt(raw.Topics[1]).String(),
			Owner:       topicAddress(raw.Topics[2]),
			MetadataURI: metadataURI,
		}, nil

	case TransferTopic:
		// ERC20 Transfer shares this signature but carries the amount in
		// the data field instead of a third indexed topic
		if len(raw.Topics) != 4 {
			return nil, nil
		}
		from := topicAddress(raw.Topics[1])
		if from == domain.ZERO_ADDRESS {
			return nil, nil
		}
		return domain.Transferred{
			EventMeta:   meta,
			TokenNumber: topicBigInt(raw.Topics[3]).String(),
			From:        from,
			To:          topicAddress(raw.Topics[2]),
		}, nil

	case ListingCreatedTopic:
		if len(raw.Topics) != 3 {
			return nil, fmt.Errorf("malformed ListingCreated log: %d topics", len(raw.Topics))
		}
		data, err := eventsABI.Events["ListingCreated"].Inputs.NonIndexed().Unpack(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack ListingCreated data: %w", err)
		}
		tokenID, ok := data[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected ListingCreated tokenId type: %T", data[0])
		}
		price, ok := data[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected ListingCreated price type: %T", data[1])
		}
		tokenAddress, ok := data[2].(common.Address)
		if !ok {
			return nil, fmt.Errorf("unexpected ListingCreated tokenAddress type: %T", data[2])
		}
		return domain.ListingCreated{
			EventMeta:    meta,
			LedgerID:     topicBigInt(raw.Topics[1]).Int64(),
			Seller:       topicAddress(raw.Topics[2]),
			TokenNumber:  tokenID.String(),
			PriceWei:     price,
			TokenAddress: domain.NormalizeAddress(tokenAddress.Hex()),
		}, nil

	case ListingUpdatedTopic:
		if len(raw.Topics) != 2 {
			return nil, fmt.Errorf("malformed ListingUpdated log: %d topics", len(raw.Topics))
		}
		data, err := eventsABI.Events["ListingUpdated"].Inputs.NonIndexed().Unpack(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack ListingUpdated data: %w", err)
		}
		newPrice, ok := data[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected ListingUpdated newPrice type: %T", data[0])
		}
		return domain.ListingUpdated{
			EventMeta:   meta,
			LedgerID:    topicBigInt(raw.Topics[1]).Int64(),
			NewPriceWei: newPrice,
		}, nil

	case ListingCancelledTopic:
		if len(raw.Topics) != 2 {
			return nil, fmt.Errorf("malformed ListingCancelled log: %d topics", len(raw.Topics))
		}
		return domain.ListingCancelled{
			EventMeta: meta,
			LedgerID:  topicBigInt(raw.Topics[1]).Int64(),
		}, nil

	case SoldTopic:
		if len(raw.Topics) != 4 {
			return nil, fmt.Errorf("malformed NFTSold log: %d topics", len(raw.Topics))
		}
		data, err := eventsABI.Events["NFTSold"].Inputs.NonIndexed().Unpack(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack NFTSold data: %w", err)
		}
		tokenID, ok := data[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected NFTSold tokenId type: %T", data[0])
		}
		price, ok := data[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected NFTSold price type: %T", data[1])
		}
		return domain.Sold{
			EventMeta:   meta,
			LedgerID:    topicBigInt(raw.Topics[1]).Int64(),
			TokenNumber: tokenID.String(),
			Buyer:       topicAddress(raw.Topics[2]),
			Seller:      topicAddress(raw.Topics[3]),
			PriceWei:    price,
		}, nil

	default:
		return nil, nil
	}
}

func topicBigInt(topic common.Hash) *big.Int {
	return new(big.Int).SetBytes(topic.Bytes())
}

func topicAddress(topic common.Hash) string {
	return domain.NormalizeAddress(common.BytesToAddress(topic.Bytes()).Hex())
}
