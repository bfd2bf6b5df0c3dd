package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/arc-market/arc-indexer/internal/adapter"
	"github.com/arc-market/arc-indexer/internal/domain"
)

//go:generate mockgen -source=client.go -destination=../mocks/ledger_client.go -package=mocks -mock_names=Client=MockLedgerClient

// Client reads the marketplace and NFT contracts. All errors are classified
// through the domain error taxonomy so callers can tell a transient RPC
// failure from a rejected call.
type Client interface {
	// SubscribeMarketLogs opens a live log subscription covering both the
	// NFT and marketplace contracts, delivering raw logs on ch
	SubscribeMarketLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error)
	// FilterMarketLogs fetches historical logs for both contracts in the
	// given inclusive block range
	FilterMarketLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
	// GetListing reads the marketplace listing state for a token. The
	// marketplace keys listings by (NFT contract, token number); an inactive
	// result means the token is not currently listed.
	GetListing(ctx context.Context, tokenNumber string) (*domain.LedgerListing, error)
	// OwnerOf reads the current owner of a token from the NFT contract
	OwnerOf(ctx context.Context, tokenNumber string) (string, error)
	// TokenURI reads the metadata pointer of a token from the NFT contract
	TokenURI(ctx context.Context, tokenNumber string) (string, error)
	// LatestBlock returns the current head block number
	LatestBlock(ctx context.Context) (uint64, error)
	// Close releases the underlying RPC connection
	Close()
}

type client struct {
	eth            adapter.EthClient
	nftContract    common.Address
	marketContract common.Address
	nftABI         abi.ABI
	marketplaceABI abi.ABI
}

const nftABIJSON = `[
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"}
]`

const marketplaceABIJSON = `[
	{"constant":true,"inputs":[{"name":"nftContract","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"getListing","outputs":[{"name":"seller","type":"address"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// NewClient creates a ledger client bound to the NFT and marketplace
// contract addresses
func NewClient(eth adapter.EthClient, nftContract, marketContract string) (Client, error) {
	nftABI, err := abi.JSON(strings.NewReader(nftABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NFT ABI: %w", err)
	}

	marketplaceABI, err := abi.JSON(strings.NewReader(marketplaceABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse marketplace ABI: %w", err)
	}

	return &client{
		eth:            eth,
		nftContract:    common.HexToAddress(nftContract),
		marketContract: common.HexToAddress(marketContract),
		nftABI:         nftABI,
		marketplaceABI: marketplaceABI,
	}, nil
}

func (c *client) marketQuery(fromBlock, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{c.nftContract, c.marketContract},
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Topics: [][]common.Hash{{
			MintedTopic,
			TransferTopic,
			ListingCreatedTopic,
			ListingUpdatedTopic,
			ListingCancelledTopic,
			SoldTopic,
		}},
	}
}

// SubscribeMarketLogs opens a live log subscription for both contracts
func (c *client) SubscribeMarketLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := c.eth.SubscribeFilterLogs(ctx, c.marketQuery(nil, nil), ch)
	if err != nil {
		return nil, domain.ClassifyRPCError(err)
	}
	return sub, nil
}

// FilterMarketLogs fetches historical logs for both contracts
func (c *client) FilterMarketLogs(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := c.marketQuery(new(big.Int).SetUint64(fromBlock), new(big.Int).SetUint64(toBlock))
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, domain.ClassifyRPCError(err)
	}
	return logs, nil
}

// GetListing reads the marketplace listing state for a token
func (c *client) GetListing(ctx context.Context, tokenNumber string) (*domain.LedgerListing, error) {
	tokenID, ok := new(big.Int).SetString(tokenNumber, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token number: %s", domain.ErrRPCRejected, tokenNumber)
	}

	data, err := c.marketplaceABI.Pack("getListing", c.nftContract, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getListing: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.marketContract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, domain.ClassifyRPCError(err)
	}

	out, err := c.marketplaceABI.Unpack("getListing", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getListing: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("unexpected getListing output length: %d", len(out))
	}

	seller, ok := out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getListing seller type: %T", out[0])
	}
	price, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getListing price type: %T", out[1])
	}
	active, ok := out[2].(bool)
	if !ok {
		return nil, fmt.Errorf("unexpected getListing active type: %T", out[2])
	}

	return &domain.LedgerListing{
		Seller:   domain.NormalizeAddress(seller.Hex()),
		PriceWei: price,
		Active:   active,
	}, nil
}

// OwnerOf reads the current owner of a token
func (c *client) OwnerOf(ctx context.Context, tokenNumber string) (string, error) {
	tokenID, ok := new(big.Int).SetString(tokenNumber, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid token number: %s", domain.ErrRPCRejected, tokenNumber)
	}

	data, err := c.nftABI.Pack("ownerOf", tokenID)
	if err != nil {
		return "", fmt.Errorf("failed to pack ownerOf: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.nftContract,
		Data: data,
	}, nil)
	if err != nil {
		return "", domain.ClassifyRPCError(err)
	}

	var owner common.Address
	if err := c.nftABI.UnpackIntoInterface(&owner, "ownerOf", result); err != nil {
		return "", fmt.Errorf("failed to unpack ownerOf: %w", err)
	}

	return domain.NormalizeAddress(owner.Hex()), nil
}

// TokenURI reads the metadata pointer of a token
func (c *client) TokenURI(ctx context.Context, tokenNumber string) (string, error) {
	tokenID, ok := new(big.Int).SetString(tokenNumber, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid token number: %s", domain.ErrRPCRejected, tokenNumber)
	}

	data, err := c.nftABI.Pack("tokenURI", tokenID)
	if err != nil {
		return "", fmt.Errorf("failed to pack tokenURI: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.nftContract,
		Data: data,
	}, nil)
	if err != nil {
		return "", domain.ClassifyRPCError(err)
	}

	var uri string
	if err := c.nftABI.UnpackIntoInterface(&uri, "tokenURI", result); err != nil {
		return "", fmt.Errorf("failed to unpack tokenURI: %w", err)
	}

	return uri, nil
}

// LatestBlock returns the current head block number
func (c *client) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, domain.ClassifyRPCError(err)
	}
	return header.Number.Uint64(), nil
}

// Close releases the underlying RPC connection
func (c *client) Close() {
	c.eth.Close()
}
