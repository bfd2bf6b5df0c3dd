package domain

// ZERO_ADDRESS is the Ethereum zero address, used by mint and burn transfers
const ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

// PRICE_DECIMALS is the number of decimals of the marketplace settlement
// token. USDC uses 18 decimals on Arc Layer 1.
const PRICE_DECIMALS = 18

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	// ChainArcMainnet represents Arc Layer 1 mainnet
	ChainArcMainnet Chain = "eip155:5042001"
	// ChainArcTestnet represents Arc Layer 1 testnet (chain ID: 5042002)
	ChainArcTestnet Chain = "eip155:5042002"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainArcMainnet || chain == ChainArcTestnet
}
