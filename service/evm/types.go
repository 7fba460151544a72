package evm

// Transfer categories understood by alchemy_getAssetTransfers.
const (
	CategoryExternal    = "external"
	CategoryInternal    = "internal"
	CategoryERC20       = "erc20"
	CategoryERC721      = "erc721"
	CategoryERC1155     = "erc1155"
	CategorySpecialNFT  = "specialnft"
	maxCountPerPage     = 1000
	defaultMaxCount     = 1000
	latestBlock         = "latest"
	genesisBlock        = "0x0"
	metadataCacheSize   = 1024
	defaultRequestsPerS = 10
)

// AssetTransfer is one entry of an alchemy_getAssetTransfers response.
// Value is the provider's decoded float and is never read;
// RawContract.Value carries the exact integer amount.
type AssetTransfer struct {
	BlockNum        string            `json:"blockNum"`
	UniqueID        string            `json:"uniqueId"`
	Hash            string            `json:"hash"`
	From            string            `json:"from"`
	To              *string           `json:"to"`
	Value           *float64          `json:"value"`
	ERC721TokenID   *string           `json:"erc721TokenId"`
	ERC1155Metadata []ERC1155Metadata `json:"erc1155Metadata"`
	TokenID         *string           `json:"tokenId"`
	Asset           *string           `json:"asset"`
	Category        string            `json:"category"`
	RawContract     RawContract       `json:"rawContract"`
	Metadata        *TransferMetadata `json:"metadata,omitempty"`
}

// NativeHash implements chain.Native.
func (t *AssetTransfer) NativeHash() string {
	if t == nil {
		return ""
	}
	return t.Hash
}

// RawContract holds the undecoded amount and token contract details.
type RawContract struct {
	Value   *string `json:"value"`
	Address *string `json:"address"`
	Decimal *string `json:"decimal"`
}

// ERC1155Metadata is one token id/value pair of a multi-token transfer.
type ERC1155Metadata struct {
	TokenID string `json:"tokenId"`
	Value   string `json:"value"`
}

// TransferMetadata is present when the query asked for withMetadata.
type TransferMetadata struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

type assetTransfersParams struct {
	FromBlock        string   `json:"fromBlock"`
	ToBlock          string   `json:"toBlock"`
	FromAddress      string   `json:"fromAddress,omitempty"`
	ToAddress        string   `json:"toAddress,omitempty"`
	Category         []string `json:"category"`
	WithMetadata     bool     `json:"withMetadata"`
	ExcludeZeroValue bool     `json:"excludeZeroValue"`
	MaxCount         string   `json:"maxCount"`
	PageKey          string   `json:"pageKey,omitempty"`
}

type assetTransfersResult struct {
	Transfers []*AssetTransfer `json:"transfers"`
	PageKey   string           `json:"pageKey"`
}

type tokenBalancesResult struct {
	Address       string `json:"address"`
	TokenBalances []struct {
		ContractAddress string  `json:"contractAddress"`
		TokenBalance    *string `json:"tokenBalance"`
		Error           *string `json:"error"`
	} `json:"tokenBalances"`
}

// TokenMetadata describes an ERC-20 contract.
type TokenMetadata struct {
	Name     *string `json:"name"`
	Symbol   *string `json:"symbol"`
	Decimals *int    `json:"decimals"`
	Logo     *string `json:"logo"`
}

type callMsg struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Data string `json:"data"`
}
