// Package ingest maps chain-native transfers into one canonical record.
package ingest

import (
	"github.com/brojonat/chainsync/service/chain"
)

// Categories of a canonical transfer.
const (
	CategoryNative   = "native"
	CategoryFungible = "fungible"
	CategoryNFT      = "nft"
	// CategoryTransfer is the generic tag for chains without richer classification.
	CategoryTransfer = "transfer"
)

// Direction tags relative to the synced wallet.
const (
	TransferIn  = "transfer_in"
	TransferOut = "transfer_out"
)

// TransferRecord is the cross-chain representation of one transfer.
// Value is a base-10 integer string in the asset's smallest unit.
type TransferRecord struct {
	Hash            string      `json:"hash"`
	Chain           chain.Chain `json:"chain"`
	From            string      `json:"from"`
	To              *string     `json:"to"`
	Asset           *string     `json:"asset"`
	Value           string      `json:"value"`
	Category        string      `json:"category"`
	Block           string      `json:"block"`
	Timestamp       string      `json:"timestamp"`
	ContractAddress *string     `json:"contract_address,omitempty"`
	Decimals        *int        `json:"decimals,omitempty"`
}

// Key identifies a transfer across queries.
type Key struct {
	Hash  string
	Chain chain.Chain
}

// Key returns the (hash, chain) identity of r.
func (r TransferRecord) Key() Key {
	return Key{Hash: r.Hash, Chain: r.Chain}
}

// IsSent reports whether wallet is the sender of r.
func (r TransferRecord) IsSent(wallet string) bool {
	return chain.SameAddress(r.From, wallet)
}

// Direction returns TransferOut if wallet sent r and TransferIn otherwise.
func (r TransferRecord) Direction(wallet string) string {
	if r.IsSent(wallet) {
		return TransferOut
	}
	return TransferIn
}

// Dedupe drops records whose (hash, chain) was already seen, keeping the
// first occurrence and the input order. The ledger stores one transfer per
// transaction: further legs of the same transaction, such as the incoming
// side of a token swap, are dropped here and by the ledger's primary key.
func Dedupe(records []TransferRecord) []TransferRecord {
	seen := make(map[Key]struct{}, len(records))
	out := make([]TransferRecord, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
