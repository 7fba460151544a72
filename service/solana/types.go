package solana

import (
	"time"
)

// Transaction represents a parsed Solana transaction.
// This is our domain model, independent of the RPC response format.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   *time.Time // nil when the provider did not report a block time
	Amount      uint64     // lamports for SOL, base units for SPL tokens
	TokenMint   *string    // nil for native SOL transfers
	Decimals    *int       // set by TransferChecked instructions
	Memo        *string    // parsed from transaction instructions
	FromAddress *string    // sender (transfer authority or fee payer), nil if cannot be determined
	ToAddress   *string    // recipient account, nil if the transaction has no transfer instruction
	Err         *string    // nil if transaction succeeded, contains error message if failed
}

// NativeHash implements chain.Native.
func (t *Transaction) NativeHash() string {
	if t == nil {
		return ""
	}
	return t.Signature
}

// TokenAccount is one SPL token holding owned by a wallet.
type TokenAccount struct {
	Address  string
	Mint     string
	Amount   string
	Decimals int
}
