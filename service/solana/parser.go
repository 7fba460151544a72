package solana

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// transferLeg is what a single transfer instruction tells us.
type transferLeg struct {
	amount   uint64
	mint     *solana.PublicKey
	decimals *int
	from     *solana.PublicKey
	to       *solana.PublicKey
}

// signatureToDomain converts an RPC TransactionSignature to our domain Transaction.
// Only the signature list metadata is used; amounts and parties come from
// parseTransactionFromResult.
func signatureToDomain(sig *rpc.TransactionSignature) *Transaction {
	txn := &Transaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}

	if sig.BlockTime != nil {
		bt := sig.BlockTime.Time().UTC()
		txn.BlockTime = &bt
	}

	if sig.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", sig.Err)
		txn.Err = &errMsg
	}

	return txn
}

// parseTransactionFromResult parses a full GetTransactionResult.
// The first System or SPL Token transfer instruction determines amount and
// parties. A transaction without one is attributed to its fee payer with a
// zero amount.
func parseTransactionFromResult(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (*Transaction, error) {
	txn := signatureToDomain(sig)

	if sig.Err != nil || result == nil || result.Transaction == nil {
		return txn, nil
	}

	if txn.BlockTime == nil && result.BlockTime != nil {
		bt := result.BlockTime.Time().UTC()
		txn.BlockTime = &bt
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	accountKeys := resolveAccountKeys(tx, result.Meta)
	var leg *transferLeg
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(SystemProgramID):
			if leg != nil {
				continue
			}
			if l, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				leg = l
			}
		case programID.Equals(TokenProgramID) || programID.Equals(Token2022ProgramID):
			if leg != nil {
				continue
			}
			if l, err := parseTokenTransfer(instruction, accountKeys); err == nil {
				leg = l
			}
		case programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy):
			if memo := parseMemo(instruction.Data); memo != "" {
				txn.Memo = &memo
			}
		}
	}

	if leg == nil {
		if len(accountKeys) > 0 {
			payer := accountKeys[0].String()
			txn.FromAddress = &payer
		}
		return txn, nil
	}

	txn.Amount = leg.amount
	txn.Decimals = leg.decimals
	if leg.mint != nil {
		m := leg.mint.String()
		txn.TokenMint = &m
	}
	if leg.from != nil {
		f := leg.from.String()
		txn.FromAddress = &f
	}
	if leg.to != nil {
		to := leg.to.String()
		txn.ToAddress = &to
	}
	return txn, nil
}

// resolveAccountKeys returns the static keys followed by the writable and
// then read-only addresses a v0 transaction loaded from lookup tables, which
// is the index space its instructions use.
func resolveAccountKeys(tx *solana.Transaction, meta *rpc.TransactionMeta) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	if meta == nil {
		return keys
	}
	keys = append(keys, meta.LoadedAddresses.Writable...)
	return append(keys, meta.LoadedAddresses.ReadOnly...)
}

func accountAt(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey, pos int) *solana.PublicKey {
	if pos >= len(instruction.Accounts) {
		return nil
	}
	idx := int(instruction.Accounts[pos])
	if idx >= len(accountKeys) {
		return nil
	}
	addr := accountKeys[idx]
	return &addr
}

// parseSystemTransfer extracts amount, source and destination from a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*transferLeg, error) {
	// [0..4]  = instruction type (u32, 2 = Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// accounts: [from, to]
	return &transferLeg{
		amount: binary.LittleEndian.Uint64(instruction.Data[4:12]),
		from:   accountAt(instruction, accountKeys, 0),
		to:     accountAt(instruction, accountKeys, 1),
	}, nil
}

// parseTokenTransfer extracts amount, mint and parties from an SPL Token transfer instruction.
// The sender is the signing authority (a wallet); the recipient is the
// destination token account, since the owning wallet is not in the instruction.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*transferLeg, error) {
	if len(instruction.Data) == 0 {
		return nil, fmt.Errorf("empty instruction data")
	}

	switch instruction.Data[0] {
	case TokenProgramTransferInstruction:
		// [0] = 3, [1..9] = amount
		// accounts: [source, destination, authority]
		if len(instruction.Data) < 9 {
			return nil, fmt.Errorf("transfer instruction data too short")
		}
		if len(instruction.Accounts) < 3 {
			return nil, fmt.Errorf("transfer missing accounts")
		}
		return &transferLeg{
			amount: binary.LittleEndian.Uint64(instruction.Data[1:9]),
			from:   accountAt(instruction, accountKeys, 2),
			to:     accountAt(instruction, accountKeys, 1),
		}, nil

	case TokenProgramTransferCheckedInstruction:
		// [0] = 12, [1..9] = amount, [9] = decimals
		// accounts: [source, mint, destination, authority, ...]
		if len(instruction.Data) < 10 {
			return nil, fmt.Errorf("transferChecked instruction data too short")
		}
		if len(instruction.Accounts) < 4 {
			return nil, fmt.Errorf("transferChecked missing accounts")
		}
		mint := accountAt(instruction, accountKeys, 1)
		if mint == nil {
			return nil, fmt.Errorf("mint account index out of bounds")
		}
		decimals := int(instruction.Data[9])
		return &transferLeg{
			amount:   binary.LittleEndian.Uint64(instruction.Data[1:9]),
			mint:     mint,
			decimals: &decimals,
			from:     accountAt(instruction, accountKeys, 3),
			to:       accountAt(instruction, accountKeys, 2),
		}, nil

	default:
		return nil, fmt.Errorf("unknown token instruction type: %d", instruction.Data[0])
	}
}

// parseMemo extracts the memo text from a Memo Program instruction.
// Some memos are base64 encoded, others are plain UTF-8.
func parseMemo(data []byte) string {
	memo := string(data)
	if decoded, err := base64.StdEncoding.DecodeString(memo); err == nil && isValidUTF8(decoded) {
		return string(decoded)
	}
	return memo
}

// isValidUTF8 rejects decoded payloads containing NUL bytes.
func isValidUTF8(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}

// parsedTokenAccount is the jsonParsed shape of an SPL token account.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals int    `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
		Type string `json:"type"`
	} `json:"parsed"`
}

// parseTokenAccount decodes a jsonParsed token account returned by getTokenAccountsByOwner.
func parseTokenAccount(address string, raw json.RawMessage) (*TokenAccount, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("token account %s has no parsed data", address)
	}
	var acct parsedTokenAccount
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("failed to decode token account %s: %w", address, err)
	}
	info := acct.Parsed.Info
	if info.Mint == "" {
		return nil, fmt.Errorf("token account %s has no mint", address)
	}
	return &TokenAccount{
		Address:  address,
		Mint:     info.Mint,
		Amount:   info.TokenAmount.Amount,
		Decimals: info.TokenAmount.Decimals,
	}, nil
}
