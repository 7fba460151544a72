package solana

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTransactionEnvelope builds a TransactionResultEnvelope from a Transaction.
// The envelope has unexported fields, so we go through JSON.
func makeTransactionEnvelope(tx *solana.Transaction) (*rpc.TransactionResultEnvelope, error) {
	txJSON, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	var temp struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	temp.Transaction = txJSON

	envelopeJSON, err := json.Marshal(temp)
	if err != nil {
		return nil, err
	}

	var result rpc.GetTransactionResult
	if err := json.Unmarshal(envelopeJSON, &result); err != nil {
		return nil, err
	}
	return result.Transaction, nil
}

func systemTransferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], SystemProgramTransferInstruction)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

func parseTestTransaction(t *testing.T, tx *solana.Transaction, blockTime *solana.UnixTimeSeconds) *Transaction {
	t.Helper()
	sig := &rpc.TransactionSignature{
		Signature: testSignature(7),
		Slot:      100,
		BlockTime: blockTime,
	}
	envelope, err := makeTransactionEnvelope(tx)
	require.NoError(t, err)

	txn, err := parseTransactionFromResult(sig, &rpc.GetTransactionResult{Transaction: envelope})
	require.NoError(t, err)
	return txn
}

func TestParseTransaction_SOLTransfer(t *testing.T) {
	fromAddr := solana.NewWallet().PublicKey()
	toAddr := solana.NewWallet().PublicKey()
	now := solana.UnixTimeSeconds(time.Now().Unix())

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{fromAddr, toAddr, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{
					ProgramIDIndex: 2,
					Accounts:       []uint16{0, 1}, // from, to
					Data:           systemTransferData(1000000000),
				},
			},
		},
	}

	txn := parseTestTransaction(t, tx, &now)

	assert.Equal(t, testSignature(7).String(), txn.Signature)
	assert.Equal(t, uint64(1000000000), txn.Amount)
	assert.Nil(t, txn.TokenMint) // SOL transfers have no token mint
	require.NotNil(t, txn.FromAddress)
	assert.Equal(t, fromAddr.String(), *txn.FromAddress)
	require.NotNil(t, txn.ToAddress)
	assert.Equal(t, toAddr.String(), *txn.ToAddress)
	require.NotNil(t, txn.BlockTime)
	assert.Equal(t, now.Time().UTC(), *txn.BlockTime)
	assert.Nil(t, txn.Err)
}

func TestParseTransaction_LookupTableRecipient(t *testing.T) {
	fromAddr := solana.NewWallet().PublicKey()
	toAddr := solana.NewWallet().PublicKey()
	readOnly := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{fromAddr, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{
					ProgramIDIndex: 1,
					Accounts:       []uint16{0, 2}, // recipient is the first loaded address
					Data:           systemTransferData(5000),
				},
			},
		},
	}
	envelope, err := makeTransactionEnvelope(tx)
	require.NoError(t, err)

	sig := &rpc.TransactionSignature{Signature: testSignature(9), Slot: 100}
	txn, err := parseTransactionFromResult(sig, &rpc.GetTransactionResult{
		Transaction: envelope,
		Meta: &rpc.TransactionMeta{
			LoadedAddresses: rpc.LoadedAddresses{
				Writable: solana.PublicKeySlice{toAddr},
				ReadOnly: solana.PublicKeySlice{readOnly},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(5000), txn.Amount)
	require.NotNil(t, txn.FromAddress)
	assert.Equal(t, fromAddr.String(), *txn.FromAddress)
	require.NotNil(t, txn.ToAddress)
	assert.Equal(t, toAddr.String(), *txn.ToAddress)
}

func TestParseTransaction_SPLTransferChecked(t *testing.T) {
	sourceTokenAccount := solana.NewWallet().PublicKey()
	mintAddr := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v") // USDC mainnet
	destTokenAccount := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	// [0] = 12, [1..9] = amount, [9] = decimals
	data := make([]byte, 10)
	data[0] = TokenProgramTransferCheckedInstruction
	binary.LittleEndian.PutUint64(data[1:9], 1000000)
	data[9] = 6

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{sourceTokenAccount, mintAddr, destTokenAccount, authority, TokenProgramID},
			Instructions: []solana.CompiledInstruction{
				{
					ProgramIDIndex: 4,
					Accounts:       []uint16{0, 1, 2, 3}, // source, mint, dest, authority
					Data:           data,
				},
			},
		},
	}

	txn := parseTestTransaction(t, tx, nil)

	assert.Equal(t, uint64(1000000), txn.Amount)
	require.NotNil(t, txn.TokenMint)
	assert.Equal(t, mintAddr.String(), *txn.TokenMint)
	require.NotNil(t, txn.Decimals)
	assert.Equal(t, 6, *txn.Decimals)
	require.NotNil(t, txn.FromAddress)
	assert.Equal(t, authority.String(), *txn.FromAddress)
	require.NotNil(t, txn.ToAddress)
	assert.Equal(t, destTokenAccount.String(), *txn.ToAddress)
	assert.Nil(t, txn.BlockTime)
}

func TestParseTransaction_SPLTransfer(t *testing.T) {
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	data := make([]byte, 9)
	data[0] = TokenProgramTransferInstruction
	binary.LittleEndian.PutUint64(data[1:9], 42)

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{source, dest, authority, TokenProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 3, Accounts: []uint16{0, 1, 2}, Data: data},
			},
		},
	}

	txn := parseTestTransaction(t, tx, nil)

	assert.Equal(t, uint64(42), txn.Amount)
	assert.Nil(t, txn.TokenMint)
	assert.Equal(t, authority.String(), *txn.FromAddress)
	assert.Equal(t, dest.String(), *txn.ToAddress)
}

func TestParseTransaction_WithMemo(t *testing.T) {
	fromAddr := solana.NewWallet().PublicKey()
	toAddr := solana.NewWallet().PublicKey()
	memoText := `{"invoice": "test-123"}`

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{fromAddr, toAddr, SystemProgramID, MemoProgramIDSPL},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: systemTransferData(1000000000)},
				{ProgramIDIndex: 3, Accounts: []uint16{}, Data: []byte(memoText)},
			},
		},
	}

	txn := parseTestTransaction(t, tx, nil)

	assert.Equal(t, uint64(1000000000), txn.Amount)
	require.NotNil(t, txn.Memo)
	assert.Equal(t, memoText, *txn.Memo)
}

func TestParseTransaction_NoTransferFallsBackToFeePayer(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{payer, program},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 1, Accounts: []uint16{0}, Data: []byte{1, 2, 3}},
			},
		},
	}

	txn := parseTestTransaction(t, tx, nil)

	assert.Equal(t, uint64(0), txn.Amount)
	require.NotNil(t, txn.FromAddress)
	assert.Equal(t, payer.String(), *txn.FromAddress)
	assert.Nil(t, txn.ToAddress)
}

func TestParseTransaction_FirstTransferWins(t *testing.T) {
	a, b, c := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{a, b, c, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 3, Accounts: []uint16{0, 1}, Data: systemTransferData(5)},
				{ProgramIDIndex: 3, Accounts: []uint16{0, 2}, Data: systemTransferData(7)},
			},
		},
	}

	txn := parseTestTransaction(t, tx, nil)

	assert.Equal(t, uint64(5), txn.Amount)
	assert.Equal(t, b.String(), *txn.ToAddress)
}

func TestParseTransaction_Failed(t *testing.T) {
	now := solana.UnixTimeSeconds(time.Now().Unix())
	sigData := &rpc.TransactionSignature{
		Signature: testSignature(1),
		Slot:      100,
		BlockTime: &now,
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "InsufficientFunds"}},
	}

	txn, err := parseTransactionFromResult(sigData, &rpc.GetTransactionResult{})

	require.NoError(t, err)
	assert.Equal(t, testSignature(1).String(), txn.Signature)
	require.NotNil(t, txn.Err)
	assert.Contains(t, *txn.Err, "transaction failed")
}

func TestSignatureToDomain(t *testing.T) {
	now := solana.UnixTimeSeconds(time.Now().Unix())
	rpcSig := &rpc.TransactionSignature{
		Signature: testSignature(3),
		Slot:      12345,
		BlockTime: &now,
	}

	txn := signatureToDomain(rpcSig)

	assert.Equal(t, testSignature(3).String(), txn.Signature)
	assert.Equal(t, uint64(12345), txn.Slot)
	require.NotNil(t, txn.BlockTime)
	assert.Equal(t, now.Time().UTC(), *txn.BlockTime)
	assert.Nil(t, txn.Err)
	assert.Equal(t, txn.Signature, txn.NativeHash())
}

func TestParseMemo(t *testing.T) {
	assert.Equal(t, "test payment", parseMemo([]byte("test payment")))

	encoded := base64.StdEncoding.EncodeToString([]byte("secret message"))
	assert.Equal(t, "secret message", parseMemo([]byte(encoded)))
}

func TestParseSystemTransfer_RejectsOtherInstruction(t *testing.T) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 0) // CreateAccount

	_, err := parseSystemTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: data}, nil)
	assert.Error(t, err)

	_, err = parseSystemTransfer(solana.CompiledInstruction{Data: []byte{2, 0}}, nil)
	assert.Error(t, err)
}

func TestParseTokenTransfer_MissingAccounts(t *testing.T) {
	data := make([]byte, 10)
	data[0] = TokenProgramTransferCheckedInstruction

	_, err := parseTokenTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: data}, nil)
	assert.Error(t, err)
}
