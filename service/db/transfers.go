package db

import (
	"context"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db/dbgen"
	"github.com/brojonat/chainsync/service/ingest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transfer is a ledger row: a canonical transfer attributed to one of the
// owner's wallets.
type Transfer struct {
	ingest.TransferRecord
	OwnerID       string    `json:"owner_id"`
	WalletAddress string    `json:"wallet_address"`
	Direction     string    `json:"direction"`
	SyncRunID     uuid.UUID `json:"sync_run_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// InsertTransferParams contains one normalized record and its attribution.
type InsertTransferParams struct {
	OwnerID       string
	WalletAddress string
	Direction     string
	SyncRunID     uuid.UUID
	Record        ingest.TransferRecord
}

// ListTransfersParams filters the ledger.
type ListTransfersParams struct {
	OwnerID       string
	Chain         *chain.Chain
	WalletAddress *string
	Limit         int32
	Offset        int32
}

// InsertTransfer writes a record to the ledger. A record whose (hash, chain)
// is already stored for the owner is ignored and reported with inserted=false.
func (s *Store) InsertTransfer(ctx context.Context, params InsertTransferParams) (bool, error) {
	r := params.Record
	arg := dbgen.InsertTransferParams{
		OwnerID:         params.OwnerID,
		Chain:           string(r.Chain),
		Hash:            r.Hash,
		WalletAddress:   chain.CanonicalAddress(r.Chain, params.WalletAddress),
		Direction:       params.Direction,
		FromAddress:     r.From,
		ToAddress:       pgtextFromStringPtr(r.To),
		Asset:           pgtextFromStringPtr(r.Asset),
		Value:           r.Value,
		Category:        r.Category,
		Block:           r.Block,
		BlockTimestamp:  r.Timestamp,
		ContractAddress: pgtextFromStringPtr(r.ContractAddress),
		Decimals:        pgint4FromIntPtr(r.Decimals),
	}
	if params.SyncRunID != uuid.Nil {
		arg.SyncRunID = pguuid(params.SyncRunID)
	}

	start := time.Now()
	n, err := s.q.InsertTransfer(ctx, arg)
	s.observe("insert", "transfers", start, err)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListTransfers retrieves ledger rows, newest first.
func (s *Store) ListTransfers(ctx context.Context, params ListTransfersParams) ([]*Transfer, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}
	arg := dbgen.ListTransfersParams{
		OwnerID:       params.OwnerID,
		WalletAddress: pgtextFromStringPtr(params.WalletAddress),
		LimitCount:    limit,
		OffsetCount:   params.Offset,
	}
	if params.Chain != nil {
		arg.Chain = pgtype.Text{String: string(*params.Chain), Valid: true}
		if params.WalletAddress != nil {
			addr := chain.CanonicalAddress(*params.Chain, *params.WalletAddress)
			arg.WalletAddress = pgtype.Text{String: addr, Valid: true}
		}
	}

	start := time.Now()
	results, err := s.q.ListTransfers(ctx, arg)
	s.observe("select", "transfers", start, err)
	if err != nil {
		return nil, err
	}

	transfers := make([]*Transfer, len(results))
	for i := range results {
		transfers[i] = dbTransferToDomain(&results[i])
	}
	return transfers, nil
}

// CountTransfers counts an owner's ledger rows.
func (s *Store) CountTransfers(ctx context.Context, ownerID string) (int64, error) {
	start := time.Now()
	n, err := s.q.CountTransfers(ctx, ownerID)
	s.observe("select", "transfers", start, err)
	return n, err
}

func dbTransferToDomain(db *dbgen.Transfer) *Transfer {
	return &Transfer{
		TransferRecord: ingest.TransferRecord{
			Hash:            db.Hash,
			Chain:           chain.Chain(db.Chain),
			From:            db.FromAddress,
			To:              stringPtrFromPgtext(db.ToAddress),
			Asset:           stringPtrFromPgtext(db.Asset),
			Value:           db.Value,
			Category:        db.Category,
			Block:           db.Block,
			Timestamp:       db.BlockTimestamp,
			ContractAddress: stringPtrFromPgtext(db.ContractAddress),
			Decimals:        intPtrFromPgint4(db.Decimals),
		},
		OwnerID:       db.OwnerID,
		WalletAddress: db.WalletAddress,
		Direction:     db.Direction,
		SyncRunID:     uuidFromPg(db.SyncRunID),
		CreatedAt:     db.CreatedAt.Time,
	}
}
