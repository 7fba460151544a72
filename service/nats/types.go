package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/ingest"
	"github.com/google/uuid"
)

// SyncProgressEvent is a sync run progress update. It is published to
// "sync.{run_id}" after every state change and every processed record.
type SyncProgressEvent struct {
	RunID         uuid.UUID   `json:"run_id"`
	OwnerID       string      `json:"owner_id"`
	WalletAddress string      `json:"wallet_address"`
	Chain         chain.Chain `json:"chain"`
	Status        string      `json:"status"`
	Imported      int         `json:"imported"`
	Total         int         `json:"total"`
	Error         string      `json:"error,omitempty"`
	PublishedAt   time.Time   `json:"published_at"`
}

// Terminal reports whether the event closes its run's stream.
func (e *SyncProgressEvent) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

// TransferEvent is an imported transfer. It is published to
// "transfers.{chain}.{wallet_address}".
type TransferEvent struct {
	RunID         uuid.UUID             `json:"run_id"`
	OwnerID       string                `json:"owner_id"`
	WalletAddress string                `json:"wallet_address"`
	Direction     string                `json:"direction"`
	Transfer      ingest.TransferRecord `json:"transfer"`
	PublishedAt   time.Time             `json:"published_at"`
}

// ProgressSubject returns the subject carrying progress for one run.
func ProgressSubject(runID uuid.UUID) string {
	return fmt.Sprintf("sync.%s", runID)
}

// TransferSubject returns the subject carrying transfers for one wallet.
func TransferSubject(c chain.Chain, wallet string) string {
	return fmt.Sprintf("transfers.%s.%s", c, chain.CanonicalAddress(c, wallet))
}
