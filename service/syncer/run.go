package syncer

import (
	"github.com/brojonat/chainsync/service/chain"
	"github.com/brojonat/chainsync/service/db"
	"github.com/google/uuid"
)

// Request identifies the wallet to sync and optional bounds.
type Request struct {
	OwnerID       string
	Chain         chain.Chain
	WalletAddress string
	FromBlock     *uint64
	ToBlock       *uint64
	// MaxCount caps records per provider query. Zero means the adapter default.
	MaxCount int
}

// Progress is reported on every state change and after every record.
// Imported counts records processed by this run, not records newly stored.
type Progress struct {
	RunID    uuid.UUID     `json:"run_id"`
	Status   db.SyncStatus `json:"status"`
	Imported int           `json:"imported"`
	Total    int           `json:"total"`
	Error    string        `json:"error,omitempty"`
}

// ProgressFunc receives progress synchronously on the run's goroutine.
// Callers that render progress should throttle on their side.
type ProgressFunc func(Progress)

// Result is the outcome of a finished run.
type Result struct {
	RunID      uuid.UUID     `json:"run_id"`
	Status     db.SyncStatus `json:"status"`
	Imported   int           `json:"imported"`
	Total      int           `json:"total"`
	Failed     int           `json:"failed"`
	Duplicates int           `json:"duplicates"`
	Inserted   int           `json:"inserted"`
	Error      string        `json:"error,omitempty"`
}

// Run is the handle of an executing sync.
type Run struct {
	ID     uuid.UUID
	done   chan struct{}
	result Result
	err    error
}

func newRun(id uuid.UUID) *Run {
	return &Run{ID: id, done: make(chan struct{})}
}

func (r *Run) finish(result Result, err error) {
	r.result = result
	r.err = err
	close(r.done)
}

// Done is closed once the run has reached a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes. A failed run returns its Result
// alongside the error that failed it.
func (r *Run) Wait() (Result, error) {
	<-r.done
	return r.result, r.err
}
