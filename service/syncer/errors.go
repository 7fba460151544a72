package syncer

import (
	"fmt"
)

// PersistenceError is a Ledger Store write failure. At run creation it
// aborts the sync before any provider call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PerRecordError is a failure processing one transfer. It is counted and
// logged; the run continues.
type PerRecordError struct {
	Hash  string
	Stage string
	Err   error
}

func (e *PerRecordError) Error() string {
	return fmt.Sprintf("failed to %s record %s: %v", e.Stage, e.Hash, e.Err)
}

func (e *PerRecordError) Unwrap() error {
	return e.Err
}
