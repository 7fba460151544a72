package approvals

import (
	"errors"
)

// NoSignerError is returned by Revoke when no signing capability is
// configured. It is shown to the user as-is and never retried.
type NoSignerError struct{}

func (e *NoSignerError) Error() string {
	return "no wallet signer is configured; connect a signer to revoke approvals"
}

var (
	// ErrAlreadyRevoked is returned when revoking a revoked approval.
	ErrAlreadyRevoked = errors.New("approval is already revoked")
	// ErrNotRevoked is returned when re-approving an approval that was never revoked.
	ErrNotRevoked = errors.New("approval is not revoked")
)
