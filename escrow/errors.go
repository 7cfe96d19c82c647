package escrow

import "errors"

// The error taxonomy of the escrow state machine. Every guard violation
// surfaces exactly one of these sentinels (possibly wrapped with context) so
// callers can match on the failed guard with errors.Is.
var (
	// ErrNotFound signals that the referenced escrow identifier does not
	// exist.
	ErrNotFound = errors.New("escrow: not found")
	// ErrUnauthorized signals that the caller is not a permitted party for
	// the requested operation.
	ErrUnauthorized = errors.New("escrow: unauthorized caller")
	// ErrInvalidState signals that the operation is not legal in the
	// record's current state.
	ErrInvalidState = errors.New("escrow: invalid state for operation")
	// ErrInvalidAmount signals that the attached value does not match the
	// agreed amount, or the amount is otherwise invalid.
	ErrInvalidAmount = errors.New("escrow: invalid amount")
	// ErrSelfDealing signals that buyer and seller identities are identical
	// at creation.
	ErrSelfDealing = errors.New("escrow: buyer and seller must differ")
	// ErrAlreadyApproved signals that the caller's approval flag is already
	// set.
	ErrAlreadyApproved = errors.New("escrow: party already approved")
	// ErrTransferFailed signals that the underlying value-movement
	// primitive rejected the transfer, for example when the buyer's
	// balance does not cover the deposit. The record is left unchanged.
	ErrTransferFailed = errors.New("escrow: transfer failed")
)
