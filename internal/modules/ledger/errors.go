package ledger

import "errors"

// Error taxonomy surfaced by the engine. Handlers map these to HTTP status
// codes; everything else is an infrastructure failure.
var (
	// ErrInvalidOrder rejects non-positive quantity or price before any
	// store access.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientFunds rejects a buy exceeding the cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings rejects a sell exceeding the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrAccountNotFound means the user has no account row.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConflict means the transaction could not be serialized; the caller
	// may retry (with an idempotency key to be safe).
	ErrConflict = errors.New("transaction conflict")

	// ErrTimeout means the transaction did not commit within bounds; no
	// partial effect remains.
	ErrTimeout = errors.New("transaction timed out")

	// ErrStoreUnavailable means the underlying store is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvariantViolated means a post-mutation consistency check failed.
	// This is a programming error; the transaction is aborted rather than
	// persisting a corrupted state.
	ErrInvariantViolated = errors.New("ledger invariant violated")
)
