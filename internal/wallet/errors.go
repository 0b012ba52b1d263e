package wallet

import "errors"

// Domain errors. The first four are expected business outcomes and are
// never retried; ErrTransferFailed is the only one a caller may safely
// retry. HTTP status mapping happens in the server layer.
var (
	// ErrInvalidRequest covers bad input caught before any store I/O.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSelfTransfer means sender and recipient are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrAccountNotFound means the sender or recipient does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds means the debit would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrTransferFailed means the unit of work could not commit after all
	// business checks passed. Nothing was applied.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrAlreadyExists is returned by stores on duplicate account ids,
	// emails, or idempotency keys.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTxConflict is returned by LedgerTx.Commit when a concurrent commit
	// interfered. The engine retries it a bounded number of times.
	ErrTxConflict = errors.New("transaction conflict")
)
