package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNonPositiveAmount rejects zero or negative mutation amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds rejects an outgoing transfer that would drive
	// the balance negative. Nothing is persisted.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// PersistenceError reports a failed store write. The mutation was rolled
// back and the in-memory balance is unchanged; the operation may be
// retried by the caller.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InconsistencyError is the most severe condition the peer can report:
// the remote peer confirmed receipt of a transfer but the local debit
// could not be persisted, so the two peers now disagree about total value
// in circulation. The local balance was not decremented and no record was
// appended.
type InconsistencyError struct {
	Amount       decimal.Decimal
	Counterparty string
	Err          error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("peer %s confirmed transfer of %s but local persistence failed: %v",
		e.Counterparty, e.Amount, e.Err)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }
