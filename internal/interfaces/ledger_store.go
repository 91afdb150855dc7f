package interfaces

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/luckglobal/ontime-peer/internal/models"
)

// ErrNoAccount is returned by LoadAccount when the store holds no wallet
// yet (first run).
var ErrNoAccount = errors.New("no account in store")

// LedgerStore is the durable backing for the single account and its
// append-only transaction log. Apply must persist the new balance and the
// record as one atomic unit: either both are durable or neither is.
type LedgerStore interface {
	// LoadAccount returns the stored account, or ErrNoAccount on first run.
	LoadAccount(ctx context.Context) (models.Account, error)

	// CreateAccount stores a freshly generated account.
	CreateAccount(ctx context.Context, acct models.Account) error

	// Apply atomically writes the new balance and appends rec, returning
	// the record with its store-assigned id and timestamp filled in.
	Apply(ctx context.Context, newBalance decimal.Decimal, rec models.TransactionRecord) (models.TransactionRecord, error)

	// History returns up to limit records, most recent first.
	History(ctx context.Context, limit int) ([]models.TransactionRecord, error)
}
