// Package ledger holds the single in-process authority over the
// account balance. Every mutation, whether it originates from the
// issuance timer, an inbound network transfer, or a confirmed outbound
// send, is serialized through one Ledger instance; no other component
// may touch the balance.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/models"
	"github.com/luckglobal/ontime-peer/internal/models/events"
)

// Ledger serializes all balance mutations behind one mutex and caches
// the current balance so reads never hit the store.
type Ledger struct {
	store interfaces.LedgerStore
	pub   interfaces.EventPublisher
	log   zerolog.Logger
	mu    sync.Mutex
	acct  models.Account
}

// Open loads the account from the store, creating a fresh one with
// newAddress and a zero balance on first run.
func Open(ctx context.Context, store interfaces.LedgerStore, pub interfaces.EventPublisher, newAddress func() string, log zerolog.Logger) (*Ledger, error) {
	acct, err := store.LoadAccount(ctx)
	if errors.Is(err, interfaces.ErrNoAccount) {
		acct = models.Account{Address: newAddress(), Balance: decimal.Zero}
		if err := store.CreateAccount(ctx, acct); err != nil {
			return nil, &PersistenceError{Err: err}
		}
		log.Info().Str("address", acct.Address).Msg("new wallet created")
	} else if err != nil {
		return nil, &PersistenceError{Err: err}
	} else {
		log.Info().Str("address", acct.Address).Stringer("balance", acct.Balance).Msg("wallet loaded")
	}

	return &Ledger{
		store: store,
		pub:   pub,
		log:   log.With().Str("component", "ledger").Logger(),
		acct:  acct,
	}, nil
}

// Address returns the stable wallet address.
func (l *Ledger) Address() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acct.Address
}

// Balance returns the cached balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acct.Balance
}

// defaultHistoryLimit is substituted for a non-positive limit so every
// store implementation sees the same positive bound.
const defaultHistoryLimit = 100

// History returns up to limit transaction records, most recent first.
// A non-positive limit is normalized to defaultHistoryLimit.
func (l *Ledger) History(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	recs, err := l.store.History(ctx, limit)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return recs, nil
}

// ApplyIssuance credits the scheduled issuance amount. No counterparty.
func (l *Ledger) ApplyIssuance(ctx context.Context, amount decimal.Decimal, details string) (decimal.Decimal, error) {
	return l.apply(ctx, models.TxIssuance, amount, "", details)
}

// ApplyIncoming credits a transfer received from a remote peer.
func (l *Ledger) ApplyIncoming(ctx context.Context, amount decimal.Decimal, counterparty, details string) (decimal.Decimal, error) {
	return l.apply(ctx, models.TxReceived, amount, counterparty, details)
}

// ApplyOutgoing debits a transfer the remote peer has already
// acknowledged. Rejected with ErrInsufficientFunds before any store
// write if the debit would overdraw the account.
func (l *Ledger) ApplyOutgoing(ctx context.Context, amount decimal.Decimal, counterparty, details string) (decimal.Decimal, error) {
	return l.apply(ctx, models.TxSent, amount, counterparty, details)
}

// apply performs one atomic mutation: compute the new balance, reject
// overdrafts, persist balance + record together, update the cache, then
// notify. A store failure leaves the cached balance untouched and
// surfaces as *PersistenceError. The critical section covers only the
// compute + persist + cache-update unit; notification happens after the
// lock is released so a slow consumer sink can never stall balance
// reads or other mutations.
func (l *Ledger) apply(ctx context.Context, kind models.TxKind, amount decimal.Decimal, counterparty, details string) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrNonPositiveAmount
	}

	l.mu.Lock()

	newBalance := l.acct.Balance
	if kind == models.TxSent {
		newBalance = newBalance.Sub(amount)
		if newBalance.IsNegative() {
			balance := l.acct.Balance
			l.mu.Unlock()
			return balance, ErrInsufficientFunds
		}
	} else {
		newBalance = newBalance.Add(amount)
	}

	rec := models.TransactionRecord{
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		BalanceAfter: newBalance,
		Details:      details,
	}

	saved, err := l.store.Apply(ctx, newBalance, rec)
	if err != nil {
		balance := l.acct.Balance
		l.mu.Unlock()
		l.log.Error().Err(err).Str("kind", string(kind)).Msg("store apply failed, mutation rolled back")
		return balance, &PersistenceError{Err: err}
	}

	l.acct.Balance = newBalance
	l.mu.Unlock()

	l.publish(events.TopicBalanceChanged, events.NewBalanceChanged(newBalance))
	l.publish(events.TopicTransactionAppended, events.NewTransactionAppended(saved))

	l.log.Info().
		Str("kind", string(kind)).
		Stringer("amount", amount).
		Stringer("balance", newBalance).
		Int64("record_id", saved.ID).
		Msg("transaction recorded")

	return newBalance, nil
}

// publish is fire-and-forget: a consumer failure never fails a mutation.
func (l *Ledger) publish(topic string, event any) {
	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(topic, event); err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}
