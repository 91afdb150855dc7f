// Package events defines the typed notifications the peer pushes to its
// external consumer (UI, log collector, or a broker). Every event carries
// a unique envelope id and the time it occurred; delivery is
// fire-and-forget from the publisher's point of view.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckglobal/ontime-peer/internal/models"
)

// Topics the peer publishes on.
const (
	TopicBalanceChanged      = "balance_changed"
	TopicTransactionAppended = "transaction_appended"
	TopicListenerBindFailed  = "listener_bind_failed"
	TopicSendFailed          = "send_failed"
	TopicSendSucceeded       = "send_succeeded"
	TopicLedgerInconsistency = "ledger_inconsistency"
)

type BalanceChanged struct {
	EventID    string          `json:"event_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type TransactionAppended struct {
	EventID    string                   `json:"event_id"`
	Record     models.TransactionRecord `json:"record"`
	OccurredAt time.Time                `json:"occurred_at"`
}

type ListenerBindFailed struct {
	EventID    string    `json:"event_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type SendFailed struct {
	EventID      string    `json:"event_id"`
	Reason       string    `json:"reason"`
	Counterparty string    `json:"counterparty"` // remote ip:port
	OccurredAt   time.Time `json:"occurred_at"`
}

type SendSucceeded struct {
	EventID      string          `json:"event_id"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty"` // remote ip:port
	OccurredAt   time.Time       `json:"occurred_at"`
}

// LedgerInconsistency flags the one condition that can desynchronize two
// peers' view of total value: the remote peer acknowledged a transfer but
// the local debit failed to persist. It is surfaced loudly, never
// auto-corrected.
type LedgerInconsistency struct {
	EventID      string          `json:"event_id"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty"`
	Reason       string          `json:"reason"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

func NewBalanceChanged(balance decimal.Decimal) BalanceChanged {
	return BalanceChanged{EventID: uuid.New().String(), NewBalance: balance, OccurredAt: time.Now()}
}

func NewTransactionAppended(rec models.TransactionRecord) TransactionAppended {
	return TransactionAppended{EventID: uuid.New().String(), Record: rec, OccurredAt: time.Now()}
}

func NewListenerBindFailed(reason string) ListenerBindFailed {
	return ListenerBindFailed{EventID: uuid.New().String(), Reason: reason, OccurredAt: time.Now()}
}

func NewSendFailed(reason, counterparty string) SendFailed {
	return SendFailed{EventID: uuid.New().String(), Reason: reason, Counterparty: counterparty, OccurredAt: time.Now()}
}

func NewSendSucceeded(amount decimal.Decimal, counterparty string) SendSucceeded {
	return SendSucceeded{EventID: uuid.New().String(), Amount: amount, Counterparty: counterparty, OccurredAt: time.Now()}
}

func NewLedgerInconsistency(amount decimal.Decimal, counterparty, reason string) LedgerInconsistency {
	return LedgerInconsistency{EventID: uuid.New().String(), Amount: amount, Counterparty: counterparty, Reason: reason, OccurredAt: time.Now()}
}
