package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxKind classifies a transaction record.
type TxKind string

const (
	TxIssuance TxKind = "issuance" // scheduled self-credit, no counterparty
	TxSent     TxKind = "sent"     // outgoing transfer confirmed by the peer
	TxReceived TxKind = "received" // incoming transfer applied locally
)

// TransactionRecord is a single immutable audit entry for one
// balance-affecting event. ID and Timestamp are assigned by the store
// when the record is appended; ID is strictly increasing per process.
type TransactionRecord struct {
	ID           int64           `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         TxKind          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty,omitempty"` // remote wallet address, empty for issuance
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Details      string          `json:"details,omitempty"` // free-form annotation, e.g. remote ip:port
}
