// Package memory is an in-memory implementation of the ledger store.
// It is the default backing when no database URL is configured, and it
// doubles as the test store thanks to injectable write failures.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/models"
)

// Store keeps the account and the transaction log in process memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	acct     *models.Account
	records  []models.TransactionRecord
	nextID   int64
	lastTime time.Time
	applyErr error // when set, Apply fails without writing
}

func NewStore() *Store {
	return &Store{nextID: 1}
}

// FailApplies makes every subsequent Apply fail with err; pass nil to
// restore normal operation. Used to exercise persistence-failure paths.
func (s *Store) FailApplies(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyErr = err
}

func (s *Store) LoadAccount(ctx context.Context) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acct == nil {
		return models.Account{}, interfaces.ErrNoAccount
	}
	return *s.acct, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := acct
	s.acct = &cp
	return nil
}

func (s *Store) Apply(ctx context.Context, newBalance decimal.Decimal, rec models.TransactionRecord) (models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applyErr != nil {
		return models.TransactionRecord{}, s.applyErr
	}

	rec.ID = s.nextID
	s.nextID++

	// Store-assigned timestamps are monotonic non-decreasing even if the
	// wall clock steps backwards.
	now := time.Now()
	if now.Before(s.lastTime) {
		now = s.lastTime
	}
	s.lastTime = now
	rec.Timestamp = now

	s.records = append(s.records, rec)
	if s.acct != nil {
		s.acct.Balance = newBalance
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.TransactionRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
