// Package postgres is the durable ledger store. The wallet table is
// constrained to a single row; transactions is an append-only log
// indexed by recency.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/models"
)

type Store struct {
	db *sql.DB
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init(ctx context.Context) error {
	const walletTable = `
	CREATE TABLE IF NOT EXISTS wallet (
		id      INT PRIMARY KEY CHECK (id = 1),
		address TEXT UNIQUE NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0
	)`

	const txTable = `
	CREATE TABLE IF NOT EXISTS transactions (
		id            BIGSERIAL PRIMARY KEY,
		ts            TIMESTAMPTZ NOT NULL DEFAULT now(),
		kind          TEXT NOT NULL CHECK (kind IN ('issuance','sent','received')),
		amount        NUMERIC NOT NULL,
		counterparty  TEXT,
		balance_after NUMERIC NOT NULL,
		details       TEXT
	)`

	const txIndex = `CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions (ts DESC)`

	for _, q := range []string{walletTable, txTable, txIndex} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadAccount(ctx context.Context) (models.Account, error) {
	const query = `SELECT address, balance FROM wallet WHERE id = 1`

	var acct models.Account
	err := s.db.QueryRowContext(ctx, query).Scan(&acct.Address, &acct.Balance)
	if err == sql.ErrNoRows {
		return models.Account{}, interfaces.ErrNoAccount
	}
	if err != nil {
		return models.Account{}, err
	}
	return acct, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct models.Account) error {
	const query = `INSERT INTO wallet (id, address, balance) VALUES (1, $1, $2)`

	_, err := s.db.ExecContext(ctx, query, acct.Address, acct.Balance)
	return err
}

// Apply writes the new balance and the transaction record inside one
// database transaction; any failure rolls both back.
func (s *Store) Apply(ctx context.Context, newBalance decimal.Decimal, rec models.TransactionRecord) (models.TransactionRecord, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TransactionRecord{}, err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const updateBalance = `UPDATE wallet SET balance = $1 WHERE id = 1`
	if _, err = dbTx.ExecContext(ctx, updateBalance, newBalance); err != nil {
		return models.TransactionRecord{}, err
	}

	const insertTx = `
	INSERT INTO transactions (kind, amount, counterparty, balance_after, details)
	VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''))
	RETURNING id, ts`

	err = dbTx.QueryRowContext(ctx, insertTx,
		string(rec.Kind), rec.Amount, rec.Counterparty, rec.BalanceAfter, rec.Details,
	).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		return models.TransactionRecord{}, err
	}

	if err = dbTx.Commit(); err != nil {
		return models.TransactionRecord{}, err
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	const query = `
	SELECT id, ts, kind, amount, COALESCE(counterparty, ''), balance_after, COALESCE(details, '')
	FROM transactions
	ORDER BY ts DESC, id DESC
	LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		var kind string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &kind, &rec.Amount, &rec.Counterparty, &rec.BalanceAfter, &rec.Details); err != nil {
			return nil, err
		}
		rec.Kind = models.TxKind(kind)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
