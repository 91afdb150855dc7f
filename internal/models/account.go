package models

import "github.com/shopspring/decimal"

// Account is the single wallet owned by one running peer instance.
// The address is generated once on first run and stays stable for the
// lifetime of the backing store.
type Account struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}
