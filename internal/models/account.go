package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies what an account holds.
type AccountKind string

const (
	AccountCash       AccountKind = "CASH"
	AccountInvestment AccountKind = "INVESTMENT"
	AccountProperty   AccountKind = "PROPERTY"
	AccountDebt       AccountKind = "DEBT"
)

// Valid reports whether k is one of the known account kinds.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountCash, AccountInvestment, AccountProperty, AccountDebt:
		return true
	}
	return false
}

// Account holds the authoritative running balance of one monetary account.
// Balance is maintained incrementally by the ledger and never recomputed.
type Account struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	Name           string          `json:"name"`
	Kind           AccountKind     `json:"kind"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
