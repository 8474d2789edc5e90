package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntrySource identifies which aggregate caused a ledger entry.
type EntrySource string

const (
	SourceTransaction EntrySource = "transaction"
	SourceGoal        EntrySource = "goal_contribution"
	SourceDebt        EntrySource = "debt_payment"
	SourceAdjustment  EntrySource = "adjustment"
)

// LedgerEntry records one delta applied to an account balance.
type LedgerEntry struct {
	ID        string          `json:"id"`
	OrgID     string          `json:"org_id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"` // signed: negative debits, positive credits
	Source    EntrySource     `json:"source"`
	SourceID  string          `json:"source_id"`
	CreatedAt time.Time       `json:"created_at"`
}
