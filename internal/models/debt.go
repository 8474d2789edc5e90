package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtDirection says who owes whom.
type DebtDirection string

const (
	// Owe means the user owes the counterparty.
	Owe DebtDirection = "OWE"
	// Owed means the counterparty owes the user.
	Owed DebtDirection = "OWED"
)

// Valid reports whether d is a known direction.
func (d DebtDirection) Valid() bool {
	return d == Owe || d == Owed
}

// Debt tracks money owed in either direction.
// PaidAmount always equals the sum of History amounts.
type Debt struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	Name         string          `json:"name"`
	Counterparty string          `json:"counterparty"`
	Direction    DebtDirection   `json:"direction"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	IsSettled    bool            `json:"is_settled"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// History is newest first.
	History []DebtPayment `json:"history"`
}

// DebtPayment is one funded payment against a debt.
type DebtPayment struct {
	ID                string          `json:"id"`
	DebtID            string          `json:"debt_id"`
	Date              time.Time       `json:"date"`
	Amount            decimal.Decimal `json:"amount"`
	SourceAccountID   string          `json:"source_account_id"`
	SourceAccountName string          `json:"source_account_name"`
	CreatedAt         time.Time       `json:"created_at"`
}

// DebtPatch carries the metadata of a debt that may be edited.
type DebtPatch struct {
	Name         *string
	Counterparty *string
	TotalAmount  *decimal.Decimal
	DueDate      *time.Time
	ClearDueDate bool
}
