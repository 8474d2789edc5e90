package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind determines the direction of a transaction's balance effect.
type TransactionKind string

const (
	Income   TransactionKind = "INCOME"
	Expense  TransactionKind = "EXPENSE"
	Transfer TransactionKind = "TRANSFER"
)

// Valid reports whether k is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// Transaction is a journal record. Amount is always a positive magnitude;
// the sign of the account effect is derived from Kind.
type Transaction struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Kind           TransactionKind `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
	AccountID      *string         `json:"account_id,omitempty"`
	ToAccountID    *string         `json:"to_account_id,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// History is newest first.
	History []ChangeLogEntry `json:"history"`
}

// ChangeAction names what happened to a transaction in its change log.
type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionUpdate ChangeAction = "UPDATE"
	ActionDelete ChangeAction = "DELETE"
)

// ChangeLogEntry is an immutable audit record of one change to a transaction.
type ChangeLogEntry struct {
	ID             string           `json:"id"`
	TransactionID  string           `json:"transaction_id"`
	At             time.Time        `json:"at"`
	ActorID        string           `json:"actor_id"`
	Action         ChangeAction     `json:"action"`
	PreviousAmount *decimal.Decimal `json:"previous_amount,omitempty"`
}

// TransactionPatch carries the editable fields of a transaction. Nil fields
// are left unchanged. ClearAccount/ClearToAccount unlink an account.
type TransactionPatch struct {
	Kind           *TransactionKind
	Amount         *decimal.Decimal
	Category       *string
	Description    *string
	Date           *time.Time
	AccountID      *string
	ClearAccount   bool
	ToAccountID    *string
	ClearToAccount bool
}
