package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal accumulates money moved out of accounts.
// CurrentAmount always equals the sum of History amounts.
type SavingsGoal struct {
	ID            string          `json:"id"`
	OrgID         string          `json:"org_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	Icon          string          `json:"icon"`
	IsCompleted   bool            `json:"is_completed"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// History is newest first.
	History []GoalContribution `json:"history"`
}

// GoalContribution is one funded deposit into a goal.
type GoalContribution struct {
	ID                string          `json:"id"`
	GoalID            string          `json:"goal_id"`
	Date              time.Time       `json:"date"`
	Amount            decimal.Decimal `json:"amount"`
	SourceAccountID   string          `json:"source_account_id"`
	SourceAccountName string          `json:"source_account_name"`
	CreatedAt         time.Time       `json:"created_at"`
}

// GoalPatch carries the metadata a goal owner may edit.
type GoalPatch struct {
	Name          *string
	TargetAmount  *decimal.Decimal
	Deadline      *time.Time
	ClearDeadline bool
	Icon          *string
}
