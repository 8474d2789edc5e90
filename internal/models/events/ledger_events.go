package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after a ledger operation commits.
const (
	TransactionRecorded = "transaction.recorded"
	TransactionUpdated  = "transaction.updated"
	TransactionDeleted  = "transaction.deleted"
	GoalContributed     = "goal.contributed"
	DebtPaid            = "debt.paid"
)

// BalanceChange is one account delta carried by an event.
type BalanceChange struct {
	AccountID string          `json:"account_id"`
	Delta     decimal.Decimal `json:"delta"`
}

// LedgerEvent describes a committed state change.
type LedgerEvent struct {
	Type        string          `json:"type"`
	OrgID       string          `json:"org_id"`
	ActorID     string          `json:"actor_id,omitempty"`
	AggregateID string          `json:"aggregate_id"`
	Amount      decimal.Decimal `json:"amount"`
	Changes     []BalanceChange `json:"changes,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Key partitions events by organization so one tenant's events stay ordered.
func (e LedgerEvent) Key() string {
	return e.OrgID
}
