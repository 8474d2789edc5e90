package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// Store runs units of work. Everything done through the Tx passed to fn is
// committed together when fn returns nil and rolled back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the row-level view of the store inside one unit of work.
// Lookups outside the given organization report not found.
type Tx interface {
	AccountStore
	TransactionStore
	GoalStore
	DebtStore
}

type AccountStore interface {
	InsertAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, orgID, id string) (models.Account, error)
	ListAccounts(ctx context.Context, orgID string) ([]models.Account, error)
	DeleteAccount(ctx context.Context, orgID, id string) error
	CountAccountReferences(ctx context.Context, orgID, accountID string) (int, error)

	// AdjustBalance adds delta to the balance. With requireNonNegative the
	// check and the write are one indivisible step and a balance that would
	// drop below zero yields models.ErrInsufficientFunds without a write.
	AdjustBalance(ctx context.Context, orgID, accountID string, delta decimal.Decimal, requireNonNegative bool) (models.Account, error)
	SaveEntry(ctx context.Context, entry models.LedgerEntry) error
	GetEntriesByAccount(ctx context.Context, orgID, accountID string) ([]models.LedgerEntry, error)
	// GetEntriesBySource returns the entries written on behalf of one
	// transaction, goal or debt, oldest first.
	GetEntriesBySource(ctx context.Context, orgID string, source models.EntrySource, sourceID string) ([]models.LedgerEntry, error)
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, t models.Transaction) error
	GetTransaction(ctx context.Context, orgID, id string) (models.Transaction, error)
	FindTransactionByKey(ctx context.Context, orgID, idempotencyKey string) (models.Transaction, bool, error)
	ListTransactions(ctx context.Context, orgID string) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, t models.Transaction) error
	DeleteTransaction(ctx context.Context, orgID, id string) error
	AppendChangeLog(ctx context.Context, entry models.ChangeLogEntry) error
}

type GoalStore interface {
	InsertGoal(ctx context.Context, g models.SavingsGoal) error
	GetGoal(ctx context.Context, orgID, id string) (models.SavingsGoal, error)
	ListGoals(ctx context.Context, orgID string) ([]models.SavingsGoal, error)
	UpdateGoal(ctx context.Context, g models.SavingsGoal) error
	DeleteGoal(ctx context.Context, orgID, id string) error
	AppendContribution(ctx context.Context, c models.GoalContribution) error
}

type DebtStore interface {
	InsertDebt(ctx context.Context, d models.Debt) error
	GetDebt(ctx context.Context, orgID, id string) (models.Debt, error)
	ListDebts(ctx context.Context, orgID string) ([]models.Debt, error)
	UpdateDebt(ctx context.Context, d models.Debt) error
	DeleteDebt(ctx context.Context, orgID, id string) error
	AppendPayment(ctx context.Context, p models.DebtPayment) error
}
