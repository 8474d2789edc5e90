package ledger

import "github.com/sheikh-saqib/household-ledger/internal/models"

// Errors returned by ledger operations. Test with errors.Is.
var (
	ErrInsufficientFunds   = models.ErrInsufficientFunds
	ErrAccountNotFound     = models.ErrAccountNotFound
	ErrTransactionNotFound = models.ErrTransactionNotFound
	ErrGoalNotFound        = models.ErrGoalNotFound
	ErrDebtNotFound        = models.ErrDebtNotFound
	ErrAccountInUse        = models.ErrAccountInUse
	ErrTransientStore      = models.ErrTransientStore
	ErrInvalidAmount       = models.ErrInvalidAmount
	ErrInvalidKind         = models.ErrInvalidKind
	ErrInvalidTransfer     = models.ErrInvalidTransfer
)
