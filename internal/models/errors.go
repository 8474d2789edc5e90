package models

import "errors"

var (
	// ErrInsufficientFunds indicates a debit larger than the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound indicates that the account is not found in the organization.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound indicates that the transaction is not found in the organization.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrGoalNotFound indicates that the savings goal is not found in the organization.
	ErrGoalNotFound = errors.New("savings goal not found")
	// ErrDebtNotFound indicates that the debt is not found in the organization.
	ErrDebtNotFound = errors.New("debt not found")
	// ErrAccountInUse indicates that transactions still reference the account.
	ErrAccountInUse = errors.New("account is referenced by transactions")
	// ErrTransientStore indicates a failed or timed out store transaction; safe to retry.
	ErrTransientStore = errors.New("transient store error")
	// ErrInvalidAmount indicates a zero or negative amount, or one with more
	// than two decimal places.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidKind indicates an unknown transaction, account or debt kind.
	ErrInvalidKind = errors.New("invalid kind")
	// ErrInvalidTransfer indicates a transfer without a distinct source account.
	ErrInvalidTransfer = errors.New("transfer needs distinct source and destination accounts")
)
