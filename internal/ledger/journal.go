package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/models/events"
)

// Journal owns income, expense and transfer records and keeps the linked
// account balances in step with them through the Ledger.
type Journal struct {
	ledger *Ledger

	// rebalanceOnEdit makes an edit reverse the old balance effect and apply
	// the new one. Without it an edit only appends to the change log.
	rebalanceOnEdit bool
}

func NewJournal(l *Ledger, rebalanceOnEdit bool) *Journal {
	return &Journal{ledger: l, rebalanceOnEdit: rebalanceOnEdit}
}

// NewTransaction is the input of AddTransaction.
type NewTransaction struct {
	OrgID   string
	ActorID string

	// IdempotencyKey deduplicates resubmissions of one logical entry.
	IdempotencyKey string

	Kind        models.TransactionKind
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        time.Time
	AccountID   *string
	ToAccountID *string
}

// effects derives the balance deltas of a transaction from its kind.
// A transaction without an account has none.
func effects(t models.Transaction) []delta {
	if t.AccountID == nil || *t.AccountID == "" {
		return nil
	}
	switch t.Kind {
	case models.Expense:
		return []delta{{accountID: *t.AccountID, amount: t.Amount.Neg(), checked: true}}
	case models.Income:
		return []delta{{accountID: *t.AccountID, amount: t.Amount}}
	case models.Transfer:
		if t.ToAccountID == nil || *t.ToAccountID == "" {
			return nil
		}
		return []delta{
			{accountID: *t.AccountID, amount: t.Amount.Neg(), checked: true},
			{accountID: *t.ToAccountID, amount: t.Amount},
		}
	}
	return nil
}

func validateTransaction(t models.Transaction) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: transaction kind %q", ErrInvalidKind, t.Kind)
	}
	if err := validAmount(t.Amount); err != nil {
		return err
	}
	if t.ToAccountID != nil && *t.ToAccountID != "" {
		if t.Kind != models.Transfer {
			return fmt.Errorf("%w: destination account on %s", ErrInvalidTransfer, t.Kind)
		}
		if t.AccountID == nil || *t.AccountID == *t.ToAccountID {
			return ErrInvalidTransfer
		}
	}
	return nil
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// AddTransaction records a transaction and applies its balance effect in one
// unit of work. An expense or transfer larger than the source balance fails
// with ErrInsufficientFunds and leaves everything unchanged. A resubmission
// with a known idempotency key returns the original transaction.
func (j *Journal) AddTransaction(ctx context.Context, in NewTransaction) (models.Transaction, error) {
	l := j.ledger
	now := l.now().UTC()
	t := models.Transaction{
		ID:             uuid.NewString(),
		OrgID:          in.OrgID,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		Kind:           in.Kind,
		Amount:         in.Amount,
		Category:       strings.TrimSpace(in.Category),
		Description:    strings.TrimSpace(in.Description),
		Date:           l.dateOrToday(in.Date),
		AccountID:      normalizeID(in.AccountID),
		ToAccountID:    normalizeID(in.ToAccountID),
		CreatedBy:      in.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
		History:        []models.ChangeLogEntry{},
	}
	if err := validateTransaction(t); err != nil {
		return models.Transaction{}, err
	}

	ds := effects(t)
	unlock, err := l.lockAccounts(ctx, accountIDs(ds)...)
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	replayed := false
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if t.IdempotencyKey != "" {
			existing, found, err := tx.FindTransactionByKey(ctx, t.OrgID, t.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				t = existing
				replayed = true
				return nil
			}
		}
		if err := l.checkFunds(ctx, tx, t.OrgID, ds); err != nil {
			return err
		}
		if err := l.applyDeltas(ctx, tx, t.OrgID, models.SourceTransaction, t.ID, ds); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, t)
	})
	unlock()
	if err != nil {
		return models.Transaction{}, err
	}

	fields := logrus.Fields{"org_id": t.OrgID, "transaction_id": t.ID, "amount": t.Amount.String()}
	if replayed {
		l.log.WithFields(fields).Debug("transaction replayed from idempotency key")
		return t, nil
	}
	l.log.WithFields(fields).Debug("transaction recorded")
	l.publish(ctx, events.LedgerEvent{
		Type:        events.TransactionRecorded,
		OrgID:       t.OrgID,
		ActorID:     in.ActorID,
		AggregateID: t.ID,
		Amount:      t.Amount,
		Changes:     changes(ds),
		OccurredAt:  now,
	})
	return t, nil
}

func applyPatch(t models.Transaction, p models.TransactionPatch) models.Transaction {
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.ClearAccount {
		t.AccountID = nil
	} else if p.AccountID != nil {
		t.AccountID = normalizeID(p.AccountID)
	}
	if p.ClearToAccount {
		t.ToAccountID = nil
	} else if p.ToAccountID != nil {
		t.ToAccountID = normalizeID(p.ToAccountID)
	}
	return t
}

// UpdateTransaction edits a transaction and prepends an UPDATE entry to its
// change log, carrying the previous amount when the amount changed. With
// rebalancing on, whatever the transaction still has applied is reversed and
// the effect of the edited transaction is applied in the same unit of work.
func (j *Journal) UpdateTransaction(ctx context.Context, orgID, id, actorID string, patch models.TransactionPatch) (models.Transaction, error) {
	l := j.ledger

	current, before, err := j.snapshot(ctx, orgID, id)
	if err != nil {
		return models.Transaction{}, err
	}
	next := applyPatch(current, patch)
	if err := validateTransaction(next); err != nil {
		return models.Transaction{}, err
	}
	oldEffects, newEffects := effects(current), effects(next)

	// Lock what is applied now and what will be applied after the edit.
	unlock, err := l.lockAccounts(ctx, accountIDs(before, newEffects)...)
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	now := l.now().UTC()
	var moved []delta
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		stored, err := tx.GetTransaction(ctx, orgID, id)
		if err != nil {
			return err
		}
		standing, err := l.applied(ctx, tx, orgID, models.SourceTransaction, id)
		if err != nil {
			return err
		}
		if !sameEffects(effects(stored), oldEffects) || !sameEffects(standing, before) {
			return fmt.Errorf("%w: transaction %s changed concurrently", ErrTransientStore, id)
		}
		updated := applyPatch(stored, patch)
		updated.UpdatedAt = now

		if j.rebalanceOnEdit && !sameEffects(standing, newEffects) {
			undo := reverse(standing)
			if err := l.applyDeltas(ctx, tx, orgID, models.SourceTransaction, id, undo); err != nil {
				return err
			}
			if err := l.checkFunds(ctx, tx, orgID, newEffects); err != nil {
				return err
			}
			if err := l.applyDeltas(ctx, tx, orgID, models.SourceTransaction, id, newEffects); err != nil {
				return err
			}
			moved = append(undo, newEffects...)
		}

		if err := tx.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		entry := models.ChangeLogEntry{
			ID:            uuid.NewString(),
			TransactionID: id,
			At:            now,
			ActorID:       actorID,
			Action:        models.ActionUpdate,
		}
		if !stored.Amount.Equal(updated.Amount) {
			prev := stored.Amount
			entry.PreviousAmount = &prev
		}
		if err := tx.AppendChangeLog(ctx, entry); err != nil {
			return err
		}
		next, err = tx.GetTransaction(ctx, orgID, id)
		return err
	})
	unlock()
	if err != nil {
		return models.Transaction{}, err
	}

	l.log.WithFields(logrus.Fields{"org_id": orgID, "transaction_id": id, "actor_id": actorID}).Debug("transaction updated")
	l.publish(ctx, events.LedgerEvent{
		Type:        events.TransactionUpdated,
		OrgID:       orgID,
		ActorID:     actorID,
		AggregateID: id,
		Amount:      next.Amount,
		Changes:     changes(moved),
		OccurredAt:  now,
	})
	return next, nil
}

// DeleteTransaction removes a transaction and reverses the balance change it
// still has applied. The reversal is the exact negation of the recorded
// entries, so an add followed by a delete leaves every balance unchanged.
func (j *Journal) DeleteTransaction(ctx context.Context, orgID, id, actorID string) error {
	l := j.ledger

	current, before, err := j.snapshot(ctx, orgID, id)
	if err != nil {
		return err
	}
	unlock, err := l.lockAccounts(ctx, accountIDs(before)...)
	if err != nil {
		return err
	}
	defer unlock()

	var undo []delta
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if _, err := tx.GetTransaction(ctx, orgID, id); err != nil {
			return err
		}
		standing, err := l.applied(ctx, tx, orgID, models.SourceTransaction, id)
		if err != nil {
			return err
		}
		if !sameEffects(standing, before) {
			return fmt.Errorf("%w: transaction %s changed concurrently", ErrTransientStore, id)
		}
		undo = reverse(standing)
		if err := l.applyDeltas(ctx, tx, orgID, models.SourceTransaction, id, undo); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, orgID, id)
	})
	unlock()
	if err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"org_id": orgID, "transaction_id": id, "actor_id": actorID}).Debug("transaction deleted")
	l.publish(ctx, events.LedgerEvent{
		Type:        events.TransactionDeleted,
		OrgID:       orgID,
		ActorID:     actorID,
		AggregateID: id,
		Amount:      current.Amount,
		Changes:     changes(undo),
		OccurredAt:  l.now().UTC(),
	})
	return nil
}

// snapshot reads a transaction and the balance change it has applied, so the
// caller knows which accounts to lock.
func (j *Journal) snapshot(ctx context.Context, orgID, id string) (models.Transaction, []delta, error) {
	var (
		t       models.Transaction
		applied []delta
	)
	err := j.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		if t, err = tx.GetTransaction(ctx, orgID, id); err != nil {
			return err
		}
		applied, err = j.ledger.applied(ctx, tx, orgID, models.SourceTransaction, id)
		return err
	})
	return t, applied, err
}

func (j *Journal) GetTransaction(ctx context.Context, orgID, id string) (models.Transaction, error) {
	var t models.Transaction
	err := j.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		t, err = tx.GetTransaction(ctx, orgID, id)
		return err
	})
	return t, err
}

// ListTransactions returns the organization's transactions, newest first.
func (j *Journal) ListTransactions(ctx context.Context, orgID string) ([]models.Transaction, error) {
	var ts []models.Transaction
	err := j.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		ts, err = tx.ListTransactions(ctx, orgID)
		return err
	})
	return ts, err
}

func sameEffects(a, b []delta) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].accountID != b[i].accountID || !a[i].amount.Equal(b[i].amount) {
			return false
		}
	}
	return true
}
