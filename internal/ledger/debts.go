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

// DebtTracker owns debts in both directions. A payment moves money through
// an account in the direction the debt dictates.
type DebtTracker struct {
	ledger *Ledger
}

func NewDebtTracker(l *Ledger) *DebtTracker {
	return &DebtTracker{ledger: l}
}

// NewDebt is the input of CreateDebt.
type NewDebt struct {
	OrgID        string
	Name         string
	Counterparty string
	Direction    models.DebtDirection
	TotalAmount  decimal.Decimal
	DueDate      *time.Time
}

func markSettled(d *models.Debt, now time.Time) {
	settled := d.PaidAmount.GreaterThanOrEqual(d.TotalAmount)
	switch {
	case settled && !d.IsSettled:
		d.IsSettled = true
		d.SettledAt = &now
	case !settled:
		d.IsSettled = false
		d.SettledAt = nil
	}
}

// paymentEffect is a checked debit when the user owes and a credit when
// the counterparty pays the user back.
func paymentEffect(direction models.DebtDirection, accountID string, amount decimal.Decimal) []delta {
	if direction == models.Owe {
		return []delta{{accountID: accountID, amount: amount.Neg(), checked: true}}
	}
	return []delta{{accountID: accountID, amount: amount}}
}

func (dt *DebtTracker) CreateDebt(ctx context.Context, in NewDebt) (models.Debt, error) {
	if !in.Direction.Valid() {
		return models.Debt{}, fmt.Errorf("%w: debt direction %q", ErrInvalidKind, in.Direction)
	}
	if err := validAmount(in.TotalAmount); err != nil {
		return models.Debt{}, err
	}
	l := dt.ledger
	now := l.now().UTC()
	d := models.Debt{
		ID:           uuid.NewString(),
		OrgID:        in.OrgID,
		Name:         strings.TrimSpace(in.Name),
		Counterparty: strings.TrimSpace(in.Counterparty),
		Direction:    in.Direction,
		TotalAmount:  in.TotalAmount,
		PaidAmount:   decimal.Zero,
		DueDate:      in.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		History:      []models.DebtPayment{},
	}
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return tx.InsertDebt(ctx, d)
	})
	if err != nil {
		return models.Debt{}, err
	}
	l.log.WithFields(logrus.Fields{"org_id": in.OrgID, "debt_id": d.ID}).Debug("debt created")
	return d, nil
}

// Pay records a payment of amount against the debt through the source account.
func (dt *DebtTracker) Pay(ctx context.Context, orgID, debtID string, amount decimal.Decimal, sourceAccountID string, date time.Time) (models.Debt, error) {
	if err := validAmount(amount); err != nil {
		return models.Debt{}, err
	}
	l := dt.ledger
	unlock, err := l.lockAccounts(ctx, sourceAccountID)
	if err != nil {
		return models.Debt{}, err
	}
	defer unlock()

	now := l.now().UTC()
	var (
		d      models.Debt
		effect []delta
	)
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		if d, err = tx.GetDebt(ctx, orgID, debtID); err != nil {
			return err
		}
		source, err := tx.GetAccount(ctx, orgID, sourceAccountID)
		if err != nil {
			return err
		}
		effect = paymentEffect(d.Direction, sourceAccountID, amount)
		if err := l.checkFunds(ctx, tx, orgID, effect); err != nil {
			return err
		}
		if err := l.applyDeltas(ctx, tx, orgID, models.SourceDebt, debtID, effect); err != nil {
			return err
		}

		d.PaidAmount = d.PaidAmount.Add(amount)
		d.UpdatedAt = now
		markSettled(&d, now)
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		if err := tx.AppendPayment(ctx, models.DebtPayment{
			ID:                uuid.NewString(),
			DebtID:            debtID,
			Date:              l.dateOrToday(date),
			Amount:            amount,
			SourceAccountID:   source.ID,
			SourceAccountName: source.Name,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		d, err = tx.GetDebt(ctx, orgID, debtID)
		return err
	})
	unlock()
	if err != nil {
		return models.Debt{}, err
	}

	l.log.WithFields(logrus.Fields{
		"org_id":     orgID,
		"debt_id":    debtID,
		"account_id": sourceAccountID,
		"amount":     amount.String(),
		"direction":  d.Direction,
	}).Debug("debt payment recorded")
	l.publish(ctx, events.LedgerEvent{
		Type:        events.DebtPaid,
		OrgID:       orgID,
		AggregateID: debtID,
		Amount:      amount,
		Changes:     changes(effect),
		OccurredAt:  now,
	})
	return d, nil
}

// UpdateDebt edits debt metadata. Direction and paid amount are fixed.
func (dt *DebtTracker) UpdateDebt(ctx context.Context, orgID, debtID string, patch models.DebtPatch) (models.Debt, error) {
	if patch.TotalAmount != nil {
		if err := validAmount(*patch.TotalAmount); err != nil {
			return models.Debt{}, err
		}
	}
	l := dt.ledger
	now := l.now().UTC()
	var d models.Debt
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		if d, err = tx.GetDebt(ctx, orgID, debtID); err != nil {
			return err
		}
		if patch.Name != nil {
			d.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Counterparty != nil {
			d.Counterparty = strings.TrimSpace(*patch.Counterparty)
		}
		if patch.TotalAmount != nil {
			d.TotalAmount = *patch.TotalAmount
		}
		if patch.ClearDueDate {
			d.DueDate = nil
		} else if patch.DueDate != nil {
			d.DueDate = patch.DueDate
		}
		d.UpdatedAt = now
		markSettled(&d, now)
		return tx.UpdateDebt(ctx, d)
	})
	if err != nil {
		return models.Debt{}, err
	}
	return d, nil
}

// DeleteDebt removes the debt record. Recorded payments are not reversed.
func (dt *DebtTracker) DeleteDebt(ctx context.Context, orgID, debtID string) error {
	err := dt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return tx.DeleteDebt(ctx, orgID, debtID)
	})
	if err != nil {
		return err
	}
	dt.ledger.log.WithFields(logrus.Fields{"org_id": orgID, "debt_id": debtID}).Debug("debt deleted")
	return nil
}

func (dt *DebtTracker) GetDebt(ctx context.Context, orgID, debtID string) (models.Debt, error) {
	var d models.Debt
	err := dt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		d, err = tx.GetDebt(ctx, orgID, debtID)
		return err
	})
	return d, err
}

func (dt *DebtTracker) ListDebts(ctx context.Context, orgID string) ([]models.Debt, error) {
	var ds []models.Debt
	err := dt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		ds, err = tx.ListDebts(ctx, orgID)
		return err
	})
	return ds, err
}
