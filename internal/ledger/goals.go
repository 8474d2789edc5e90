package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/models/events"
)

// GoalTracker owns savings goals. Money only enters a goal through
// Contribute, which debits a source account in the same unit of work.
type GoalTracker struct {
	ledger *Ledger
}

func NewGoalTracker(l *Ledger) *GoalTracker {
	return &GoalTracker{ledger: l}
}

// markCompletion keeps IsCompleted in line with the amounts.
func markCompletion(g *models.SavingsGoal, now time.Time) {
	reached := g.TargetAmount.IsPositive() && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
	switch {
	case reached && !g.IsCompleted:
		g.IsCompleted = true
		g.CompletedAt = &now
	case !reached:
		g.IsCompleted = false
		g.CompletedAt = nil
	}
}

func (gt *GoalTracker) CreateGoal(ctx context.Context, orgID, name string, targetAmount decimal.Decimal, deadline *time.Time, icon string) (models.SavingsGoal, error) {
	if err := validAmount(targetAmount); err != nil {
		return models.SavingsGoal{}, err
	}
	l := gt.ledger
	now := l.now().UTC()
	g := models.SavingsGoal{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		Name:          strings.TrimSpace(name),
		TargetAmount:  targetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		Icon:          icon,
		CreatedAt:     now,
		UpdatedAt:     now,
		History:       []models.GoalContribution{},
	}
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return tx.InsertGoal(ctx, g)
	})
	if err != nil {
		return models.SavingsGoal{}, err
	}
	l.log.WithFields(logrus.Fields{"org_id": orgID, "goal_id": g.ID}).Debug("goal created")
	return g, nil
}

// Contribute moves amount from the source account into the goal.
func (gt *GoalTracker) Contribute(ctx context.Context, orgID, goalID string, amount decimal.Decimal, sourceAccountID string, date time.Time) (models.SavingsGoal, error) {
	if err := validAmount(amount); err != nil {
		return models.SavingsGoal{}, err
	}
	l := gt.ledger
	unlock, err := l.lockAccounts(ctx, sourceAccountID)
	if err != nil {
		return models.SavingsGoal{}, err
	}
	defer unlock()

	now := l.now().UTC()
	debit := []delta{{accountID: sourceAccountID, amount: amount.Neg(), checked: true}}
	var g models.SavingsGoal
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		if g, err = tx.GetGoal(ctx, orgID, goalID); err != nil {
			return err
		}
		source, err := tx.GetAccount(ctx, orgID, sourceAccountID)
		if err != nil {
			return err
		}
		if err := l.checkFunds(ctx, tx, orgID, debit); err != nil {
			return err
		}
		if err := l.applyDeltas(ctx, tx, orgID, models.SourceGoal, goalID, debit); err != nil {
			return err
		}

		g.CurrentAmount = g.CurrentAmount.Add(amount)
		g.UpdatedAt = now
		markCompletion(&g, now)
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}
		if err := tx.AppendContribution(ctx, models.GoalContribution{
			ID:                uuid.NewString(),
			GoalID:            goalID,
			Date:              l.dateOrToday(date),
			Amount:            amount,
			SourceAccountID:   source.ID,
			SourceAccountName: source.Name,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		g, err = tx.GetGoal(ctx, orgID, goalID)
		return err
	})
	unlock()
	if err != nil {
		return models.SavingsGoal{}, err
	}

	l.log.WithFields(logrus.Fields{
		"org_id":     orgID,
		"goal_id":    goalID,
		"account_id": sourceAccountID,
		"amount":     amount.String(),
	}).Debug("goal contribution recorded")
	l.publish(ctx, events.LedgerEvent{
		Type:        events.GoalContributed,
		OrgID:       orgID,
		AggregateID: goalID,
		Amount:      amount,
		Changes:     changes(debit),
		OccurredAt:  now,
	})
	return g, nil
}

// UpdateGoal edits goal metadata. The current amount is never touched here.
func (gt *GoalTracker) UpdateGoal(ctx context.Context, orgID, goalID string, patch models.GoalPatch) (models.SavingsGoal, error) {
	if patch.TargetAmount != nil {
		if err := validAmount(*patch.TargetAmount); err != nil {
			return models.SavingsGoal{}, err
		}
	}
	l := gt.ledger
	now := l.now().UTC()
	var g models.SavingsGoal
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		if g, err = tx.GetGoal(ctx, orgID, goalID); err != nil {
			return err
		}
		if patch.Name != nil {
			g.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.TargetAmount != nil {
			g.TargetAmount = *patch.TargetAmount
		}
		if patch.ClearDeadline {
			g.Deadline = nil
		} else if patch.Deadline != nil {
			g.Deadline = patch.Deadline
		}
		if patch.Icon != nil {
			g.Icon = *patch.Icon
		}
		g.UpdatedAt = now
		markCompletion(&g, now)
		return tx.UpdateGoal(ctx, g)
	})
	if err != nil {
		return models.SavingsGoal{}, err
	}
	return g, nil
}

// DeleteGoal removes the goal. Money already contributed stays where it is;
// nothing is refunded to the source accounts.
func (gt *GoalTracker) DeleteGoal(ctx context.Context, orgID, goalID string) error {
	err := gt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return tx.DeleteGoal(ctx, orgID, goalID)
	})
	if err != nil {
		return err
	}
	gt.ledger.log.WithFields(logrus.Fields{"org_id": orgID, "goal_id": goalID}).Debug("goal deleted")
	return nil
}

func (gt *GoalTracker) GetGoal(ctx context.Context, orgID, goalID string) (models.SavingsGoal, error) {
	var g models.SavingsGoal
	err := gt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		g, err = tx.GetGoal(ctx, orgID, goalID)
		return err
	})
	return g, err
}

func (gt *GoalTracker) ListGoals(ctx context.Context, orgID string) ([]models.SavingsGoal, error) {
	var gs []models.SavingsGoal
	err := gt.ledger.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		gs, err = tx.ListGoals(ctx, orgID)
		return err
	})
	return gs, err
}
