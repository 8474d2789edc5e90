package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// seedGoal stores a goal that already holds currentAmount, funded by history
// entries that sum to it.
func seedGoal(t *testing.T, f *fixture, target, current int64) models.SavingsGoal {
	t.Helper()
	ctx := context.Background()
	g, err := f.goals.CreateGoal(ctx, org, "Holiday", amt(target), nil, "plane")
	require.NoError(t, err)
	if current == 0 {
		return g
	}
	err = f.store.WithinTx(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		g.CurrentAmount = amt(current)
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return err
		}
		return tx.AppendContribution(ctx, models.GoalContribution{
			ID: "seed", GoalID: g.ID, Amount: amt(current), SourceAccountName: "opening",
		})
	})
	require.NoError(t, err)
	return g
}

func historySum(h []models.GoalContribution) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range h {
		sum = sum.Add(c.Amount)
	}
	return sum
}

func TestGoals_Contribute(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a1 := f.account(t, "A1", 50_000_000)
	g1 := seedGoal(t, f, 10_000_000, 3_500_000)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	g, err := f.goals.Contribute(ctx, org, g1.ID, amt(1_000_000), a1.ID, date)
	require.NoError(t, err)

	requireAmount(t, 4_500_000, g.CurrentAmount)
	requireAmount(t, 49_000_000, f.balance(t, a1.ID))
	require.Len(t, g.History, 2)
	requireAmount(t, 1_000_000, g.History[0].Amount)
	require.Equal(t, "A1", g.History[0].SourceAccountName)
	require.Equal(t, date, g.History[0].Date)
	require.True(t, historySum(g.History).Equal(g.CurrentAmount))
	require.False(t, g.IsCompleted)
}

func TestGoals_ContributeInsufficientFunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 100)
	g := seedGoal(t, f, 1000, 0)

	_, err := f.goals.Contribute(ctx, org, g.ID, amt(101), a.ID, time.Time{})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	requireAmount(t, 100, f.balance(t, a.ID))

	stored, err := f.goals.GetGoal(ctx, org, g.ID)
	require.NoError(t, err)
	requireAmount(t, 0, stored.CurrentAmount)
	require.Empty(t, stored.History)
}

func TestGoals_ContributeNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 100)
	g := seedGoal(t, f, 1000, 0)

	_, err := f.goals.Contribute(ctx, org, "missing", amt(10), a.ID, time.Time{})
	require.ErrorIs(t, err, ErrGoalNotFound)

	_, err = f.goals.Contribute(ctx, org, g.ID, amt(10), "missing", time.Time{})
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.goals.Contribute(ctx, org, g.ID, amt(0), a.ID, time.Time{})
	require.ErrorIs(t, err, ErrInvalidAmount)
	requireAmount(t, 100, f.balance(t, a.ID))
}

func TestGoals_CompletionFollowsTarget(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 1000)
	g := seedGoal(t, f, 500, 0)

	g, err := f.goals.Contribute(ctx, org, g.ID, amt(500), a.ID, time.Time{})
	require.NoError(t, err)
	require.True(t, g.IsCompleted)
	require.NotNil(t, g.CompletedAt)

	higher := amt(800)
	g, err = f.goals.UpdateGoal(ctx, org, g.ID, models.GoalPatch{TargetAmount: &higher})
	require.NoError(t, err)
	require.False(t, g.IsCompleted)
	require.Nil(t, g.CompletedAt)
	requireAmount(t, 500, g.CurrentAmount)
}

func TestGoals_UpdateNeverTouchesCurrentAmount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	g := seedGoal(t, f, 1000, 300)

	name := "Car"
	icon := "car"
	deadline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := f.goals.UpdateGoal(ctx, org, g.ID, models.GoalPatch{Name: &name, Icon: &icon, Deadline: &deadline})
	require.NoError(t, err)
	require.Equal(t, "Car", updated.Name)
	require.Equal(t, "car", updated.Icon)
	require.Equal(t, deadline, *updated.Deadline)
	requireAmount(t, 300, updated.CurrentAmount)

	updated, err = f.goals.UpdateGoal(ctx, org, g.ID, models.GoalPatch{ClearDeadline: true})
	require.NoError(t, err)
	require.Nil(t, updated.Deadline)

	_, err = f.goals.UpdateGoal(ctx, org, "missing", models.GoalPatch{Name: &name})
	require.ErrorIs(t, err, ErrGoalNotFound)
}

func TestGoals_DeleteDoesNotRefund(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 1000)
	g := seedGoal(t, f, 1000, 0)

	_, err := f.goals.Contribute(ctx, org, g.ID, amt(400), a.ID, time.Time{})
	require.NoError(t, err)
	require.NoError(t, f.goals.DeleteGoal(ctx, org, g.ID))
	requireAmount(t, 600, f.balance(t, a.ID))

	_, err = f.goals.GetGoal(ctx, org, g.ID)
	require.ErrorIs(t, err, ErrGoalNotFound)
	require.ErrorIs(t, f.goals.DeleteGoal(ctx, org, g.ID), ErrGoalNotFound)

	goals, err := f.goals.ListGoals(ctx, org)
	require.NoError(t, err)
	require.Empty(t, goals)
}
