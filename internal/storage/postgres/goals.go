package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

const goalColumns = `id, org_id, name, target_amount, current_amount, deadline, icon,
	is_completed, completed_at, created_at, updated_at`

func scanGoal(row scanner) (models.SavingsGoal, error) {
	var (
		g                     models.SavingsGoal
		deadline, completedAt sql.NullTime
	)
	err := row.Scan(&g.ID, &g.OrgID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline, &g.Icon,
		&g.IsCompleted, &completedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return models.SavingsGoal{}, err
	}
	g.Deadline = timePtr(deadline)
	g.CompletedAt = timePtr(completedAt)
	return g, nil
}

func (p *pgTx) InsertGoal(ctx context.Context, g models.SavingsGoal) error {
	const query = `INSERT INTO savings_goals (` + goalColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := p.tx.ExecContext(ctx, query, g.ID, g.OrgID, g.Name, g.TargetAmount, g.CurrentAmount,
		nullTime(g.Deadline), g.Icon, g.IsCompleted, nullTime(g.CompletedAt), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal locks the row for the rest of the unit of work.
func (p *pgTx) GetGoal(ctx context.Context, orgID, id string) (models.SavingsGoal, error) {
	const query = `SELECT ` + goalColumns + ` FROM savings_goals WHERE org_id = $1 AND id = $2 FOR UPDATE`

	g, err := scanGoal(p.tx.QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.SavingsGoal{}, models.ErrGoalNotFound
	}
	if err != nil {
		return models.SavingsGoal{}, fmt.Errorf("get goal: %w", err)
	}
	if g.History, err = p.contributions(ctx, g.ID); err != nil {
		return models.SavingsGoal{}, err
	}
	return g, nil
}

func (p *pgTx) ListGoals(ctx context.Context, orgID string) ([]models.SavingsGoal, error) {
	const query = `SELECT ` + goalColumns + ` FROM savings_goals WHERE org_id = $1 ORDER BY created_at, id`

	rows, err := p.tx.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []models.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	rows.Close()

	for i := range goals {
		if goals[i].History, err = p.contributions(ctx, goals[i].ID); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

func (p *pgTx) UpdateGoal(ctx context.Context, g models.SavingsGoal) error {
	const query = `UPDATE savings_goals SET name = $3, target_amount = $4, current_amount = $5,
	deadline = $6, icon = $7, is_completed = $8, completed_at = $9, updated_at = $10
	WHERE org_id = $1 AND id = $2`

	res, err := p.tx.ExecContext(ctx, query, g.OrgID, g.ID, g.Name, g.TargetAmount, g.CurrentAmount,
		nullTime(g.Deadline), g.Icon, g.IsCompleted, nullTime(g.CompletedAt), g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return expectOne(res, models.ErrGoalNotFound)
}

func (p *pgTx) DeleteGoal(ctx context.Context, orgID, id string) error {
	res, err := p.tx.ExecContext(ctx, `DELETE FROM savings_goals WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return expectOne(res, models.ErrGoalNotFound)
}

func (p *pgTx) AppendContribution(ctx context.Context, c models.GoalContribution) error {
	const query = `INSERT INTO goal_contributions
	(id, goal_id, date, amount, source_account_id, source_account_name, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := p.tx.ExecContext(ctx, query, c.ID, c.GoalID, c.Date, c.Amount, c.SourceAccountID, c.SourceAccountName, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("append contribution: %w", err)
	}
	return nil
}

func (p *pgTx) contributions(ctx context.Context, goalID string) ([]models.GoalContribution, error) {
	const query = `SELECT id, goal_id, date, amount, source_account_id, source_account_name, created_at
	FROM goal_contributions WHERE goal_id = $1 ORDER BY seq DESC`

	rows, err := p.tx.QueryContext(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("get contributions: %w", err)
	}
	defer rows.Close()

	history := []models.GoalContribution{}
	for rows.Next() {
		var c models.GoalContribution
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Date, &c.Amount, &c.SourceAccountID, &c.SourceAccountName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		history = append(history, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get contributions: %w", err)
	}
	return history, nil
}
