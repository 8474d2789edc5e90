package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

const debtColumns = `id, org_id, name, counterparty, direction, total_amount, paid_amount, due_date,
	is_settled, settled_at, created_at, updated_at`

func scanDebt(row scanner) (models.Debt, error) {
	var (
		d                  models.Debt
		dueDate, settledAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.OrgID, &d.Name, &d.Counterparty, &d.Direction, &d.TotalAmount, &d.PaidAmount,
		&dueDate, &d.IsSettled, &settledAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Debt{}, err
	}
	d.DueDate = timePtr(dueDate)
	d.SettledAt = timePtr(settledAt)
	return d, nil
}

func (p *pgTx) InsertDebt(ctx context.Context, d models.Debt) error {
	const query = `INSERT INTO debts (` + debtColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := p.tx.ExecContext(ctx, query, d.ID, d.OrgID, d.Name, d.Counterparty, d.Direction, d.TotalAmount,
		d.PaidAmount, nullTime(d.DueDate), d.IsSettled, nullTime(d.SettledAt), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

// GetDebt locks the row for the rest of the unit of work.
func (p *pgTx) GetDebt(ctx context.Context, orgID, id string) (models.Debt, error) {
	const query = `SELECT ` + debtColumns + ` FROM debts WHERE org_id = $1 AND id = $2 FOR UPDATE`

	d, err := scanDebt(p.tx.QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Debt{}, models.ErrDebtNotFound
	}
	if err != nil {
		return models.Debt{}, fmt.Errorf("get debt: %w", err)
	}
	if d.History, err = p.payments(ctx, d.ID); err != nil {
		return models.Debt{}, err
	}
	return d, nil
}

func (p *pgTx) ListDebts(ctx context.Context, orgID string) ([]models.Debt, error) {
	const query = `SELECT ` + debtColumns + ` FROM debts WHERE org_id = $1 ORDER BY created_at, id`

	rows, err := p.tx.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	rows.Close()

	for i := range debts {
		if debts[i].History, err = p.payments(ctx, debts[i].ID); err != nil {
			return nil, err
		}
	}
	return debts, nil
}

func (p *pgTx) UpdateDebt(ctx context.Context, d models.Debt) error {
	const query = `UPDATE debts SET name = $3, counterparty = $4, total_amount = $5, paid_amount = $6,
	due_date = $7, is_settled = $8, settled_at = $9, updated_at = $10
	WHERE org_id = $1 AND id = $2`

	res, err := p.tx.ExecContext(ctx, query, d.OrgID, d.ID, d.Name, d.Counterparty, d.TotalAmount, d.PaidAmount,
		nullTime(d.DueDate), d.IsSettled, nullTime(d.SettledAt), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	return expectOne(res, models.ErrDebtNotFound)
}

func (p *pgTx) DeleteDebt(ctx context.Context, orgID, id string) error {
	res, err := p.tx.ExecContext(ctx, `DELETE FROM debts WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	return expectOne(res, models.ErrDebtNotFound)
}

func (p *pgTx) AppendPayment(ctx context.Context, pay models.DebtPayment) error {
	const query = `INSERT INTO debt_payments
	(id, debt_id, date, amount, source_account_id, source_account_name, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := p.tx.ExecContext(ctx, query, pay.ID, pay.DebtID, pay.Date, pay.Amount, pay.SourceAccountID, pay.SourceAccountName, pay.CreatedAt)
	if err != nil {
		return fmt.Errorf("append payment: %w", err)
	}
	return nil
}

func (p *pgTx) payments(ctx context.Context, debtID string) ([]models.DebtPayment, error) {
	const query = `SELECT id, debt_id, date, amount, source_account_id, source_account_name, created_at
	FROM debt_payments WHERE debt_id = $1 ORDER BY seq DESC`

	rows, err := p.tx.QueryContext(ctx, query, debtID)
	if err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	defer rows.Close()

	history := []models.DebtPayment{}
	for rows.Next() {
		var pay models.DebtPayment
		if err := rows.Scan(&pay.ID, &pay.DebtID, &pay.Date, &pay.Amount, &pay.SourceAccountID, &pay.SourceAccountName, &pay.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		history = append(history, pay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get payments: %w", err)
	}
	return history, nil
}
