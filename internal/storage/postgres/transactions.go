package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

const transactionColumns = `id, org_id, idempotency_key, kind, amount, category, description, date,
	account_id, to_account_id, created_by, created_at, updated_at`

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		t                    models.Transaction
		key, account, toAcct sql.NullString
	)
	err := row.Scan(&t.ID, &t.OrgID, &key, &t.Kind, &t.Amount, &t.Category, &t.Description, &t.Date,
		&account, &toAcct, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Transaction{}, err
	}
	t.IdempotencyKey = key.String
	t.AccountID = stringPtr(account)
	t.ToAccountID = stringPtr(toAcct)
	return t, nil
}

func (p *pgTx) InsertTransaction(ctx context.Context, t models.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	var key sql.NullString
	if t.IdempotencyKey != "" {
		key = sql.NullString{String: t.IdempotencyKey, Valid: true}
	}
	_, err := p.tx.ExecContext(ctx, query, t.ID, t.OrgID, key, t.Kind, t.Amount, t.Category, t.Description, t.Date,
		nullString(t.AccountID), nullString(t.ToAccountID), t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	for i := len(t.History) - 1; i >= 0; i-- {
		if err := p.AppendChangeLog(ctx, t.History[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetTransaction locks the row for the rest of the unit of work.
func (p *pgTx) GetTransaction(ctx context.Context, orgID, id string) (models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
	WHERE org_id = $1 AND id = $2 FOR UPDATE`

	t, err := scanTransaction(p.tx.QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t.History, err = p.changeLog(ctx, t.ID); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func (p *pgTx) FindTransactionByKey(ctx context.Context, orgID, idempotencyKey string) (models.Transaction, bool, error) {
	const query = `SELECT id FROM transactions WHERE org_id = $1 AND idempotency_key = $2 LIMIT 1`

	var id string
	err := p.tx.QueryRowContext(ctx, query, orgID, idempotencyKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("find transaction by key: %w", err)
	}
	t, err := p.GetTransaction(ctx, orgID, id)
	if err != nil {
		return models.Transaction{}, false, err
	}
	return t, true, nil
}

func (p *pgTx) ListTransactions(ctx context.Context, orgID string) ([]models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
	WHERE org_id = $1 ORDER BY date DESC, created_at DESC`

	rows, err := p.tx.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var ts []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		ts = append(ts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	rows.Close()

	for i := range ts {
		if ts[i].History, err = p.changeLog(ctx, ts[i].ID); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func (p *pgTx) UpdateTransaction(ctx context.Context, t models.Transaction) error {
	const query = `UPDATE transactions SET kind = $3, amount = $4, category = $5, description = $6,
	date = $7, account_id = $8, to_account_id = $9, updated_at = $10
	WHERE org_id = $1 AND id = $2`

	res, err := p.tx.ExecContext(ctx, query, t.OrgID, t.ID, t.Kind, t.Amount, t.Category, t.Description,
		t.Date, nullString(t.AccountID), nullString(t.ToAccountID), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOne(res, models.ErrTransactionNotFound)
}

func (p *pgTx) DeleteTransaction(ctx context.Context, orgID, id string) error {
	res, err := p.tx.ExecContext(ctx, `DELETE FROM transactions WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, models.ErrTransactionNotFound)
}

func (p *pgTx) AppendChangeLog(ctx context.Context, e models.ChangeLogEntry) error {
	const query = `INSERT INTO transaction_change_log (id, transaction_id, at, actor_id, action, previous_amount)
	VALUES ($1,$2,$3,$4,$5,$6)`

	var prev decimal.NullDecimal
	if e.PreviousAmount != nil {
		prev = decimal.NewNullDecimal(*e.PreviousAmount)
	}
	_, err := p.tx.ExecContext(ctx, query, e.ID, e.TransactionID, e.At, e.ActorID, e.Action, prev)
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

// changeLog returns the entries of one transaction, newest first.
func (p *pgTx) changeLog(ctx context.Context, transactionID string) ([]models.ChangeLogEntry, error) {
	const query = `SELECT id, transaction_id, at, actor_id, action, previous_amount
	FROM transaction_change_log WHERE transaction_id = $1 ORDER BY seq DESC`

	rows, err := p.tx.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get change log: %w", err)
	}
	defer rows.Close()

	history := []models.ChangeLogEntry{}
	for rows.Next() {
		var (
			e    models.ChangeLogEntry
			prev decimal.NullDecimal
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.At, &e.ActorID, &e.Action, &prev); err != nil {
			return nil, fmt.Errorf("scan change log: %w", err)
		}
		if prev.Valid {
			amount := prev.Decimal
			e.PreviousAmount = &amount
		}
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get change log: %w", err)
	}
	return history, nil
}
