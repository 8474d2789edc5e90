package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

const accountColumns = `id, org_id, name, kind, initial_balance, balance, created_at, updated_at`

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Kind, &a.InitialBalance, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (p *pgTx) InsertAccount(ctx context.Context, a models.Account) error {
	const query = `INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := p.tx.ExecContext(ctx, query, a.ID, a.OrgID, a.Name, a.Kind, a.InitialBalance, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (p *pgTx) GetAccount(ctx context.Context, orgID, id string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE org_id = $1 AND id = $2`

	a, err := scanAccount(p.tx.QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (p *pgTx) ListAccounts(ctx context.Context, orgID string) ([]models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE org_id = $1 ORDER BY created_at, id`

	rows, err := p.tx.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (p *pgTx) DeleteAccount(ctx context.Context, orgID, id string) error {
	res, err := p.tx.ExecContext(ctx, `DELETE FROM accounts WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectOne(res, models.ErrAccountNotFound)
}

func (p *pgTx) CountAccountReferences(ctx context.Context, orgID, accountID string) (int, error) {
	const query = `SELECT count(*) FROM transactions
	WHERE org_id = $1 AND (account_id = $2 OR to_account_id = $2)`

	var n int
	if err := p.tx.QueryRowContext(ctx, query, orgID, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count account references: %w", err)
	}
	return n, nil
}

// AdjustBalance applies delta in a single UPDATE. The non-negativity guard is
// part of the WHERE clause, so the check and the write cannot be interleaved.
func (p *pgTx) AdjustBalance(ctx context.Context, orgID, accountID string, delta decimal.Decimal, requireNonNegative bool) (models.Account, error) {
	const query = `UPDATE accounts SET balance = balance + $3, updated_at = now()
	WHERE org_id = $1 AND id = $2 AND ($4 = false OR balance + $3 >= 0)
	RETURNING ` + accountColumns

	a, err := scanAccount(p.tx.QueryRowContext(ctx, query, orgID, accountID, delta, requireNonNegative))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("adjust balance: %w", err)
	}

	// nothing updated: either the account is missing or the guard failed
	if _, err := p.GetAccount(ctx, orgID, accountID); err != nil {
		return models.Account{}, err
	}
	return models.Account{}, models.ErrInsufficientFunds
}

func (p *pgTx) SaveEntry(ctx context.Context, e models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (id, org_id, account_id, amount, source, source_id, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := p.tx.ExecContext(ctx, query, e.ID, e.OrgID, e.AccountID, e.Amount, e.Source, e.SourceID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}
	return nil
}

func (p *pgTx) GetEntriesByAccount(ctx context.Context, orgID, accountID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, org_id, account_id, amount, source, source_id, created_at
	FROM ledger_entries WHERE org_id = $1 AND account_id = $2 ORDER BY seq`

	return p.queryEntries(ctx, query, orgID, accountID)
}

func (p *pgTx) GetEntriesBySource(ctx context.Context, orgID string, source models.EntrySource, sourceID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, org_id, account_id, amount, source, source_id, created_at
	FROM ledger_entries WHERE org_id = $1 AND source = $2 AND source_id = $3 ORDER BY seq`

	return p.queryEntries(ctx, query, orgID, source, sourceID)
}

func (p *pgTx) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := p.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.AccountID, &e.Amount, &e.Source, &e.SourceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}
	return entries, nil
}

// expectOne reports notFound when res touched no row.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
