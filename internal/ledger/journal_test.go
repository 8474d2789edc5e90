package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/models/events"
	"github.com/sheikh-saqib/household-ledger/internal/storage/memory"
)

// failingStore makes every InsertTransaction fail after the balance writes
// of the same unit of work have already happened.
type failingStore struct {
	inner interfaces.Store
	err   error
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.Tx) error) error {
	return s.inner.WithinTx(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: s.err})
	})
}

type failingTx struct {
	interfaces.Tx
	err error
}

func (f failingTx) InsertTransaction(context.Context, models.Transaction) error {
	return f.err
}

func TestJournal_ExpenseThenDeleteRestoresBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a1 := f.account(t, "A1", 1_000_000)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID:       org,
		ActorID:     "u1",
		Kind:        models.Expense,
		Amount:      amt(75_000),
		Category:    "Food",
		Description: "groceries",
		AccountID:   &a1.ID,
	})
	require.NoError(t, err)
	require.Empty(t, tx.History)
	requireAmount(t, 925_000, f.balance(t, a1.ID))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 1_000_000, f.balance(t, a1.ID))

	_, err = f.journal.GetTransaction(ctx, org, tx.ID)
	require.ErrorIs(t, err, ErrTransactionNotFound)

	err = f.journal.DeleteTransaction(ctx, org, tx.ID, "u1")
	require.ErrorIs(t, err, ErrTransactionNotFound)

	require.Equal(t, []string{events.TransactionRecorded, events.TransactionDeleted}, f.publisher.types())
}

func TestJournal_IncomeThenDeleteRestoresBalance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Salary", 10)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Income, Amount: amt(990), AccountID: &a.ID,
	})
	require.NoError(t, err)
	requireAmount(t, 1000, f.balance(t, a.ID))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 10, f.balance(t, a.ID))
}

func TestJournal_InsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a4 := f.account(t, "A4", 1_500_000)

	_, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(2_000_000), AccountID: &a4.ID,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	requireAmount(t, 1_500_000, f.balance(t, a4.ID))

	txs, err := f.journal.ListTransactions(ctx, org)
	require.NoError(t, err)
	require.Empty(t, txs)

	entries, err := f.ledger.GetLedgerEntries(ctx, org, a4.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Empty(t, f.publisher.types())
}

func TestJournal_ExactBalanceExpenseIsAllowed(t *testing.T) {
	f := newFixture(t, nil)
	a := f.account(t, "Cash", 300)

	_, err := f.journal.AddTransaction(context.Background(), NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(300), AccountID: &a.ID,
	})
	require.NoError(t, err)
	requireAmount(t, 0, f.balance(t, a.ID))
}

func TestJournal_TransactionWithoutAccount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 100)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(5_000), Category: "Misc",
	})
	require.NoError(t, err)
	require.Nil(t, tx.AccountID)
	requireAmount(t, 100, f.balance(t, a.ID))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 100, f.balance(t, a.ID))
}

func TestJournal_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 100)
	missing := "missing"

	tests := []struct {
		name string
		in   NewTransaction
		err  error
	}{
		{
			name: "zero amount",
			in:   NewTransaction{OrgID: org, Kind: models.Expense, Amount: amt(0), AccountID: &a.ID},
			err:  ErrInvalidAmount,
		},
		{
			name: "negative amount",
			in:   NewTransaction{OrgID: org, Kind: models.Income, Amount: amt(-5), AccountID: &a.ID},
			err:  ErrInvalidAmount,
		},
		{
			name: "sub-cent amount",
			in:   NewTransaction{OrgID: org, Kind: models.Expense, Amount: decimal.RequireFromString("0.005"), AccountID: &a.ID},
			err:  ErrInvalidAmount,
		},
		{
			name: "unknown kind",
			in:   NewTransaction{OrgID: org, Kind: "REFUND", Amount: amt(5), AccountID: &a.ID},
			err:  ErrInvalidKind,
		},
		{
			name: "unknown account",
			in:   NewTransaction{OrgID: org, Kind: models.Income, Amount: amt(5), AccountID: &missing},
			err:  ErrAccountNotFound,
		},
		{
			name: "transfer to itself",
			in:   NewTransaction{OrgID: org, Kind: models.Transfer, Amount: amt(5), AccountID: &a.ID, ToAccountID: &a.ID},
			err:  ErrInvalidTransfer,
		},
		{
			name: "destination on expense",
			in:   NewTransaction{OrgID: org, Kind: models.Expense, Amount: amt(5), AccountID: &a.ID, ToAccountID: &missing},
			err:  ErrInvalidTransfer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.journal.AddTransaction(ctx, tt.in)
			require.ErrorIs(t, err, tt.err)
			requireAmount(t, 100, f.balance(t, a.ID))
		})
	}
}

func TestJournal_Transfer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	from := f.account(t, "Checking", 1000)
	to := f.account(t, "Savings", 50)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Transfer, Amount: amt(400), AccountID: &from.ID, ToAccountID: &to.ID,
	})
	require.NoError(t, err)
	requireAmount(t, 600, f.balance(t, from.ID))
	requireAmount(t, 450, f.balance(t, to.ID))

	_, err = f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Transfer, Amount: amt(601), AccountID: &from.ID, ToAccountID: &to.ID,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	requireAmount(t, 600, f.balance(t, from.ID))
	requireAmount(t, 450, f.balance(t, to.ID))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 1000, f.balance(t, from.ID))
	requireAmount(t, 50, f.balance(t, to.ID))
}

func TestJournal_TransferWithoutDestinationIsRecordOnly(t *testing.T) {
	f := newFixture(t, nil)
	a := f.account(t, "Cash", 100)

	_, err := f.journal.AddTransaction(context.Background(), NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Transfer, Amount: amt(1000), AccountID: &a.ID,
	})
	require.NoError(t, err)
	requireAmount(t, 100, f.balance(t, a.ID))
}

func TestJournal_IdempotencyKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 1000)

	in := NewTransaction{
		OrgID: org, ActorID: "u1", IdempotencyKey: "submit-42", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	}
	first, err := f.journal.AddTransaction(ctx, in)
	require.NoError(t, err)
	second, err := f.journal.AddTransaction(ctx, in)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	requireAmount(t, 900, f.balance(t, a.ID))
	require.Equal(t, []string{events.TransactionRecorded}, f.publisher.types())

	// keys are scoped per organization
	other, err := f.ledger.CreateAccount(ctx, "org-2", "Cash", models.AccountCash, amt(1000))
	require.NoError(t, err)
	third, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: "org-2", ActorID: "u2", IdempotencyKey: "submit-42", Kind: models.Expense, Amount: amt(100), AccountID: &other.ID,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
}

func TestJournal_UpdateRecordsPreviousAmount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 1000)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)

	newAmount := amt(250)
	updated, err := f.journal.UpdateTransaction(ctx, org, tx.ID, "u2", models.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	require.Len(t, updated.History, 1)
	require.Equal(t, models.ActionUpdate, updated.History[0].Action)
	require.Equal(t, "u2", updated.History[0].ActorID)
	require.NotNil(t, updated.History[0].PreviousAmount)
	requireAmount(t, 100, *updated.History[0].PreviousAmount)
	requireAmount(t, 250, updated.Amount)
	requireAmount(t, 750, f.balance(t, a.ID))

	desc := "renamed"
	updated, err = f.journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	require.Len(t, updated.History, 2)
	require.Nil(t, updated.History[0].PreviousAmount)
	require.Equal(t, "u1", updated.History[0].ActorID)
	require.Equal(t, "u2", updated.History[1].ActorID)
	requireAmount(t, 750, f.balance(t, a.ID))

	// deleting after an edit restores the original balance
	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 1000, f.balance(t, a.ID))
}

func TestJournal_UpdateMovesAccountAndKind(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "A", 1000)
	b := f.account(t, "B", 1000)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)

	income := models.Income
	_, err = f.journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Kind: &income, AccountID: &b.ID})
	require.NoError(t, err)
	requireAmount(t, 1000, f.balance(t, a.ID))
	requireAmount(t, 1100, f.balance(t, b.ID))

	_, err = f.journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{ClearAccount: true})
	require.NoError(t, err)
	requireAmount(t, 1000, f.balance(t, b.ID))
}

func TestJournal_UpdateBeyondBalanceRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 500)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)

	tooMuch := amt(501)
	_, err = f.journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Amount: &tooMuch})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	stored, err := f.journal.GetTransaction(ctx, org, tx.ID)
	require.NoError(t, err)
	requireAmount(t, 100, stored.Amount)
	require.Empty(t, stored.History)
	requireAmount(t, 400, f.balance(t, a.ID))
}

func TestJournal_UpdateWithoutRebalanceOnlyLogs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	journal := NewJournal(f.ledger, false)
	a := f.account(t, "Cash", 1000)

	tx, err := journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)

	newAmount := amt(300)
	updated, err := journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	requireAmount(t, 100, *updated.History[0].PreviousAmount)
	requireAmount(t, 900, f.balance(t, a.ID))
}

func TestJournal_DeleteAfterLogOnlyEditReversesWhatWasApplied(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	journal := NewJournal(f.ledger, false)
	a := f.account(t, "Cash", 1000)

	tx, err := journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)

	newAmount := amt(150)
	_, err = journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	requireAmount(t, 900, f.balance(t, a.ID))

	require.NoError(t, journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 1000, f.balance(t, a.ID))
}

func TestJournal_RebalancingEditCatchesUpLogOnlyEdits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	logOnly := NewJournal(f.ledger, false)
	a := f.account(t, "Cash", 1000)

	tx, err := logOnly.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.NoError(t, err)
	newAmount := amt(300)
	_, err = logOnly.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Amount: &newAmount})
	require.NoError(t, err)
	requireAmount(t, 900, f.balance(t, a.ID))

	// any edit through a rebalancing journal brings the balance in line
	desc := "groceries"
	_, err = f.journal.UpdateTransaction(ctx, org, tx.ID, "u1", models.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	requireAmount(t, 700, f.balance(t, a.ID))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 1000, f.balance(t, a.ID))
}

func TestJournal_CentAmountsRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 100)

	tx, err := f.journal.AddTransaction(ctx, NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: decimal.RequireFromString("0.01"), AccountID: &a.ID,
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("99.99").Equal(f.balance(t, a.ID)))

	require.NoError(t, f.journal.DeleteTransaction(ctx, org, tx.ID, "u1"))
	requireAmount(t, 100, f.balance(t, a.ID))
}

func TestJournal_UpdateUnknownTransaction(t *testing.T) {
	f := newFixture(t, nil)
	desc := "x"
	_, err := f.journal.UpdateTransaction(context.Background(), org, "nope", "u1", models.TransactionPatch{Description: &desc})
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestJournal_FailedInsertRollsBackBalance(t *testing.T) {
	inner := memory.NewMemoryLedgerStore()
	seed := newFixture(t, inner)
	a := seed.account(t, "Cash", 1000)

	boom := errors.New("disk full")
	f := newFixture(t, &failingStore{inner: inner, err: boom})
	_, err := f.journal.AddTransaction(context.Background(), NewTransaction{
		OrgID: org, ActorID: "u1", Kind: models.Expense, Amount: amt(100), AccountID: &a.ID,
	})
	require.ErrorIs(t, err, boom)
	requireAmount(t, 1000, seed.balance(t, a.ID))

	entries, err := seed.ledger.GetLedgerEntries(context.Background(), org, a.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestJournal_ListNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	for _, d := range []int{3, 1, 2} {
		_, err := f.journal.AddTransaction(ctx, NewTransaction{
			OrgID: org, ActorID: "u1", Kind: models.Income, Amount: amt(int64(d)), Date: day(d),
		})
		require.NoError(t, err)
	}

	txs, err := f.journal.ListTransactions(ctx, org)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, day(3), txs[0].Date)
	require.Equal(t, day(2), txs[1].Date)
	require.Equal(t, day(1), txs[2].Date)
}

func TestJournal_BalanceEqualsInitialPlusEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.account(t, "Cash", 1000)
	b := f.account(t, "Other", 0)

	var ids []string
	for i, in := range []NewTransaction{
		{Kind: models.Income, Amount: amt(250), AccountID: &a.ID},
		{Kind: models.Expense, Amount: amt(75), AccountID: &a.ID},
		{Kind: models.Transfer, Amount: amt(300), AccountID: &a.ID, ToAccountID: &b.ID},
		{Kind: models.Expense, Amount: amt(20), AccountID: &b.ID},
	} {
		in.OrgID, in.ActorID = org, "u1"
		tx, err := f.journal.AddTransaction(ctx, in)
		require.NoErrorf(t, err, "transaction %d", i)
		ids = append(ids, tx.ID)
	}
	require.NoError(t, f.journal.DeleteTransaction(ctx, org, ids[1], "u1"))

	for _, acct := range []string{a.ID, b.ID} {
		account, err := f.ledger.GetAccount(ctx, org, acct)
		require.NoError(t, err)
		entries, err := f.ledger.GetLedgerEntries(ctx, org, acct)
		require.NoError(t, err)
		sum := account.InitialBalance
		for _, e := range entries {
			sum = sum.Add(e.Amount)
		}
		require.True(t, sum.Equal(account.Balance))
	}
	requireAmount(t, 950, f.balance(t, a.ID))
	requireAmount(t, 280, f.balance(t, b.ID))
}
