package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.Store.
// Units of work are serialized by a mutex and run against a copy-on-write
// view of the state which replaces the live state only when the unit succeeds.
type MemoryLedgerStore struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	accounts     map[string]models.Account
	entries      []models.LedgerEntry
	transactions map[string]models.Transaction
	keys         map[string]string // org + idempotency key -> transaction id
	goals        map[string]models.SavingsGoal
	debts        map[string]models.Debt
}

// NewMemoryLedgerStore creates and returns an empty MemoryLedgerStore.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		state: &state{
			accounts:     make(map[string]models.Account),
			transactions: make(map[string]models.Transaction),
			keys:         make(map[string]string),
			goals:        make(map[string]models.SavingsGoal),
			debts:        make(map[string]models.Debt),
		},
	}
}

// snapshot starts a unit of work on s. The maps are shared until the unit
// first writes to one of them. Entries are append-only, so the unit appends
// to the shared backing array; s keeps its own length and never sees entries
// from a unit that rolls back.
func (s *state) snapshot() *state {
	c := *s
	return &c
}

// part names one map of the state for copy-on-write.
type part uint8

const (
	partAccounts part = 1 << iota
	partTransactions
	partKeys
	partGoals
	partDebts
)

// WithinTx implements interfaces.Store.
func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrTransientStore, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{s: m.state.snapshot()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// the caller gave up before commit: drop the copy
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", models.ErrTransientStore, err)
	}
	m.state = tx.s
	return nil
}

type memoryTx struct {
	s     *state
	owned part
}

// own gives the unit its private copy of p before the first write to it.
func (t *memoryTx) own(p part) {
	if t.owned&p != 0 {
		return
	}
	t.owned |= p
	switch p {
	case partAccounts:
		t.s.accounts = maps.Clone(t.s.accounts)
	case partTransactions:
		t.s.transactions = maps.Clone(t.s.transactions)
	case partKeys:
		t.s.keys = maps.Clone(t.s.keys)
	case partGoals:
		t.s.goals = maps.Clone(t.s.goals)
	case partDebts:
		t.s.debts = maps.Clone(t.s.debts)
	}
}

func idempotencyIndex(orgID, key string) string {
	return orgID + "\x00" + key
}

func (t *memoryTx) InsertAccount(_ context.Context, account models.Account) error {
	if _, exists := t.s.accounts[account.ID]; exists {
		return fmt.Errorf("insert account %s: duplicate id", account.ID)
	}
	t.own(partAccounts)
	t.s.accounts[account.ID] = account
	return nil
}

func (t *memoryTx) GetAccount(_ context.Context, orgID, id string) (models.Account, error) {
	a, ok := t.s.accounts[id]
	if !ok || a.OrgID != orgID {
		return models.Account{}, models.ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryTx) ListAccounts(_ context.Context, orgID string) ([]models.Account, error) {
	var result []models.Account
	for _, a := range t.s.accounts {
		if a.OrgID == orgID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (t *memoryTx) DeleteAccount(ctx context.Context, orgID, id string) error {
	if _, err := t.GetAccount(ctx, orgID, id); err != nil {
		return err
	}
	t.own(partAccounts)
	delete(t.s.accounts, id)
	return nil
}

func (t *memoryTx) CountAccountReferences(_ context.Context, orgID, accountID string) (int, error) {
	n := 0
	for _, tr := range t.s.transactions {
		if tr.OrgID != orgID {
			continue
		}
		if (tr.AccountID != nil && *tr.AccountID == accountID) ||
			(tr.ToAccountID != nil && *tr.ToAccountID == accountID) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) AdjustBalance(ctx context.Context, orgID, accountID string, delta decimal.Decimal, requireNonNegative bool) (models.Account, error) {
	a, err := t.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return models.Account{}, err
	}
	next := a.Balance.Add(delta)
	if requireNonNegative && next.IsNegative() {
		return models.Account{}, models.ErrInsufficientFunds
	}
	a.Balance = next
	t.own(partAccounts)
	t.s.accounts[accountID] = a
	return a, nil
}

func (t *memoryTx) SaveEntry(_ context.Context, entry models.LedgerEntry) error {
	t.s.entries = append(t.s.entries, entry)
	return nil
}

func (t *memoryTx) GetEntriesByAccount(_ context.Context, orgID, accountID string) ([]models.LedgerEntry, error) {
	var result []models.LedgerEntry
	for _, e := range t.s.entries {
		if e.OrgID == orgID && e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (t *memoryTx) GetEntriesBySource(_ context.Context, orgID string, source models.EntrySource, sourceID string) ([]models.LedgerEntry, error) {
	var result []models.LedgerEntry
	for _, e := range t.s.entries {
		if e.OrgID == orgID && e.Source == source && e.SourceID == sourceID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr models.Transaction) error {
	if _, exists := t.s.transactions[tr.ID]; exists {
		return fmt.Errorf("insert transaction %s: duplicate id", tr.ID)
	}
	if tr.IdempotencyKey != "" {
		idx := idempotencyIndex(tr.OrgID, tr.IdempotencyKey)
		if _, exists := t.s.keys[idx]; exists {
			return fmt.Errorf("insert transaction %s: duplicate idempotency key", tr.ID)
		}
		t.own(partKeys)
		t.s.keys[idx] = tr.ID
	}
	tr.History = cloneHistory(tr.History)
	t.own(partTransactions)
	t.s.transactions[tr.ID] = tr
	return nil
}

func (t *memoryTx) GetTransaction(_ context.Context, orgID, id string) (models.Transaction, error) {
	tr, ok := t.s.transactions[id]
	if !ok || tr.OrgID != orgID {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	tr.History = cloneHistory(tr.History)
	return tr, nil
}

func (t *memoryTx) FindTransactionByKey(ctx context.Context, orgID, idempotencyKey string) (models.Transaction, bool, error) {
	id, ok := t.s.keys[idempotencyIndex(orgID, idempotencyKey)]
	if !ok {
		return models.Transaction{}, false, nil
	}
	tr, err := t.GetTransaction(ctx, orgID, id)
	if err != nil {
		return models.Transaction{}, false, err
	}
	return tr, true, nil
}

func (t *memoryTx) ListTransactions(_ context.Context, orgID string) ([]models.Transaction, error) {
	var result []models.Transaction
	for _, tr := range t.s.transactions {
		if tr.OrgID == orgID {
			tr.History = cloneHistory(tr.History)
			result = append(result, tr)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// UpdateTransaction stores the record fields; the change log is only ever
// extended through AppendChangeLog.
func (t *memoryTx) UpdateTransaction(ctx context.Context, tr models.Transaction) error {
	current, err := t.GetTransaction(ctx, tr.OrgID, tr.ID)
	if err != nil {
		return err
	}
	tr.History = current.History
	tr.IdempotencyKey = current.IdempotencyKey
	t.own(partTransactions)
	t.s.transactions[tr.ID] = tr
	return nil
}

func (t *memoryTx) DeleteTransaction(ctx context.Context, orgID, id string) error {
	tr, err := t.GetTransaction(ctx, orgID, id)
	if err != nil {
		return err
	}
	if tr.IdempotencyKey != "" {
		t.own(partKeys)
		delete(t.s.keys, idempotencyIndex(orgID, tr.IdempotencyKey))
	}
	t.own(partTransactions)
	delete(t.s.transactions, id)
	return nil
}

func (t *memoryTx) AppendChangeLog(_ context.Context, entry models.ChangeLogEntry) error {
	tr, ok := t.s.transactions[entry.TransactionID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	tr.History = append([]models.ChangeLogEntry{entry}, tr.History...)
	t.own(partTransactions)
	t.s.transactions[tr.ID] = tr
	return nil
}

func (t *memoryTx) InsertGoal(_ context.Context, g models.SavingsGoal) error {
	if _, exists := t.s.goals[g.ID]; exists {
		return fmt.Errorf("insert goal %s: duplicate id", g.ID)
	}
	g.History = cloneHistory(g.History)
	t.own(partGoals)
	t.s.goals[g.ID] = g
	return nil
}

func (t *memoryTx) GetGoal(_ context.Context, orgID, id string) (models.SavingsGoal, error) {
	g, ok := t.s.goals[id]
	if !ok || g.OrgID != orgID {
		return models.SavingsGoal{}, models.ErrGoalNotFound
	}
	g.History = cloneHistory(g.History)
	return g, nil
}

func (t *memoryTx) ListGoals(_ context.Context, orgID string) ([]models.SavingsGoal, error) {
	var result []models.SavingsGoal
	for _, g := range t.s.goals {
		if g.OrgID == orgID {
			g.History = cloneHistory(g.History)
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (t *memoryTx) UpdateGoal(ctx context.Context, g models.SavingsGoal) error {
	current, err := t.GetGoal(ctx, g.OrgID, g.ID)
	if err != nil {
		return err
	}
	g.History = current.History
	t.own(partGoals)
	t.s.goals[g.ID] = g
	return nil
}

func (t *memoryTx) DeleteGoal(ctx context.Context, orgID, id string) error {
	if _, err := t.GetGoal(ctx, orgID, id); err != nil {
		return err
	}
	t.own(partGoals)
	delete(t.s.goals, id)
	return nil
}

func (t *memoryTx) AppendContribution(_ context.Context, c models.GoalContribution) error {
	g, ok := t.s.goals[c.GoalID]
	if !ok {
		return models.ErrGoalNotFound
	}
	g.History = append([]models.GoalContribution{c}, g.History...)
	t.own(partGoals)
	t.s.goals[g.ID] = g
	return nil
}

func (t *memoryTx) InsertDebt(_ context.Context, d models.Debt) error {
	if _, exists := t.s.debts[d.ID]; exists {
		return fmt.Errorf("insert debt %s: duplicate id", d.ID)
	}
	d.History = cloneHistory(d.History)
	t.own(partDebts)
	t.s.debts[d.ID] = d
	return nil
}

func (t *memoryTx) GetDebt(_ context.Context, orgID, id string) (models.Debt, error) {
	d, ok := t.s.debts[id]
	if !ok || d.OrgID != orgID {
		return models.Debt{}, models.ErrDebtNotFound
	}
	d.History = cloneHistory(d.History)
	return d, nil
}

func (t *memoryTx) ListDebts(_ context.Context, orgID string) ([]models.Debt, error) {
	var result []models.Debt
	for _, d := range t.s.debts {
		if d.OrgID == orgID {
			d.History = cloneHistory(d.History)
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (t *memoryTx) UpdateDebt(ctx context.Context, d models.Debt) error {
	current, err := t.GetDebt(ctx, d.OrgID, d.ID)
	if err != nil {
		return err
	}
	d.History = current.History
	t.own(partDebts)
	t.s.debts[d.ID] = d
	return nil
}

func (t *memoryTx) DeleteDebt(ctx context.Context, orgID, id string) error {
	if _, err := t.GetDebt(ctx, orgID, id); err != nil {
		return err
	}
	t.own(partDebts)
	delete(t.s.debts, id)
	return nil
}

func (t *memoryTx) AppendPayment(_ context.Context, p models.DebtPayment) error {
	d, ok := t.s.debts[p.DebtID]
	if !ok {
		return models.ErrDebtNotFound
	}
	d.History = append([]models.DebtPayment{p}, d.History...)
	t.own(partDebts)
	t.s.debts[d.ID] = d
	return nil
}

// cloneHistory copies a history slice; the result is never nil so an empty
// history encodes as [].
func cloneHistory[T any](h []T) []T {
	out := make([]T, len(h))
	copy(out, h)
	return out
}

// Compile-time check: ensure MemoryLedgerStore implements Store interface
var _ interfaces.Store = (*MemoryLedgerStore)(nil)
var _ interfaces.Tx = (*memoryTx)(nil)
