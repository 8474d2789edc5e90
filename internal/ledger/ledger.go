package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/models"
	"github.com/sheikh-saqib/household-ledger/internal/models/events"
)

// Ledger owns account balances and is the only path through which they change.
// Operations touching the same account are serialized in-process by a
// per-account lock and in the store by the unit of work.
type Ledger struct {
	store     interfaces.Store
	publisher interfaces.EventPublisher
	topic     string
	txTimeout time.Duration
	log       logrus.FieldLogger
	now       func() time.Time

	muMap map[string]chan struct{} // one-slot semaphore per account
	mapMu sync.Mutex               // protects muMap itself
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sends post-commit events to p on the given topic.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		l.topic = topic
	}
}

// WithTxTimeout bounds every unit of work.
func WithTxTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.txTimeout = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger on top of the given store.
func NewLedger(store interfaces.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		log:   logrus.StandardLogger(),
		now:   time.Now,
		muMap: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getAccountLock(accountID string) chan struct{} {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[accountID]; !exists {
		l.muMap[accountID] = make(chan struct{}, 1)
	}
	return l.muMap[accountID]
}

// lockAccounts locks every non-empty account id once, in sorted order so two
// operations sharing accounts can't deadlock. Waiting stops when ctx is done,
// which surfaces as ErrTransientStore. On success the returned func unlocks
// every account and is safe to call more than once.
func (l *Ledger) lockAccounts(ctx context.Context, ids ...string) (func(), error) {
	seen := make(map[string]struct{}, len(ids))
	var ordered []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}
	for _, id := range ordered {
		sem := l.getAccountLock(id)
		select {
		case sem <- struct{}{}:
			held = append(held, sem)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: waiting for account %s: %w", ErrTransientStore, id, ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// run executes fn as one unit of work bounded by the configured timeout.
// A deadline or cancellation surfaces as ErrTransientStore.
func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, tx interfaces.Tx) error) error {
	if l.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.txTimeout)
		defer cancel()
	}
	err := l.store.WithinTx(ctx, fn)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) &&
		!errors.Is(err, ErrTransientStore) {
		return fmt.Errorf("%w: %w", ErrTransientStore, err)
	}
	return err
}

func (l *Ledger) publish(ctx context.Context, ev events.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, l.topic, ev); err != nil {
		l.log.WithFields(logrus.Fields{
			"event":        ev.Type,
			"org_id":       ev.OrgID,
			"aggregate_id": ev.AggregateID,
		}).WithError(err).Error("publish ledger event")
	}
}

// delta is one signed balance change. Checked debits must not take the
// balance below zero.
type delta struct {
	accountID string
	amount    decimal.Decimal
	checked   bool
}

func (d delta) negate() delta {
	return delta{accountID: d.accountID, amount: d.amount.Neg()}
}

func reverse(ds []delta) []delta {
	out := make([]delta, 0, len(ds))
	for i := len(ds) - 1; i >= 0; i-- {
		out = append(out, ds[i].negate())
	}
	return out
}

func changes(ds []delta) []events.BalanceChange {
	out := make([]events.BalanceChange, 0, len(ds))
	for _, d := range ds {
		out = append(out, events.BalanceChange{AccountID: d.accountID, Delta: d.amount})
	}
	return out
}

func accountIDs(ds ...[]delta) []string {
	var ids []string
	for _, list := range ds {
		for _, d := range list {
			ids = append(ids, d.accountID)
		}
	}
	return ids
}

// applied returns the balance change a source still has in effect, netted
// per account in first-touched order. Reversing it undoes exactly what was
// written, whatever the source record says now.
func (l *Ledger) applied(ctx context.Context, tx interfaces.Tx, orgID string, source models.EntrySource, sourceID string) ([]delta, error) {
	entries, err := tx.GetEntriesBySource(ctx, orgID, source, sourceID)
	if err != nil {
		return nil, err
	}
	net := make(map[string]decimal.Decimal)
	var order []string
	for _, e := range entries {
		if _, ok := net[e.AccountID]; !ok {
			order = append(order, e.AccountID)
		}
		net[e.AccountID] = net[e.AccountID].Add(e.Amount)
	}
	var ds []delta
	for _, id := range order {
		if !net[id].IsZero() {
			ds = append(ds, delta{accountID: id, amount: net[id]})
		}
	}
	return ds, nil
}

// checkFunds verifies every checked debit before anything is written.
func (l *Ledger) checkFunds(ctx context.Context, tx interfaces.Tx, orgID string, ds []delta) error {
	for _, d := range ds {
		if _, err := tx.GetAccount(ctx, orgID, d.accountID); err != nil {
			return err
		}
		if !d.checked {
			continue
		}
		ok, err := l.sufficientFunds(ctx, tx, orgID, d.accountID, d.amount.Neg())
		if err != nil {
			return err
		}
		if !ok {
			l.log.WithFields(logrus.Fields{
				"org_id":     orgID,
				"account_id": d.accountID,
				"amount":     d.amount.Neg().String(),
			}).Warn("debit rejected: insufficient funds")
			return ErrInsufficientFunds
		}
	}
	return nil
}

// applyDeltas is the single choke point for balance writes inside a unit of work.
func (l *Ledger) applyDeltas(ctx context.Context, tx interfaces.Tx, orgID string, source models.EntrySource, sourceID string, ds []delta) error {
	for _, d := range ds {
		if err := l.applyDelta(ctx, tx, orgID, d, source, sourceID); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) applyDelta(ctx context.Context, tx interfaces.Tx, orgID string, d delta, source models.EntrySource, sourceID string) error {
	if _, err := tx.AdjustBalance(ctx, orgID, d.accountID, d.amount, d.checked); err != nil {
		return err
	}
	return tx.SaveEntry(ctx, models.LedgerEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		AccountID: d.accountID,
		Amount:    d.amount,
		Source:    source,
		SourceID:  sourceID,
		CreatedAt: l.now().UTC(),
	})
}

func (l *Ledger) sufficientFunds(ctx context.Context, tx interfaces.Tx, orgID, accountID string, amount decimal.Decimal) (bool, error) {
	a, err := tx.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return false, err
	}
	return a.Balance.GreaterThanOrEqual(amount), nil
}

// ApplyDelta adds signedAmount to the balance of an account as its own unit of work.
func (l *Ledger) ApplyDelta(ctx context.Context, orgID, accountID string, signedAmount decimal.Decimal) (models.Account, error) {
	if err := validPrecision(signedAmount); err != nil {
		return models.Account{}, err
	}
	unlock, err := l.lockAccounts(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}
	defer unlock()

	var account models.Account
	err = l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if err := l.applyDelta(ctx, tx, orgID, delta{accountID: accountID, amount: signedAmount}, models.SourceAdjustment, accountID); err != nil {
			return err
		}
		var err error
		account, err = tx.GetAccount(ctx, orgID, accountID)
		return err
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// ReverseDelta undoes a prior ApplyDelta of signedAmount.
func (l *Ledger) ReverseDelta(ctx context.Context, orgID, accountID string, signedAmount decimal.Decimal) (models.Account, error) {
	return l.ApplyDelta(ctx, orgID, accountID, signedAmount.Neg())
}

// CheckSufficientFunds reports whether the account balance covers amount.
// The answer is advisory: operations that debit recheck inside their unit of work.
func (l *Ledger) CheckSufficientFunds(ctx context.Context, orgID, accountID string, amount decimal.Decimal) (bool, error) {
	var ok bool
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		ok, err = l.sufficientFunds(ctx, tx, orgID, accountID, amount)
		return err
	})
	return ok, err
}

// CreateAccount opens an account whose balance starts at initialBalance.
func (l *Ledger) CreateAccount(ctx context.Context, orgID, name string, kind models.AccountKind, initialBalance decimal.Decimal) (models.Account, error) {
	if !kind.Valid() {
		return models.Account{}, fmt.Errorf("%w: account kind %q", ErrInvalidKind, kind)
	}
	if err := validPrecision(initialBalance); err != nil {
		return models.Account{}, err
	}
	now := l.now().UTC()
	account := models.Account{
		ID:             uuid.NewString(),
		OrgID:          orgID,
		Name:           strings.TrimSpace(name),
		Kind:           kind,
		InitialBalance: initialBalance,
		Balance:        initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		return tx.InsertAccount(ctx, account)
	})
	if err != nil {
		return models.Account{}, err
	}
	l.log.WithFields(logrus.Fields{"org_id": orgID, "account_id": account.ID}).Debug("account created")
	return account, nil
}

func (l *Ledger) GetAccount(ctx context.Context, orgID, accountID string) (models.Account, error) {
	var account models.Account
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		account, err = tx.GetAccount(ctx, orgID, accountID)
		return err
	})
	return account, err
}

func (l *Ledger) GetBalance(ctx context.Context, orgID, accountID string) (decimal.Decimal, error) {
	account, err := l.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (l *Ledger) ListAccounts(ctx context.Context, orgID string) ([]models.Account, error) {
	var accounts []models.Account
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, orgID)
		return err
	})
	return accounts, err
}

// GetLedgerEntries returns the deltas applied to an account, oldest first.
func (l *Ledger) GetLedgerEntries(ctx context.Context, orgID, accountID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if _, err := tx.GetAccount(ctx, orgID, accountID); err != nil {
			return err
		}
		var err error
		entries, err = tx.GetEntriesByAccount(ctx, orgID, accountID)
		return err
	})
	return entries, err
}

// DeleteAccount removes an account that no transaction references.
func (l *Ledger) DeleteAccount(ctx context.Context, orgID, accountID string) error {
	unlock, err := l.lockAccounts(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	return l.run(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if _, err := tx.GetAccount(ctx, orgID, accountID); err != nil {
			return err
		}
		n, err := tx.CountAccountReferences(ctx, orgID, accountID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d transaction(s)", ErrAccountInUse, n)
		}
		return tx.DeleteAccount(ctx, orgID, accountID)
	})
}

// dateOrToday defaults an unset date to the current day.
func (l *Ledger) dateOrToday(d time.Time) time.Time {
	if d.IsZero() {
		return l.now().UTC().Truncate(24 * time.Hour)
	}
	return d
}

// amountPlaces is the number of decimal places a stored amount keeps.
const amountPlaces = 2

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	return validPrecision(amount)
}

// validPrecision rejects amounts the store would have to round.
func validPrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount.String(), amountPlaces)
	}
	return nil
}
