/*
log.go - Transaction log and balance accessor

PURPOSE:
  The Log is the single write path for points. Every earn, spend, and
  correction becomes an immutable Transaction, and the owning account's
  cached balance and counters move in the same atomic step.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: transactions are never edited or removed
  2. NON-NEGATIVE: a debit that would drive the balance below zero is
     rejected with InsufficientBalanceError before anything is written
  3. TRACEABLE: Balance == TotalEarned - TotalRedeemed == sum of deltas,
     and every transaction records the balance it produced

CONCURRENCY:
  Post is an atomic read-check-write scoped to one account. Concurrent
  posts to the same account serialize through optimistic versioning: the
  store rejects a stale write, Post re-reads and re-checks, and a racer
  whose balance check no longer holds fails with InsufficientBalanceError
  rather than both debits succeeding. Different accounts never contend.

CORRECTIONS:
  Mistakes are corrected by posting a new ADMIN_ADJUSTMENT transaction,
  never by editing history.

SEE ALSO:
  - store.go: The persistence contract Post builds on
  - errors.go: InsufficientBalanceError, ErrConcurrentModification
*/
package ledger

import (
	"context"
	"errors"
	"time"
)

// maxPostAttempts bounds the optimistic retry loop. Conflicts are rare and
// resolve in one re-read; hitting the bound means pathological contention
// and surfaces ErrConcurrentModification to the caller.
const maxPostAttempts = 5

// =============================================================================
// POST COMMAND - Explicit command in, applied side effects out
// =============================================================================

// PostCommand describes one points change.
type PostCommand struct {
	AccountID   AccountID
	Delta       int64 // positive = earn, negative = redeem
	Type        TransactionType
	Description string
	Related     *RelatedRef

	// Mutate, if set, is applied to the account in the same atomic step as
	// the balance change (milestone flags, pending commission). It must be
	// idempotent with respect to re-reads: Post may call it once per retry.
	Mutate func(*Account)
}

// PostResult reports the side effects a successful Post applied.
type PostResult struct {
	Transaction Transaction
	Account     Account // snapshot after the post
}

// =============================================================================
// LOG - The ledger's write path and balance accessor
// =============================================================================

type Log struct {
	store Store
	now   func() time.Time
}

func NewLog(store Store) *Log {
	return &Log{store: store, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Post appends one transaction and updates the account atomically.
// Fails with InsufficientBalanceError if the delta would drive the balance
// negative; in that case nothing is written.
func (l *Log) Post(ctx context.Context, cmd PostCommand) (PostResult, error) {
	return l.post(ctx, cmd, l.store.AppendWithAccount)
}

// PostWithVoucher is Post plus the insert of a freshly minted voucher in
// the same atomic step. Used by voucher issuance so the points debit and
// the voucher can never diverge: if the debit is rejected, the voucher is
// never persisted.
func (l *Log) PostWithVoucher(ctx context.Context, cmd PostCommand, v Voucher) (PostResult, error) {
	return l.post(ctx, cmd, func(ctx context.Context, tx Transaction, acct Account, expected int64) error {
		return l.store.AppendWithVoucher(ctx, tx, acct, expected, v)
	})
}

func (l *Log) post(ctx context.Context, cmd PostCommand, append func(context.Context, Transaction, Account, int64) error) (PostResult, error) {
	for attempt := 0; attempt < maxPostAttempts; attempt++ {
		acct, err := l.store.Account(ctx, cmd.AccountID)
		if err != nil {
			return PostResult{}, err
		}

		if cmd.Delta < 0 && acct.Balance+cmd.Delta < 0 {
			return PostResult{}, &InsufficientBalanceError{
				AccountID: cmd.AccountID,
				Available: acct.Balance,
				Requested: -cmd.Delta,
			}
		}

		expected := acct.Version
		acct.Balance += cmd.Delta
		if cmd.Delta >= 0 {
			acct.TotalEarned += cmd.Delta
		} else {
			acct.TotalRedeemed += -cmd.Delta
		}
		if cmd.Mutate != nil {
			cmd.Mutate(&acct)
		}
		acct.Version++

		tx := Transaction{
			ID:           NewTransactionID(),
			AccountID:    cmd.AccountID,
			Delta:        cmd.Delta,
			Type:         cmd.Type,
			Description:  cmd.Description,
			Related:      cmd.Related,
			BalanceAfter: acct.Balance,
			CreatedAt:    l.now(),
		}

		err = append(ctx, tx, acct, expected)
		if errors.Is(err, ErrConcurrentModification) {
			continue // lost the race; re-read and re-check
		}
		if err != nil {
			return PostResult{}, err
		}
		return PostResult{Transaction: tx, Account: acct}, nil
	}
	return PostResult{}, ErrConcurrentModification
}

// Balance returns the account's current point balance. Always >= 0.
func (l *Log) Balance(ctx context.Context, id AccountID) (int64, error) {
	acct, err := l.store.Account(ctx, id)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Account returns the account snapshot.
func (l *Log) Account(ctx context.Context, id AccountID) (Account, error) {
	return l.store.Account(ctx, id)
}

// History returns a page of the account's transactions, newest first.
// Page is 1-based; perPage falls back to 20 when out of range.
func (l *Log) History(ctx context.Context, id AccountID, page, perPage int) ([]Transaction, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return l.store.Transactions(ctx, id, page, perPage)
}

// UpdateAccount applies a mutation to the account outside the points ledger
// (pending commission, milestone claims) with the same optimistic retry as
// Post. The apply func may return an error to abort without writing.
func (l *Log) UpdateAccount(ctx context.Context, id AccountID, apply func(*Account) error) (Account, error) {
	for attempt := 0; attempt < maxPostAttempts; attempt++ {
		acct, err := l.store.Account(ctx, id)
		if err != nil {
			return Account{}, err
		}

		expected := acct.Version
		if err := apply(&acct); err != nil {
			return Account{}, err
		}
		acct.Version++

		err = l.store.UpdateAccount(ctx, acct, expected)
		if errors.Is(err, ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return Account{}, err
		}
		return acct, nil
	}
	return Account{}, ErrConcurrentModification
}

// Now exposes the log's clock so engines sharing the log stay on one
// time source.
func (l *Log) Now() time.Time { return l.now() }

// Store exposes the underlying record store for read paths and engine
// wiring. Write access to transactions still goes through Post only.
func (l *Log) Store() Store { return l.store }
