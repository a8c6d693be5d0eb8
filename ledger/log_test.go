package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftfix/reward-ledger/ledger"
	memstore "github.com/swiftfix/reward-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLog(t *testing.T) (*ledger.Log, *memstore.Memory) {
	t.Helper()
	store := memstore.NewMemory()
	return ledger.NewLog(store), store
}

func seedAccount(t *testing.T, store ledger.Store, id string) ledger.AccountID {
	t.Helper()
	err := store.CreateAccount(context.Background(), ledger.Account{
		ID:         ledger.AccountID(id),
		Type:       ledger.ReferrerCustomer,
		RewardType: ledger.RewardPoints,
		Active:     true,
	})
	require.NoError(t, err)
	return ledger.AccountID(id)
}

func earn(t *testing.T, log *ledger.Log, id ledger.AccountID, points int64) {
	t.Helper()
	_, err := log.Post(context.Background(), ledger.PostCommand{
		AccountID:   id,
		Delta:       points,
		Type:        ledger.TxReferralBonus,
		Description: "test credit",
	})
	require.NoError(t, err)
}

// =============================================================================
// POSTING & BALANCE
// =============================================================================

func TestLog_Post_EarnUpdatesBalanceAndCounters(t *testing.T) {
	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")

	res, err := log.Post(ctx, ledger.PostCommand{
		AccountID: id, Delta: 100, Type: ledger.TxReferralBonus, Description: "bonus",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 100, res.Transaction.Delta)
	assert.EqualValues(t, 100, res.Transaction.BalanceAfter)
	assert.EqualValues(t, 100, res.Account.Balance)
	assert.EqualValues(t, 100, res.Account.TotalEarned)
	assert.EqualValues(t, 0, res.Account.TotalRedeemed)

	balance, err := log.Balance(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
}

func TestLog_Post_DebitBelowZero_Rejected(t *testing.T) {
	// GIVEN: An account with 30 points
	// WHEN: Posting a -50 debit
	// THEN: InsufficientBalanceError, nothing written, balance unchanged

	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")
	earn(t, log, id, 30)

	_, err := log.Post(ctx, ledger.PostCommand{
		AccountID: id, Delta: -50, Type: ledger.TxRedeemedDiscount,
	})

	require.Error(t, err)
	var insufficient *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.EqualValues(t, 30, insufficient.Available)
	assert.EqualValues(t, 50, insufficient.Requested)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))

	balance, err := log.Balance(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 30, balance)

	txs, err := store.AllTransactions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "only the earn should be on the ledger")
}

func TestLog_BalanceInvariant_SumOfDeltas(t *testing.T) {
	// The cached balance must always equal the sum of transaction deltas
	// and TotalEarned - TotalRedeemed.

	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")

	earn(t, log, id, 100)
	earn(t, log, id, 40)
	_, err := log.Post(ctx, ledger.PostCommand{AccountID: id, Delta: -60, Type: ledger.TxRedeemedDiscount})
	require.NoError(t, err)
	_, err = log.Post(ctx, ledger.PostCommand{AccountID: id, Delta: 15, Type: ledger.TxAdminAdjustment, Description: "manual correction"})
	require.NoError(t, err)

	acct, err := log.Account(ctx, id)
	require.NoError(t, err)

	txs, err := store.AllTransactions(ctx, id)
	require.NoError(t, err)

	var sum int64
	for _, tx := range txs {
		sum += tx.Delta
	}
	assert.Equal(t, sum, acct.Balance)
	assert.Equal(t, acct.TotalEarned-acct.TotalRedeemed, acct.Balance)
	assert.GreaterOrEqual(t, acct.Balance, int64(0))

	// Each transaction's snapshot is the running balance at that point.
	var running int64
	for _, tx := range txs {
		running += tx.Delta
		assert.Equal(t, running, tx.BalanceAfter)
	}
}

func TestLog_Post_MutateAppliedAtomically(t *testing.T) {
	// The side-effect mutation (pending commission, milestone flags) lands
	// in the same write as the balance change.

	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")
	earn(t, log, id, 100)

	res, err := log.Post(ctx, ledger.PostCommand{
		AccountID: id, Delta: -100, Type: ledger.TxRedeemedCash,
		Mutate: func(a *ledger.Account) { a.HasCompletedFirstOrder = true },
	})
	require.NoError(t, err)
	assert.True(t, res.Account.HasCompletedFirstOrder)

	acct, err := log.Account(ctx, id)
	require.NoError(t, err)
	assert.True(t, acct.HasCompletedFirstOrder)
	assert.EqualValues(t, 0, acct.Balance)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestLog_History_NewestFirstPaged(t *testing.T) {
	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")

	for i := 0; i < 5; i++ {
		earn(t, log, id, int64(i+1))
	}

	page1, err := log.History(ctx, id, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.EqualValues(t, 5, page1[0].Delta, "newest first")
	assert.EqualValues(t, 4, page1[1].Delta)

	page3, err := log.History(ctx, id, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.EqualValues(t, 1, page3[0].Delta)

	empty, err := log.History(ctx, id, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLog_UnknownAccount(t *testing.T) {
	log, _ := newTestLog(t)

	_, err := log.Balance(context.Background(), "nobody")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestLog_ConcurrentDebits_NeverOverspend(t *testing.T) {
	// GIVEN: An account with 100 points
	// WHEN: 10 goroutines race to debit 30 points each
	// THEN: Exactly 3 succeed; every loser fails the balance check,
	//       and the final balance is 10, never negative

	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")
	earn(t, log, id, 100)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Callers retry transient conflicts, as the contract allows.
			for {
				_, err := log.Post(ctx, ledger.PostCommand{
					AccountID: id, Delta: -30, Type: ledger.TxRedeemedDiscount,
				})
				if errors.Is(err, ledger.ErrConcurrentModification) {
					continue
				}
				results <- err
				return
			}
		}()
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ledger.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, successes)
	assert.Equal(t, 7, insufficient)

	balance, err := log.Balance(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 10, balance)
}

func TestLog_ConcurrentEarns_AllLand(t *testing.T) {
	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := log.Post(ctx, ledger.PostCommand{
					AccountID: id, Delta: 5, Type: ledger.TxReferralBonus,
				})
				if !errors.Is(err, ledger.ErrConcurrentModification) {
					require.NoError(t, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	balance, err := log.Balance(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 100, balance)
}

func TestLog_UpdateAccount_AbortLeavesNoTrace(t *testing.T) {
	log, store := newTestLog(t)
	ctx := context.Background()
	id := seedAccount(t, store, "user-1")

	boom := errors.New("boom")
	_, err := log.UpdateAccount(ctx, id, func(a *ledger.Account) error {
		a.HasWelcomeBonus = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	acct, err := log.Account(ctx, id)
	require.NoError(t, err)
	assert.False(t, acct.HasWelcomeBonus)
	assert.EqualValues(t, 0, acct.Version)
}
