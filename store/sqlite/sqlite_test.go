package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftfix/reward-ledger/ledger"
	"github.com/swiftfix/reward-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(id string) ledger.Account {
	return ledger.Account{
		ID:                        ledger.AccountID(id),
		ReferralCode:              "PA-" + id,
		Type:                      ledger.ReferrerPropertyAgent,
		RewardType:                ledger.RewardMoney,
		CanExchangePointsForMoney: true,
		PendingCommission:         decimal.NewFromFloat(12.50),
		Tier1PointsReward:         50,
		Tier2PointsReward:         20,
		Tier1MoneyReward:          decimal.NewFromInt(5),
		Tier2MoneyReward:          decimal.NewFromInt(2),
		Active:                    true,
		CreatedAt:                 time.Now().UTC(),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestStore_AccountRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, want))

	got, err := store.Account(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ReferralCode, got.ReferralCode)
	assert.Equal(t, ledger.ReferrerPropertyAgent, got.Type)
	assert.Equal(t, ledger.RewardMoney, got.RewardType)
	assert.True(t, got.CanExchangePointsForMoney)
	assert.True(t, got.PendingCommission.Equal(decimal.NewFromFloat(12.50)))
	assert.EqualValues(t, 50, got.Tier1PointsReward)
	assert.True(t, got.Tier1MoneyReward.Equal(decimal.NewFromInt(5)))
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.HasWelcomeBonus)
	assert.True(t, got.WelcomeBonusAt.IsZero(), "unset milestone time stays zero")

	byCode, err := store.AccountByReferralCode(ctx, want.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, want.ID, byCode.ID)
}

func TestStore_AccountNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Account(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = store.AccountByReferralCode(context.Background(), "PA-GHOST")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStore_UpdateAccountVersionGuard(t *testing.T) {
	// GIVEN: An account at version 0
	// WHEN: One writer commits and a second writer reuses the stale version
	// THEN: The second write fails with ErrConcurrentModification

	store := newTestStore(t)
	ctx := context.Background()

	a := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, a))

	first := a
	first.Balance = 100
	first.TotalEarned = 100
	first.Version = 1
	require.NoError(t, store.UpdateAccount(ctx, first, 0))

	stale := a
	stale.Balance = 999
	stale.Version = 1
	err := store.UpdateAccount(ctx, stale, 0)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	got, err := store.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.Balance, "stale write must not land")
	assert.EqualValues(t, 1, got.Version)
}

func TestStore_UpdateUnknownAccount(t *testing.T) {
	store := newTestStore(t)

	ghost := testAccount("ghost")
	err := store.UpdateAccount(context.Background(), ghost, 0)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestStore_MilestoneTimesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, a))

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	a.HasWelcomeBonus = true
	a.WelcomeBonusAt = at
	a.Version = 1
	require.NoError(t, store.UpdateAccount(ctx, a, 0))

	got, err := store.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.HasWelcomeBonus)
	assert.True(t, got.WelcomeBonusAt.Equal(at))
	assert.False(t, got.HasCompletedFirstOrder)
	assert.True(t, got.FirstOrderCompletedAt.IsZero())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func appendTx(t *testing.T, store *sqlite.Store, a *ledger.Account, delta int64) ledger.Transaction {
	t.Helper()
	expected := a.Version
	a.Balance += delta
	if delta > 0 {
		a.TotalEarned += delta
	} else {
		a.TotalRedeemed += -delta
	}
	a.Version++

	tx := ledger.Transaction{
		ID:           ledger.NewTransactionID(),
		AccountID:    a.ID,
		Delta:        delta,
		Type:         ledger.TxAdminAdjustment,
		Description:  "test",
		BalanceAfter: a.Balance,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.AppendWithAccount(context.Background(), tx, *a, expected))
	return tx
}

func TestStore_AppendWithAccountIsAtomic(t *testing.T) {
	// A version conflict on the account must leave no orphan transaction.

	store := newTestStore(t)
	ctx := context.Background()

	a := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, a))
	appendTx(t, store, &a, 100)

	stale := a
	stale.Balance = 150
	stale.Version = 99
	orphan := ledger.Transaction{
		ID: ledger.NewTransactionID(), AccountID: a.ID,
		Delta: 50, Type: ledger.TxAdminAdjustment,
		BalanceAfter: 150, CreatedAt: time.Now(),
	}
	err := store.AppendWithAccount(ctx, orphan, stale, 0)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	all, err := store.AllTransactions(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "rolled-back append must not persist its transaction")

	got, err := store.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 100, got.Balance)
}

func TestStore_TransactionsPageNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, a))
	for i := 1; i <= 5; i++ {
		appendTx(t, store, &a, int64(i*10))
		time.Sleep(2 * time.Millisecond) // distinct created_at ordering
	}

	page1, err := store.Transactions(ctx, a.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.EqualValues(t, 50, page1[0].Delta, "newest first")
	assert.EqualValues(t, 40, page1[1].Delta)

	page3, err := store.Transactions(ctx, a.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.EqualValues(t, 10, page3[0].Delta)

	all, err := store.AllTransactions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.EqualValues(t, 10, all[0].Delta, "oldest first")
	assert.EqualValues(t, 50, all[4].Delta)
}

func TestStore_RelatedRefRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testAccount("agent-1")
	require.NoError(t, store.CreateAccount(ctx, a))

	expected := a.Version
	a.Balance = 10
	a.TotalEarned = 10
	a.Version++
	tx := ledger.Transaction{
		ID: ledger.NewTransactionID(), AccountID: a.ID,
		Delta: 10, Type: ledger.TxReferralBonus,
		Description:  "Tier 1 referral bonus (FIRST_ORDER)",
		Related:      &ledger.RelatedRef{Kind: ledger.RelatedOrder, ID: "order-42"},
		BalanceAfter: 10, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.AppendWithAccount(ctx, tx, a, expected))

	all, err := store.AllTransactions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Related)
	assert.Equal(t, ledger.RelatedOrder, all[0].Related.Kind)
	assert.Equal(t, "order-42", all[0].Related.ID)
}

// =============================================================================
// REFERRAL CHAIN
// =============================================================================

func TestStore_ChainEntriesOrderedByTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	joined := time.Now().UTC()
	tier2 := ledger.ChainEntry{
		ID: ledger.NewChainEntryID(), AccountID: "ben",
		Tier: ledger.Tier2, ReferrerID: "grandma",
		ReferrerType: ledger.ReferrerCustomer, JoinedAt: joined,
	}
	tier1 := ledger.ChainEntry{
		ID: ledger.NewChainEntryID(), AccountID: "ben",
		Tier: ledger.Tier1, ReferrerID: "anna",
		ReferrerType: ledger.ReferrerCustomer, JoinedAt: joined,
	}
	require.NoError(t, store.SaveChainEntry(ctx, tier2))
	require.NoError(t, store.SaveChainEntry(ctx, tier1))

	entries, err := store.ChainEntries(ctx, "ben")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.Tier1, entries[0].Tier, "tier 1 first regardless of insert order")
	assert.EqualValues(t, "anna", entries[0].ReferrerID)
	assert.Equal(t, ledger.Tier2, entries[1].Tier)
	assert.EqualValues(t, "grandma", entries[1].ReferrerID)
}

func TestStore_OneEntryPerTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := ledger.ChainEntry{
		ID: ledger.NewChainEntryID(), AccountID: "ben",
		Tier: ledger.Tier1, ReferrerID: "anna",
		ReferrerType: ledger.ReferrerCustomer, JoinedAt: time.Now(),
	}
	require.NoError(t, store.SaveChainEntry(ctx, first))

	dup := first
	dup.ID = ledger.NewChainEntryID()
	dup.ReferrerID = "mallory"
	assert.Error(t, store.SaveChainEntry(ctx, dup), "unique (account, tier) must hold")
}

// =============================================================================
// VOUCHERS
// =============================================================================

func testVoucher(code string) ledger.Voucher {
	cap25 := decimal.NewFromInt(25)
	now := time.Now().UTC()
	return ledger.Voucher{
		Code: code, TemplateID: "aircon-15pct", OwnerID: "alice",
		Kind: ledger.DiscountPercentage, Value: decimal.NewFromInt(15),
		MinOrderAmount: decimal.NewFromInt(80), MaxDiscountAmount: &cap25,
		Category:   ledger.CategoryAircon,
		UsageLimit: 1, Active: true,
		ValidFrom: now, ValidUntil: now.AddDate(0, 0, 60),
		CreatedAt: now,
	}
}

func TestStore_VoucherRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testVoucher("SWIFT-RT")
	require.NoError(t, store.SaveVoucher(ctx, want))

	got, err := store.VoucherByCode(ctx, want.Code)
	require.NoError(t, err)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.TemplateID, got.TemplateID)
	assert.Equal(t, ledger.DiscountPercentage, got.Kind)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, got.MaxDiscountAmount)
	assert.True(t, got.MaxDiscountAmount.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, ledger.CategoryAircon, got.Category)
	assert.True(t, got.Active)
	assert.Empty(t, got.Usages)

	_, err = store.VoucherByCode(ctx, "SWIFT-NOPE")
	assert.ErrorIs(t, err, ledger.ErrVoucherNotFound)
}

func TestStore_VoucherWithoutCapRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := testVoucher("SWIFT-NOCAP")
	v.MaxDiscountAmount = nil
	require.NoError(t, store.SaveVoucher(ctx, v))

	got, err := store.VoucherByCode(ctx, v.Code)
	require.NoError(t, err)
	assert.Nil(t, got.MaxDiscountAmount)
}

func TestStore_UpdateVoucherPersistsUsages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := testVoucher("SWIFT-USE")
	require.NoError(t, store.SaveVoucher(ctx, v))

	v.Usages = append(v.Usages, ledger.UsageRecord{
		ID: ledger.NewUsageRecordID(), AccountID: "alice", OrderID: "order-9",
		AmountDiscounted: decimal.NewFromInt(25), UsedAt: time.Now().UTC(),
	})
	v.UsageCount = 1
	v.Active = false
	v.Version = 1
	require.NoError(t, store.UpdateVoucher(ctx, v, 0))

	got, err := store.VoucherByCode(ctx, v.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
	assert.False(t, got.Active)
	require.Len(t, got.Usages, 1)
	assert.Equal(t, "order-9", got.Usages[0].OrderID)
	assert.True(t, got.Usages[0].AmountDiscounted.Equal(decimal.NewFromInt(25)))

	byOwner, err := store.VouchersByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Len(t, byOwner[0].Usages, 1)
}

func TestStore_UpdateVoucherVersionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := testVoucher("SWIFT-VG")
	require.NoError(t, store.SaveVoucher(ctx, v))

	first := v
	first.UsageCount = 1
	first.Version = 1
	require.NoError(t, store.UpdateVoucher(ctx, first, 0))

	stale := v
	stale.UsageCount = 5
	stale.Version = 1
	err := store.UpdateVoucher(ctx, stale, 0)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	got, err := store.VoucherByCode(ctx, v.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
}

// =============================================================================
// CODE RESERVATION
// =============================================================================

func TestStore_ReserveCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.ReserveCode(ctx, "SWIFT-UNIQ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ReserveCode(ctx, "SWIFT-UNIQ")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation loses")

	require.NoError(t, store.ReleaseCode(ctx, "SWIFT-UNIQ"))

	ok, err = store.ReserveCode(ctx, "SWIFT-UNIQ")
	require.NoError(t, err)
	assert.True(t, ok, "released code is reservable again")
}
