package exchange_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftfix/reward-ledger/exchange"
	"github.com/swiftfix/reward-ledger/ledger"
	memstore "github.com/swiftfix/reward-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newExchangeFixture(t *testing.T, canExchange bool, balance int64) (*exchange.Engine, *ledger.Log, ledger.AccountID) {
	t.Helper()
	store := memstore.NewMemory()
	log := ledger.NewLog(store)
	id := ledger.AccountID("agent")

	require.NoError(t, store.CreateAccount(context.Background(), ledger.Account{
		ID:                        id,
		ReferralCode:              "PA-AGENT",
		Type:                      ledger.ReferrerPropertyAgent,
		RewardType:                ledger.RewardMoney,
		CanExchangePointsForMoney: canExchange,
		Active:                    true,
	}))
	if balance > 0 {
		_, err := log.Post(context.Background(), ledger.PostCommand{
			AccountID:   id,
			Delta:       balance,
			Type:        ledger.TxAdminAdjustment,
			Description: "test credit",
		})
		require.NoError(t, err)
	}
	return exchange.NewEngine(log), log, id
}

// =============================================================================
// EXCHANGE
// =============================================================================

func TestEngine_ExchangeMovesPointsIntoPendingCommission(t *testing.T) {
	// GIVEN: An entitled agent with 500 points
	// WHEN: 300 points are exchanged at the default rate
	// THEN: Balance drops to 200, pending commission gains $3.00, and a
	//       REDEEMED_CASH transaction records the debit

	engine, log, id := newExchangeFixture(t, true, 500)

	res, err := engine.ExchangeForMoney(context.Background(), id, 300, 0)
	require.NoError(t, err)

	assert.True(t, res.MoneyAmount.Equal(decimal.NewFromInt(3)))
	assert.EqualValues(t, 200, res.NewBalance)
	assert.Equal(t, ledger.TxRedeemedCash, res.Transaction.Type)
	assert.EqualValues(t, -300, res.Transaction.Delta)

	acct, err := log.Account(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, acct.PendingCommission.Equal(decimal.NewFromInt(3)))
	assert.EqualValues(t, 200, acct.Balance)
	assert.EqualValues(t, 300, acct.TotalRedeemed)
}

func TestEngine_RoundsToCents(t *testing.T) {
	// 250 points at 3 points per dollar is $83.333..., rounded to $83.33.
	engine, _, id := newExchangeFixture(t, true, 1000)

	res, err := engine.ExchangeForMoney(context.Background(), id, 250, 3)
	require.NoError(t, err)
	assert.Equal(t, "83.33", res.MoneyAmount.StringFixed(2))
}

func TestEngine_UnentitledAccountIsRejected(t *testing.T) {
	engine, log, id := newExchangeFixture(t, false, 500)

	_, err := engine.ExchangeForMoney(context.Background(), id, 100, 0)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)

	acct, err := log.Account(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 500, acct.Balance, "nothing moved")
	assert.True(t, acct.PendingCommission.IsZero())
}

func TestEngine_InsufficientBalance(t *testing.T) {
	engine, log, id := newExchangeFixture(t, true, 50)

	_, err := engine.ExchangeForMoney(context.Background(), id, 100, 0)

	var insufficient *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.EqualValues(t, 50, insufficient.Available)
	assert.EqualValues(t, 100, insufficient.Requested)

	acct, err := log.Account(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 50, acct.Balance)
	assert.True(t, acct.PendingCommission.IsZero(), "no partial commission")
}

func TestEngine_NonPositiveAmountsAreRejected(t *testing.T) {
	engine, _, id := newExchangeFixture(t, true, 500)

	_, err := engine.ExchangeForMoney(context.Background(), id, 0, 0)
	assert.Error(t, err)
	_, err = engine.ExchangeForMoney(context.Background(), id, -10, 0)
	assert.Error(t, err)
}

func TestEngine_UnknownAccount(t *testing.T) {
	engine, _, _ := newExchangeFixture(t, true, 0)

	_, err := engine.ExchangeForMoney(context.Background(), "ghost", 100, 0)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
