/*
Package exchange converts points into pending cash payouts.

PURPOSE:
  Property agents (and any account with the exchange entitlement) can turn
  points into money. The points leave the ledger as a REDEEMED_CASH
  transaction and the money lands in the account's pending commission,
  which an external payout run settles. Nothing here talks to a bank.

RULES:
  - Only accounts with CanExchangePointsForMoney (NotAuthorizedError)
  - Balance must cover the points (InsufficientBalanceError)
  - money = points / rate, rounded to 2 decimal places; default rate is
    100 points per dollar
  - The debit and the commission credit are one atomic account update
*/
package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
)

// DefaultRate is the standard conversion rate: points per unit of money.
const DefaultRate = 100

// Result reports the side effects of a completed exchange.
type Result struct {
	Transaction ledger.Transaction
	MoneyAmount decimal.Decimal
	NewBalance  int64
}

type Engine struct {
	log *ledger.Log
}

func NewEngine(log *ledger.Log) *Engine {
	return &Engine{log: log}
}

// ExchangeForMoney converts points into pending commission.
// A rate <= 0 falls back to DefaultRate. No partial effect on failure.
func (e *Engine) ExchangeForMoney(ctx context.Context, accountID ledger.AccountID, points int64, rate int64) (Result, error) {
	if points <= 0 {
		return Result{}, fmt.Errorf("exchange amount must be positive, got %d", points)
	}
	if rate <= 0 {
		rate = DefaultRate
	}

	acct, err := e.log.Account(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	if !acct.CanExchangePointsForMoney {
		return Result{}, fmt.Errorf("account %s: %w", accountID, ledger.ErrNotAuthorized)
	}

	money := decimal.NewFromInt(points).Div(decimal.NewFromInt(rate)).Round(2)

	// The balance check happens inside Post's atomic step; the commission
	// credit rides along in the same account update.
	res, err := e.log.Post(ctx, ledger.PostCommand{
		AccountID:   accountID,
		Delta:       -points,
		Type:        ledger.TxRedeemedCash,
		Description: fmt.Sprintf("Exchanged %d points for $%s", points, money.StringFixed(2)),
		Mutate: func(a *ledger.Account) {
			a.PendingCommission = a.PendingCommission.Add(money)
		},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Transaction: res.Transaction,
		MoneyAmount: money,
		NewBalance:  res.Account.Balance,
	}, nil
}
