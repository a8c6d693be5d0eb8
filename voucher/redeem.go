/*
redeem.go - Voucher redemption engine

PURPOSE:
  Validates a voucher against an order, computes the discount, and records
  usage. Redemption never touches the points ledger - the points were paid
  at issuance; this is purely a discount on the order.

VALIDATION ORDER (first failure wins):
  1. Active, inside validity window, usage limit not reached  -> NOT_USABLE
     (EXPIRED / USAGE_EXHAUSTED when that is the specific reason)
  2. Order meets the minimum amount                           -> BELOW_MINIMUM
  3. Category matches (ALL matches everything)                -> CATEGORY_MISMATCH
  4. Single-use vouchers: account hasn't used it before       -> ALREADY_USED

DISCOUNT MATH:
  PERCENTAGE:    orderAmount * value / 100, capped at MaxDiscountAmount
  FIXED_AMOUNT:  min(value, orderAmount)
  Rounded to 2 decimal places, half-up.

DOUBLE-SPEND:
  Apply re-validates and writes under the voucher's optimistic version.
  Two concurrent redemptions of a single-use voucher produce exactly one
  usage record; the loser re-reads, fails validation, and gets
  VoucherNotUsableError.

SEE ALSO:
  - issue.go: Where the points were spent
  - ledger/errors.go: RejectReason values
*/
package voucher

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
)

// maxApplyAttempts bounds the optimistic retry loop on the voucher record.
const maxApplyAttempts = 5

var hundred = decimal.NewFromInt(100)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationResult reports whether a voucher can be applied to an order,
// and the discount it would yield when it can.
type ValidationResult struct {
	Usable bool
	Reason ledger.RejectReason // empty when usable

	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

type Redeemer struct {
	log *ledger.Log
}

func NewRedeemer(log *ledger.Log) *Redeemer {
	return &Redeemer{log: log}
}

// Validate checks a voucher code against an order without applying it.
func (r *Redeemer) Validate(ctx context.Context, code string, orderAmount decimal.Decimal, accountID ledger.AccountID, category ledger.VoucherCategory) (ValidationResult, error) {
	v, err := r.log.Store().VoucherByCode(ctx, code)
	if err != nil {
		return ValidationResult{}, err
	}
	return r.validate(v, orderAmount, accountID, category), nil
}

func (r *Redeemer) validate(v ledger.Voucher, orderAmount decimal.Decimal, accountID ledger.AccountID, category ledger.VoucherCategory) ValidationResult {
	now := r.log.Now()

	switch {
	case !v.Active:
		return rejected(ledger.RejectNotUsable)
	case v.Expired(now):
		return rejected(ledger.RejectExpired)
	case v.Exhausted():
		return rejected(ledger.RejectUsageExhausted)
	case orderAmount.LessThan(v.MinOrderAmount):
		return rejected(ledger.RejectBelowMinimum)
	case category != ledger.CategoryAll && v.Category != ledger.CategoryAll && category != v.Category:
		return rejected(ledger.RejectCategoryMismatch)
	case v.UsageLimit == 1 && v.UsedBy(accountID):
		return rejected(ledger.RejectAlreadyUsed)
	}

	discount := Discount(v, orderAmount)
	return ValidationResult{
		Usable:         true,
		DiscountAmount: discount,
		FinalAmount:    orderAmount.Sub(discount).Round(2),
	}
}

func rejected(reason ledger.RejectReason) ValidationResult {
	return ValidationResult{Usable: false, Reason: reason}
}

// Discount computes the discount a voucher yields on an order amount.
// Pure; does not check usability.
func Discount(v ledger.Voucher, orderAmount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch v.Kind {
	case ledger.DiscountPercentage:
		d = orderAmount.Mul(v.Value).Div(hundred)
		if v.MaxDiscountAmount != nil && d.GreaterThan(*v.MaxDiscountAmount) {
			d = *v.MaxDiscountAmount
		}
	case ledger.DiscountFixedAmount:
		d = v.Value
		if d.GreaterThan(orderAmount) {
			d = orderAmount
		}
	}
	// Round half-up to cents. All amounts here are non-negative, so
	// decimal's round-half-away-from-zero is exactly half-up.
	return d.Round(2)
}

// =============================================================================
// APPLY
// =============================================================================

// ApplyResult reports the side effects of a successful redemption.
type ApplyResult struct {
	Voucher        ledger.Voucher
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Apply redeems a voucher against an order: re-validates, appends a usage
// record, increments the usage count, and deactivates the voucher once the
// limit is reached. Fails with VoucherNotUsableError on any validation
// rejection; nothing changes in that case.
func (r *Redeemer) Apply(ctx context.Context, code, orderID string, accountID ledger.AccountID, orderAmount decimal.Decimal, category ledger.VoucherCategory) (ApplyResult, error) {
	store := r.log.Store()

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		v, err := store.VoucherByCode(ctx, code)
		if err != nil {
			return ApplyResult{}, err
		}

		res := r.validate(v, orderAmount, accountID, category)
		if !res.Usable {
			return ApplyResult{}, &ledger.VoucherNotUsableError{Code: code, Reason: res.Reason}
		}

		expected := v.Version
		v.Usages = append(v.Usages, ledger.UsageRecord{
			ID:               ledger.NewUsageRecordID(),
			AccountID:        accountID,
			OrderID:          orderID,
			AmountDiscounted: res.DiscountAmount,
			UsedAt:           r.log.Now(),
		})
		v.UsageCount++
		if v.UsageCount >= v.UsageLimit {
			v.Active = false
		}
		v.Version++

		err = store.UpdateVoucher(ctx, v, expected)
		if errors.Is(err, ledger.ErrConcurrentModification) {
			continue // someone redeemed in between; re-read and re-validate
		}
		if err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{
			Voucher:        v,
			DiscountAmount: res.DiscountAmount,
			FinalAmount:    res.FinalAmount,
		}, nil
	}
	return ApplyResult{}, ledger.ErrConcurrentModification
}

// Deactivate kills a voucher without redeeming it. Admin path; vouchers
// are never deleted.
func (r *Redeemer) Deactivate(ctx context.Context, code string) (ledger.Voucher, error) {
	store := r.log.Store()

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		v, err := store.VoucherByCode(ctx, code)
		if err != nil {
			return ledger.Voucher{}, err
		}
		if !v.Active {
			return v, nil
		}

		expected := v.Version
		v.Active = false
		v.Version++

		err = store.UpdateVoucher(ctx, v, expected)
		if errors.Is(err, ledger.ErrConcurrentModification) {
			continue
		}
		if err != nil {
			return ledger.Voucher{}, err
		}
		return v, nil
	}
	return ledger.Voucher{}, ledger.ErrConcurrentModification
}
