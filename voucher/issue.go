/*
issue.go - Voucher issuance engine

PURPOSE:
  Turns points into a minted voucher:
    1. Look up the template
    2. Pre-check the balance (InsufficientPointsError)
    3. Generate and atomically reserve a unique SWIFT.. code
       (bounded at 10 attempts, CodeGenerationExhausted beyond that)
    4. Persist the voucher AND post the REDEEMED_DISCOUNT debit as one
       store-level atomic step

ONE LOGICAL UNIT:
  The debit and the voucher insert go through Log.PostWithVoucher, which
  the store applies all-or-nothing. A debit rejected by the balance check
  (someone spent the points between pre-check and post) leaves no voucher
  behind; the reserved code is released so the namespace doesn't leak.

SEE ALSO:
  - catalog.go: Template definitions
  - ledger/log.go: PostWithVoucher
*/
package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/swiftfix/reward-ledger/ledger"
)

// maxCodeAttempts bounds the generate-and-reserve loop for voucher codes.
const maxCodeAttempts = 10

const codeSuffixLen = 4

// =============================================================================
// ISSUER
// =============================================================================

type Issuer struct {
	log     *ledger.Log
	catalog *Catalog
}

func NewIssuer(log *ledger.Log, catalog *Catalog) *Issuer {
	return &Issuer{log: log, catalog: catalog}
}

// IssueFromPoints debits the template's points cost and mints a voucher.
// On any failure nothing is persisted and the balance is unchanged.
func (i *Issuer) IssueFromPoints(ctx context.Context, accountID ledger.AccountID, templateID string) (ledger.Voucher, error) {
	tpl, err := i.catalog.Template(templateID)
	if err != nil {
		return ledger.Voucher{}, err
	}

	acct, err := i.log.Account(ctx, accountID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if acct.Balance < tpl.PointsCost {
		return ledger.Voucher{}, &ledger.InsufficientPointsError{
			AccountID:  accountID,
			TemplateID: templateID,
			Balance:    acct.Balance,
			PointsCost: tpl.PointsCost,
		}
	}

	code, err := i.reserveCode(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}

	now := i.log.Now()
	v := ledger.Voucher{
		Code:       code,
		TemplateID: tpl.ID,
		OwnerID:    accountID,

		Kind:              tpl.Kind,
		Value:             tpl.Value,
		MinOrderAmount:    tpl.MinOrderAmount,
		MaxDiscountAmount: tpl.MaxDiscountAmount,
		Category:          tpl.Category,

		UsageLimit: tpl.UsageLimit,
		UsageCount: 0,
		Active:     true,

		ValidFrom:  now,
		ValidUntil: now.AddDate(0, 0, tpl.ValidityDays),

		CreatedAt: now,
		Version:   0,
	}

	_, err = i.log.PostWithVoucher(ctx, ledger.PostCommand{
		AccountID:   accountID,
		Delta:       -tpl.PointsCost,
		Type:        ledger.TxRedeemedDiscount,
		Description: fmt.Sprintf("Issued voucher %s (%s)", code, tpl.Name),
		Related:     &ledger.RelatedRef{Kind: ledger.RelatedVoucher, ID: code},
	}, v)
	if err != nil {
		// The atomic post failed, so the voucher was never written.
		// Return the code to the namespace; the caller may retry.
		_ = i.log.Store().ReleaseCode(ctx, code)
		var insufficient *ledger.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			return ledger.Voucher{}, &ledger.InsufficientPointsError{
				AccountID:  accountID,
				TemplateID: templateID,
				Balance:    insufficient.Available,
				PointsCost: tpl.PointsCost,
			}
		}
		return ledger.Voucher{}, err
	}
	return v, nil
}

func (i *Issuer) reserveCode(ctx context.Context) (string, error) {
	store := i.log.Store()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := ledger.GenerateCode(ledger.PrefixVoucher, i.log.Now(), codeSuffixLen)
		ok, err := store.ReserveCode(ctx, code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", ledger.ErrCodeGenerationExhausted
}
