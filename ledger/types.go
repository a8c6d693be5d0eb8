/*
Package ledger provides the core reward-points accounting engine.

PURPOSE:
  This package contains the shared domain model and the transaction log for
  the SwiftFix reward ledger. Points are earned through referrals and
  milestones, spent on vouchers, or exchanged for cash by eligible accounts.
  Every balance change flows through an immutable Transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: a user's reward identity (cached balance + counters + rates)
  - Transaction: an immutable ledger entry recording a points change
  - Voucher / VoucherTemplate: minted discounts and their catalog definitions
  - ChainEntry: a tier-bounded referral attribution record

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified; corrections are new
     ADMIN_ADJUSTMENT transactions
  2. Precision: money uses decimal.Decimal, points use int64 - never float
  3. Type Safety: closed enums for transaction/voucher/referrer kinds
  4. Auditability: every transaction carries a balance-after snapshot

SEE ALSO:
  - log.go: Posting and balance access
  - store.go: Persistence contract
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string

// NewTransactionID returns a fresh random transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// ACCOUNT - One per platform user
// =============================================================================

// RewardType controls how referral rewards are paid to a referrer.
type RewardType string

const (
	RewardMoney  RewardType = "MONEY"  // commissions, settled by external payout
	RewardPoints RewardType = "POINTS" // platform points, posted to the ledger
)

// Account is a user's reward-ledger identity.
//
// INVARIANTS:
//   - Balance == TotalEarned - TotalRedeemed at all times
//   - Balance >= 0
//   - Version increases by exactly 1 on every successful mutation
//
// The cached Balance is updated in the same atomic step as the transaction
// that changes it; Version backs the optimistic concurrency check.
type Account struct {
	ID           AccountID
	ReferralCode string

	// Type determines referral attribution (and the code prefix);
	// RewardType determines how this account is paid when it refers.
	Type                      ReferrerType
	RewardType                RewardType
	CanExchangePointsForMoney bool

	Balance       int64
	TotalEarned   int64
	TotalRedeemed int64

	// Money owed to this account (referral commissions, points exchanges),
	// awaiting an external payout run. Not part of the points ledger.
	PendingCommission decimal.Decimal

	// Per-tier reward rates applied when THIS account is the referrer.
	Tier1PointsReward int64
	Tier2PointsReward int64
	Tier1MoneyReward  decimal.Decimal
	Tier2MoneyReward  decimal.Decimal

	Active bool

	// Milestone guards: each reward-triggering event fires at most once.
	HasWelcomeBonus               bool
	WelcomeBonusAt                time.Time
	HasCompletedFirstOrder        bool
	FirstOrderCompletedAt         time.Time
	HasCompletedFirstSubscription bool
	FirstSubscriptionCompletedAt  time.Time

	CreatedAt time.Time
	Version   int64
}

// =============================================================================
// TRANSACTION - Immutable record of a points change
// =============================================================================

type TransactionType string

const (
	TxReferralBonus    TransactionType = "REFERRAL_BONUS"   // points earned from a referred user's milestone
	TxWelcomeBonus     TransactionType = "WELCOME_BONUS"    // signup bonus to the new user
	TxRedeemedDiscount TransactionType = "REDEEMED_DISCOUNT" // points spent minting a voucher
	TxRedeemedCash     TransactionType = "REDEEMED_CASH"    // points converted to pending cash payout
	TxAdminAdjustment  TransactionType = "ADMIN_ADJUSTMENT" // manual correction
)

// RelatedKind tags the entity a transaction references.
type RelatedKind string

const (
	RelatedVoucher RelatedKind = "VOUCHER"
	RelatedOrder   RelatedKind = "ORDER"
)

// RelatedRef points a transaction at the entity that caused it.
type RelatedRef struct {
	Kind RelatedKind
	ID   string
}

// Transaction is an immutable ledger entry.
// Delta is signed: positive = earn, negative = redeem.
// Created once, never mutated or deleted.
type Transaction struct {
	ID          TransactionID
	AccountID   AccountID
	Delta       int64
	Type        TransactionType
	Description string
	Related     *RelatedRef

	// Account balance immediately after this transaction was applied.
	BalanceAfter int64

	CreatedAt time.Time
}

// IsEarning reports whether the transaction added points.
func (t Transaction) IsEarning() bool { return t.Delta > 0 }

// =============================================================================
// REFERRAL CHAIN - Tier-bounded attribution
// =============================================================================

// ReferrerType distinguishes commission-earning property agents from
// points-earning customers.
type ReferrerType string

const (
	ReferrerPropertyAgent ReferrerType = "PROPERTY_AGENT"
	ReferrerCustomer      ReferrerType = "CUSTOMER"
)

const (
	Tier1 = 1
	Tier2 = 2
)

// ChainEntry attaches a referrer to a referred account at a given tier.
//
// INVARIANTS:
//   - Tier is 1 or 2, never deeper
//   - At most one entry per tier per account
//   - A tier-2 entry exists only alongside a tier-1 entry
type ChainEntry struct {
	ID           string
	AccountID    AccountID // the referred account
	Tier         int
	ReferrerID   AccountID
	ReferrerType ReferrerType
	JoinedAt     time.Time
}

// NewChainEntryID returns a fresh chain entry identifier.
func NewChainEntryID() string { return uuid.NewString() }

// =============================================================================
// VOUCHER - Minted discount instance + its catalog template
// =============================================================================

type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "PERCENTAGE"
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
)

// VoucherCategory restricts which service category a voucher applies to.
type VoucherCategory string

const (
	CategoryAll        VoucherCategory = "ALL"
	CategoryPlumbing   VoucherCategory = "PLUMBING"
	CategoryElectrical VoucherCategory = "ELECTRICAL"
	CategoryAircon     VoucherCategory = "AIRCON"
	CategoryCleaning   VoucherCategory = "CLEANING"
	CategoryPainting   VoucherCategory = "PAINTING"
)

// VoucherTemplate is a catalog definition of a redeemable discount.
// Templates are not persisted per-instance; vouchers copy their fields
// at mint time so later template edits never change minted vouchers.
type VoucherTemplate struct {
	ID   string
	Name string

	Kind           DiscountKind
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	// Cap on the computed discount. Percentage templates only; nil = no cap.
	MaxDiscountAmount *decimal.Decimal
	Category          VoucherCategory

	PointsCost   int64
	ValidityDays int
	UsageLimit   int
}

// UsageRecord records a single redemption of a voucher against an order.
type UsageRecord struct {
	ID               string
	AccountID        AccountID
	OrderID          string
	AmountDiscounted decimal.Decimal
	UsedAt           time.Time
}

// NewUsageRecordID returns a fresh usage record identifier.
func NewUsageRecordID() string { return uuid.NewString() }

// Voucher is a minted, uniquely-coded discount instance.
//
// LIFECYCLE:
//   - Created by the issuance engine (points debited, UsageCount 0, Active)
//   - Mutated only by the redemption engine (UsageCount++, usage appended,
//     deactivated when the limit is reached) and the admin deactivation path
//   - Never deleted, only deactivated
type Voucher struct {
	Code       string
	TemplateID string
	OwnerID    AccountID

	// Discount fields copied from the template at mint time.
	Kind              DiscountKind
	Value             decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	Category          VoucherCategory

	UsageLimit int
	UsageCount int
	Active     bool

	ValidFrom  time.Time
	ValidUntil time.Time

	Usages []UsageRecord

	CreatedAt time.Time
	Version   int64
}

// Expired reports whether the voucher is outside its validity window at t.
func (v Voucher) Expired(t time.Time) bool {
	return t.Before(v.ValidFrom) || t.After(v.ValidUntil)
}

// Exhausted reports whether the usage limit has been reached.
func (v Voucher) Exhausted() bool { return v.UsageCount >= v.UsageLimit }

// UsedBy reports whether the given account already appears in the usage list.
func (v Voucher) UsedBy(id AccountID) bool {
	for _, u := range v.Usages {
		if u.AccountID == id {
			return true
		}
	}
	return false
}
