/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
	"github.com/swiftfix/reward-ledger/voucher"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// RegisterAccountRequest creates a reward account for a new platform user.
type RegisterAccountRequest struct {
	ID   string `json:"id"`   // platform user id; generated when empty
	Type string `json:"type"` // PROPERTY_AGENT or CUSTOMER

	// Optional referral code of the referring user. With StrictReferral
	// (the dedicated agent-registration path) a bad code fails the whole
	// registration; otherwise registration proceeds without a chain.
	ReferralCode   string `json:"referral_code,omitempty"`
	StrictReferral bool   `json:"strict_referral,omitempty"`
}

type AccountDTO struct {
	ID                        string `json:"id"`
	ReferralCode              string `json:"referral_code"`
	Type                      string `json:"type"`
	RewardType                string `json:"reward_type"`
	CanExchangePointsForMoney bool   `json:"can_exchange_points_for_money"`
	Balance                   int64  `json:"balance"`
	TotalEarned               int64  `json:"total_earned"`
	TotalRedeemed             int64  `json:"total_redeemed"`
	PendingCommission         string `json:"pending_commission"`
}

type ChainEntryDTO struct {
	Tier         int       `json:"tier"`
	ReferrerID   string    `json:"referrer_id"`
	ReferrerType string    `json:"referrer_type"`
	JoinedAt     time.Time `json:"joined_at"`
}

type RegisterAccountResponse struct {
	Account AccountDTO      `json:"account"`
	Chain   []ChainEntryDTO `json:"chain,omitempty"`
}

// =============================================================================
// BALANCE & TRANSACTIONS
// =============================================================================

type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type TransactionDTO struct {
	ID           string    `json:"id"`
	Delta        int64     `json:"delta"`
	Type         string    `json:"type"`
	Description  string    `json:"description,omitempty"`
	RelatedKind  string    `json:"related_kind,omitempty"`
	RelatedID    string    `json:"related_id,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// =============================================================================
// EVENTS
// =============================================================================

// EventRequest reports a referral-triggering milestone for an account.
type EventRequest struct {
	AccountID string `json:"account_id"`
}

type RewardInstructionDTO struct {
	Tier          int    `json:"tier"`
	ReferrerID    string `json:"referrer_id"`
	RewardType    string `json:"reward_type"`
	Points        int64  `json:"points,omitempty"`
	Money         string `json:"money,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// =============================================================================
// VOUCHERS
// =============================================================================

type TemplateViewDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Value          string `json:"value"`
	MinOrderAmount string `json:"min_order_amount"`
	MaxDiscount    string `json:"max_discount,omitempty"`
	Category       string `json:"category"`
	PointsCost     int64  `json:"points_cost"`
	ValidityDays   int    `json:"validity_days"`
	CanAfford      bool   `json:"can_afford"`
	PointsNeeded   int64  `json:"points_needed,omitempty"`
}

type VoucherDTO struct {
	Code        string    `json:"code"`
	TemplateID  string    `json:"template_id"`
	OwnerID     string    `json:"owner_id"`
	Kind        string    `json:"kind"`
	Value       string    `json:"value"`
	Category    string    `json:"category"`
	UsageLimit  int       `json:"usage_limit"`
	UsageCount  int       `json:"usage_count"`
	Active      bool      `json:"active"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until"`
}

type IssueVoucherRequest struct {
	AccountID  string `json:"account_id"`
	TemplateID string `json:"template_id"`
}

type RedeemVoucherRequest struct {
	Code        string `json:"code"`
	AccountID   string `json:"account_id"`
	OrderID     string `json:"order_id"`
	OrderAmount string `json:"order_amount"`
	Category    string `json:"category"`
}

type ValidateVoucherResponse struct {
	Usable         bool   `json:"usable"`
	Reason         string `json:"reason,omitempty"`
	DiscountAmount string `json:"discount_amount,omitempty"`
	FinalAmount    string `json:"final_amount,omitempty"`
}

type RedeemVoucherResponse struct {
	DiscountAmount string     `json:"discount_amount"`
	FinalAmount    string     `json:"final_amount"`
	Voucher        VoucherDTO `json:"voucher"`
}

// =============================================================================
// EXCHANGE & ADMIN
// =============================================================================

type ExchangeRequest struct {
	AccountID string `json:"account_id"`
	Points    int64  `json:"points"`
	Rate      int64  `json:"rate,omitempty"` // points per dollar; default 100
}

type ExchangeResponse struct {
	MoneyAmount string `json:"money_amount"`
	NewBalance  int64  `json:"new_balance"`
}

// AdjustmentRequest posts a manual ADMIN_ADJUSTMENT correction.
type AdjustmentRequest struct {
	AccountID   string `json:"account_id"`
	Delta       int64  `json:"delta"`
	Description string `json:"description"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:                        string(a.ID),
		ReferralCode:              a.ReferralCode,
		Type:                      string(a.Type),
		RewardType:                string(a.RewardType),
		CanExchangePointsForMoney: a.CanExchangePointsForMoney,
		Balance:                   a.Balance,
		TotalEarned:               a.TotalEarned,
		TotalRedeemed:             a.TotalRedeemed,
		PendingCommission:         a.PendingCommission.StringFixed(2),
	}
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(tx.ID),
		Delta:        tx.Delta,
		Type:         string(tx.Type),
		Description:  tx.Description,
		BalanceAfter: tx.BalanceAfter,
		CreatedAt:    tx.CreatedAt,
	}
	if tx.Related != nil {
		dto.RelatedKind = string(tx.Related.Kind)
		dto.RelatedID = tx.Related.ID
	}
	return dto
}

func toVoucherDTO(v ledger.Voucher) VoucherDTO {
	return VoucherDTO{
		Code:       v.Code,
		TemplateID: v.TemplateID,
		OwnerID:    string(v.OwnerID),
		Kind:       string(v.Kind),
		Value:      v.Value.String(),
		Category:   string(v.Category),
		UsageLimit: v.UsageLimit,
		UsageCount: v.UsageCount,
		Active:     v.Active,
		ValidFrom:  v.ValidFrom,
		ValidUntil: v.ValidUntil,
	}
}

func toTemplateViewDTO(view voucher.TemplateView) TemplateViewDTO {
	t := view.Template
	dto := TemplateViewDTO{
		ID:             t.ID,
		Name:           t.Name,
		Kind:           string(t.Kind),
		Value:          t.Value.String(),
		MinOrderAmount: t.MinOrderAmount.String(),
		Category:       string(t.Category),
		PointsCost:     t.PointsCost,
		ValidityDays:   t.ValidityDays,
		CanAfford:      view.CanAfford,
		PointsNeeded:   view.PointsNeeded,
	}
	if t.MaxDiscountAmount != nil {
		dto.MaxDiscount = t.MaxDiscountAmount.String()
	}
	return dto
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
