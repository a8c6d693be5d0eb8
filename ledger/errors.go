/*
errors.go - Centralized error types for the reward ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Engines (referral, voucher, exchange) return these; the HTTP surface
  maps them to status codes via the helpers at the bottom.

ERROR CATEGORIES:
  1. Ledger errors - balance rule violations, concurrency conflicts
  2. Referral errors - code resolution failures
  3. Voucher errors - usability rejections, code generation exhaustion

USAGE:
  Callers match with errors.Is / errors.As:

    if errors.Is(err, ledger.ErrInsufficientBalance) {
        // tell the user to earn more points; safe to retry later
    }

SEE ALSO:
  - log.go: Produces balance and concurrency errors
  - voucher package: Produces voucher usability errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit would drive an
	// account's balance negative. Never fatal; the caller may retry after
	// the account earns more points.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPoints is the voucher-issuance flavor of the same
	// rejection: the account cannot afford the template's points cost.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrConcurrentModification is returned when optimistic versioning
	// detects a conflicting write. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrVoucherNotFound is returned when a voucher code doesn't resolve.
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrTemplateNotFound is returned when a template id isn't in the catalog.
	ErrTemplateNotFound = errors.New("voucher template not found")

	// ErrInvalidReferralCode is returned when a referral code does not
	// resolve to an active account, or resolves to the account itself.
	ErrInvalidReferralCode = errors.New("invalid referral code")

	// ErrCodeGenerationExhausted is returned when the bounded unique-code
	// retry loop runs out of attempts. Transient; issuance may be retried.
	ErrCodeGenerationExhausted = errors.New("code generation exhausted")

	// ErrNotAuthorized is returned when a points-to-money exchange is
	// attempted by an account without the exchange entitlement.
	ErrNotAuthorized = errors.New("account not authorized for points exchange")

	// ErrMilestoneAlreadyRewarded is returned when a reward-triggering event
	// fires a second time for the same account. Expected on retries.
	ErrMilestoneAlreadyRewarded = errors.New("milestone already rewarded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	AccountID AccountID
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: account %s has %d points, needs %d",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientPointsError is returned by voucher issuance when the account
// cannot afford the template.
type InsufficientPointsError struct {
	AccountID  AccountID
	TemplateID string
	Balance    int64
	PointsCost int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: account %s has %d, template %s costs %d",
		e.AccountID, e.Balance, e.TemplateID, e.PointsCost)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// =============================================================================
// VOUCHER USABILITY
// =============================================================================

// RejectReason is the closed set of reasons a voucher cannot be applied.
// Surfaced verbatim to the checkout UI by the calling collaborator.
type RejectReason string

const (
	RejectNotUsable        RejectReason = "NOT_USABLE"        // inactive or malformed
	RejectExpired          RejectReason = "EXPIRED"           // outside validity window
	RejectUsageExhausted   RejectReason = "USAGE_EXHAUSTED"   // usage limit reached
	RejectBelowMinimum     RejectReason = "BELOW_MINIMUM"     // order under minimum amount
	RejectCategoryMismatch RejectReason = "CATEGORY_MISMATCH" // wrong service category
	RejectAlreadyUsed      RejectReason = "ALREADY_USED"      // single-use, same account
)

// VoucherNotUsableError rejects a redemption attempt with a specific reason.
type VoucherNotUsableError struct {
	Code   string
	Reason RejectReason
}

func (e *VoucherNotUsableError) Error() string {
	return fmt.Sprintf("voucher %s not usable: %s", e.Code, e.Reason)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrCodeGenerationExhausted)
}

// IsClientError returns true if the error is a business-rule rejection of
// the caller's request rather than an infrastructure failure.
func IsClientError(err error) bool {
	var notUsable *VoucherNotUsableError
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrInvalidReferralCode) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrMilestoneAlreadyRewarded) ||
		errors.As(err, &notUsable)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrVoucherNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}
