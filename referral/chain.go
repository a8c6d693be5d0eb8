/*
Package referral builds tier-bounded referral chains and resolves the
rewards that referral events are worth.

PURPOSE:
  When a new account signs up with someone's referral code, that someone
  becomes the tier-1 referrer; the tier-1 referrer's own tier-1 referrer
  (if any) becomes tier-2. Attribution never goes deeper, and chains are
  acyclic by construction: an account's chain is fixed at creation, before
  the account can refer anyone.

CHAIN RULES:
  - At most one entry per tier; tier-2 only exists alongside tier-1
  - The code must resolve to an ACTIVE account (else InvalidReferralCode)
  - Self-referral is rejected
  - Attach is called exactly once, at account creation; a repeat call
    returns the existing chain unchanged

SEE ALSO:
  - rewards.go: Turns chain entries into reward instructions
  - codes.go: Referral code minting
*/
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/swiftfix/reward-ledger/ledger"
)

// =============================================================================
// CHAIN BUILDER
// =============================================================================

type Builder struct {
	store ledger.Store
	now   func() time.Time
}

func NewBuilder(store ledger.Store) *Builder {
	return &Builder{store: store, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Attach links a freshly created account to at most two referral tiers.
// Returns the entries written (tier order). Fails with
// ErrInvalidReferralCode when the code doesn't resolve to an active account
// or belongs to the new account itself; in that case nothing is written.
func (b *Builder) Attach(ctx context.Context, newAccountID ledger.AccountID, code string) ([]ledger.ChainEntry, error) {
	// Idempotent by construction: the account is created once. A repeat
	// call (caller retry) just echoes what is already there.
	existing, err := b.store.ChainEntries(ctx, newAccountID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	referrer, err := b.store.AccountByReferralCode(ctx, code)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, fmt.Errorf("code %q: %w", code, ledger.ErrInvalidReferralCode)
		}
		return nil, err
	}
	if !referrer.Active {
		return nil, fmt.Errorf("code %q owner inactive: %w", code, ledger.ErrInvalidReferralCode)
	}
	if referrer.ID == newAccountID {
		return nil, fmt.Errorf("self-referral: %w", ledger.ErrInvalidReferralCode)
	}

	joined := b.now()
	entries := []ledger.ChainEntry{{
		ID:           ledger.NewChainEntryID(),
		AccountID:    newAccountID,
		Tier:         ledger.Tier1,
		ReferrerID:   referrer.ID,
		ReferrerType: referrer.Type,
		JoinedAt:     joined,
	}}

	// The tier-1 referrer's own direct referrer becomes tier-2.
	referrerChain, err := b.store.ChainEntries(ctx, referrer.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range referrerChain {
		if e.Tier != ledger.Tier1 {
			continue
		}
		grand, err := b.store.Account(ctx, e.ReferrerID)
		if err != nil {
			return nil, err
		}
		if grand.ID == newAccountID || !grand.Active {
			break
		}
		entries = append(entries, ledger.ChainEntry{
			ID:           ledger.NewChainEntryID(),
			AccountID:    newAccountID,
			Tier:         ledger.Tier2,
			ReferrerID:   grand.ID,
			ReferrerType: grand.Type,
			JoinedAt:     joined,
		})
		break
	}

	for _, e := range entries {
		if err := b.store.SaveChainEntry(ctx, e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
