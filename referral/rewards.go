/*
rewards.go - Reward calculator for referral-triggering events

PURPOSE:
  Resolves what a signup / first-order / first-subscription event is worth
  to each referrer on the referred account's chain, and applies it:

    Referrer RewardType == POINTS -> REFERRAL_BONUS transaction, at the
      referrer's own configured tier rate
    Referrer RewardType == MONEY  -> pending commission accumulated on the
      referrer (no transaction; settled by the external payout run)

  Signup additionally posts a WELCOME_BONUS transaction to the new account
  itself, independent of any referral chain.

AT-MOST-ONCE:
  Each event fires once per account, guarded by a milestone flag set in
  an optimistic-versioned account update BEFORE any reward is applied.
  A second trigger (double webhook, caller retry) gets
  ErrMilestoneAlreadyRewarded and applies nothing.

SEE ALSO:
  - chain.go: Builds the chain these rewards walk
  - ledger/log.go: Post / UpdateAccount primitives used here
*/
package referral

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/swiftfix/reward-ledger/ledger"
)

// =============================================================================
// EVENTS
// =============================================================================

type Event string

const (
	EventSignup            Event = "SIGNUP"
	EventFirstOrder        Event = "FIRST_ORDER"
	EventFirstSubscription Event = "FIRST_SUBSCRIPTION"
)

// =============================================================================
// REWARD INSTRUCTION - One resolved reward per referrer
// =============================================================================

// RewardInstruction reports what one referrer earned from an event.
// Exactly one of Points / Money is meaningful, per the referrer's RewardType.
type RewardInstruction struct {
	Tier       int
	ReferrerID ledger.AccountID
	RewardType ledger.RewardType

	Points int64
	Money  decimal.Decimal

	// Transaction is set for POINTS instructions: the REFERRAL_BONUS that
	// was posted. MONEY instructions accumulate pending commission instead.
	Transaction *ledger.Transaction
}

// =============================================================================
// CALCULATOR
// =============================================================================

// DefaultWelcomeBonus is the signup bonus posted to every new account.
const DefaultWelcomeBonus = 20

type Calculator struct {
	log          *ledger.Log
	welcomeBonus int64
}

func NewCalculator(log *ledger.Log) *Calculator {
	return &Calculator{log: log, welcomeBonus: DefaultWelcomeBonus}
}

// WithWelcomeBonus overrides the signup bonus amount.
func (c *Calculator) WithWelcomeBonus(points int64) *Calculator {
	c.welcomeBonus = points
	return c
}

// RewardForEvent applies the rewards an event is worth and reports them.
// Fires at most once per (event, account); a repeat call returns
// ErrMilestoneAlreadyRewarded with no effect.
func (c *Calculator) RewardForEvent(ctx context.Context, event Event, accountID ledger.AccountID) ([]RewardInstruction, error) {
	// Claim the milestone first. The claim is the idempotency guard: it
	// flips the flag under optimistic versioning, so two racing triggers
	// see exactly one winner.
	if err := c.claimMilestone(ctx, event, accountID); err != nil {
		return nil, err
	}

	if event == EventSignup && c.welcomeBonus > 0 {
		_, err := c.log.Post(ctx, ledger.PostCommand{
			AccountID:   accountID,
			Delta:       c.welcomeBonus,
			Type:        ledger.TxWelcomeBonus,
			Description: "Welcome bonus",
		})
		if err != nil {
			return nil, err
		}
	}

	entries, err := c.log.Store().ChainEntries(ctx, accountID)
	if err != nil {
		return nil, err
	}

	instructions := make([]RewardInstruction, 0, len(entries))
	for _, entry := range entries {
		inst, err := c.rewardReferrer(ctx, event, entry)
		if err != nil {
			return instructions, err
		}
		instructions = append(instructions, inst)
	}
	return instructions, nil
}

// claimMilestone flips the per-event flag, or fails if it is already set.
func (c *Calculator) claimMilestone(ctx context.Context, event Event, accountID ledger.AccountID) error {
	_, err := c.log.UpdateAccount(ctx, accountID, func(a *ledger.Account) error {
		now := c.log.Now()
		switch event {
		case EventSignup:
			if a.HasWelcomeBonus {
				return ledger.ErrMilestoneAlreadyRewarded
			}
			a.HasWelcomeBonus = true
			a.WelcomeBonusAt = now
		case EventFirstOrder:
			if a.HasCompletedFirstOrder {
				return ledger.ErrMilestoneAlreadyRewarded
			}
			a.HasCompletedFirstOrder = true
			a.FirstOrderCompletedAt = now
		case EventFirstSubscription:
			if a.HasCompletedFirstSubscription {
				return ledger.ErrMilestoneAlreadyRewarded
			}
			a.HasCompletedFirstSubscription = true
			a.FirstSubscriptionCompletedAt = now
		default:
			return fmt.Errorf("unknown reward event %q", event)
		}
		return nil
	})
	return err
}

// rewardReferrer applies one tier's reward using the referrer's own rates.
func (c *Calculator) rewardReferrer(ctx context.Context, event Event, entry ledger.ChainEntry) (RewardInstruction, error) {
	referrer, err := c.log.Account(ctx, entry.ReferrerID)
	if err != nil {
		return RewardInstruction{}, err
	}

	inst := RewardInstruction{
		Tier:       entry.Tier,
		ReferrerID: referrer.ID,
		RewardType: referrer.RewardType,
	}

	if referrer.RewardType == ledger.RewardMoney {
		money := referrer.Tier1MoneyReward
		if entry.Tier == ledger.Tier2 {
			money = referrer.Tier2MoneyReward
		}
		inst.Money = money
		if money.IsZero() {
			return inst, nil
		}
		// No points transaction: commission waits on the payout run.
		_, err := c.log.UpdateAccount(ctx, referrer.ID, func(a *ledger.Account) error {
			a.PendingCommission = a.PendingCommission.Add(money)
			return nil
		})
		return inst, err
	}

	points := referrer.Tier1PointsReward
	if entry.Tier == ledger.Tier2 {
		points = referrer.Tier2PointsReward
	}
	inst.Points = points
	if points == 0 {
		return inst, nil
	}
	res, err := c.log.Post(ctx, ledger.PostCommand{
		AccountID:   referrer.ID,
		Delta:       points,
		Type:        ledger.TxReferralBonus,
		Description: fmt.Sprintf("Tier %d referral bonus (%s)", entry.Tier, event),
	})
	if err != nil {
		return inst, err
	}
	inst.Transaction = &res.Transaction
	return inst, nil
}
