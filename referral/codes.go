package referral

import (
	"context"
	"time"

	"github.com/swiftfix/reward-ledger/ledger"
)

// maxCodeAttempts bounds the generate-and-reserve loop. The random suffix
// makes collisions vanishingly rare; exhausting the bound indicates a store
// problem and surfaces as a transient ErrCodeGenerationExhausted.
const maxCodeAttempts = 10

const suffixLen = 4

// NewReferralCode mints and reserves a unique referral code for an account
// of the given type (PA.. for property agents, CU.. for customers).
func NewReferralCode(ctx context.Context, store ledger.Store, t ledger.ReferrerType, at time.Time) (string, error) {
	return reserve(ctx, store, ledger.ReferralCodePrefix(t), at)
}

// NewAgentCode mints and reserves a unique AGENT.. onboarding code.
func NewAgentCode(ctx context.Context, store ledger.Store, at time.Time) (string, error) {
	return reserve(ctx, store, ledger.PrefixAgent, at)
}

// NewInviteCode mints and reserves a unique INVITE.. campaign code.
func NewInviteCode(ctx context.Context, store ledger.Store, at time.Time) (string, error) {
	return reserve(ctx, store, ledger.PrefixInvite, at)
}

// reserve retries generation until the store accepts the code as unseen.
// Reservation is atomic per code: two concurrent callers producing the same
// candidate see exactly one success.
func reserve(ctx context.Context, store ledger.Store, prefix string, at time.Time) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := ledger.GenerateCode(prefix, at, suffixLen)
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
