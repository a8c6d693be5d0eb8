package ledger_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/swiftfix/reward-ledger/ledger"
)

func TestGenerateCode_Format(t *testing.T) {
	at := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

	code := ledger.GenerateCode(ledger.PrefixVoucher, at, 4)

	assert.True(t, strings.HasPrefix(code, "SWIFT"))
	assert.Equal(t, strings.ToUpper(code), code, "codes are uppercase")
	// prefix + base36 seconds (6 chars for contemporary timestamps) + suffix
	assert.Len(t, code, len("SWIFT")+6+4)
	for _, c := range code {
		assert.True(t, (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'),
			"code must be uppercase alphanumeric, got %q", c)
	}
}

func TestGenerateCode_ReferralPrefixes(t *testing.T) {
	at := time.Now()

	assert.True(t, strings.HasPrefix(ledger.GenerateCode(ledger.ReferralCodePrefix(ledger.ReferrerPropertyAgent), at, 4), "PA"))
	assert.True(t, strings.HasPrefix(ledger.GenerateCode(ledger.ReferralCodePrefix(ledger.ReferrerCustomer), at, 4), "CU"))
	assert.True(t, strings.HasPrefix(ledger.GenerateCode(ledger.PrefixAgent, at, 4), "AGENT"))
	assert.True(t, strings.HasPrefix(ledger.GenerateCode(ledger.PrefixInvite, at, 4), "INVITE"))
}

func TestGenerateCode_RandomSuffixVaries(t *testing.T) {
	// Same instant, many codes: the random suffix keeps them distinct.
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[ledger.GenerateCode(ledger.PrefixVoucher, at, 4)] = true
	}
	// 200 draws from 32^4 combinations; collisions are possible but a
	// single repeated value for every draw would mean no randomness.
	assert.Greater(t, len(seen), 150)
}
