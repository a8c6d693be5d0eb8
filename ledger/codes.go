package ledger

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CODE GENERATION - Human-readable uppercase codes
// =============================================================================
// Format: PREFIX + base36(unix seconds) + random suffix, all uppercase.
// e.g. SWIFTM1X3K9QA7F2 for vouchers, CU.. / PA.. / AGENT.. / INVITE..
// for account referral codes. Uniqueness is NOT guaranteed here; callers
// reserve the candidate against the store and retry on collision.

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I

// Code prefixes used across the platform.
const (
	PrefixVoucher       = "SWIFT"
	PrefixAgent         = "AGENT"
	PrefixPropertyAgent = "PA"
	PrefixCustomer      = "CU"
	PrefixInvite        = "INVITE"
)

// GenerateCode returns a candidate code: prefix + base36 timestamp +
// suffixLen random characters.
func GenerateCode(prefix string, at time.Time, suffixLen int) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(strings.ToUpper(strconv.FormatInt(at.Unix(), 36)))
	b.WriteString(randomSuffix(suffixLen))
	return b.String()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	// crypto/rand.Read only fails if the OS entropy source is broken,
	// at which point there is no safe fallback.
	if _, err := rand.Read(buf); err != nil {
		panic("ledger: random source unavailable: " + err.Error())
	}
	out := make([]byte, n)
	for i, c := range buf {
		out[i] = codeAlphabet[int(c)%len(codeAlphabet)]
	}
	return string(out)
}

// ReferralCodePrefix returns the code prefix for an account's referrer type.
func ReferralCodePrefix(t ReferrerType) string {
	if t == ReferrerPropertyAgent {
		return PrefixPropertyAgent
	}
	return PrefixCustomer
}
