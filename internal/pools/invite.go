package pools

import (
	"math/rand/v2"
	"strings"

	"github.com/intermernet/bowlpickem/internal/database"
)

const (
	InviteCodeLength   = 6
	inviteCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateInviteCode draws InviteCodeLength base-36 characters using intN,
// which must return a value in [0, n). A nil intN uses math/rand/v2.
func GenerateInviteCode(intN func(n int) int) string {
	if intN == nil {
		intN = rand.IntN
	}
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		b.WriteByte(inviteCodeAlphabet[intN(len(inviteCodeAlphabet))])
	}
	return b.String()
}

// NormalizeInviteCode trims and upper-cases s. ok is false unless the result
// is a well-formed invite code.
func NormalizeInviteCode(s string) (code string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(s))
	if len(code) != InviteCodeLength {
		return code, false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteCodeAlphabet, code[i]) < 0 {
			return code, false
		}
	}
	return code, true
}

// InviteLink is the shareable join URL for pool under origin.
func InviteLink(origin string, pool *database.Pool) string {
	return strings.TrimRight(origin, "/") + "/join/" + pool.InviteCode
}
