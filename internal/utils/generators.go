package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeAlphabet leaves out 0/O and 1/I so codes can be read aloud at the door.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	TicketPrefix  = "TKT"
	CounterPrefix = "POS"
	GroupPrefix   = "GRP"

	codeLength  = 8
	tokenLength = 10
)

func NewID() string {
	return uuid.NewString()
}

func randomString(alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String()
}

// GenerateCode returns PREFIX-XXXXXXXX.
func GenerateCode(prefix string) string {
	return prefix + "-" + randomString(CodeAlphabet, codeLength)
}

func GenerateTicketCode() string { return GenerateCode(TicketPrefix) }

func GenerateGroupCode() string { return GenerateCode(GroupPrefix) }

func IsGroupCode(code string) bool {
	return strings.HasPrefix(strings.ToUpper(code), GroupPrefix+"-")
}

// GenerateInvitationToken returns inv_<base36 unix ms>_<random>.
func GenerateInvitationToken() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return "inv_" + ts + "_" + randomString("abcdefghijklmnopqrstuvwxyz0123456789", tokenLength)
}
