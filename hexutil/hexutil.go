// Package hexutil canonicalizes hex and integer values into the fixed-width
// form required by typed-data signing. Every numeric field that participates
// in an EIP-712 digest must be zero-padded to exactly 32 bytes; a shorter
// encoding silently changes the signed digest.
package hexutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	multisig "github.com/zCloak-Network/multisig-x402"
)

// Uint256HexLen is the hex-digit width of a canonical uint256 value.
const Uint256HexLen = 64

// Strip removes an optional 0x or 0X prefix.
func Strip(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// HasPrefix reports whether s carries a 0x or 0X prefix.
func HasPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Pad left-pads a hex string with zeros to exactly width hex digits and
// returns it 0x-prefixed. The input may carry an optional 0x prefix. It
// fails with a FormatError if the remainder is empty, contains a non-hex
// character, or already exceeds width digits. Padding never changes the
// numeric value, so Pad is idempotent at a given width.
func Pad(s string, width int) (string, error) {
	h := Strip(s)
	if h == "" {
		return "", &multisig.FormatError{Input: s, Reason: "empty hex value"}
	}
	for _, r := range h {
		if !isHexRune(r) {
			return "", &multisig.FormatError{Input: s, Reason: fmt.Sprintf("non-hex character %q", r)}
		}
	}
	if len(h) > width {
		return "", &multisig.FormatError{Input: s, Reason: fmt.Sprintf("%d hex digits exceed width %d", len(h), width)}
	}
	return "0x" + strings.Repeat("0", width-len(h)) + h, nil
}

// NormalizeUint256 is Pad fixed at the 32-byte width every typed-data
// numeric field requires.
func NormalizeUint256(s string) (string, error) {
	return Pad(s, Uint256HexLen)
}

// FromBig converts a non-negative integer to its canonical uint256 hex form.
func FromBig(v *big.Int) (string, error) {
	if v == nil {
		return "", &multisig.FormatError{Input: "<nil>", Reason: "nil integer"}
	}
	if v.Sign() < 0 {
		return "", &multisig.FormatError{Input: v.String(), Reason: "negative value"}
	}
	return NormalizeUint256(v.Text(16))
}

// FromUint64 converts v to its canonical uint256 hex form.
func FromUint64(v uint64) (string, error) {
	return NormalizeUint256(strconv.FormatUint(v, 16))
}

// GenerateNonce produces a canonical uint256 nonce from the current time in
// unix milliseconds concatenated with four random bytes. Uniqueness is
// best-effort: collision-resistant in practice, not cryptographically
// guaranteed. Callers needing stronger guarantees should supply their own
// nonce.
func GenerateNonce() (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("failed to read random nonce suffix: %w", err)
	}
	raw := strconv.FormatInt(time.Now().UnixMilli(), 16) + hex.EncodeToString(suffix[:])
	return NormalizeUint256(raw)
}

func isHexRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
