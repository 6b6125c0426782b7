// Package validation enforces format and range invariants on transfer
// authorization parameters before any network call. Hard failures are
// ValidationError values that name the offending field; soft findings are
// returned as Warning values and never abort.
package validation

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/hexutil"
)

var (
	// addressRegex matches Ethereum-style addresses (0x followed by 40 hex chars)
	addressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// numericVersionRegex matches purely numeric domain versions
	numericVersionRegex = regexp.MustCompile(`^[0-9]+$`)

	// maxUint256 = 2^256 - 1, the representable range for every hex field
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ZeroAddress is the canonical EVM zero address. As a verifying contract it
// usually means "native asset" and is flagged as a warning, not an error.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

const (
	// minWindowSeconds is the validity window length below which a warning
	// is emitted.
	minWindowSeconds = 60

	// farFuture is how far ahead of the local clock validAfter may sit
	// before a warning is emitted.
	farFuture = time.Hour
)

// Warning is a non-fatal validation finding. Warnings are reported through a
// diagnostic side channel and never alter control flow.
type Warning struct {
	// Field is the field the finding concerns.
	Field string

	// Message describes the finding.
	Message string
}

// IsValidAddress reports whether s is 0x followed by exactly 40 hex
// characters, case-insensitive.
func IsValidAddress(s string) bool {
	return addressRegex.MatchString(s)
}

// ValidateAddress checks an address field, failing with a ValidationError
// naming the field.
func ValidateAddress(field, s string) error {
	if !IsValidAddress(s) {
		return &multisig.ValidationError{Field: field, Value: s, Reason: "expected 0x followed by 40 hex characters"}
	}
	return nil
}

// ValidateHexValue checks that v is a hex integer within the uint256 range.
// A leading minus sign is accepted only when allowNegative is set; the
// magnitude must still parse as hex.
func ValidateHexValue(field, v string, allowNegative bool) error {
	if _, err := parseHexValue(field, v, allowNegative); err != nil {
		return err
	}
	return nil
}

func parseHexValue(field, v string, allowNegative bool) (*big.Int, error) {
	s := v
	negative := strings.HasPrefix(s, "-")
	if negative {
		if !allowNegative {
			return nil, &multisig.ValidationError{Field: field, Value: v, Reason: "negative value not allowed"}
		}
		s = s[1:]
	}
	h := hexutil.Strip(s)
	if h == "" {
		return nil, &multisig.ValidationError{Field: field, Value: v, Reason: "empty hex value"}
	}
	n, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return nil, &multisig.ValidationError{Field: field, Value: v, Reason: "not a hex integer"}
	}
	if n.Cmp(maxUint256) > 0 {
		return nil, &multisig.ValidationError{Field: field, Value: v, Reason: "exceeds uint256 range"}
	}
	if negative {
		n.Neg(n)
	}
	return n, nil
}

// ValidateTimestamps checks the validity window. Both bounds must be valid
// hex values and validBefore must be strictly greater than validAfter; that
// ordering is a hard error. A short window or a validAfter far in the future
// are warnings only.
func ValidateTimestamps(validAfter, validBefore string) ([]Warning, error) {
	after, err := parseHexValue("validAfter", validAfter, false)
	if err != nil {
		return nil, err
	}
	before, err := parseHexValue("validBefore", validBefore, false)
	if err != nil {
		return nil, err
	}
	if before.Cmp(after) <= 0 {
		return nil, &multisig.ValidationError{
			Field:  "validBefore",
			Value:  validBefore,
			Reason: fmt.Sprintf("must be strictly greater than validAfter (%s)", validAfter),
		}
	}

	var warnings []Warning
	window := new(big.Int).Sub(before, after)
	if window.Cmp(big.NewInt(minWindowSeconds)) < 0 {
		warnings = append(warnings, Warning{
			Field:   "validBefore",
			Message: fmt.Sprintf("validity window is shorter than %ds", minWindowSeconds),
		})
	}
	horizon := big.NewInt(time.Now().Add(farFuture).Unix())
	if after.Cmp(horizon) > 0 {
		warnings = append(warnings, Warning{
			Field:   "validAfter",
			Message: "window start is more than an hour in the future",
		})
	}
	return warnings, nil
}

// ValidateNonce checks the nonce hex value. A zero nonce is a warning only.
func ValidateNonce(nonce string) ([]Warning, error) {
	n, err := parseHexValue("nonce", nonce, false)
	if err != nil {
		return nil, err
	}
	if n.Sign() == 0 {
		return []Warning{{Field: "nonce", Message: "nonce is zero"}}, nil
	}
	return nil, nil
}

// ValidateVaultID checks the vault identifier is strictly positive.
func ValidateVaultID(id uint64) error {
	if id == 0 {
		return &multisig.ValidationError{Field: "vaultId", Value: "0", Reason: "must be a positive integer"}
	}
	return nil
}

// ValidateContractAddress checks the verifying contract address. The zero
// address likely means a native-asset transfer and is a warning only.
func ValidateContractAddress(addr string) ([]Warning, error) {
	if err := ValidateAddress("verifyingContract", addr); err != nil {
		return nil, err
	}
	if strings.EqualFold(addr, ZeroAddress) {
		return []Warning{{Field: "verifyingContract", Message: "zero address, likely a native asset transfer"}}, nil
	}
	return nil, nil
}

// ValidateChainID checks the chain identifier. The ICP sentinel bypasses hex
// validation entirely; any other value must be a non-zero hex integer.
func ValidateChainID(chainID string) error {
	if chainID == multisig.ChainICP {
		return nil
	}
	n, err := parseHexValue("chainId", chainID, false)
	if err != nil {
		return err
	}
	if n.Sign() == 0 {
		return &multisig.ValidationError{Field: "chainId", Value: chainID, Reason: "must not be zero"}
	}
	return nil
}

// ValidateDomain checks the typed-data domain name and version. A
// non-numeric version is a warning only.
func ValidateDomain(name, version string) ([]Warning, error) {
	if name == "" {
		return nil, &multisig.ValidationError{Field: "domainName", Value: name, Reason: "must not be empty"}
	}
	if version == "" {
		return nil, &multisig.ValidationError{Field: "domainVersion", Value: version, Reason: "must not be empty"}
	}
	if !numericVersionRegex.MatchString(version) {
		return []Warning{{Field: "domainVersion", Message: fmt.Sprintf("version %q is not numeric", version)}}, nil
	}
	return nil, nil
}

// ValidateTransferAuthorization runs every check in a fixed order, failing
// fast on the first hard error. Accumulated warnings are returned alongside
// a nil error; they never abort.
func ValidateTransferAuthorization(a multisig.TransferAuthorization) ([]Warning, error) {
	var warnings []Warning

	if err := ValidateAddress("to", a.To); err != nil {
		return nil, err
	}
	if err := ValidateHexValue("value", a.Value, false); err != nil {
		return nil, err
	}
	w, err := ValidateTimestamps(a.ValidAfter, a.ValidBefore)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	w, err = ValidateNonce(a.Nonce)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	if err := ValidateVaultID(a.VaultID); err != nil {
		return nil, err
	}

	w, err = ValidateContractAddress(a.VerifyingContract)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	if err := ValidateChainID(a.ChainID); err != nil {
		return nil, err
	}

	w, err = ValidateDomain(a.DomainName, a.DomainVersion)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	return warnings, nil
}
