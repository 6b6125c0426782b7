package validation

import (
	"errors"
	"strings"
	"testing"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/hexutil"
)

const (
	testRecipient = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	testContract  = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{
			name:    "checksummed address",
			address: testRecipient,
			want:    true,
		},
		{
			name:    "lowercase address",
			address: strings.ToLower(testRecipient),
			want:    true,
		},
		{
			name:    "uppercase hex",
			address: "0x" + strings.Repeat("A", 40),
			want:    true,
		},
		{
			name:    "missing prefix",
			address: strings.Repeat("a", 40),
			want:    false,
		},
		{
			name:    "too short",
			address: "0x" + strings.Repeat("a", 39),
			want:    false,
		},
		{
			name:    "too long",
			address: "0x" + strings.Repeat("a", 41),
			want:    false,
		},
		{
			name:    "non-hex character",
			address: "0x" + strings.Repeat("a", 39) + "g",
			want:    false,
		},
		{
			name:    "empty",
			address: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAddress(tt.address); got != tt.want {
				t.Errorf("IsValidAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestValidateHexValue(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		allowNegative bool
		wantErr       bool
		errMsg        string
	}{
		{
			name:  "plain hex",
			value: "0x3e8",
		},
		{
			name:  "no prefix",
			value: "3e8",
		},
		{
			name:  "max uint256",
			value: "0x" + strings.Repeat("f", 64),
		},
		{
			name:    "exceeds uint256",
			value:   "0x1" + strings.Repeat("0", 64),
			wantErr: true,
			errMsg:  "exceeds uint256 range",
		},
		{
			name:    "negative not allowed",
			value:   "-0x1",
			wantErr: true,
			errMsg:  "negative value not allowed",
		},
		{
			name:          "negative allowed",
			value:         "-0x1",
			allowNegative: true,
		},
		{
			name:    "not hex",
			value:   "0xzz",
			wantErr: true,
			errMsg:  "not a hex integer",
		},
		{
			name:    "empty",
			value:   "",
			wantErr: true,
			errMsg:  "empty hex value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHexValue("value", tt.value, tt.allowNegative)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHexValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidateHexValue() error = %v, want error containing %q", err, tt.errMsg)
				}
				var vErr *multisig.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("ValidateHexValue() error = %T, want *multisig.ValidationError", err)
				}
				if vErr.Field != "value" {
					t.Errorf("ValidationError.Field = %q, want %q", vErr.Field, "value")
				}
			}
		})
	}
}

func TestValidateTimestamps(t *testing.T) {
	tests := []struct {
		name        string
		after       string
		before      string
		wantErr     bool
		wantWarning string
	}{
		{
			name:   "ordered window",
			after:  "0x1",
			before: "0x67890abc",
		},
		{
			name:    "before equal to after",
			after:   "0x64",
			before:  "0x64",
			wantErr: true,
		},
		{
			name:    "before less than after",
			after:   "0x67890abc",
			before:  "0x0",
			wantErr: true,
		},
		{
			name:        "short window",
			after:       "0x64",
			before:      "0x65",
			wantWarning: "shorter than",
		},
		{
			name:        "window start far in the future",
			after:       "0x" + strings.Repeat("f", 10),
			before:      "0x" + strings.Repeat("f", 11),
			wantWarning: "in the future",
		},
		{
			name:    "malformed after",
			after:   "0xzz",
			before:  "0x64",
			wantErr: true,
		},
		{
			name:    "malformed before",
			after:   "0x64",
			before:  "oops",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := ValidateTimestamps(tt.after, tt.before)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTimestamps() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantWarning == "" {
				return
			}
			found := false
			for _, w := range warnings {
				if strings.Contains(w.Message, tt.wantWarning) {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidateTimestamps() warnings = %v, want one containing %q", warnings, tt.wantWarning)
			}
		})
	}
}

func TestValidateNonce(t *testing.T) {
	warnings, err := ValidateNonce("0x" + strings.Repeat("0", 64))
	if err != nil {
		t.Fatalf("ValidateNonce(zero) error = %v", err)
	}
	if len(warnings) != 1 || warnings[0].Field != "nonce" {
		t.Errorf("ValidateNonce(zero) warnings = %v, want a nonce warning", warnings)
	}

	warnings, err = ValidateNonce("0x1234")
	if err != nil || len(warnings) != 0 {
		t.Errorf("ValidateNonce(0x1234) = (%v, %v), want no findings", warnings, err)
	}

	if _, err := ValidateNonce("not-hex"); err == nil {
		t.Error("ValidateNonce(not-hex) expected error")
	}
}

func TestValidateVaultID(t *testing.T) {
	if err := ValidateVaultID(0); err == nil {
		t.Error("ValidateVaultID(0) expected error")
	}
	if err := ValidateVaultID(1); err != nil {
		t.Errorf("ValidateVaultID(1) error = %v", err)
	}
}

func TestValidateContractAddress(t *testing.T) {
	warnings, err := ValidateContractAddress(ZeroAddress)
	if err != nil {
		t.Fatalf("ValidateContractAddress(zero) error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "native asset") {
		t.Errorf("ValidateContractAddress(zero) warnings = %v, want native-asset warning", warnings)
	}

	warnings, err = ValidateContractAddress(testContract)
	if err != nil || len(warnings) != 0 {
		t.Errorf("ValidateContractAddress(%s) = (%v, %v), want no findings", testContract, warnings, err)
	}

	if _, err := ValidateContractAddress("0x123"); err == nil {
		t.Error("ValidateContractAddress(0x123) expected error")
	}
}

func TestValidateChainID(t *testing.T) {
	tests := []struct {
		name    string
		chainID string
		wantErr bool
	}{
		{
			name:    "icp sentinel bypasses hex validation",
			chainID: multisig.ChainICP,
		},
		{
			name:    "base chain id",
			chainID: "0x2105",
		},
		{
			name:    "zero chain id",
			chainID: "0x0",
			wantErr: true,
		},
		{
			name:    "not hex",
			chainID: "base",
			wantErr: true,
		},
		{
			name:    "empty",
			chainID: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChainID(tt.chainID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChainID(%q) error = %v, wantErr %v", tt.chainID, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDomain(t *testing.T) {
	if _, err := ValidateDomain("", "2"); err == nil {
		t.Error("ValidateDomain with empty name expected error")
	}
	if _, err := ValidateDomain("USD Coin", ""); err == nil {
		t.Error("ValidateDomain with empty version expected error")
	}

	warnings, err := ValidateDomain("USD Coin", "2")
	if err != nil || len(warnings) != 0 {
		t.Errorf("ValidateDomain(USD Coin, 2) = (%v, %v), want no findings", warnings, err)
	}

	warnings, err = ValidateDomain("USD Coin", "v2")
	if err != nil {
		t.Fatalf("ValidateDomain(USD Coin, v2) error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "not numeric") {
		t.Errorf("ValidateDomain(USD Coin, v2) warnings = %v, want non-numeric warning", warnings)
	}
}

func validAuthorization(t *testing.T) multisig.TransferAuthorization {
	t.Helper()
	value, err := hexutil.NormalizeUint256("0x3e8")
	if err != nil {
		t.Fatal(err)
	}
	after, err := hexutil.NormalizeUint256("0x1")
	if err != nil {
		t.Fatal(err)
	}
	before, err := hexutil.NormalizeUint256("0x67890abc")
	if err != nil {
		t.Fatal(err)
	}
	nonce, err := hexutil.GenerateNonce()
	if err != nil {
		t.Fatal(err)
	}
	return multisig.TransferAuthorization{
		To:                testRecipient,
		Value:             value,
		ValidAfter:        after,
		ValidBefore:       before,
		Nonce:             nonce,
		VerifyingContract: testContract,
		ChainID:           "0x2105",
		DomainName:        "USD Coin",
		DomainVersion:     "2",
		VaultID:           1,
	}
}

func TestValidateTransferAuthorization(t *testing.T) {
	auth := validAuthorization(t)
	warnings, err := ValidateTransferAuthorization(auth)
	if err != nil {
		t.Fatalf("ValidateTransferAuthorization() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("ValidateTransferAuthorization() warnings = %v, want none", warnings)
	}
}

func TestValidateTransferAuthorizationCanonicalValue(t *testing.T) {
	// A canonicalized small value passes validation end to end.
	auth := validAuthorization(t)
	if !strings.HasSuffix(auth.Value, "3e8") || len(auth.Value) != 66 {
		t.Fatalf("canonical value = %q, want 64 hex digits ending in 3e8", auth.Value)
	}
	if _, err := ValidateTransferAuthorization(auth); err != nil {
		t.Errorf("ValidateTransferAuthorization() error = %v", err)
	}
}

func TestValidateTransferAuthorizationInvertedWindow(t *testing.T) {
	auth := validAuthorization(t)
	auth.ValidAfter = "0x67890abc"
	auth.ValidBefore = "0x0"
	_, err := ValidateTransferAuthorization(auth)
	if err == nil {
		t.Fatal("ValidateTransferAuthorization() expected hard error for inverted window")
	}
	var vErr *multisig.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %T, want *multisig.ValidationError", err)
	}
	if vErr.Field != "validBefore" {
		t.Errorf("ValidationError.Field = %q, want validBefore", vErr.Field)
	}
}

func TestValidateTransferAuthorizationFailsFast(t *testing.T) {
	// The recipient check runs first; a bad recipient masks later problems.
	auth := validAuthorization(t)
	auth.To = "nope"
	auth.ChainID = "also-bad"
	_, err := ValidateTransferAuthorization(auth)
	var vErr *multisig.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %T, want *multisig.ValidationError", err)
	}
	if vErr.Field != "to" {
		t.Errorf("ValidationError.Field = %q, want to (fail fast on first hard error)", vErr.Field)
	}
}

func TestValidateTransferAuthorizationCollectsWarnings(t *testing.T) {
	auth := validAuthorization(t)
	auth.Nonce = "0x0"
	auth.VerifyingContract = ZeroAddress
	auth.DomainVersion = "v2"
	warnings, err := ValidateTransferAuthorization(auth)
	if err != nil {
		t.Fatalf("ValidateTransferAuthorization() error = %v", err)
	}
	if len(warnings) != 3 {
		t.Errorf("ValidateTransferAuthorization() warnings = %v, want 3", warnings)
	}
}
