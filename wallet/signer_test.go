package wallet

import (
	"errors"
	"math/big"
	"strconv"
	"strings"
	"testing"

	v2 "github.com/mark3labs/x402-go/v2"

	multisig "github.com/zCloak-Network/multisig-x402"
)

const testPayer = "0x1234567890123456789012345678901234567890"

func testTokens() []v2.TokenConfig {
	return []v2.TokenConfig{
		{Address: testContract, Symbol: "USDC", Decimals: 6, Priority: 1},
	}
}

func testRequirements() *v2.PaymentRequirements {
	return &v2.PaymentRequirements{
		Scheme:            "exact",
		Network:           "eip155:8453",
		Amount:            "1000",
		Asset:             testContract,
		PayTo:             testRecipient,
		MaxTimeoutSeconds: 300,
		Extra: map[string]interface{}{
			"name":    "USD Coin",
			"version": "2",
		},
	}
}

func newTestSigner(t *testing.T, fake *fakeCaller, opts ...SignerOption) *Signer {
	t.Helper()
	opts = append(opts, WithSignerPollConfig(fastPoll(5)))
	s, err := NewSigner(newTestWallet(fake), testPayer, "eip155:8453", testTokens(), opts...)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return s
}

func TestNewSignerValidation(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		network string
		wantErr bool
	}{
		{name: "valid", from: testPayer, network: "eip155:8453"},
		{name: "bad address", from: "0x1234", network: "eip155:8453", wantErr: true},
		{name: "missing prefix", from: strings.Repeat("12", 20), network: "eip155:8453", wantErr: true},
		{name: "unknown network", from: testPayer, network: "eip155:999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(newTestWallet(newFakeCaller()), tt.from, tt.network, testTokens())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSigner() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignerCanSign(t *testing.T) {
	s := newTestSigner(t, newFakeCaller())

	tests := []struct {
		name   string
		modify func(*v2.PaymentRequirements)
		want   bool
	}{
		{name: "matching requirements", modify: func(*v2.PaymentRequirements) {}, want: true},
		{
			name:   "asset case insensitive",
			modify: func(r *v2.PaymentRequirements) { r.Asset = strings.ToLower(testContract) },
			want:   true,
		},
		{
			name:   "wrong scheme",
			modify: func(r *v2.PaymentRequirements) { r.Scheme = "upto" },
			want:   false,
		},
		{
			name:   "wrong network",
			modify: func(r *v2.PaymentRequirements) { r.Network = "eip155:1" },
			want:   false,
		},
		{
			name:   "unknown token",
			modify: func(r *v2.PaymentRequirements) { r.Asset = testPayer },
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequirements()
			tt.modify(req)
			if got := s.CanSign(req); got != tt.want {
				t.Errorf("CanSign() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignerSign(t *testing.T) {
	fake := newFakeCaller(multisig.StatusPending, multisig.StatusExecuted)
	s := newTestSigner(t, fake)
	req := testRequirements()

	payload, err := s.Sign(req)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if payload.X402Version != v2.X402Version {
		t.Errorf("X402Version = %d, want %d", payload.X402Version, v2.X402Version)
	}
	if payload.Accepted.PayTo != req.PayTo {
		t.Errorf("Accepted.PayTo = %q, want %q", payload.Accepted.PayTo, req.PayTo)
	}

	evm, ok := payload.Payload.(v2.EVMPayload)
	if !ok {
		t.Fatalf("Payload type = %T, want v2.EVMPayload", payload.Payload)
	}
	if evm.Signature != fake.signature {
		t.Errorf("Signature = %q, want wallet signature %q", evm.Signature, fake.signature)
	}
	if evm.Authorization.Value != "1000" {
		t.Errorf("Authorization.Value = %q, want decimal amount", evm.Authorization.Value)
	}
	if evm.Authorization.From != testPayer {
		t.Errorf("Authorization.From = %q, want %q", evm.Authorization.From, testPayer)
	}
	if evm.Authorization.To != testRecipient {
		t.Errorf("Authorization.To = %q, want %q", evm.Authorization.To, testRecipient)
	}
	if len(evm.Authorization.Nonce) != 66 || !strings.HasPrefix(evm.Authorization.Nonce, "0x") {
		t.Errorf("Authorization.Nonce = %q, want canonical 32-byte hex", evm.Authorization.Nonce)
	}
	after, err := strconv.ParseInt(evm.Authorization.ValidAfter, 10, 64)
	if err != nil {
		t.Fatalf("ValidAfter %q is not decimal: %v", evm.Authorization.ValidAfter, err)
	}
	before, err := strconv.ParseInt(evm.Authorization.ValidBefore, 10, 64)
	if err != nil {
		t.Fatalf("ValidBefore %q is not decimal: %v", evm.Authorization.ValidBefore, err)
	}
	if before <= after {
		t.Errorf("validity window [%d, %d] is empty", after, before)
	}

	// The canister saw the amount in canonical hex form.
	if fake.lastPayload == nil || !strings.HasSuffix(fake.lastPayload.Value, "3e8") {
		t.Errorf("submitted value = %+v, want hex form of 1000", fake.lastPayload)
	}
}

func TestSignerSignErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*v2.PaymentRequirements)
		opts    []SignerOption
		wantErr error
	}{
		{
			name:    "unsupported requirements",
			modify:  func(r *v2.PaymentRequirements) { r.Network = "eip155:1" },
			wantErr: v2.ErrNoValidSigner,
		},
		{
			name:    "non-decimal amount",
			modify:  func(r *v2.PaymentRequirements) { r.Amount = "0x3e8" },
			wantErr: v2.ErrInvalidAmount,
		},
		{
			name:    "amount over limit",
			modify:  func(r *v2.PaymentRequirements) { r.Amount = "1001" },
			opts:    []SignerOption{WithMaxAmount(big.NewInt(1000))},
			wantErr: v2.ErrAmountExceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeCaller(multisig.StatusExecuted)
			s := newTestSigner(t, fake, tt.opts...)
			req := testRequirements()
			tt.modify(req)

			_, err := s.Sign(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Sign() error = %v, want %v", err, tt.wantErr)
			}
			if fake.submits != 0 {
				t.Errorf("submits = %d, want none on local failure", fake.submits)
			}
		})
	}
}

func TestSignerSignMissingDomainParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*v2.PaymentRequirements)
	}{
		{name: "nil extra", modify: func(r *v2.PaymentRequirements) { r.Extra = nil }},
		{name: "missing name", modify: func(r *v2.PaymentRequirements) { delete(r.Extra, "name") }},
		{name: "missing version", modify: func(r *v2.PaymentRequirements) { delete(r.Extra, "version") }},
		{name: "non-string name", modify: func(r *v2.PaymentRequirements) { r.Extra["name"] = 42 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeCaller(multisig.StatusExecuted)
			s := newTestSigner(t, fake)
			req := testRequirements()
			tt.modify(req)

			if _, err := s.Sign(req); err == nil {
				t.Error("Sign() error = nil, want EIP-3009 parameter error")
			}
			if fake.submits != 0 {
				t.Errorf("submits = %d, want none on local failure", fake.submits)
			}
		})
	}
}

func TestSignerSignApprovalRejected(t *testing.T) {
	fake := newFakeCaller(multisig.StatusRejected)
	s := newTestSigner(t, fake)

	_, err := s.Sign(testRequirements())
	if !errors.Is(err, multisig.ErrRejected) {
		t.Errorf("Sign() error = %v, want ErrRejected", err)
	}
}

func TestChainID(t *testing.T) {
	tests := []struct {
		network string
		want    int64
		wantErr bool
	}{
		{network: "eip155:8453", want: 8453},
		{network: "eip155:84532", want: 84532},
		{network: "eip155:1", want: 1},
		{network: "eip155:137", want: 137},
		{network: "eip155:43114", want: 43114},
		{network: "base", wantErr: true},
		{network: "solana:mainnet", wantErr: true},
		{network: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			got, err := ChainID(tt.network)
			if tt.wantErr {
				if !errors.Is(err, multisig.ErrUnsupportedNetwork) {
					t.Errorf("ChainID() error = %v, want ErrUnsupportedNetwork", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChainID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ChainID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSignerAccessors(t *testing.T) {
	limit := big.NewInt(5_000_000)
	s := newTestSigner(t, newFakeCaller(), WithPriority(3), WithMaxAmount(limit))

	if s.Network() != "eip155:8453" {
		t.Errorf("Network() = %q", s.Network())
	}
	if s.Scheme() != "exact" {
		t.Errorf("Scheme() = %q", s.Scheme())
	}
	if s.Address().Hex() != testPayer {
		t.Errorf("Address() = %q, want %q", s.Address().Hex(), testPayer)
	}
	if s.GetPriority() != 3 {
		t.Errorf("GetPriority() = %d, want 3", s.GetPriority())
	}
	if s.GetMaxAmount().Cmp(limit) != 0 {
		t.Errorf("GetMaxAmount() = %v, want %v", s.GetMaxAmount(), limit)
	}
	if len(s.GetTokens()) != 1 {
		t.Errorf("GetTokens() = %d tokens, want 1", len(s.GetTokens()))
	}
}
