package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	v2 "github.com/mark3labs/x402-go/v2"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/hexutil"
	"github.com/zCloak-Network/multisig-x402/validation"
)

// Signer implements the x402 v2 Signer interface with signatures obtained
// from the remote approval wallet instead of a local private key. Sign
// blocks for as long as the approval process takes, bounded by the
// configured polling budget.
type Signer struct {
	wallet    *Wallet
	from      common.Address
	network   string
	chainID   int64
	tokens    []v2.TokenConfig
	priority  int
	maxAmount *big.Int
	poll      multisig.PollConfig
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a wallet-backed signer. from is the EVM address the
// remote vault signs for; network is the CAIP-2 identifier of the chain the
// tokens live on.
func NewSigner(w *Wallet, from, network string, tokens []v2.TokenConfig, opts ...SignerOption) (*Signer, error) {
	if !validation.IsValidAddress(from) {
		return nil, &multisig.ValidationError{Field: "from", Value: from, Reason: "expected 0x followed by 40 hex characters"}
	}

	s := &Signer{
		wallet:  w,
		from:    common.HexToAddress(from),
		network: network,
		tokens:  tokens,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	chainID, err := ChainID(network)
	if err != nil {
		return nil, err
	}
	s.chainID = chainID

	return s, nil
}

// WithPriority sets the signer's selection priority (lower wins).
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmount sets a per-call spending limit in atomic units.
func WithMaxAmount(amount *big.Int) SignerOption {
	return func(s *Signer) error {
		s.maxAmount = amount
		return nil
	}
}

// WithSignerPollConfig overrides the polling bounds used while waiting for
// approval.
func WithSignerPollConfig(cfg multisig.PollConfig) SignerOption {
	return func(s *Signer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.poll = cfg
		return nil
	}
}

// Network returns the CAIP-2 network identifier.
func (s *Signer) Network() string {
	return s.network
}

// Scheme returns the payment scheme identifier.
func (s *Signer) Scheme() string {
	return "exact"
}

// Address returns the vault's EVM address.
func (s *Signer) Address() common.Address {
	return s.from
}

// CanSign checks scheme, network and token support.
func (s *Signer) CanSign(requirements *v2.PaymentRequirements) bool {
	if requirements.Scheme != "exact" {
		return false
	}
	if requirements.Network != s.network {
		return false
	}
	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirements.Asset) {
			return true
		}
	}
	return false
}

// Sign builds a transfer authorization from the requirements, has the
// remote wallet co-sign it, and assembles the x402 payment payload.
func (s *Signer) Sign(requirements *v2.PaymentRequirements) (*v2.PaymentPayload, error) {
	if !s.CanSign(requirements) {
		return nil, v2.ErrNoValidSigner
	}

	amount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return nil, v2.ErrInvalidAmount
	}
	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, v2.ErrAmountExceeded
	}

	name, version, err := eip3009Params(requirements)
	if err != nil {
		return nil, err
	}

	valueHex, err := hexutil.FromBig(amount)
	if err != nil {
		return nil, err
	}
	chainHex, err := hexutil.FromUint64(uint64(s.chainID))
	if err != nil {
		return nil, err
	}

	auth, err := s.wallet.NewTransferAuthorization(Params{
		To:             requirements.PayTo,
		Value:          valueHex,
		Contract:       requirements.Asset,
		ChainID:        chainHex,
		DomainName:     name,
		DomainVersion:  version,
		TimeoutSeconds: requirements.MaxTimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.wallet.RequestSignatureFor(context.Background(), auth, s.poll)
	if err != nil {
		return nil, err
	}

	return &v2.PaymentPayload{
		X402Version: v2.X402Version,
		Accepted:    *requirements,
		Payload: v2.EVMPayload{
			Signature: result.Signature,
			Authorization: v2.EVMAuthorization{
				From:        s.from.Hex(),
				To:          common.HexToAddress(requirements.PayTo).Hex(),
				Value:       amount.String(),
				ValidAfter:  hexToDecimal(auth.ValidAfter),
				ValidBefore: hexToDecimal(auth.ValidBefore),
				Nonce:       auth.Nonce,
			},
		},
	}, nil
}

// GetPriority returns the signer's priority level.
func (s *Signer) GetPriority() int {
	return s.priority
}

// GetTokens returns the configured token list.
func (s *Signer) GetTokens() []v2.TokenConfig {
	return s.tokens
}

// GetMaxAmount returns the per-call spending limit, or nil.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// ChainID maps a CAIP-2 eip155 network to its chain id.
func ChainID(network string) (int64, error) {
	switch network {
	case "eip155:8453":
		return 8453, nil
	case "eip155:84532":
		return 84532, nil
	case "eip155:1":
		return 1, nil
	case "eip155:11155111":
		return 11155111, nil
	case "eip155:137":
		return 137, nil
	case "eip155:80002":
		return 80002, nil
	case "eip155:43114":
		return 43114, nil
	case "eip155:43113":
		return 43113, nil
	default:
		return 0, fmt.Errorf("%w: %s", multisig.ErrUnsupportedNetwork, network)
	}
}

func eip3009Params(requirements *v2.PaymentRequirements) (name, version string, err error) {
	if requirements.Extra == nil {
		return "", "", fmt.Errorf("missing EIP-3009 parameters: Extra field is nil")
	}
	nameVal, ok := requirements.Extra["name"]
	if !ok {
		return "", "", fmt.Errorf("missing EIP-3009 parameter: name")
	}
	name, ok = nameVal.(string)
	if !ok {
		return "", "", fmt.Errorf("invalid EIP-3009 parameter: name is not a string")
	}
	versionVal, ok := requirements.Extra["version"]
	if !ok {
		return "", "", fmt.Errorf("missing EIP-3009 parameter: version")
	}
	version, ok = versionVal.(string)
	if !ok {
		return "", "", fmt.Errorf("invalid EIP-3009 parameter: version is not a string")
	}
	return name, version, nil
}

func hexToDecimal(canonical string) string {
	n, ok := new(big.Int).SetString(hexutil.Strip(canonical), 16)
	if !ok {
		return "0"
	}
	return n.String()
}
