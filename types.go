// Package multisig pays for x402-gated HTTP resources with transfer
// authorizations co-signed by a multi-party approval wallet canister on the
// Internet Computer.
//
// The local process never holds spending keys. It holds a lightweight ed25519
// identity used to authenticate to the wallet canister, submits an EIP-3009
// TransferWithAuthorization payload as an approval request, polls the request
// to a terminal state, and presents the resulting signature as an x402
// payment header.
//
// Import path: github.com/zCloak-Network/multisig-x402
package multisig

import (
	"fmt"
	"time"
)

// Version is the library version, reported in the User-Agent of paid calls.
const Version = "0.1.0"

// ChainICP is the sentinel chain identifier for native ICP transfers.
// It bypasses EVM hex chain-id validation.
const ChainICP = "icp"

// RequestStatus is the lifecycle state of an approval request on the wallet
// canister. Transitions: pending -> approved | rejected | expired, and
// approved -> executed. Executed, rejected and expired are terminal.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusExpired  RequestStatus = "expired"
	StatusExecuted RequestStatus = "executed"
)

// Terminal reports whether no further status transition can occur.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusExecuted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Approval records a single approver's decision on a request.
type Approval struct {
	// Approver is the approver's principal in textual form.
	Approver string

	// Approved is the approver's decision.
	Approved bool

	// Timestamp is the decision time in nanoseconds, remote clock.
	Timestamp uint64
}

// RequestRecord is the wallet canister's view of an approval request.
// Records are read-only and eventually consistent: two fetches for the same
// identifier may observe different instances.
type RequestRecord struct {
	// ID is the immutable request identifier assigned by the canister.
	ID uint64

	// CreatedAt is the creation time in nanoseconds, remote clock.
	CreatedAt uint64

	// Proposer is the submitting identity's principal in textual form.
	Proposer string

	// Approvals lists the decisions recorded so far.
	Approvals []Approval

	// Status is the current lifecycle state.
	Status RequestStatus

	// Signature is the execution result, present only when Status is
	// StatusExecuted.
	Signature *string

	// ExecutedAt is the execution time in nanoseconds, if executed.
	ExecutedAt *uint64
}

// TransferAuthorization is the canonical EIP-3009 payload submitted for
// co-signing. Every hex field is normalized to a 0x-prefixed, zero-padded
// 32-byte value before submission; the typed-data digest depends on that
// exact width.
type TransferAuthorization struct {
	// To is the recipient address (0x + 40 hex characters).
	To string

	// Value is the transfer amount as a canonical uint256 hex string.
	Value string

	// ValidAfter is the window start (unix seconds) as canonical uint256 hex.
	ValidAfter string

	// ValidBefore is the window end (unix seconds) as canonical uint256 hex.
	// Must be strictly greater than ValidAfter.
	ValidBefore string

	// Nonce is a canonical uint256 hex value, unique per authorization in
	// practice but not guaranteed.
	Nonce string

	// VerifyingContract is the token contract address for the typed-data
	// domain.
	VerifyingContract string

	// ChainID is the canonical hex chain identifier, or ChainICP.
	ChainID string

	// DomainName is the EIP-712 domain name (e.g. the token name).
	DomainName string

	// DomainVersion is the EIP-712 domain version.
	DomainVersion string

	// VaultID selects the vault on the wallet canister that funds the
	// transfer.
	VaultID uint64
}

// SignatureResult is the outcome of a resolved approval request. Timestamps
// are converted from the canister's nanosecond clock to milliseconds by
// integer division.
type SignatureResult struct {
	// Status is the terminal status observed.
	Status RequestStatus

	// Signature is the 0x-prefixed signature, present iff Status is
	// StatusExecuted.
	Signature string

	// RequestID identifies the request on the wallet canister. It remains
	// valid after a timeout and can be used to resume polling.
	RequestID uint64

	// CreatedAtMillis is the request creation time in unix milliseconds.
	CreatedAtMillis int64

	// ExecutedAtMillis is the execution time in unix milliseconds, zero when
	// the record carries no execution time.
	ExecutedAtMillis int64
}

// PollConfig bounds the request polling loop.
type PollConfig struct {
	// MaxAttempts is the hard ceiling on record fetches, including the
	// immediate fetch after submission.
	MaxAttempts int

	// Interval is the sleep between consecutive fetches.
	Interval time.Duration
}

// DefaultPollConfig provides sensible defaults for interactive approval
// flows: up to 30 observations, 2 seconds apart.
var DefaultPollConfig = PollConfig{
	MaxAttempts: 30,
	Interval:    2 * time.Second,
}

// WithMaxAttempts returns a copy with an updated attempt ceiling.
func (pc PollConfig) WithMaxAttempts(n int) PollConfig {
	pc.MaxAttempts = n
	return pc
}

// WithInterval returns a copy with an updated fetch interval.
func (pc PollConfig) WithInterval(d time.Duration) PollConfig {
	pc.Interval = d
	return pc
}

// IsZero reports whether the config is unset and defaults should apply.
func (pc PollConfig) IsZero() bool {
	return pc.MaxAttempts == 0 && pc.Interval == 0
}

// Validate ensures the polling bounds are usable.
func (pc PollConfig) Validate() error {
	if pc.MaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive, got %d", pc.MaxAttempts)
	}
	if pc.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", pc.Interval)
	}
	return nil
}
