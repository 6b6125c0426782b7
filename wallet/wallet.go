// Package wallet orchestrates payment authorizations against the multisig
// wallet canister: it canonicalizes and validates transfer parameters,
// submits them as an approval request, and polls the request lifecycle to a
// terminal state.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aviate-labs/agent-go/principal"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/actor"
	"github.com/zCloak-Network/multisig-x402/hexutil"
	"github.com/zCloak-Network/multisig-x402/validation"
)

// nsPerMilli converts the canister's nanosecond clock to milliseconds.
const nsPerMilli = 1_000_000

// defaultTimeoutSeconds is the validity window length when the caller
// supplies no explicit bounds.
const defaultTimeoutSeconds = 600

// Params are the caller-supplied transfer parameters. Hex fields accept an
// optional 0x prefix and any width up to 32 bytes; they are canonicalized
// before submission.
type Params struct {
	// To is the recipient address.
	To string

	// Value is the transfer amount in atomic units, hex.
	Value string

	// ValidAfter and ValidBefore bound the validity window (unix seconds,
	// hex). When both are empty, a window of [now-10s, now+TimeoutSeconds]
	// is used.
	ValidAfter  string
	ValidBefore string

	// Nonce is the authorization nonce; generated when empty.
	Nonce string

	// Contract is the verifying token contract address.
	Contract string

	// ChainID is the hex chain identifier, or multisig.ChainICP.
	ChainID string

	// DomainName and DomainVersion form the EIP-712 domain with ChainID and
	// Contract.
	DomainName    string
	DomainVersion string

	// TimeoutSeconds sets the default window length. Zero means 600.
	TimeoutSeconds int
}

// Wallet drives one multisig wallet canister on behalf of one vault.
type Wallet struct {
	caller   actor.Caller
	canister principal.Principal
	vaultID  uint64
	poll     multisig.PollConfig
	logger   *slog.Logger
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithPollConfig sets the default polling bounds.
func WithPollConfig(cfg multisig.PollConfig) Option {
	return func(w *Wallet) {
		w.poll = cfg
	}
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
	}
}

// New creates a Wallet for the given canister and vault.
func New(caller actor.Caller, canister principal.Principal, vaultID uint64, opts ...Option) *Wallet {
	w := &Wallet{
		caller:   caller,
		canister: canister,
		vaultID:  vaultID,
		poll:     multisig.DefaultPollConfig,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// VaultID returns the vault the wallet submits against.
func (w *Wallet) VaultID() uint64 {
	return w.vaultID
}

// NewTransferAuthorization canonicalizes p into a TransferAuthorization and
// validates it. Validation happens before any network call: a malformed
// field diagnosed locally beats a wasted round trip and an opaque remote
// error. Soft validation warnings are logged and do not abort.
func (w *Wallet) NewTransferAuthorization(p Params) (multisig.TransferAuthorization, error) {
	var auth multisig.TransferAuthorization

	timeout := p.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	now := time.Now().Unix()
	validAfter := p.ValidAfter
	if validAfter == "" {
		validAfter = fmt.Sprintf("%x", now-10)
	}
	validBefore := p.ValidBefore
	if validBefore == "" {
		validBefore = fmt.Sprintf("%x", now+int64(timeout))
	}
	nonce := p.Nonce
	if nonce == "" {
		generated, err := hexutil.GenerateNonce()
		if err != nil {
			return auth, err
		}
		nonce = generated
	}

	auth = multisig.TransferAuthorization{
		To:                p.To,
		Value:             p.Value,
		ValidAfter:        validAfter,
		ValidBefore:       validBefore,
		Nonce:             nonce,
		VerifyingContract: p.Contract,
		ChainID:           p.ChainID,
		DomainName:        p.DomainName,
		DomainVersion:     p.DomainVersion,
		VaultID:           w.vaultID,
	}
	if err := canonicalizeAuthorization(&auth); err != nil {
		return multisig.TransferAuthorization{}, err
	}

	warnings, err := validation.ValidateTransferAuthorization(auth)
	if err != nil {
		return multisig.TransferAuthorization{}, err
	}
	for _, warning := range warnings {
		w.logger.Warn("transfer authorization check", "field", warning.Field, "warning", warning.Message)
	}
	return auth, nil
}

// canonicalizeAuthorization normalizes every digest-relevant field of auth
// to the 32-byte form in place. Idempotent.
func canonicalizeAuthorization(auth *multisig.TransferAuthorization) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"value", &auth.Value},
		{"validAfter", &auth.ValidAfter},
		{"validBefore", &auth.ValidBefore},
		{"nonce", &auth.Nonce},
	}
	for _, f := range fields {
		canonical, err := hexutil.NormalizeUint256(*f.value)
		if err != nil {
			return fmt.Errorf("canonicalizing %s: %w", f.name, err)
		}
		*f.value = canonical
	}
	return nil
}

// Submit sends auth to the wallet canister as a new approval request and
// returns the assigned request identifier. After a successful submit the
// request's lifecycle belongs to the canister; abandoning the local poll
// loop does not cancel it. A nil expiresAt submits without expiry.
//
// Submit re-checks auth even when it came from NewTransferAuthorization:
// a caller-assembled authorization with non-canonical digest fields must
// never reach the canister. Digest fields are re-normalized (a no-op for
// already canonical values) and hard validation runs again; warnings are
// only reported during build.
func (w *Wallet) Submit(auth multisig.TransferAuthorization, expiresAt *uint64) (uint64, error) {
	if err := canonicalizeAuthorization(&auth); err != nil {
		return 0, err
	}
	if _, err := validation.ValidateTransferAuthorization(auth); err != nil {
		return 0, err
	}
	payload := payloadFromAuthorization(auth)
	args := createRequestArgs{
		Action:    requestAction{SignTransferAuthorization: &payload},
		ExpiresAt: expiresAt,
	}

	var requestID uint64
	if err := w.caller.CallUpdate(w.canister, "create_request", []any{args}, []any{&requestID}); err != nil {
		return 0, &multisig.SubmissionError{
			Canister: w.canister.Encode(),
			VaultID:  auth.VaultID,
			To:       auth.To,
			Value:    auth.Value,
			Contract: auth.VerifyingContract,
			ChainID:  auth.ChainID,
			Err:      err,
		}
	}
	w.logger.Info("approval request submitted",
		"requestId", requestID, "to", auth.To, "value", auth.Value, "vault", auth.VaultID)
	return requestID, nil
}

// GetRequest fetches the current record for a request identifier. An absent
// optional response maps to ErrRequestNotFound.
func (w *Wallet) GetRequest(id uint64) (*multisig.RequestRecord, error) {
	var rec *requestRecord
	if err := w.caller.CallQuery(w.canister, "get_request", []any{id}, []any{&rec}, true); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("request %d: %w", id, multisig.ErrRequestNotFound)
	}
	return rec.toDomain(), nil
}

// Poll observes the request until it reaches a terminal state or the
// observation budget runs out. The first fetch happens immediately; each
// subsequent fetch follows a cfg.Interval sleep. Rejected and expired
// records fail immediately. Exactly cfg.MaxAttempts observations are made
// before a PollTimeoutError; the request may still resolve later and id
// stays valid for a resumed Poll. A zero cfg falls back to the wallet's
// default polling bounds.
func (w *Wallet) Poll(ctx context.Context, id uint64, cfg multisig.PollConfig) (*multisig.SignatureResult, error) {
	if cfg.IsZero() {
		cfg = w.poll
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poll config: %w", err)
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}

		rec, err := w.GetRequest(id)
		if err != nil {
			return nil, err
		}
		switch rec.Status {
		case multisig.StatusExecuted:
			return newSignatureResult(rec), nil
		case multisig.StatusRejected:
			return nil, &multisig.RejectedError{RequestID: id}
		case multisig.StatusExpired:
			return nil, &multisig.ExpiredError{RequestID: id}
		}
		// Pending or approved: keep waiting.
	}
	return nil, &multisig.PollTimeoutError{RequestID: id, Attempts: cfg.MaxAttempts}
}

// RequestSignature is the full orchestration: build, submit, poll.
func (w *Wallet) RequestSignature(ctx context.Context, p Params, cfg multisig.PollConfig) (*multisig.SignatureResult, error) {
	auth, err := w.NewTransferAuthorization(p)
	if err != nil {
		return nil, err
	}
	return w.RequestSignatureFor(ctx, auth, cfg)
}

// RequestSignatureFor submits a pre-built authorization and polls it.
func (w *Wallet) RequestSignatureFor(ctx context.Context, auth multisig.TransferAuthorization, cfg multisig.PollConfig) (*multisig.SignatureResult, error) {
	id, err := w.Submit(auth, nil)
	if err != nil {
		return nil, err
	}
	return w.Poll(ctx, id, cfg)
}

func newSignatureResult(rec *multisig.RequestRecord) *multisig.SignatureResult {
	res := &multisig.SignatureResult{
		Status:          rec.Status,
		RequestID:       rec.ID,
		CreatedAtMillis: int64(rec.CreatedAt / nsPerMilli),
	}
	if rec.Signature != nil {
		res.Signature = ensureHexPrefix(*rec.Signature)
	}
	if rec.ExecutedAt != nil {
		res.ExecutedAtMillis = int64(*rec.ExecutedAt / nsPerMilli)
	}
	return res
}

func ensureHexPrefix(s string) string {
	if hexutil.HasPrefix(s) {
		return "0x" + hexutil.Strip(s)
	}
	return "0x" + s
}
