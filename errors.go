package multisig

import (
	"errors"
	"fmt"
)

// Sentinel errors for multisig payment operations.
var (
	// ErrRejected indicates the approvers rejected the request. Terminal;
	// never retried.
	ErrRejected = errors.New("multisig: request rejected by approvers")

	// ErrExpired indicates the request expired before reaching approval.
	// Terminal; never retried.
	ErrExpired = errors.New("multisig: request expired before approval")

	// ErrPollTimeout indicates the polling budget was exhausted without a
	// terminal state. The underlying request may still resolve later.
	ErrPollTimeout = errors.New("multisig: polling budget exhausted")

	// ErrIdentityExists indicates an identity file already exists and
	// overwrite was not requested.
	ErrIdentityExists = errors.New("multisig: identity already exists")

	// ErrIdentityNotFound indicates no identity file exists for the name.
	ErrIdentityNotFound = errors.New("multisig: identity not found")

	// ErrRequestNotFound indicates the canister has no record for the
	// request identifier.
	ErrRequestNotFound = errors.New("multisig: request not found")

	// ErrUnsupportedNetwork indicates a network with no known chain id.
	ErrUnsupportedNetwork = errors.New("multisig: unsupported network")
)

// FormatError indicates malformed input encoding. Local, never retried, and
// raised before any network call.
type FormatError struct {
	// Input is the offending value.
	Input string

	// Reason describes what made it malformed.
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid format for %q: %s", e.Input, e.Reason)
}

// ValidationError indicates a semantic constraint violation on a named
// field. Local, never retried, and raised before any network call.
type ValidationError struct {
	// Field is the offending field name.
	Field string

	// Value is the offending value.
	Value string

	// Reason describes the violated constraint.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IntegrityError indicates a stored identity whose principal cannot be
// re-derived from its key material.
type IntegrityError struct {
	// Name is the identity name.
	Name string

	// Stored is the principal recorded in the identity file.
	Stored string

	// Derived is the principal recomputed from the stored key.
	Derived string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("identity %q integrity mismatch: stored principal %s, derived %s", e.Name, e.Stored, e.Derived)
}

// RemoteCallError wraps a transport or decoding failure talking to a
// canister, annotated for diagnosis. Callers may retry; this library never
// retries automatically.
type RemoteCallError struct {
	// Canister is the target canister's textual principal.
	Canister string

	// Method is the canister method name.
	Method string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s on canister %s failed: %v", e.Method, e.Canister, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// SubmissionError indicates the create_request call failed. It carries the
// full request context because the raw remote error text is rarely
// actionable on its own.
type SubmissionError struct {
	Canister string
	VaultID  uint64
	To       string
	Value    string
	Contract string
	ChainID  string
	Err      error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("create_request failed (canister=%s vault=%d to=%s value=%s contract=%s chain=%s): %v",
		e.Canister, e.VaultID, e.To, e.Value, e.Contract, e.ChainID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RejectedError is the terminal negative outcome of an approval request.
type RejectedError struct {
	// RequestID identifies the rejected request.
	RequestID uint64
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("request %d rejected by approvers", e.RequestID)
}

// Unwrap returns ErrRejected for errors.Is matching.
func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// ExpiredError is the terminal expiry outcome of an approval request.
type ExpiredError struct {
	// RequestID identifies the expired request.
	RequestID uint64
}

// Error implements the error interface.
func (e *ExpiredError) Error() string {
	return fmt.Sprintf("request %d expired before approval", e.RequestID)
}

// Unwrap returns ErrExpired for errors.Is matching.
func (e *ExpiredError) Unwrap() error {
	return ErrExpired
}

// PollTimeoutError indicates the observation budget ran out before the
// request reached a terminal state. The request persists on the canister;
// callers can resume polling with the same RequestID.
type PollTimeoutError struct {
	// RequestID identifies the still-unresolved request.
	RequestID uint64

	// Attempts is the number of observations made.
	Attempts int
}

// Error implements the error interface.
func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("request %d not terminal after %d observations", e.RequestID, e.Attempts)
}

// Unwrap returns ErrPollTimeout for errors.Is matching.
func (e *PollTimeoutError) Unwrap() error {
	return ErrPollTimeout
}

// RegistrationError indicates the directory canister refused a registration.
type RegistrationError struct {
	// Username is the requested username.
	Username string

	// Reason is the canister's error text.
	Reason string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration of %q failed: %s", e.Username, e.Reason)
}

// ServiceError indicates the paid resource responded with a non-success
// status after a valid signed payment was presented.
type ServiceError struct {
	// Status is the HTTP status code.
	Status int

	// Body is the response body, possibly truncated.
	Body string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("paid resource returned HTTP %d: %s", e.Status, e.Body)
}
