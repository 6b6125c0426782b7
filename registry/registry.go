// Package registry registers local identities with the directory canister
// and looks up existing registrations. Registration is idempotent: a
// username already registered to the same principal is treated as success.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aviate-labs/agent-go/principal"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/actor"
)

// User is the directory canister's record for a registered identity.
type User struct {
	Principal   string `ic:"principal"`
	Username    string `ic:"username"`
	DisplayName string `ic:"displayName"`
	CreatedAt   uint64 `ic:"createdAt"`
}

// registerResult is the two-armed candid result of register_ii_user.
type registerResult struct {
	Ok  *User   `ic:"ok,variant"`
	Err *string `ic:"err,variant"`
}

// Client talks to one directory canister through a Caller.
type Client struct {
	caller   actor.Caller
	canister principal.Principal
}

// New creates a registry client for the given directory canister.
func New(caller actor.Caller, canister principal.Principal) *Client {
	return &Client{caller: caller, canister: canister}
}

// RegisterUser registers username for the given principal, converting the
// canister's error arm into a RegistrationError.
func (c *Client) RegisterUser(username, displayName, principalText string) (*User, error) {
	var res registerResult
	if err := c.caller.CallUpdate(c.canister, "register_ii_user", []any{username, displayName, principalText}, []any{&res}); err != nil {
		return nil, err
	}
	switch {
	case res.Ok != nil:
		return res.Ok, nil
	case res.Err != nil:
		return nil, &multisig.RegistrationError{Username: username, Reason: *res.Err}
	default:
		return nil, &multisig.RegistrationError{Username: username, Reason: "empty result variant"}
	}
}

// GetUser looks up a username. A zero-element optional response means the
// user is absent and yields (nil, nil), never an error.
func (c *Client) GetUser(username string) (*User, error) {
	var user *User
	if err := c.caller.CallQuery(c.canister, "get_user", []any{username}, []any{&user}, false); err != nil {
		return nil, err
	}
	return user, nil
}

// IsUsernameTaken reports whether the directory already holds username.
func (c *Client) IsUsernameTaken(username string) (bool, error) {
	var taken bool
	if err := c.caller.CallQuery(c.canister, "is_username_taken", []any{username}, []any{&taken}, false); err != nil {
		return false, err
	}
	return taken, nil
}

// EnsureRegistered registers username for principalText unless the directory
// already holds that exact registration. A username held by a different
// principal is a RegistrationError.
func (c *Client) EnsureRegistered(username, displayName, principalText string) (*User, error) {
	existing, err := c.GetUser(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Principal == principalText {
			return existing, nil
		}
		return nil, &multisig.RegistrationError{Username: username, Reason: fmt.Sprintf("username held by another principal (%s)", existing.Principal)}
	}

	user, err := c.RegisterUser(username, displayName, principalText)
	if err != nil {
		// Tolerate a registration race: a concurrent register of the same
		// identity is still success.
		var regErr *multisig.RegistrationError
		if errors.As(err, &regErr) && strings.Contains(strings.ToLower(regErr.Reason), "already registered") {
			return c.GetUser(username)
		}
		return nil, err
	}
	return user, nil
}
