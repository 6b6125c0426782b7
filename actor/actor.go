// Package actor is a thin typed-call façade over Internet Computer
// canisters. It translates method calls into signed requests via
// aviate-labs/agent-go and decodes candid responses into Go values, wrapping
// failures with the canister and method for diagnosis. No retry is performed
// at this layer; retry policy belongs to callers.
package actor

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aviate-labs/agent-go"
	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"

	multisig "github.com/zCloak-Network/multisig-x402"
)

// Caller is the signed call surface consumed by the wallet and registry
// clients. Args and out follow agent-go conventions: positional candid
// arguments in, pointers to decode targets out.
type Caller interface {
	// CallUpdate performs a state-changing, consensus-bearing call.
	CallUpdate(canister principal.Principal, method string, args []any, out []any) error

	// CallQuery performs a read-only call. When silent is set, the call is
	// not logged; poll loops use this to avoid flooding diagnostics.
	CallQuery(canister principal.Principal, method string, args []any, out []any, silent bool) error
}

// Config configures a Client.
type Config struct {
	// Identity signs every request.
	Identity identity.Identity

	// Host is the IC endpoint, e.g. https://icp-api.io.
	Host string

	// FetchRootKey enables the root-key bootstrap required by local replica
	// networks. Never set it against mainnet.
	FetchRootKey bool

	// Logger receives call diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Validate ensures the config is usable.
func (c Config) Validate() error {
	if c.Identity == nil {
		return fmt.Errorf("identity is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Client implements Caller against a live IC endpoint.
type Client struct {
	agent  *agent.Agent
	logger *slog.Logger
}

// New creates a Client for the configured endpoint. With FetchRootKey set,
// the replica's root key is fetched during construction.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid actor config: %w", err)
	}
	hostURL, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", cfg.Host, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a, err := agent.New(agent.Config{
		Identity:     cfg.Identity,
		ClientConfig: []agent.ClientOption{agent.WithHostURL(hostURL)},
		FetchRootKey: cfg.FetchRootKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct agent for %s: %w", cfg.Host, err)
	}

	return &Client{agent: a, logger: logger}, nil
}

// CallUpdate implements Caller.
func (c *Client) CallUpdate(canister principal.Principal, method string, args []any, out []any) error {
	if err := c.agent.Call(canister, method, args, out); err != nil {
		return &multisig.RemoteCallError{Canister: canister.Encode(), Method: method, Err: err}
	}
	c.logger.Debug("update call completed", "canister", canister.Encode(), "method", method)
	return nil
}

// CallQuery implements Caller.
func (c *Client) CallQuery(canister principal.Principal, method string, args []any, out []any, silent bool) error {
	if err := c.agent.Query(canister, method, args, out); err != nil {
		return &multisig.RemoteCallError{Canister: canister.Encode(), Method: method, Err: err}
	}
	if !silent {
		c.logger.Debug("query call completed", "canister", canister.Encode(), "method", method)
	}
	return nil
}
