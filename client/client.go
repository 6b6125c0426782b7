// Package client wires the identity store, the canister actor, the
// registration client and the wallet orchestrator into a single paying HTTP
// client. One Client holds one on-disk identity and pays 402-gated
// resources with signatures obtained from the approval wallet canister.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aviate-labs/agent-go/principal"
	v2 "github.com/mark3labs/x402-go/v2"
	x402http "github.com/mark3labs/x402-go/v2/http"

	multisig "github.com/zCloak-Network/multisig-x402"
	"github.com/zCloak-Network/multisig-x402/actor"
	"github.com/zCloak-Network/multisig-x402/keystore"
	"github.com/zCloak-Network/multisig-x402/registry"
	"github.com/zCloak-Network/multisig-x402/wallet"
)

// Network selects which replica the client talks to.
const (
	NetworkMainnet = "mainnet"
	NetworkLocal   = "local"
)

const (
	mainnetHost = "https://icp-api.io"
	localHost   = "http://127.0.0.1:4943"

	defaultIdentityName = "default"
	defaultVaultID      = 1
)

// Config configures a Client. WalletCanister is the only required field;
// everything else has a usable default.
type Config struct {
	// WalletCanister is the approval wallet canister id (textual principal).
	WalletCanister string

	// DirectoryCanister is the user directory canister id. Registration is
	// skipped when empty.
	DirectoryCanister string

	// VaultID selects the vault within the wallet canister. Defaults to 1.
	VaultID uint64

	// IdentityName names the on-disk identity to load, generating it on
	// first use. Defaults to "default".
	IdentityName string

	// IdentityDir overrides the identity directory. Defaults to
	// ~/.multisig-x402/identities.
	IdentityDir string

	// IntegrityPolicy controls how identity files with a stale principal
	// are handled on load.
	IntegrityPolicy keystore.IntegrityPolicy

	// Network is NetworkMainnet or NetworkLocal. Defaults to mainnet.
	Network string

	// Host overrides the replica URL derived from Network.
	Host string

	// Username and DisplayName are registered with the directory canister
	// on first use when DirectoryCanister is set.
	Username    string
	DisplayName string

	// PayerAddress is the vault's EVM address, used as the authorization
	// sender in payment payloads.
	PayerAddress string

	// PaymentNetwork is the CAIP-2 network payments settle on. Defaults to
	// Base mainnet.
	PaymentNetwork string

	// Tokens lists the tokens the client is willing to pay with. Defaults
	// to USDC on PaymentNetwork.
	Tokens []v2.TokenConfig

	// Poll bounds the approval wait. Zero means the package default.
	Poll multisig.PollConfig

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Validate checks cfg for fields no default can repair.
func (c Config) Validate() error {
	if c.WalletCanister == "" {
		return &multisig.ValidationError{Field: "walletCanister", Reason: "required"}
	}
	if _, err := principal.Decode(c.WalletCanister); err != nil {
		return &multisig.ValidationError{Field: "walletCanister", Value: c.WalletCanister, Reason: "not a valid principal"}
	}
	if c.DirectoryCanister != "" {
		if _, err := principal.Decode(c.DirectoryCanister); err != nil {
			return &multisig.ValidationError{Field: "directoryCanister", Value: c.DirectoryCanister, Reason: "not a valid principal"}
		}
	}
	if c.PayerAddress == "" {
		return &multisig.ValidationError{Field: "payerAddress", Reason: "required"}
	}
	switch c.Network {
	case "", NetworkMainnet, NetworkLocal:
	default:
		return &multisig.ValidationError{Field: "network", Value: c.Network, Reason: "must be mainnet or local"}
	}
	if !c.Poll.IsZero() {
		if err := c.Poll.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) withDefaults() (Config, error) {
	if c.Network == "" {
		c.Network = NetworkMainnet
	}
	if c.Host == "" {
		if c.Network == NetworkLocal {
			c.Host = localHost
		} else {
			c.Host = mainnetHost
		}
	}
	if c.VaultID == 0 {
		c.VaultID = defaultVaultID
	}
	if c.IdentityName == "" {
		c.IdentityName = defaultIdentityName
	}
	if c.IdentityDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return c, fmt.Errorf("resolving identity directory: %w", err)
		}
		c.IdentityDir = filepath.Join(home, ".multisig-x402", "identities")
	}
	if c.PaymentNetwork == "" {
		c.PaymentNetwork = v2.NetworkBase
	}
	if len(c.Tokens) == 0 {
		chain, err := v2.GetChainConfig(c.PaymentNetwork)
		if err != nil {
			return c, fmt.Errorf("%w: %s", multisig.ErrUnsupportedNetwork, c.PaymentNetwork)
		}
		c.Tokens = []v2.TokenConfig{v2.NewUSDCTokenConfig(chain, 1)}
	}
	if c.Poll.IsZero() {
		c.Poll = multisig.DefaultPollConfig
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// Client is the assembled paying client.
type Client struct {
	cfg      Config
	store    *keystore.Store
	identity *keystore.Identity
	wallet   *wallet.Wallet
	signer   *wallet.Signer
	http     *x402http.Client
	logger   *slog.Logger
}

// New builds a Client from cfg: it loads (or generates) the identity,
// registers it with the directory canister when one is configured, and
// assembles the payment-aware HTTP client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	store := keystore.NewStore(cfg.IdentityDir,
		keystore.WithIntegrityPolicy(cfg.IntegrityPolicy),
		keystore.WithLogger(cfg.Logger))
	if err := store.Initialize(); err != nil {
		return nil, err
	}

	id, err := store.Load(cfg.IdentityName)
	if errors.Is(err, multisig.ErrIdentityNotFound) {
		id, err = store.Generate(cfg.IdentityName, false, keystore.Metadata{
			Username:    cfg.Username,
			DisplayName: cfg.DisplayName,
		})
		if err == nil {
			cfg.Logger.Info("generated new identity",
				"name", cfg.IdentityName, "principal", id.Principal)
		}
	}
	if err != nil {
		return nil, err
	}

	caller, err := actor.New(actor.Config{
		Identity:     id.AgentIdentity(),
		Host:         cfg.Host,
		FetchRootKey: cfg.Network == NetworkLocal,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.DirectoryCanister != "" && cfg.Username != "" {
		directory := principal.MustDecode(cfg.DirectoryCanister)
		reg := registry.New(caller, directory)
		if _, err := reg.EnsureRegistered(cfg.Username, cfg.DisplayName, id.Principal); err != nil {
			return nil, err
		}
	}

	walletCanister := principal.MustDecode(cfg.WalletCanister)
	w := wallet.New(caller, walletCanister, cfg.VaultID,
		wallet.WithPollConfig(cfg.Poll),
		wallet.WithLogger(cfg.Logger))

	signer, err := wallet.NewSigner(w, cfg.PayerAddress, cfg.PaymentNetwork, cfg.Tokens,
		wallet.WithSignerPollConfig(cfg.Poll))
	if err != nil {
		return nil, err
	}

	httpClient, err := x402http.NewClient(x402http.WithSigner(signer))
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		store:    store,
		identity: id,
		wallet:   w,
		signer:   signer,
		http:     httpClient,
		logger:   cfg.Logger,
	}, nil
}

// Resource is a fetched, possibly paid-for, HTTP resource.
type Resource struct {
	// StatusCode is the final HTTP status after any payment retry.
	StatusCode int

	// Body is the raw response body.
	Body []byte

	// Data holds the decoded body when the response was JSON, nil
	// otherwise.
	Data map[string]any

	// Settlement carries the facilitator's settlement receipt when the
	// server returned one.
	Settlement *v2.SettleResponse
}

// Fetch retrieves url, transparently paying a 402 challenge with a
// wallet-approved signature. Non-2xx terminal responses become a
// ServiceError carrying the body.
func (c *Client) Fetch(ctx context.Context, url string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "multisig-x402/"+multisig.Version)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &multisig.ServiceError{Status: resp.StatusCode, Body: string(body)}
	}

	res := &Resource{
		StatusCode: resp.StatusCode,
		Body:       body,
		Settlement: x402http.GetSettlement(resp),
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var data map[string]any
		if err := json.Unmarshal(body, &data); err == nil {
			res.Data = data
		}
	}
	return res, nil
}

// RequestSignature runs the wallet orchestration directly, outside any HTTP
// flow: canonicalize and validate p, submit it for approval, and poll to a
// terminal state.
func (c *Client) RequestSignature(ctx context.Context, p wallet.Params) (*multisig.SignatureResult, error) {
	return c.wallet.RequestSignature(ctx, p, c.cfg.Poll)
}

// Principal returns the textual principal of the client's identity.
func (c *Client) Principal() string {
	return c.identity.Principal
}

// Identity returns the loaded identity handle.
func (c *Client) Identity() *keystore.Identity {
	return c.identity
}

// Wallet exposes the underlying wallet orchestrator.
func (c *Client) Wallet() *wallet.Wallet {
	return c.wallet
}

// Signer exposes the wallet-backed payment signer, for use with a custom
// HTTP stack.
func (c *Client) Signer() *wallet.Signer {
	return c.signer
}

// HTTPClient exposes the payment-aware HTTP client.
func (c *Client) HTTPClient() *x402http.Client {
	return c.http
}
