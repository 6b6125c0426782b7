// Package keystore manages named ed25519 identities on local disk. Each
// identity is one JSON file under the store directory, holding the seed,
// the derived principal, and optional directory metadata. Files are written
// owner-only via a temp-file rename; the store performs no inter-process
// locking, so concurrent writers from different processes must be
// serialized externally.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aviate-labs/agent-go/identity"

	multisig "github.com/zCloak-Network/multisig-x402"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// IntegrityPolicy decides what happens when a stored principal cannot be
// re-derived from the stored key material.
type IntegrityPolicy int

const (
	// IntegrityFail refuses to return an identity whose derived principal
	// disagrees with the stored one. This is the default.
	IntegrityFail IntegrityPolicy = iota

	// IntegrityWarn logs the mismatch and returns the identity anyway.
	IntegrityWarn
)

// Metadata is the optional directory metadata attached to an identity.
type Metadata struct {
	Username    string
	DisplayName string
}

// Identity is a loaded key-pair handle. All store operations work on
// explicit handles; the store keeps no process-wide active identity.
type Identity struct {
	// Name is the store key the identity was saved under.
	Name string

	// Principal is the textual principal derived from the public key.
	Principal string

	// Username is the directory username, if registered.
	Username string

	// DisplayName is the human-readable name.
	DisplayName string

	// CreatedAt is when the identity file was first written. Immutable.
	CreatedAt time.Time

	// UpdatedAt is when the identity file was last written.
	UpdatedAt time.Time

	seed    []byte
	agentID *identity.Ed25519Identity
}

// AgentIdentity returns the signing identity for canister calls.
func (id *Identity) AgentIdentity() *identity.Ed25519Identity {
	return id.agentID
}

// Seed returns a copy of the 32-byte ed25519 seed.
func (id *Identity) Seed() []byte {
	out := make([]byte, len(id.seed))
	copy(out, id.seed)
	return out
}

// record is the on-disk JSON document, one per identity name.
type record struct {
	Principal   string `json:"principal"`
	PrivateKey  string `json:"privateKey"`
	PublicKey   string `json:"publicKey"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Store owns a directory of identity files.
type Store struct {
	dir    string
	policy IntegrityPolicy
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIntegrityPolicy sets the principal-mismatch policy.
func WithIntegrityPolicy(p IntegrityPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store rooted at dir. Call Initialize before use.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		policy: IntegrityFail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Initialize ensures the root directory exists with owner-only access,
// fixing permissions if the directory pre-exists. Idempotent.
func (s *Store) Initialize() error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create identity directory %s: %w", s.dir, err)
	}
	if err := os.Chmod(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to restrict identity directory %s: %w", s.dir, err)
	}
	return nil
}

// Generate creates a new random identity under name and persists it. It
// fails with ErrIdentityExists when a file for name exists and overwrite is
// false. The display name defaults to the identity name.
func (s *Store) Generate(name string, overwrite bool, meta Metadata) (*Identity, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	return s.persist(name, seed, overwrite, meta)
}

// Import parses externally supplied seed material (hex, optional 0x prefix)
// and persists it under name, following the same path as Generate.
func (s *Store) Import(name, seedHex string, overwrite bool, meta Metadata) (*Identity, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(seedHex, "0x"), "0X")
	seed, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, &multisig.FormatError{Input: seedHex, Reason: "seed is not valid hex"}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, &multisig.FormatError{Input: seedHex, Reason: fmt.Sprintf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)}
	}
	return s.persist(name, seed, overwrite, meta)
}

// ImportPEM decodes a PEM-wrapped key and persists it under name. Both a
// bare 32-byte seed and a 48-byte PKCS#8 ed25519 envelope (trailing 32
// bytes are the seed) are accepted.
func (s *Store) ImportPEM(name string, pemData []byte, overwrite bool, meta Metadata) (*Identity, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	seed, err := seedFromPEM(pemData)
	if err != nil {
		return nil, err
	}
	return s.persist(name, seed, overwrite, meta)
}

// Load reads the identity stored under name, failing with
// ErrIdentityNotFound when absent. The principal is recomputed from the
// stored seed; a mismatch with the stored principal is handled per the
// store's IntegrityPolicy.
func (s *Store) Load(name string) (*Identity, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	rec, err := s.readRecord(name)
	if err != nil {
		return nil, err
	}

	seed, err := hex.DecodeString(rec.PrivateKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, &multisig.FormatError{Input: name, Reason: "stored key material is corrupt"}
	}
	agentID, derived, err := identityFromSeed(seed)
	if err != nil {
		return nil, err
	}

	if derived != rec.Principal {
		if s.policy == IntegrityFail {
			return nil, &multisig.IntegrityError{Name: name, Stored: rec.Principal, Derived: derived}
		}
		s.logger.Warn("identity principal mismatch, returning derived key pair anyway",
			"name", name, "stored", rec.Principal, "derived", derived)
	}

	id := &Identity{
		Name:        name,
		Principal:   derived,
		Username:    rec.Username,
		DisplayName: rec.DisplayName,
		seed:        seed,
		agentID:     agentID,
	}
	id.CreatedAt = s.parseTimestamp(name, "createdAt", rec.CreatedAt)
	id.UpdatedAt = s.parseTimestamp(name, "updatedAt", rec.UpdatedAt)
	return id, nil
}

// parseTimestamp decodes a stored RFC-3339 timestamp. A corrupt value is
// not fatal (the key material is still usable) but is reported rather than
// silently zeroed.
func (s *Store) parseTimestamp(name, field, value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn("identity record has an unparseable timestamp",
			"name", name, "field", field, "value", value)
		return time.Time{}
	}
	return t
}

// Save rewrites the identity file for id, preserving the original creation
// time and any previously stored username or display name that id does not
// supply.
func (s *Store) Save(id *Identity) error {
	_, err := s.persist(id.Name, id.seed, true, Metadata{Username: id.Username, DisplayName: id.DisplayName})
	return err
}

// Export returns the hex-encoded seed stored under name.
func (s *Store) Export(name string) (string, error) {
	id, err := s.Load(name)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id.seed), nil
}

// List returns the names of all stored identities in filename order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list identity directory %s: %w", s.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}

// Delete removes the identity stored under name, failing with
// ErrIdentityNotFound when absent. Explicit operator action only; nothing
// in the payment path deletes identities.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("identity %q: %w", name, multisig.ErrIdentityNotFound)
		}
		return fmt.Errorf("failed to delete identity %q: %w", name, err)
	}
	return nil
}

// persist is the single write path shared by Generate, Import and Save.
// When a previous record exists it keeps createdAt and fills in any
// metadata the caller did not supply.
func (s *Store) persist(name string, seed []byte, overwrite bool, meta Metadata) (*Identity, error) {
	prev, err := s.readRecord(name)
	exists := err == nil
	if err != nil && !errors.Is(err, multisig.ErrIdentityNotFound) {
		return nil, err
	}
	if exists && !overwrite {
		return nil, fmt.Errorf("identity %q: %w", name, multisig.ErrIdentityExists)
	}

	agentID, principalText, err := identityFromSeed(seed)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := record{
		Principal:   principalText,
		PrivateKey:  hex.EncodeToString(seed),
		PublicKey:   hex.EncodeToString(ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)),
		Username:    meta.Username,
		DisplayName: meta.DisplayName,
		CreatedAt:   now.Format(time.RFC3339),
		UpdatedAt:   now.Format(time.RFC3339),
	}
	if exists {
		rec.CreatedAt = prev.CreatedAt
		if rec.Username == "" {
			rec.Username = prev.Username
		}
		if rec.DisplayName == "" {
			rec.DisplayName = prev.DisplayName
		}
	}
	if rec.DisplayName == "" {
		rec.DisplayName = name
	}

	if err := s.writeRecord(name, rec); err != nil {
		return nil, err
	}

	id := &Identity{
		Name:        name,
		Principal:   principalText,
		Username:    rec.Username,
		DisplayName: rec.DisplayName,
		UpdatedAt:   now,
		seed:        append([]byte(nil), seed...),
		agentID:     agentID,
	}
	id.CreatedAt, _ = time.Parse(time.RFC3339, rec.CreatedAt)
	return id, nil
}

func (s *Store) readRecord(name string) (record, error) {
	var rec record
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return rec, fmt.Errorf("identity %q: %w", name, multisig.ErrIdentityNotFound)
		}
		return rec, fmt.Errorf("failed to read identity %q: %w", name, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to parse identity %q: %w", name, err)
	}
	return rec, nil
}

// writeRecord writes atomically: temp file in the same directory, owner-only
// permissions, then rename over the target.
func (s *Store) writeRecord(name string, rec record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode identity %q: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage identity %q: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict identity file %q: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write identity %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write identity %q: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("failed to store identity %q: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func validateName(name string) error {
	if name == "" {
		return &multisig.ValidationError{Field: "name", Value: name, Reason: "must not be empty"}
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return &multisig.ValidationError{Field: "name", Value: name, Reason: "must not contain path separators"}
	}
	return nil
}

func identityFromSeed(seed []byte) (*identity.Ed25519Identity, string, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	agentID, err := identity.NewEd25519Identity(pub, priv)
	if err != nil {
		return nil, "", fmt.Errorf("failed to construct identity: %w", err)
	}
	return agentID, agentID.Sender().Encode(), nil
}
