package keystore

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	multisig "github.com/zCloak-Network/multisig-x402"
)

// pkcs8Ed25519Len is the DER length of a PKCS#8 v1 ed25519 private key.
// The final 32 bytes are the seed.
const pkcs8Ed25519Len = 48

// seedFromPEM extracts the 32-byte ed25519 seed from a PEM-encoded key.
// Accepted encodings: a bare 32-byte seed, or a 48-byte PKCS#8 envelope
// whose trailing 32 bytes are the seed.
func seedFromPEM(data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &multisig.FormatError{Input: "<pem>", Reason: "no PEM block found"}
	}
	der := block.Bytes
	switch len(der) {
	case ed25519.SeedSize:
		return der, nil
	case pkcs8Ed25519Len:
		return der[len(der)-ed25519.SeedSize:], nil
	default:
		return nil, &multisig.FormatError{Input: "<pem>", Reason: fmt.Sprintf("decoded key is %d bytes, want %d or %d", len(der), ed25519.SeedSize, pkcs8Ed25519Len)}
	}
}

// ExportPEM returns the identity stored under name as a PKCS#8 PEM block.
func (s *Store) ExportPEM(name string) ([]byte, error) {
	id, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(id.seed)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity %q: %w", name, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
