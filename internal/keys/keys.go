// Package keys holds the Paillier key material a process loads at startup.
//
// Two capability variants exist. PublicMaterial can only encrypt and is safe
// to hand to any component. FullMaterial additionally decrypts and must only
// be constructed inside the trusted decryption boundary. Components that
// should never decrypt receive Unsupported as their Decryptor.
package keys

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"encwallet/internal/domain"
	"encwallet/internal/paillier"
)

// PublicMaterial encrypts amounts under the configured public key.
type PublicMaterial struct {
	pub *paillier.PublicKey
}

// FullMaterial encrypts and decrypts.
type FullMaterial struct {
	PublicMaterial
	priv *paillier.PrivateKey
}

// Unsupported rejects every decryption request.
type Unsupported struct{}

// LoadPublic parses hex n and g.
func LoadPublic(nHex, gHex string) (*PublicMaterial, error) {
	n, err := parseKeyHex("PAILLIER_N", nHex)
	if err != nil {
		return nil, err
	}
	g, err := parseKeyHex("PAILLIER_G", gHex)
	if err != nil {
		return nil, err
	}
	pub, err := paillier.NewPublicKey(n, g)
	if err != nil {
		return nil, err
	}
	return &PublicMaterial{pub: pub}, nil
}

// LoadFull parses the public key plus hex lambda and mu and verifies they
// belong together.
func LoadFull(nHex, gHex, lambdaHex, muHex string) (*FullMaterial, error) {
	public, err := LoadPublic(nHex, gHex)
	if err != nil {
		return nil, err
	}
	lambda, err := parseKeyHex("PAILLIER_LAMBDA", lambdaHex)
	if err != nil {
		return nil, err
	}
	mu, err := parseKeyHex("PAILLIER_MU", muHex)
	if err != nil {
		return nil, err
	}
	priv, err := paillier.NewPrivateKey(public.pub, lambda, mu)
	if err != nil {
		return nil, err
	}
	return &FullMaterial{PublicMaterial: *public, priv: priv}, nil
}

// FromPrivateKey wraps an in-memory private key, mostly for key generation
// and tests.
func FromPrivateKey(sk *paillier.PrivateKey) *FullMaterial {
	return &FullMaterial{PublicMaterial: PublicMaterial{pub: sk.Public()}, priv: sk}
}

// PublicKey returns the underlying key.
func (m *PublicMaterial) PublicKey() *paillier.PublicKey {
	if m == nil {
		return nil
	}
	return m.pub
}

// Encrypt encrypts a non-negative amount and returns 0x-prefixed hex.
func (m *PublicMaterial) Encrypt(value *big.Int) (string, error) {
	if m == nil || m.pub == nil {
		return "", fmt.Errorf("%w: public key not loaded", domain.ErrConfiguration)
	}
	c, err := m.pub.Encrypt(value)
	if err != nil {
		return "", err
	}
	return paillier.FormatHex(c), nil
}

// Decrypt parses a hex ciphertext and returns the signed plaintext.
func (m *FullMaterial) Decrypt(ctx context.Context, ciphertext string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m == nil || m.priv == nil {
		return nil, fmt.Errorf("%w: private key not loaded", domain.ErrDecryption)
	}
	c, err := paillier.ParseHex(ciphertext)
	if err != nil {
		return nil, err
	}
	value, err := m.priv.DecryptSigned(c)
	if err != nil {
		slog.Warn("decrypt failed", "err", err)
		return nil, err
	}
	return value, nil
}

// Decrypt always fails with ErrUnsupportedOperation.
func (Unsupported) Decrypt(ctx context.Context, ciphertext string) (*big.Int, error) {
	return nil, fmt.Errorf("%w: decryption requires the private key, which is not available in this process", domain.ErrUnsupportedOperation)
}

func parseKeyHex(name, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrConfiguration, name)
	}
	value, err := paillier.ParseHex(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", domain.ErrConfiguration, name, err)
	}
	return value, nil
}
