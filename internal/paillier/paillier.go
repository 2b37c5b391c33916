// Package paillier implements the Paillier cryptosystem over math/big.
//
// Paillier is additively homomorphic: the product of two ciphertexts modulo
// n² decrypts to the sum of the plaintexts modulo n. Encrypted token balances
// rely on this so the chain can add and subtract amounts it cannot read.
//
// Plaintexts live in Z_n. Signed amounts use the convention that a raw value
// greater than n/2 stands for raw - n, so debits can be represented as
// ciphertexts too.
package paillier

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"encwallet/internal/domain"
)

var one = big.NewInt(1)

// PublicKey holds n and g. NSquared is derived once at construction.
type PublicKey struct {
	N        *big.Int
	G        *big.Int
	NSquared *big.Int
	half     *big.Int
}

// NewPublicKey validates n and g and returns an immutable public key.
func NewPublicKey(n, g *big.Int) (*PublicKey, error) {
	if n == nil || n.Cmp(big.NewInt(2)) < 0 {
		return nil, fmt.Errorf("%w: paillier modulus n must be greater than 1", domain.ErrConfiguration)
	}
	nSquared := new(big.Int).Mul(n, n)
	if g == nil || g.Sign() <= 0 || g.Cmp(nSquared) >= 0 {
		return nil, fmt.Errorf("%w: paillier generator g must be in (0, n^2)", domain.ErrConfiguration)
	}
	if new(big.Int).GCD(nil, nil, g, n).Cmp(one) != 0 {
		return nil, fmt.Errorf("%w: paillier generator g shares a factor with n", domain.ErrConfiguration)
	}
	return &PublicKey{
		N:        new(big.Int).Set(n),
		G:        new(big.Int).Set(g),
		NSquared: nSquared,
		half:     new(big.Int).Rsh(n, 1),
	}, nil
}

// Encrypt encrypts m, which must satisfy 0 <= m < n.
func (pk *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	return pk.EncryptFrom(rand.Reader, m)
}

// EncryptFrom is Encrypt with an explicit randomness source.
func (pk *PublicKey) EncryptFrom(random io.Reader, m *big.Int) (*big.Int, error) {
	if pk == nil {
		return nil, fmt.Errorf("%w: public key not loaded", domain.ErrConfiguration)
	}
	if m == nil || m.Sign() < 0 || m.Cmp(pk.N) >= 0 {
		return nil, fmt.Errorf("%w: plaintext must be in [0, n)", domain.ErrMalformedInput)
	}
	r, err := pk.randomUnit(random)
	if err != nil {
		return nil, err
	}
	gm := new(big.Int).Exp(pk.G, m, pk.NSquared)
	rn := new(big.Int).Exp(r, pk.N, pk.NSquared)
	c := gm.Mul(gm, rn)
	return c.Mod(c, pk.NSquared), nil
}

// EncryptSigned encrypts a signed value, mapping negatives to n + v.
func (pk *PublicKey) EncryptSigned(v *big.Int) (*big.Int, error) {
	if pk == nil {
		return nil, fmt.Errorf("%w: public key not loaded", domain.ErrConfiguration)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: plaintext is required", domain.ErrMalformedInput)
	}
	if v.Sign() >= 0 {
		if v.Cmp(pk.half) > 0 {
			return nil, fmt.Errorf("%w: signed plaintext out of range", domain.ErrMalformedInput)
		}
		return pk.Encrypt(v)
	}
	m := new(big.Int).Add(pk.N, v)
	if m.Cmp(pk.half) <= 0 {
		return nil, fmt.Errorf("%w: signed plaintext out of range", domain.ErrMalformedInput)
	}
	return pk.Encrypt(m)
}

// Add returns a ciphertext of m1 + m2 mod n.
func (pk *PublicKey) Add(c1, c2 *big.Int) *big.Int {
	res := new(big.Int).Mul(c1, c2)
	return res.Mod(res, pk.NSquared)
}

// Sub returns a ciphertext of m1 - m2 mod n. It fails when c2 is not
// invertible modulo n².
func (pk *PublicKey) Sub(c1, c2 *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(c2, pk.NSquared)
	if inv == nil {
		return nil, fmt.Errorf("%w: ciphertext is not invertible", domain.ErrMalformedInput)
	}
	return pk.Add(c1, inv), nil
}

// AddPlain returns a ciphertext of m + k mod n.
func (pk *PublicKey) AddPlain(c, k *big.Int) *big.Int {
	gk := new(big.Int).Exp(pk.G, k, pk.NSquared)
	return pk.Add(c, gk)
}

// MulPlain returns a ciphertext of m * k mod n.
func (pk *PublicKey) MulPlain(c, k *big.Int) *big.Int {
	return new(big.Int).Exp(c, k, pk.NSquared)
}

// ValidateCiphertext checks that c is a unit of Z*_{n²}.
func (pk *PublicKey) ValidateCiphertext(c *big.Int) error {
	if c == nil || c.Sign() <= 0 || c.Cmp(pk.NSquared) >= 0 {
		return fmt.Errorf("%w: ciphertext out of range for this key", domain.ErrDecryption)
	}
	if new(big.Int).GCD(nil, nil, c, pk.N).Cmp(one) != 0 {
		return fmt.Errorf("%w: ciphertext shares a factor with n", domain.ErrDecryption)
	}
	return nil
}

// ToSigned applies the signed convention: raw > n/2 maps to raw - n.
func (pk *PublicKey) ToSigned(raw *big.Int) *big.Int {
	return ToSigned(raw, pk.N)
}

// ToSigned maps raw in [0, n) to (-n/2, n/2].
func ToSigned(raw, n *big.Int) *big.Int {
	half := new(big.Int).Rsh(n, 1)
	if raw.Cmp(half) > 0 {
		return new(big.Int).Sub(raw, n)
	}
	return new(big.Int).Set(raw)
}

func (pk *PublicKey) randomUnit(random io.Reader) (*big.Int, error) {
	for {
		r, err := rand.Int(random, pk.N)
		if err != nil {
			return nil, fmt.Errorf("read randomness: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, pk.N).Cmp(one) == 0 {
			return r, nil
		}
	}
}

// PrivateKey extends PublicKey with lambda and mu.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// NewPrivateKey binds lambda and mu to pub and checks that they decrypt a
// probe ciphertext correctly.
func NewPrivateKey(pub *PublicKey, lambda, mu *big.Int) (*PrivateKey, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: public key not loaded", domain.ErrConfiguration)
	}
	if lambda == nil || lambda.Sign() <= 0 || mu == nil || mu.Sign() <= 0 {
		return nil, fmt.Errorf("%w: paillier lambda and mu must be positive", domain.ErrConfiguration)
	}
	sk := &PrivateKey{
		PublicKey: *pub,
		Lambda:    new(big.Int).Set(lambda),
		Mu:        new(big.Int).Set(mu),
	}
	if err := sk.selfCheck(); err != nil {
		return nil, err
	}
	return sk, nil
}

// GenerateKey creates a key pair with an n of the given bit length and the
// usual g = n + 1.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	if bits < 16 {
		return nil, fmt.Errorf("%w: key size too small", domain.ErrConfiguration)
	}
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(random, bits-bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		pMinus1 := new(big.Int).Sub(p, one)
		qMinus1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pMinus1, qMinus1)
		if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
			continue
		}
		gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda := phi.Div(phi, gcd)
		g := new(big.Int).Add(n, one)

		pub, err := NewPublicKey(n, g)
		if err != nil {
			return nil, err
		}
		mu := new(big.Int).ModInverse(lFunc(new(big.Int).Exp(g, lambda, pub.NSquared), n), n)
		if mu == nil {
			continue
		}
		return &PrivateKey{PublicKey: *pub, Lambda: lambda, Mu: mu}, nil
	}
}

// Public returns the public half of the key.
func (sk *PrivateKey) Public() *PublicKey {
	pub := sk.PublicKey
	return &pub
}

// Decrypt returns the raw plaintext in [0, n).
func (sk *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if sk == nil {
		return nil, fmt.Errorf("%w: private key not loaded", domain.ErrDecryption)
	}
	if err := sk.ValidateCiphertext(c); err != nil {
		return nil, err
	}
	u := new(big.Int).Exp(c, sk.Lambda, sk.NSquared)
	m := lFunc(u, sk.N)
	m.Mul(m, sk.Mu)
	return m.Mod(m, sk.N), nil
}

// DecryptSigned decrypts c and applies the signed convention.
func (sk *PrivateKey) DecryptSigned(c *big.Int) (*big.Int, error) {
	raw, err := sk.Decrypt(c)
	if err != nil {
		return nil, err
	}
	return ToSigned(raw, sk.N), nil
}

func (sk *PrivateKey) selfCheck() error {
	probe := big.NewInt(42)
	if sk.N.Cmp(probe) <= 0 {
		probe = big.NewInt(1)
	}
	c, err := sk.Encrypt(probe)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	m, err := sk.Decrypt(c)
	if err != nil || m.Cmp(probe) != 0 {
		return fmt.Errorf("%w: paillier private key does not match public key", domain.ErrConfiguration)
	}
	return nil
}

// L(u) = (u - 1) / n
func lFunc(u, n *big.Int) *big.Int {
	t := new(big.Int).Sub(u, one)
	return t.Div(t, n)
}
