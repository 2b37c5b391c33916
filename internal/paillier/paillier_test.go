package paillier

import (
	"crypto/rand"
	"math/big"
	"sync"
	"testing"

	"encwallet/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedKeyOnce sync.Once
	sharedKey     *PrivateKey
	sharedKeyErr  error
)

func testKey(t *testing.T) *PrivateKey {
	t.Helper()
	sharedKeyOnce.Do(func() {
		sharedKey, sharedKeyErr = GenerateKey(rand.Reader, 512)
	})
	require.NoError(t, sharedKeyErr)
	return sharedKey
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sk := testKey(t)
	nMinus1 := new(big.Int).Sub(sk.N, one)
	for _, m := range []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(1_000_000),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil),
		nMinus1,
	} {
		c, err := sk.Encrypt(m)
		require.NoError(t, err)
		got, err := sk.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Cmp(m), "round trip of %s", m)
	}
}

func TestEncryptIsProbabilistic(t *testing.T) {
	sk := testKey(t)
	c1, err := sk.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	c2, err := sk.Encrypt(big.NewInt(7))
	require.NoError(t, err)
	assert.NotEqual(t, 0, c1.Cmp(c2))
}

func TestEncryptRejectsOutOfRange(t *testing.T) {
	sk := testKey(t)
	_, err := sk.Encrypt(big.NewInt(-1))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
	_, err = sk.Encrypt(new(big.Int).Set(sk.N))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	var nilKey *PublicKey
	_, err = nilKey.Encrypt(big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestHomomorphicAddition(t *testing.T) {
	sk := testKey(t)
	p1 := big.NewInt(1_500_000_000_000_000_000)
	p2 := big.NewInt(250_000_000_000_000_000)
	c1, err := sk.Encrypt(p1)
	require.NoError(t, err)
	c2, err := sk.Encrypt(p2)
	require.NoError(t, err)

	sum, err := sk.Decrypt(sk.Add(c1, c2))
	require.NoError(t, err)
	assert.Equal(t, "1750000000000000000", sum.String())

	plus, err := sk.Decrypt(sk.AddPlain(c1, big.NewInt(5)))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000005", plus.String())

	scaled, err := sk.Decrypt(sk.MulPlain(c2, big.NewInt(4)))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", scaled.String())
}

func TestSubtractionWrapsToNegative(t *testing.T) {
	sk := testKey(t)
	c3, err := sk.Encrypt(big.NewInt(3))
	require.NoError(t, err)
	c10, err := sk.Encrypt(big.NewInt(10))
	require.NoError(t, err)

	diff, err := sk.Sub(c3, c10)
	require.NoError(t, err)
	got, err := sk.DecryptSigned(diff)
	require.NoError(t, err)
	assert.Equal(t, int64(-7), got.Int64())
}

func TestEncryptSigned(t *testing.T) {
	sk := testKey(t)
	c, err := sk.EncryptSigned(big.NewInt(-42))
	require.NoError(t, err)
	got, err := sk.DecryptSigned(c)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), got.Int64())

	tooBig := new(big.Int).Add(new(big.Int).Rsh(sk.N, 1), one)
	_, err = sk.EncryptSigned(tooBig)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestToSigned(t *testing.T) {
	n := big.NewInt(23)
	tests := []struct {
		raw  int64
		want int64
	}{
		{raw: 20, want: -3},
		{raw: 10, want: 10},
		{raw: 11, want: 11},
		{raw: 12, want: -11},
		{raw: 0, want: 0},
		{raw: 22, want: -1},
	}
	for _, tt := range tests {
		got := ToSigned(big.NewInt(tt.raw), n)
		assert.Equal(t, tt.want, got.Int64(), "raw %d", tt.raw)
	}
}

func TestDecryptRejectsInvalidCiphertext(t *testing.T) {
	sk := testKey(t)
	for _, c := range []*big.Int{
		big.NewInt(0),
		new(big.Int).Set(sk.NSquared),
		new(big.Int).Set(sk.N),
	} {
		_, err := sk.Decrypt(c)
		assert.ErrorIs(t, err, domain.ErrDecryption)
	}

	var nilKey *PrivateKey
	_, err := nilKey.Decrypt(big.NewInt(1))
	assert.ErrorIs(t, err, domain.ErrDecryption)
}

func TestNewPrivateKeyDetectsMismatch(t *testing.T) {
	sk := testKey(t)
	_, err := NewPrivateKey(sk.Public(), sk.Lambda, sk.Mu)
	require.NoError(t, err)

	wrongMu := new(big.Int).Add(sk.Mu, one)
	_, err = NewPrivateKey(sk.Public(), sk.Lambda, wrongMu)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewPublicKeyValidation(t *testing.T) {
	_, err := NewPublicKey(big.NewInt(1), big.NewInt(2))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = NewPublicKey(big.NewInt(35), big.NewInt(35*35))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = NewPublicKey(big.NewInt(35), big.NewInt(7))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = NewPublicKey(big.NewInt(35), big.NewInt(36))
	assert.NoError(t, err)
}

func TestParseHex(t *testing.T) {
	a, err := ParseHex("0xabcdef0123")
	require.NoError(t, err)
	b, err := ParseHex("abcdef0123")
	require.NoError(t, err)
	c, err := ParseHex("0XABCDEF0123")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Cmp(b))
	assert.Equal(t, 0, a.Cmp(c))
	assert.Equal(t, "0xabcdef0123", FormatHex(a))

	for _, bad := range []string{"", "0x", "0xzz", "-0x1", "12 34", "0x+ff", "+ff", "0x-0", "-1"} {
		_, err := ParseHex(bad)
		assert.ErrorIs(t, err, domain.ErrMalformedInput, "input %q", bad)
	}
}

func TestDecryptHexNormalization(t *testing.T) {
	sk := testKey(t)
	c, err := sk.Encrypt(big.NewInt(123456789))
	require.NoError(t, err)
	hex := FormatHex(c)

	withPrefix, err := ParseHex(hex)
	require.NoError(t, err)
	withoutPrefix, err := ParseHex(hex[2:])
	require.NoError(t, err)

	m1, err := sk.DecryptSigned(withPrefix)
	require.NoError(t, err)
	m2, err := sk.DecryptSigned(withoutPrefix)
	require.NoError(t, err)
	assert.Equal(t, 0, m1.Cmp(m2))
	assert.Equal(t, int64(123456789), m1.Int64())
}
