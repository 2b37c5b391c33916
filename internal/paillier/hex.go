package paillier

import (
	"fmt"
	"math/big"
	"strings"

	"encwallet/internal/domain"
)

// ParseHex parses a big-endian hex string with an optional 0x prefix.
func ParseHex(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
	}
	if clean == "" {
		return nil, fmt.Errorf("%w: empty hex value", domain.ErrMalformedInput)
	}
	// SetString accepts a sign; ciphertexts and key parts never carry one.
	if clean[0] == '+' || clean[0] == '-' {
		return nil, fmt.Errorf("%w: invalid hex value %q", domain.ErrMalformedInput, truncate(raw))
	}
	value, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("%w: invalid hex value %q", domain.ErrMalformedInput, truncate(raw))
	}
	return value, nil
}

// FormatHex renders v as lowercase 0x-prefixed hex without padding.
func FormatHex(v *big.Int) string {
	return "0x" + v.Text(16)
}

func truncate(s string) string {
	if len(s) <= 24 {
		return s
	}
	return s[:24] + "..."
}
