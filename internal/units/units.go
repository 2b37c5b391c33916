// Package units converts between integer token amounts and decimal strings.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"encwallet/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Format shifts the decimal point of value left by decimals digits and drops
// trailing fractional zeros. Format(1234567890123456789, 18) is
// "1.234567890123456789".
func Format(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// FormatGrouped is Format with thousands separators on the integer part.
func FormatGrouped(value *big.Int, decimals uint8) string {
	plain := Format(value, decimals)
	negative := strings.HasPrefix(plain, "-")
	plain = strings.TrimPrefix(plain, "-")

	intPart, fracPart, hasFrac := strings.Cut(plain, ".")
	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return Format(value, decimals)
	}
	out := humanize.BigComma(whole)
	if hasFrac {
		out += "." + fracPart
	}
	if negative {
		out = "-" + out
	}
	return out
}

// Parse converts a decimal string into an integer amount scaled by
// 10^decimals. Inputs with more fractional digits than decimals are rejected
// rather than rounded.
func Parse(amount string, decimals uint8) (*big.Int, error) {
	clean := strings.TrimSpace(amount)
	if clean == "" {
		return nil, fmt.Errorf("%w: amount is required", domain.ErrMalformedInput)
	}
	// Exponent notation lets a short input expand to an unbounded power of ten.
	if strings.ContainsAny(clean, "eE") {
		return nil, fmt.Errorf("%w: amount %q must be plain decimal notation", domain.ErrMalformedInput, amount)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", domain.ErrMalformedInput, amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimal places", domain.ErrMalformedInput, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// ParsePositive is Parse restricted to amounts greater than zero.
func ParsePositive(amount string, decimals uint8) (*big.Int, error) {
	value, err := Parse(amount, decimals)
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrMalformedInput)
	}
	return value, nil
}
