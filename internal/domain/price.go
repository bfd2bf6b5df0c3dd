package domain

import (
	"fmt"
	"math/big"
	"strings"
)

var priceUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(PRICE_DECIMALS), nil)

// FormatUnits converts a raw on-chain amount into a decimal string with
// PRICE_DECIMALS decimals, e.g. 1500000000000000000 -> "1.5". The fractional
// part keeps at least one digit so "1.0" round-trips through a numeric column.
func FormatUnits(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}

	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	quo, rem := new(big.Int).QuoRem(abs, priceUnit, new(big.Int))

	frac := fmt.Sprintf("%0*s", PRICE_DECIMALS, rem.String())
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	out := quo.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// ParseUnits converts a decimal string back into a raw on-chain amount.
// The inverse of FormatUnits; rejects more than PRICE_DECIMALS fractional digits.
func ParseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > PRICE_DECIMALS {
		return nil, fmt.Errorf("too many decimal places in %q", s)
	}

	// Right-pad the fraction to the full decimal width
	fracPart += strings.Repeat("0", PRICE_DECIMALS-len(fracPart))

	wei, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		wei.Neg(wei)
	}
	return wei, nil
}
