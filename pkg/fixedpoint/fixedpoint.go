// Package fixedpoint converts between human decimal strings and integer unit
// amounts expressed in an asset's smallest denomination. Conversion is exact:
// fractional digits beyond the asset's precision are truncated, never rounded,
// and no floating point is involved.
package fixedpoint

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "swapdesk/pkg/errors"
)

// ParseUnits converts a raw decimal string into an integer unit amount at the
// given precision. The input is normalized first: a leading sign is honored,
// a missing integer part defaults to "0" (".5" -> "0.5"), a missing
// fractional part defaults to "0" ("5." -> "5.0"), and fractional digits
// beyond decimals are truncated. Well-formed decimal strings never fail.
// Whether a negative amount is acceptable is the caller's concern.
func ParseUnits(s string, decimals int) (decimal.Decimal, error) {
	intPart, fracPart, err := normalize(s)
	if err != nil {
		return decimal.Zero, err
	}

	if len(fracPart) > decimals {
		fracPart = fracPart[:decimals]
	}
	for len(fracPart) < decimals {
		fracPart += "0"
	}

	units, err := decimal.NewFromString(intPart + fracPart)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", apperrors.ErrMalformedAmount, s)
	}
	return units, nil
}

// FormatUnits renders an integer unit amount as a decimal string at the given
// precision, with trailing fractional zeros trimmed.
func FormatUnits(units decimal.Decimal, decimals int) string {
	digits := units.Truncate(0).String()

	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}

	for len(digits) <= decimals {
		digits = "0" + digits
	}

	intPart := digits[:len(digits)-decimals]
	fracPart := digits[len(digits)-decimals:]
	fracPart = strings.TrimRight(fracPart, "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// Truncate normalizes a decimal string to the given precision without
// converting units: "1.23456" at 2 decimals yields "1.23".
func Truncate(s string, decimals int) (string, error) {
	units, err := ParseUnits(s, decimals)
	if err != nil {
		return "", err
	}
	return FormatUnits(units, decimals), nil
}

// normalize splits a raw amount string into validated integer and fractional
// digit runs, applying the defaulting rules for missing parts.
func normalize(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty string", apperrors.ErrMalformedAmount)
	}

	sign := ""
	if s[0] == '+' || s[0] == '-' {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
		if s == "" {
			return "", "", fmt.Errorf("%w: bare sign", apperrors.ErrMalformedAmount)
		}
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return "", "", fmt.Errorf("%w: %q", apperrors.ErrMalformedAmount, s)
		}
	}

	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		fracPart = "0"
	}

	if !isDigits(intPart) || !isDigits(fracPart) {
		return "", "", fmt.Errorf("%w: %q", apperrors.ErrMalformedAmount, s)
	}
	return sign + intPart, fracPart, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
