// Package amounts converts between on-chain fixed-point token amounts
// (18 fractional digits, "wei") and decimal strings. Conversions are
// exact in both directions; rounding happens only in the Display
// helpers, never before an amount is stored.
package amounts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point precision of every token on the platform.
const Decimals = 18

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// FormatWei renders a wei amount as an exact decimal string with
// trailing zeros trimmed: 1_500_000_000_000_000_000 → "1.5".
func FormatWei(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	whole := new(big.Int).Div(abs, weiPerToken)
	frac := new(big.Int).Mod(abs, weiPerToken)

	out := whole.String()
	if frac.Sign() != 0 {
		fracStr := frac.String()
		for len(fracStr) < Decimals {
			fracStr = "0" + fracStr
		}
		fracStr = strings.TrimRight(fracStr, "0")
		out += "." + fracStr
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Display renders a wei amount truncated to at most places fractional
// digits. Truncation happens here, at the presentation boundary, so
// cached values never lose precision.
func Display(amount *big.Int, places int) string {
	s := FormatWei(amount)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	if places <= 0 {
		return s[:dot]
	}
	frac := s[dot+1:]
	if len(frac) > places {
		frac = frac[:places]
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return s[:dot]
	}
	return s[:dot] + "." + frac
}

// ParseAmount converts a decimal string to wei exactly. Inputs with
// more than 18 fractional digits are rejected rather than silently
// rounded, so a formatted value always re-parses to the same integer.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	// "-", "+", and "." carry no digits at all.
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	wholeStr := parts[0]
	if wholeStr == "" {
		wholeStr = "0"
	}
	whole, ok := new(big.Int).SetString(wholeStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	result := new(big.Int).Mul(whole, weiPerToken)

	if len(parts) == 2 && parts[1] != "" {
		fracStr := parts[1]
		if len(fracStr) > Decimals {
			return nil, fmt.Errorf("amount %q exceeds %d decimal places", s, Decimals)
		}
		for len(fracStr) < Decimals {
			fracStr += "0"
		}
		frac, ok := new(big.Int).SetString(fracStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		result.Add(result, frac)
	}

	if neg {
		result.Neg(result)
	}
	return result, nil
}

// Percent renders part/whole as a percentage string with two decimal
// places, e.g. "29.50%". A zero or nil whole yields "0.00%".
func Percent(part, whole *big.Int) string {
	if part == nil || whole == nil || whole.Sign() == 0 {
		return "0.00%"
	}
	p := decimal.NewFromBigInt(part, 0)
	w := decimal.NewFromBigInt(whole, 0)
	return p.Div(w).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
