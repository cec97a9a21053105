package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits every amount is quantized to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round quantizes d to two fractional digits, ties away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Percent returns pct percent of base, e.g. Percent(200, 10) == 20.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred).Mul(base)
}

// Parse reads a user-typed amount. Empty or unparsable text yields zero.
func Parse(text string) decimal.Decimal {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TryParse is Parse with the error kept, for callers that need to tell
// a typed zero from garbage.
func TryParse(text string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return d, nil
}

// FromValue converts a stored cell value to a decimal. Anything that is not
// a number (or numeric text) is zero.
func FromValue(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return decimal.NewFromInt(int64(x))
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		return Parse(x)
	default:
		return decimal.Zero
	}
}
