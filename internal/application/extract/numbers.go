package extract

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// parseDecimal accepts "12.50", "12,50" and "1.234,50"; anything unparseable is zero.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseNumber coerces a document value to float64, never failing.
func ParseNumber(s string) float64 {
	return parseDecimal(s).InexactFloat64()
}

// ParseInt coerces a document value to an int, truncating any fraction.
func ParseInt(s string) int {
	return int(parseDecimal(s).IntPart())
}

// LineAmounts holds the derived monetary fields of an invoice line.
type LineAmounts struct {
	Amount       decimal.Decimal
	IVA          decimal.Decimal
	PriceWithIVA decimal.Decimal
	FromDebit    bool
}

// DeriveLineAmounts picks the first non-zero of credit and debit and applies the tax rate.
func DeriveLineAmounts(credit, debit, taxPercentage string) LineAmounts {
	out := LineAmounts{Amount: parseDecimal(credit)}
	if out.Amount.IsZero() {
		if d := parseDecimal(debit); !d.IsZero() {
			out.Amount = d
			out.FromDebit = true
		}
	}
	rate := parseDecimal(taxPercentage).Div(hundred)
	out.IVA = out.Amount.Mul(rate)
	out.PriceWithIVA = out.Amount.Mul(decimal.NewFromInt(1).Add(rate))
	return out
}
