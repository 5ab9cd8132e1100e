package rules

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a locale-formatted number such as "$ 1.234.567,89",
// "1,234.50" or "CLP 12.000". decimalSep resolves a lone ambiguous separator.
func ParseAmount(raw string, decimalSep rune) Field[decimal.Decimal] {
	s := stripCurrency(raw)
	if s == "" {
		return Missing[decimal.Decimal]()
	}
	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return Missing[decimal.Decimal]()
		}
	}

	normalized, ok := normalizeSeparators(s, decimalSep)
	if !ok {
		return Missing[decimal.Decimal]()
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Missing[decimal.Decimal]()
	}
	if negative {
		d = d.Neg()
	}
	return Found(d)
}

func normalizeSeparators(s string, decimalSep rune) (string, bool) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	var dec rune
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			dec = '.'
		} else {
			dec = ','
		}
		if strings.Count(s, string(dec)) > 1 {
			return "", false
		}
	case dots > 1 || commas > 1:
		dec = 0
	case dots == 1 || commas == 1:
		sep := '.'
		if commas == 1 {
			sep = ','
		}
		idx := strings.IndexRune(s, sep)
		digitsAfter := len(s) - idx - 1
		switch {
		case sep == decimalSep:
			dec = sep
		case digitsAfter == 3:
			dec = 0
		default:
			dec = sep
		}
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == dec:
			b.WriteRune('.')
		}
	}
	out := b.String()
	if out == "" || out == "." {
		return "", false
	}
	return out, true
}

// stripCurrency removes a leading currency symbol or code and a trailing
// code or unit word. Letters or spaces left between digits make the value
// unparseable.
func stripCurrency(raw string) string {
	s := strings.TrimSpace(raw)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	s = strings.TrimLeftFunc(s, isCurrencyRune)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return isCurrencyRune(r) || r == '.' || r == ','
	})
	if s == "" {
		return ""
	}
	return sign + s
}

func isCurrencyRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
}

// ParseQuantity is ParseAmount restricted to non-negative values.
func ParseQuantity(raw string, decimalSep rune) Field[decimal.Decimal] {
	f := ParseAmount(raw, decimalSep)
	if v, ok := f.Get(); ok && v.IsNegative() {
		return Missing[decimal.Decimal]()
	}
	return f
}
