package rules

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw   string
		sep   rune
		want  string
		found bool
	}{
		{"$ 1.234.567,89", ',', "1234567.89", true},
		{"1,234.50", ',', "1234.5", true},
		{"CLP 12.000", ',', "12000", true},
		{"12.5", ',', "12.5", true},
		{"1,5", ',', "1.5", true},
		{"1,500", '.', "1500", true},
		{"1.500", '.', "1.5", true},
		{"(45,00)", ',', "-45", true},
		{"-7", ',', "-7", true},
		{"1.2.3,4,5", ',', "", false},
		{"12-34", ',', "", false},
		{"USD", ',', "", false},
		{"3 x 2", ',', "", false},
		{"12abc34", ',', "", false},
		{"1e5", ',', "", false},
		{"1 234,56", ',', "", false},
		{"-$ 5", ',', "-5", true},
		{"100 CLP", ',', "100", true},
		{"12,5 kg.", ',', "12.5", true},
		{"US$ 1,234.50", ',', "1234.5", true},
		{"", ',', "", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.raw, tc.sep).Get()
		if ok != tc.found {
			t.Fatalf("%q: expected found=%v, got %v", tc.raw, tc.found, ok)
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%q: expected %s, got %s", tc.raw, tc.want, got)
		}
	}
}

func TestParseQuantityRejectsNegative(t *testing.T) {
	if ParseQuantity("-3", ',').Found() {
		t.Fatalf("negative quantity must be missing")
	}
	if v, ok := ParseQuantity("3", ',').Get(); !ok || !v.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3, got %v %v", v, ok)
	}
}
