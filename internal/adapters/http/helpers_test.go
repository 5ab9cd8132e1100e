package httpadapter

import (
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decimalOf(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}
