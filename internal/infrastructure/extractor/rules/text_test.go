package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sampleInvoiceText = `Proveedor: Ferretería Sur SpA
RUT: 76.543.210-K
Factura N° 000123
Fecha de emisión: 05/03/2024
Descripción   Cantidad   Precio   Total
Tornillo 6mm   100   50   5.000
Martillo   2   7.990   15.980
Subtotal 20.980
Total a pagar: $ 24.966`

func newMatcher(t *testing.T) *TextMatcher {
	t.Helper()
	return NewTextMatcher(Default().Text, ',', DayFirst)
}

func TestTextMatcherHeaderFields(t *testing.T) {
	m := newMatcher(t)

	if got, ok := m.InvoiceNumber(sampleInvoiceText).Get(); !ok || got != "000123" {
		t.Fatalf("invoice number: got %q (found=%v)", got, ok)
	}
	if got, ok := m.DocumentDate(sampleInvoiceText).Get(); !ok || !got.Equal(day(2024, time.March, 5)) {
		t.Fatalf("document date: got %s (found=%v)", got, ok)
	}
	if got, ok := m.Total(sampleInvoiceText).Get(); !ok || !got.Equal(decimal.NewFromInt(24966)) {
		t.Fatalf("total: got %s (found=%v)", got, ok)
	}
	if got, ok := m.SupplierName(sampleInvoiceText).Get(); !ok || got != "Ferretería Sur SpA" {
		t.Fatalf("supplier name: got %q (found=%v)", got, ok)
	}
	if got, ok := m.SupplierTaxID(sampleInvoiceText).Get(); !ok || got != "76.543.210-K" {
		t.Fatalf("supplier tax id: got %q (found=%v)", got, ok)
	}
}

func TestTextMatcherSkipsSubtotal(t *testing.T) {
	m := newMatcher(t)

	got, ok := m.Total("Sub-total: 100\nIVA: 19\nTotal: 119").Get()
	if !ok || !got.Equal(decimal.NewFromInt(119)) {
		t.Fatalf("expected 119, got %s (found=%v)", got, ok)
	}
	if m.Total("Sub total 100").Found() {
		t.Fatalf("a lone subtotal is not the invoice total")
	}
}

func TestTextMatcherLineItems(t *testing.T) {
	m := newMatcher(t)

	rows := m.LineItems(sampleInvoiceText)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].Product != "Tornillo 6mm" || !rows[0].Quantity.Equal(decimal.NewFromInt(100)) || !rows[0].LineTotal.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Product != "Martillo" || !rows[1].UnitPrice.Equal(decimal.NewFromInt(7990)) {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestTextMatcherWithoutTableOrLabels(t *testing.T) {
	m := newMatcher(t)
	text := "Thank you for your business"

	if m.InvoiceNumber(text).Found() || m.Total(text).Found() || m.SupplierName(text).Found() {
		t.Fatalf("expected no fields from label-free text")
	}
	if rows := m.LineItems(text); len(rows) != 0 {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestTaxIDFallsBackToRUTPattern(t *testing.T) {
	m := newMatcher(t)
	if got, ok := m.SupplierTaxID("Emitido por 9.876.543-k Santiago").Get(); !ok || got != "9.876.543-K" {
		t.Fatalf("expected RUT pattern match, got %q (found=%v)", got, ok)
	}
}

func TestAlternationPrefersLongestLabel(t *testing.T) {
	alt := alternation([]string{"total", "total a pagar", " "})
	if !strings.HasPrefix(alt, `total\s+a\s+pagar|`) {
		t.Fatalf("unexpected alternation %q", alt)
	}
	if alternation(nil) != `\x00` {
		t.Fatalf("empty alternation must never match")
	}
}
