package markup

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/extractor/rules"
)

var canonicalDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Extractor reads structured invoice markup (tax-authority XML, UBL and similar dialects).
type Extractor struct {
	rules      rules.MarkupRules
	decimalSep rune
	dateOrder  rules.DateOrder
}

func NewExtractor(set *rules.Set, decimalSep rune, order rules.DateOrder) *Extractor {
	return &Extractor{rules: set.Markup, decimalSep: decimalSep, dateOrder: order}
}

func (e *Extractor) Extract(_ context.Context, content []byte) (domain.Extraction, error) {
	root, err := parseTree(content)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrUndecodableStream, "extract markup", err)
	}

	excluded := append(append([]string{}, e.rules.SupplierScopes...), e.rules.ExcludedScopes...)
	excluded = append(excluded, e.rules.LineElements...)

	date := e.date(root.findFirst(e.rules.DocumentDate, excluded))
	name, taxID := e.supplier(root)

	out := domain.Extraction{
		RootTag:       rules.Found(root.name).Ptr(),
		DocumentDate:  date.Ptr(),
		InvoiceNumber: textOf(root.findFirst(e.rules.InvoiceNumber, excluded)).Ptr(),
		InvoiceTotal:  e.amount(root.findFirst(e.rules.InvoiceTotal, excluded)).Ptr(),
		SupplierName:  name.Ptr(),
		SupplierTaxID: taxID.Ptr(),
	}
	out.LineItems = e.lineItems(root, out.DocumentDate)
	return out, nil
}

func (e *Extractor) supplier(root *node) (rules.Field[string], rules.Field[string]) {
	scope := root.bfs(func(n *node) bool { return nameIn(n.name, e.rules.SupplierScopes) }, e.rules.ExcludedScopes)
	if scope == nil {
		return rules.Missing[string](), rules.Missing[string]()
	}
	return textOf(scope.findFirst(e.rules.SupplierName, nil)), textOf(scope.findFirst(e.rules.SupplierTaxID, nil))
}

func (e *Extractor) lineItems(root *node, date *time.Time) []domain.LineItem {
	var lines []*node
	for _, name := range e.rules.LineElements {
		if lines = root.collect(name); len(lines) > 0 {
			break
		}
	}

	items := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		item, ok := e.lineItem(line)
		if !ok {
			continue
		}
		item.Position = len(items)
		item.DocumentDate = date
		items = append(items, item)
	}
	return items
}

func (e *Extractor) lineItem(line *node) (domain.LineItem, bool) {
	product, ok := textOf(line.findFirst(e.rules.LineProduct, nil)).Get()
	if !ok {
		return domain.LineItem{}, false
	}
	qty := e.quantity(line.findFirst(e.rules.LineQuantity, nil))
	unit := e.amount(line.findFirst(e.rules.LineUnitPrice, nil))
	total := e.amount(line.findFirst(e.rules.LineTotal, nil))

	q, hasQty := qty.Get()
	u, hasUnit := unit.Get()
	t, hasTotal := total.Get()
	if !hasQty {
		if !hasUnit && !hasTotal {
			return domain.LineItem{}, false
		}
		// a line without quantity bills a single unit
		q = decimal.NewFromInt(1)
	}
	switch {
	case !hasTotal && hasUnit:
		t = u.Mul(q)
	case !hasUnit && hasTotal && !q.IsZero():
		u = t.Div(q)
	}
	return domain.LineItem{Product: product, Quantity: q, UnitPrice: u, LineTotal: t}, true
}

// amount prefers the canonical xsd:decimal lexical form and falls back to locale rules.
func (e *Extractor) amount(n *node) rules.Field[decimal.Decimal] {
	if n == nil {
		return rules.Missing[decimal.Decimal]()
	}
	if canonicalDecimal.MatchString(n.text) {
		if d, err := decimal.NewFromString(n.text); err == nil {
			return rules.Found(d)
		}
	}
	return rules.ParseAmount(n.text, e.decimalSep)
}

func (e *Extractor) quantity(n *node) rules.Field[decimal.Decimal] {
	f := e.amount(n)
	if v, ok := f.Get(); ok && v.IsNegative() {
		return rules.Missing[decimal.Decimal]()
	}
	return f
}

func (e *Extractor) date(n *node) rules.Field[time.Time] {
	if n == nil {
		return rules.Missing[time.Time]()
	}
	return rules.ParseDate(n.text, e.dateOrder)
}

func textOf(n *node) rules.Field[string] {
	if n == nil {
		return rules.Missing[string]()
	}
	s := strings.TrimSpace(n.text)
	if s == "" {
		return rules.Missing[string]()
	}
	return rules.Found(s)
}
